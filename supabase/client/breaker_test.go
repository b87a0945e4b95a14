package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.Now
	return cb, clock
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.State() != CircuitClosed {
		t.Fatalf("initial State() = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 || cb.config.SuccessThreshold != 2 || cb.config.Timeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cb.config)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure(errors.New("boom"))
	cb.RecordFailure(errors.New("boom"))
	cb.RecordSuccess()
	cb.RecordFailure(errors.New("boom"))

	if cb.State() != CircuitClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAndRejects(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})

	cb.RecordFailure(errors.New("first"))
	cb.RecordFailure(errors.New("second"))

	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() error = %v, want ErrCircuitOpen", err)
	}
	if cb.Rejected() != 1 {
		t.Fatalf("Rejected() = %d, want 1", cb.Rejected())
	}
	if cb.LastError() == nil || cb.LastError().Error() != "second" {
		t.Fatalf("LastError() = %v", cb.LastError())
	}
}

func TestCircuitBreaker_HalfOpenLifecycle(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second})

	cb.RecordFailure(errors.New("down"))
	clock.Advance(2 * time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("one success should not close: %v", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ReopenFromHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})

	cb.RecordFailure(errors.New("down"))
	clock.Advance(2 * time.Second)
	_ = cb.Allow()
	cb.RecordFailure(errors.New("still down"))

	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
}

func TestCircuitState_String(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("String() = %s, want %s", got, want)
		}
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	changed := make(chan CircuitState, 1)
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(_, to CircuitState) {
			changed <- to
		},
	})

	cb.RecordFailure(errors.New("down"))

	select {
	case to := <-changed:
		if to != CircuitOpen {
			t.Fatalf("transitioned to %v, want open", to)
		}
	case <-time.After(time.Second):
		t.Fatal("OnStateChange not called")
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = cb.Allow()
		}()
		go func() {
			defer wg.Done()
			cb.RecordSuccess()
		}()
		go func() {
			defer wg.Done()
			cb.RecordFailure(errors.New("test"))
		}()
	}

	wg.Wait()
}

func TestClientNeverRetriesAndTripsBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"database is starting up"}`))
	}))
	defer server.Close()

	breaker := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	c, err := New(Config{URL: server.URL, APIKey: "key", Breaker: breaker})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := c.From("insights").Select("*").Execute(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "database is starting up" {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("server hits = %d, want 2 (no retries)", got)
	}

	_, err = c.From("insights").Select("*").Execute(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("open breaker still reached server: hits = %d", got)
	}
}
