package testutil

import (
	"context"
	"sync"

	"github.com/marketbridge/platform/internal/changefeed"
)

// RecordingFeed is a changefeed.Feed that keeps every published event and
// never delivers them.
type RecordingFeed struct {
	mu     sync.Mutex
	events []changefeed.Event
	err    error
	closed bool
}

var _ changefeed.Feed = (*RecordingFeed)(nil)

// NewRecordingFeed returns an empty feed. When err is non-nil every Publish
// records the event and then fails with it.
func NewRecordingFeed(err error) *RecordingFeed {
	return &RecordingFeed{err: err}
}

// Subscribe returns a no-op subscription.
func (f *RecordingFeed) Subscribe(changefeed.Filter, changefeed.Handler) (changefeed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, changefeed.ErrClosed
	}
	return noopSubscription{}, nil
}

// Publish records event.
func (f *RecordingFeed) Publish(_ context.Context, event changefeed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

// Close marks the feed closed.
func (f *RecordingFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Events returns a copy of the published events.
func (f *RecordingFeed) Events() []changefeed.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]changefeed.Event, len(f.events))
	copy(out, f.events)
	return out
}

type noopSubscription struct{}

func (noopSubscription) Close() {}
