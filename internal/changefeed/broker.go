package changefeed

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when subscribing to a closed feed.
var ErrClosed = errors.New("changefeed: closed")

// subscriberBuffer bounds pending events per subscriber. Observers reload
// state on every event, so dropping an event while one is queued loses nothing.
const subscriberBuffer = 16

// Broker fans events out to local subscribers. It is the whole feed for a
// single-instance deployment and the local half of the distributed feeds.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

var _ Feed = (*Broker)(nil)

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

type subscriber struct {
	broker  *Broker
	filter  Filter
	handler Handler
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

// Subscribe registers handler for events matching filter.
func (b *Broker) Subscribe(filter Filter, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	s := &subscriber{
		broker:  b,
		filter:  filter,
		handler: handler,
		events:  make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
	}
	b.subs[s] = struct{}{}
	go s.run()
	return s, nil
}

// Publish delivers event to every matching subscriber.
func (b *Broker) Publish(_ context.Context, event Event) error {
	b.Dispatch(event)
	return nil
}

// Dispatch delivers event without blocking on slow subscribers.
func (b *Broker) Dispatch(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !s.filter.Matches(event) {
			continue
		}
		select {
		case s.events <- event:
		default:
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(e)
		}
	}
}

func (s *subscriber) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		s.broker.mu.Unlock()
		close(s.done)
	})
}
