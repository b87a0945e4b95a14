package views

import (
	"context"
	"errors"
	"sync"

	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/services/subscriptions"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/pkg/logger"
)

// ErrNotActionable is returned when accepting or declining a plain notification.
var ErrNotActionable = errors.New("this notification has no action")

// BellSource is what the notification bell reads and writes.
type BellSource interface {
	Unread(ctx context.Context, userID string) ([]notification.Notification, error)
	Get(ctx context.Context, userID, id string) (notification.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Watch(ctx context.Context, userID string, fn func(changefeed.Event)) (changefeed.Subscription, error)
}

// Responder answers subscription requests.
type Responder interface {
	Respond(ctx context.Context, expertID, requestID string, approve bool) (subscription.Request, error)
}

// BellState is a snapshot of the bell.
type BellState struct {
	Unread []notification.Notification `json:"unread"`
	Count  int                         `json:"count"`
}

// Bell is one user's unread notifications, kept current by the change feed.
type Bell struct {
	src       BellSource
	responder Responder
	userID    string
	onChange  func(BellState)
	log       *logger.Logger

	mu     sync.Mutex
	unread []notification.Notification
	sub    changefeed.Subscription
	closed bool
	// gen orders snapshots: a result is applied only if no later one was.
	gen     uint64
	applied uint64
}

// NewBell creates a bell for userID. onChange, if set, receives every new state.
func NewBell(src BellSource, responder Responder, userID string, onChange func(BellState), log *logger.Logger) *Bell {
	if log == nil {
		log = logger.NewDefault("bell")
	}
	return &Bell{src: src, responder: responder, userID: userID, onChange: onChange, log: log}
}

// Start watches the user's notifications, reloading the unread list on every
// change until Close or ctx ends, and then does the initial load. Watching
// first means a change landing during the initial load is not missed, and
// the initial load never replaces a newer reload.
func (b *Bell) Start(ctx context.Context) error {
	sub, err := b.src.Watch(ctx, b.userID, func(changefeed.Event) {
		if err := b.Reload(ctx); err != nil && ctx.Err() == nil {
			b.log.WithError(err).WithField("user_id", b.userID).Warn("bell reload failed")
		}
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return nil
	}
	b.sub = sub
	b.mu.Unlock()

	if err := b.Reload(ctx); err != nil {
		b.Close()
		return err
	}
	return nil
}

// Reload replaces the unread list with the store's. A fetch that returns
// after a later reload or local update has been applied is discarded.
func (b *Bell) Reload(ctx context.Context) error {
	gen := b.nextGen()
	list, err := b.src.Unread(ctx, b.userID)
	if err != nil {
		return err
	}
	b.set(gen, list)
	return nil
}

// State returns a snapshot.
func (b *Bell) State() BellState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// MarkRead removes id locally, then marks it read. On failure the list is reloaded.
func (b *Bell) MarkRead(ctx context.Context, id string) error {
	b.mu.Lock()
	kept := make([]notification.Notification, 0, len(b.unread))
	for _, n := range b.unread {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	b.gen++
	gen := b.gen
	b.mu.Unlock()
	b.set(gen, kept)

	if err := b.src.MarkRead(ctx, b.userID, id); err != nil {
		if rerr := b.Reload(ctx); rerr != nil {
			b.log.WithError(rerr).Warn("bell reload after failed mark-read")
		}
		return err
	}
	return nil
}

// MarkAllRead marks everything read in one write, then clears the list.
func (b *Bell) MarkAllRead(ctx context.Context) error {
	if _, err := b.src.MarkAllRead(ctx, b.userID); err != nil {
		return err
	}
	b.set(b.nextGen(), nil)
	return nil
}

// Accept approves the subscription request behind notification id.
func (b *Bell) Accept(ctx context.Context, id string) (subscription.Request, error) {
	return b.respond(ctx, id, true)
}

// Decline declines the subscription request behind notification id.
func (b *Bell) Decline(ctx context.Context, id string) (subscription.Request, error) {
	return b.respond(ctx, id, false)
}

func (b *Bell) respond(ctx context.Context, id string, approve bool) (subscription.Request, error) {
	n, err := b.src.Get(ctx, b.userID, id)
	if err != nil {
		return subscription.Request{}, err
	}
	if !n.Actionable() {
		return subscription.Request{}, ErrNotActionable
	}

	req, err := b.responder.Respond(ctx, b.userID, n.RelatedID, approve)
	if err != nil && !errors.Is(err, subscriptions.ErrInvalidTransition) {
		return subscription.Request{}, err
	}
	// An already answered request leaves nothing to act on, so the
	// notification is cleared either way.
	if merr := b.MarkRead(ctx, id); merr != nil {
		return req, merr
	}
	return req, err
}

// Close stops watching. It is safe to call more than once.
func (b *Bell) Close() {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.closed = true
	b.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (b *Bell) nextGen() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	return b.gen
}

func (b *Bell) set(gen uint64, list []notification.Notification) {
	b.mu.Lock()
	if gen < b.applied {
		b.mu.Unlock()
		return
	}
	b.applied = gen
	b.unread = list
	state := b.stateLocked()
	b.mu.Unlock()
	if b.onChange != nil {
		b.onChange(state)
	}
}

func (b *Bell) stateLocked() BellState {
	unread := append([]notification.Notification{}, b.unread...)
	return BellState{Unread: unread, Count: len(unread)}
}
