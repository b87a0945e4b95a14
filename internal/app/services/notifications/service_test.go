package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage/memory"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/pkg/logger"
	"github.com/marketbridge/platform/pkg/testutil"
)

func newService(t *testing.T) (*Service, *changefeed.Broker) {
	t.Helper()
	broker := changefeed.NewBroker()
	t.Cleanup(func() { broker.Close() })
	return New(memory.New(), broker, logger.NewDiscard()), broker
}

func TestNotifyAndMarkRead(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	n, err := svc.Notify(ctx, "u1", notification.TypeNewComment, "someone commented", "in-1", "")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.Read {
		t.Fatalf("new notification should be unread")
	}

	if err := svc.MarkRead(ctx, "u2", n.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden for other user, got %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, _ := svc.UnreadCount(ctx, "u1")
	if count != 0 {
		t.Fatalf("expected 0 unread, got %d", count)
	}
}

func TestNotifyRequiresUser(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Notify(context.Background(), " ", notification.TypeNewComment, "m", "", ""); !services.IsInvalid(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Notify(ctx, "u1", notification.TypeNewSubscriber, "hi", "", ""); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	n, err := svc.MarkAllRead(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("mark all read: n=%d err=%v", n, err)
	}
	list, _ := svc.Unread(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("expected no unread, got %d", len(list))
	}
}

func TestWatchReceivesOnlyOwnChanges(t *testing.T) {
	svc, broker := newService(t)
	ctx := context.Background()

	events := make(chan changefeed.Event, 4)
	sub, err := svc.Watch(ctx, "u1", func(e changefeed.Event) { events <- e })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	_, _ = svc.Notify(ctx, "u2", notification.TypeNewComment, "not yours", "", "")
	mine, _ := svc.Notify(ctx, "u1", notification.TypeNewComment, "yours", "", "")

	select {
	case e := <-events:
		if e.Value("id") != mine.ID || e.Type != changefeed.Insert {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event delivered")
	}

	sub.Close()
	sub.Close()
	if broker.Len() != 0 {
		t.Fatalf("expected watch to be released, %d subscribers left", broker.Len())
	}
}

func TestWatchEndsWithContext(t *testing.T) {
	svc, broker := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := svc.Watch(ctx, "u1", func(changefeed.Event) {}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for broker.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not closed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishFailureDoesNotFailNotify(t *testing.T) {
	feed := testutil.NewRecordingFeed(errors.New("redis: connection refused"))
	svc := New(memory.New(), feed, logger.NewDiscard())
	ctx := context.Background()

	n, err := svc.Notify(ctx, "u1", notification.TypeNewSubscriber, "new subscriber", "", "")
	if err != nil {
		t.Fatalf("notify should survive a publish failure: %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	events := feed.Events()
	if len(events) != 2 {
		t.Fatalf("expected insert and update events, got %d", len(events))
	}
	if events[0].Type != changefeed.Insert || events[0].Value("user_id") != "u1" {
		t.Fatalf("unexpected insert event: %+v", events[0])
	}
	if events[1].Type != changefeed.Update || events[1].Value("read") != "true" {
		t.Fatalf("unexpected update event: %+v", events[1])
	}
}
