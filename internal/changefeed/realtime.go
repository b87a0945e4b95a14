package changefeed

import (
	"context"
	"fmt"

	"github.com/marketbridge/platform/pkg/logger"
	"github.com/marketbridge/platform/supabase/client"
)

// RealtimeFeed receives postgres changes from the hosted realtime service.
// The database emits events itself, so Publish does nothing.
type RealtimeFeed struct {
	rt     *client.RealtimeClient
	broker *Broker
	log    *logger.Logger

	// OnReceive, when set before Start, is called for every change received.
	OnReceive func(Event)
}

var _ Feed = (*RealtimeFeed)(nil)

// NewRealtimeFeed wraps rt. Call Start to connect and join the table channels.
func NewRealtimeFeed(rt *client.RealtimeClient, log *logger.Logger) *RealtimeFeed {
	if log == nil {
		log = logger.NewDefault("changefeed")
	}
	return &RealtimeFeed{rt: rt, broker: NewBroker(), log: log}
}

// Start connects the socket and joins one channel per table.
func (f *RealtimeFeed) Start(ctx context.Context, tables []string) error {
	if err := f.rt.Connect(ctx); err != nil {
		return fmt.Errorf("connect realtime: %w", err)
	}
	for _, table := range tables {
		table := table
		_, err := f.rt.SubscribeToPostgresChanges(ctx, client.PostgresChangesConfig{Table: table}, func(change *client.ChangeEvent) {
			f.receive(table, change)
		})
		if err != nil {
			_ = f.rt.Disconnect()
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
	}
	f.log.WithField("tables", tables).Info("realtime change feed joined")
	return nil
}

func (f *RealtimeFeed) receive(table string, change *client.ChangeEvent) {
	event := Event{
		Table:     change.Table,
		Type:      EventType(change.Type),
		Record:    change.Record,
		OldRecord: change.OldRecord,
	}
	if event.Table == "" {
		event.Table = table
	}
	if f.OnReceive != nil {
		f.OnReceive(event)
	}
	f.broker.Dispatch(event)
}

// Subscribe registers a local observer.
func (f *RealtimeFeed) Subscribe(filter Filter, handler Handler) (Subscription, error) {
	return f.broker.Subscribe(filter, handler)
}

// Publish is a no-op: the database emits realtime events on commit.
func (f *RealtimeFeed) Publish(context.Context, Event) error {
	return nil
}

// EnsureConnected re-dials the realtime socket after a drop. Channels are re-joined.
func (f *RealtimeFeed) EnsureConnected(ctx context.Context) error {
	if f.rt.Connected() {
		return nil
	}
	f.log.Warn("realtime socket down, reconnecting")
	return f.rt.Connect(ctx)
}

// Close disconnects the socket and stops local subscriptions.
func (f *RealtimeFeed) Close() error {
	err := f.rt.Disconnect()
	_ = f.broker.Close()
	return err
}
