package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/marketbridge/platform/pkg/logger"
)

// RedisFeed shares events between instances over a redis pub/sub channel.
// Every instance, including the publisher, receives each event from redis.
type RedisFeed struct {
	rdb     *redis.Client
	channel string
	broker  *Broker
	pubsub  *redis.PubSub
	log     *logger.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

var _ Feed = (*RedisFeed)(nil)

// NewRedisFeed subscribes to channel and starts the receive loop.
func NewRedisFeed(ctx context.Context, rdb *redis.Client, channel string, log *logger.Logger) (*RedisFeed, error) {
	if log == nil {
		log = logger.NewDefault("changefeed")
	}
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	f := &RedisFeed{
		rdb:     rdb,
		channel: channel,
		broker:  NewBroker(),
		pubsub:  pubsub,
		log:     log,
		cancel:  cancel,
	}
	f.wg.Add(1)
	go f.listen(loopCtx)

	log.WithField("channel", channel).Info("redis change feed subscribed")
	return f, nil
}

// Subscribe registers a local observer.
func (f *RedisFeed) Subscribe(filter Filter, handler Handler) (Subscription, error) {
	return f.broker.Subscribe(filter, handler)
}

// Publish sends event to every instance.
func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.log.WithError(err).WithField("table", event.Table).Warn("publish change event failed")
		return err
	}
	return nil
}

// Close stops the receive loop and all local subscriptions.
func (f *RedisFeed) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		err = f.pubsub.Close()
		f.wg.Wait()
		_ = f.broker.Close()
	})
	return err
}

func (f *RedisFeed) listen(ctx context.Context) {
	defer f.wg.Done()
	ch := f.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.log.WithError(err).Warn("discarding malformed change event")
				continue
			}
			f.broker.Dispatch(event)
		}
	}
}
