// Package notifications creates, lists and acknowledges user notifications and
// lets callers watch a user's notifications for changes.
package notifications

import (
	"context"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/pkg/logger"
)

// Table is the change-feed table notifications are published on.
const Table = "notifications"

// Service manages notifications.
type Service struct {
	store storage.NotificationStore
	feed  changefeed.Feed
	log   *logger.Logger
}

// New constructs a notification service. feed may be nil when nobody watches.
func New(store storage.NotificationStore, feed changefeed.Feed, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, feed: feed, log: log}
}

// Notify creates an unread notification for userID.
func (s *Service) Notify(ctx context.Context, userID, notificationType, message, relatedID, actionType string) (notification.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return notification.Notification{}, services.Invalid("user_id is required")
	}
	if notificationType == "" {
		return notification.Notification{}, services.Invalid("type is required")
	}

	n, err := s.store.CreateNotification(ctx, notification.Notification{
		UserID:     userID,
		Type:       notificationType,
		Message:    message,
		RelatedID:  relatedID,
		ActionType: actionType,
	})
	if err != nil {
		return notification.Notification{}, err
	}
	metrics.RecordNotification(n.Type)
	s.publish(ctx, changefeed.Insert, n)

	s.log.WithField("notification_id", n.ID).
		WithField("user_id", userID).
		WithField("type", notificationType).
		Debug("notification created")
	return n, nil
}

// Unread lists userID's unread notifications, newest first.
func (s *Service) Unread(ctx context.Context, userID string) ([]notification.Notification, error) {
	return s.store.ListUnreadNotifications(ctx, userID)
}

// UnreadCount counts userID's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

// Get returns a notification owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, services.ErrForbidden
	}
	return n, nil
}

// MarkRead marks one of userID's notifications read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	n.Read = true
	s.publish(ctx, changefeed.Update, n)
	return nil
}

// MarkAllRead marks every unread notification of userID read in one write.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.publish(ctx, changefeed.Update, notification.Notification{UserID: userID, Read: true})
	}
	return count, nil
}

// Watch calls fn for every change to userID's notifications until the
// returned subscription is closed or ctx is done.
func (s *Service) Watch(ctx context.Context, userID string, fn func(changefeed.Event)) (changefeed.Subscription, error) {
	if s.feed == nil {
		return nil, changefeed.ErrClosed
	}
	sub, err := s.feed.Subscribe(changefeed.Filter{Table: Table, Column: "user_id", Value: userID}, fn)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, sub.Close)
	return closeFunc(func() {
		stop()
		sub.Close()
	}), nil
}

type closeFunc func()

func (f closeFunc) Close() { f() }

func (s *Service) publish(ctx context.Context, eventType changefeed.EventType, n notification.Notification) {
	if s.feed == nil {
		return
	}
	event := changefeed.Event{
		Table: Table,
		Type:  eventType,
		Record: map[string]any{
			"id":      n.ID,
			"user_id": n.UserID,
			"type":    n.Type,
			"read":    n.Read,
		},
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("user_id", n.UserID).Warn("publish notification change failed")
	}
}
