package supabase

import (
	"context"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/marketbridge/platform/internal/app/domain/notification"
)

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now()
	var out notification.Notification
	err := s.insertOne(ctx, "notifications", n, &out, "notification", n.ID)
	return out, err
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var out notification.Notification
	err := s.getOne(ctx, s.c.From("notifications").Select("*").Eq("id", id), &out, "notification", id)
	return out, err
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	out := []notification.Notification{}
	q := s.c.From("notifications").Select("*").Eq("user_id", userID).Eq("read", false).Order("created_at", false)
	err := s.list(ctx, q, &out)
	return out, err
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, s.c.From("notifications").Eq("user_id", userID).Eq("read", false))
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	return s.updateOne(ctx, s.c.From("notifications").Eq("id", id), map[string]any{"read": true}, nil, "notification", id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	resp, err := s.c.From("notifications").Eq("user_id", userID).Eq("read", false).
		ExecuteUpdate(ctx, map[string]any{"read": true})
	if err != nil {
		return 0, err
	}
	return len(gjson.ParseBytes(resp.Body).Array()), nil
}
