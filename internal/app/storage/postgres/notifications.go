package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/notification"
)

const notificationColumns = `id, user_id, type, message, read, related_id, action_type, created_at`

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :user_id, :type, :message, :read, :related_id, :action_type, :created_at)
	`, n)
	if err != nil {
		return notification.Notification{}, mapError(err, "notification", n.ID)
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	err := s.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return n, mapError(err, "notification", id)
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	out := []notification.Notification{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC
	`, userID)
	return out, err
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID)
	return n, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "notification", id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
