package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/storage"
)

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, investor_id, expert_id, created_at) VALUES ($1, $2, $3, $4)
	`, sub.ID, sub.InvestorID, sub.ExpertID, sub.CreatedAt)
	if err != nil {
		return subscription.Subscription{}, mapError(err, "subscription", sub.ID)
	}
	return sub, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, investorID, expertID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE investor_id = $1 AND expert_id = $2
	`, investorID, expertID)
	if err != nil {
		return err
	}
	return expectAffected(res, "subscription", investorID+"|"+expertID)
}

func (s *Store) GetSubscription(ctx context.Context, investorID, expertID string) (subscription.Subscription, error) {
	var sub subscription.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT id, investor_id, expert_id, created_at FROM subscriptions WHERE investor_id = $1 AND expert_id = $2
	`, investorID, expertID)
	return sub, mapError(err, "subscription", investorID+"|"+expertID)
}

func (s *Store) ListSubscriptionsByInvestor(ctx context.Context, investorID string) ([]subscription.Subscription, error) {
	out := []subscription.Subscription{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, investor_id, expert_id, created_at FROM subscriptions WHERE investor_id = $1 ORDER BY created_at DESC
	`, investorID)
	return out, err
}

func (s *Store) ListSubscriptionsByExpert(ctx context.Context, expertID string) ([]subscription.Subscription, error) {
	out := []subscription.Subscription{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, investor_id, expert_id, created_at FROM subscriptions WHERE expert_id = $1 ORDER BY created_at DESC
	`, expertID)
	return out, err
}

func (s *Store) CountSubscribers(ctx context.Context, expertID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscriptions WHERE expert_id = $1`, expertID)
	return n, err
}

// --- RequestStore ------------------------------------------------------------

const requestColumns = `id, investor_id, expert_id, status, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, req subscription.Request) (subscription.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = subscription.StatusPending
	}
	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO subscription_requests (`+requestColumns+`)
		VALUES (:id, :investor_id, :expert_id, :status, :created_at, :updated_at)
	`, req)
	if err != nil {
		return subscription.Request{}, mapError(err, "subscription request", req.ID)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (subscription.Request, error) {
	var req subscription.Request
	err := s.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM subscription_requests WHERE id = $1`, id)
	return req, mapError(err, "subscription request", id)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to subscription.Status) (subscription.Request, error) {
	var req subscription.Request
	err := s.db.GetContext(ctx, &req, `
		UPDATE subscription_requests SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+requestColumns,
		id, from, to, s.now())
	if err == nil {
		return req, nil
	}
	err = mapError(err, "subscription request", id)
	if !errors.Is(err, storage.ErrNotFound) {
		return subscription.Request{}, err
	}
	// Distinguish a missing request from one that already moved on.
	if _, getErr := s.GetRequest(ctx, id); getErr != nil {
		return subscription.Request{}, getErr
	}
	return subscription.Request{}, storage.Conflict("subscription request %s is no longer %s", id, from)
}

func (s *Store) GetPendingRequest(ctx context.Context, investorID, expertID string) (subscription.Request, error) {
	var req subscription.Request
	err := s.db.GetContext(ctx, &req, `
		SELECT `+requestColumns+` FROM subscription_requests
		WHERE investor_id = $1 AND expert_id = $2 AND status = 'pending'
	`, investorID, expertID)
	return req, mapError(err, "pending request", investorID+"|"+expertID)
}

func (s *Store) ListRequestsByExpert(ctx context.Context, expertID string, status subscription.Status) ([]subscription.Request, error) {
	out := []subscription.Request{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+requestColumns+` FROM subscription_requests
		WHERE expert_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC
	`, expertID, string(status))
	return out, err
}

func (s *Store) ListRequestsByInvestor(ctx context.Context, investorID string) ([]subscription.Request, error) {
	out := []subscription.Request{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+requestColumns+` FROM subscription_requests WHERE investor_id = $1 ORDER BY created_at DESC
	`, investorID)
	return out, err
}
