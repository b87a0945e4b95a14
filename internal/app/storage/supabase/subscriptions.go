package supabase

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/storage"
)

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = s.now()
	var out subscription.Subscription
	err := s.insertOne(ctx, "subscriptions", sub, &out, "subscription", sub.ID)
	return out, err
}

func (s *Store) DeleteSubscription(ctx context.Context, investorID, expertID string) error {
	q := s.c.From("subscriptions").Eq("investor_id", investorID).Eq("expert_id", expertID)
	return s.deleteSome(ctx, q, "subscription", investorID+"|"+expertID)
}

func (s *Store) GetSubscription(ctx context.Context, investorID, expertID string) (subscription.Subscription, error) {
	var out subscription.Subscription
	q := s.c.From("subscriptions").Select("*").Eq("investor_id", investorID).Eq("expert_id", expertID)
	err := s.getOne(ctx, q, &out, "subscription", investorID+"|"+expertID)
	return out, err
}

func (s *Store) ListSubscriptionsByInvestor(ctx context.Context, investorID string) ([]subscription.Subscription, error) {
	out := []subscription.Subscription{}
	err := s.list(ctx, s.c.From("subscriptions").Select("*").Eq("investor_id", investorID).Order("created_at", false), &out)
	return out, err
}

func (s *Store) ListSubscriptionsByExpert(ctx context.Context, expertID string) ([]subscription.Subscription, error) {
	out := []subscription.Subscription{}
	err := s.list(ctx, s.c.From("subscriptions").Select("*").Eq("expert_id", expertID).Order("created_at", false), &out)
	return out, err
}

func (s *Store) CountSubscribers(ctx context.Context, expertID string) (int, error) {
	return s.count(ctx, s.c.From("subscriptions").Eq("expert_id", expertID))
}

// --- RequestStore ------------------------------------------------------------

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
	var out subscription.Request
	err := s.insertOne(ctx, "subscription_requests", req, &out, "subscription request", req.ID)
	return out, err
}

func (s *Store) GetRequest(ctx context.Context, id string) (subscription.Request, error) {
	var out subscription.Request
	err := s.getOne(ctx, s.c.From("subscription_requests").Select("*").Eq("id", id), &out, "subscription request", id)
	return out, err
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to subscription.Status) (subscription.Request, error) {
	patch := map[string]any{"status": to, "updated_at": s.now()}
	q := s.c.From("subscription_requests").Eq("id", id).Eq("status", from)
	var out subscription.Request
	err := s.updateOne(ctx, q, patch, &out, "subscription request", id)
	if err == nil || !storage.IsNotFound(err) {
		return out, err
	}
	if _, getErr := s.GetRequest(ctx, id); getErr != nil {
		return subscription.Request{}, getErr
	}
	return subscription.Request{}, storage.Conflict("subscription request %s is no longer %s", id, from)
}

func (s *Store) GetPendingRequest(ctx context.Context, investorID, expertID string) (subscription.Request, error) {
	var out subscription.Request
	q := s.c.From("subscription_requests").Select("*").
		Eq("investor_id", investorID).Eq("expert_id", expertID).Eq("status", subscription.StatusPending)
	err := s.getOne(ctx, q, &out, "pending request", investorID+"|"+expertID)
	return out, err
}

func (s *Store) ListRequestsByExpert(ctx context.Context, expertID string, status subscription.Status) ([]subscription.Request, error) {
	q := s.c.From("subscription_requests").Select("*").Eq("expert_id", expertID)
	if status != "" {
		q = q.Eq("status", status)
	}
	out := []subscription.Request{}
	err := s.list(ctx, q.Order("created_at", false), &out)
	return out, err
}

func (s *Store) ListRequestsByInvestor(ctx context.Context, investorID string) ([]subscription.Request, error) {
	out := []subscription.Request{}
	err := s.list(ctx, s.c.From("subscription_requests").Select("*").Eq("investor_id", investorID).Order("created_at", false), &out)
	return out, err
}
