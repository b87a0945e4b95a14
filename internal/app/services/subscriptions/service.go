// Package subscriptions lets investors follow experts, directly or through a
// request the expert approves or declines.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/pkg/logger"
)

var (
	ErrAlreadySubscribed = errors.New("you are already subscribed to this expert")
	ErrRequestPending    = errors.New("a subscription request to this expert is already pending")
	ErrInvalidTransition = errors.New("this subscription request has already been answered")
	ErrSelfSubscription  = errors.New("you cannot subscribe to yourself")
)

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType, message, relatedID, actionType string) (notification.Notification, error)
}

// ExpertCard is one entry of the expert directory.
type ExpertCard struct {
	Profile         profile.Profile        `json:"profile"`
	Details         *profile.ExpertDetails `json:"details,omitempty"`
	InsightCount    int                    `json:"insight_count"`
	SubscriberCount int                    `json:"subscriber_count"`
}

// Service manages subscriptions and subscription requests.
type Service struct {
	profiles storage.ProfileStore
	insights storage.InsightStore
	subs     storage.SubscriptionStore
	requests storage.RequestStore
	notifier Notifier
	log      *logger.Logger
}

// New constructs a subscription service.
func New(profiles storage.ProfileStore, insights storage.InsightStore, subs storage.SubscriptionStore, requests storage.RequestStore, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subscriptions")
	}
	return &Service{
		profiles: profiles,
		insights: insights,
		subs:     subs,
		requests: requests,
		notifier: notifier,
		log:      log,
	}
}

// ListExperts returns every expert with their terms and counts. Counts are
// fetched per expert.
func (s *Service) ListExperts(ctx context.Context) ([]ExpertCard, error) {
	experts, err := s.profiles.ListProfilesByType(ctx, profile.TypeExpert)
	if err != nil {
		return nil, err
	}

	cards := make([]ExpertCard, 0, len(experts))
	for _, p := range experts {
		card := ExpertCard{Profile: p}
		details, err := s.profiles.GetExpertDetails(ctx, p.UserID)
		switch {
		case err == nil:
			card.Details = &details
		case !storage.IsNotFound(err):
			return nil, err
		}
		if card.InsightCount, err = s.insights.CountInsightsByExpert(ctx, p.ID); err != nil {
			return nil, err
		}
		if card.SubscriberCount, err = s.subs.CountSubscribers(ctx, p.ID); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Subscribe subscribes investorID to expertID immediately.
func (s *Service) Subscribe(ctx context.Context, investorID, expertID string) (subscription.Subscription, error) {
	investor, expert, err := s.pair(ctx, investorID, expertID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	sub, err := s.subs.CreateSubscription(ctx, subscription.Subscription{InvestorID: investor.ID, ExpertID: expert.ID})
	if err != nil {
		if storage.IsConflict(err) {
			return subscription.Subscription{}, ErrAlreadySubscribed
		}
		return subscription.Subscription{}, err
	}
	metrics.RecordSubscription(true)

	s.notify(ctx, expert.ID, notification.TypeNewSubscriber,
		fmt.Sprintf("%s subscribed to your insights", displayName(investor)), investor.ID, "")

	s.log.WithField("investor_id", investor.ID).
		WithField("expert_id", expert.ID).
		Info("subscription created")
	return sub, nil
}

// Unsubscribe removes investorID's subscription to expertID.
func (s *Service) Unsubscribe(ctx context.Context, investorID, expertID string) error {
	if err := s.subs.DeleteSubscription(ctx, investorID, expertID); err != nil {
		return err
	}
	metrics.RecordSubscription(false)
	s.log.WithField("investor_id", investorID).
		WithField("expert_id", expertID).
		Info("subscription removed")
	return nil
}

// IsSubscribed reports whether investorID follows expertID.
func (s *Service) IsSubscribed(ctx context.Context, investorID, expertID string) (bool, error) {
	_, err := s.subs.GetSubscription(ctx, investorID, expertID)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ListSubscriptions lists investorID's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, investorID string) ([]subscription.Subscription, error) {
	return s.subs.ListSubscriptionsByInvestor(ctx, investorID)
}

// SubscribedExpertIDs lists the experts investorID follows.
func (s *Service) SubscribedExpertIDs(ctx context.Context, investorID string) ([]string, error) {
	subs, err := s.subs.ListSubscriptionsByInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ExpertID)
	}
	return ids, nil
}

// ListSubscribers returns the profiles of expertID's subscribers.
func (s *Service) ListSubscribers(ctx context.Context, expertID string) ([]profile.Profile, error) {
	subs, err := s.subs.ListSubscriptionsByExpert(ctx, expertID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return []profile.Profile{}, nil
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.InvestorID)
	}
	return s.profiles.ListProfilesByIDs(ctx, ids)
}

// RequestSubscription asks expertID to accept investorID as a subscriber.
func (s *Service) RequestSubscription(ctx context.Context, investorID, expertID string) (subscription.Request, error) {
	investor, expert, err := s.pair(ctx, investorID, expertID)
	if err != nil {
		return subscription.Request{}, err
	}
	subscribed, err := s.IsSubscribed(ctx, investor.ID, expert.ID)
	if err != nil {
		return subscription.Request{}, err
	}
	if subscribed {
		return subscription.Request{}, ErrAlreadySubscribed
	}

	req, err := s.requests.CreateRequest(ctx, subscription.Request{InvestorID: investor.ID, ExpertID: expert.ID})
	if err != nil {
		if storage.IsConflict(err) {
			return subscription.Request{}, ErrRequestPending
		}
		return subscription.Request{}, err
	}
	metrics.RecordSubscriptionRequest("requested")

	s.notify(ctx, expert.ID, notification.TypeSubscriptionRequest,
		fmt.Sprintf("%s wants to subscribe to your insights", displayName(investor)),
		req.ID, notification.ActionSubscriptionRequest)

	s.log.WithField("request_id", req.ID).
		WithField("investor_id", investor.ID).
		WithField("expert_id", expert.ID).
		Info("subscription requested")
	return req, nil
}

// ListRequests lists requests addressed to expertID, filtered by status unless empty.
func (s *Service) ListRequests(ctx context.Context, expertID string, status subscription.Status) ([]subscription.Request, error) {
	if status != "" && status != subscription.StatusPending && !status.Terminal() {
		return nil, services.Invalid("unknown status %q", status)
	}
	return s.requests.ListRequestsByExpert(ctx, expertID, status)
}

// ListMyRequests lists the requests investorID has sent.
func (s *Service) ListMyRequests(ctx context.Context, investorID string) ([]subscription.Request, error) {
	return s.requests.ListRequestsByInvestor(ctx, investorID)
}

// PendingExpertIDs lists experts with a pending request from investorID.
func (s *Service) PendingExpertIDs(ctx context.Context, investorID string) ([]string, error) {
	reqs, err := s.requests.ListRequestsByInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if r.Status == subscription.StatusPending {
			ids = append(ids, r.ExpertID)
		}
	}
	return ids, nil
}

// Respond approves or declines a pending request. It is the only place a
// request's status changes. Approval also creates the subscription.
func (s *Service) Respond(ctx context.Context, expertID, requestID string, approve bool) (subscription.Request, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return subscription.Request{}, err
	}
	if req.ExpertID != expertID {
		return subscription.Request{}, services.ErrForbidden
	}
	if req.Status == subscription.StatusApproved && approve {
		return s.restoreApproved(ctx, req)
	}
	if req.Status.Terminal() {
		return subscription.Request{}, ErrInvalidTransition
	}

	to := subscription.StatusDeclined
	if approve {
		to = subscription.StatusApproved
	}
	req, err = s.requests.UpdateRequestStatus(ctx, requestID, subscription.StatusPending, to)
	if err != nil {
		if storage.IsConflict(err) {
			return subscription.Request{}, ErrInvalidTransition
		}
		return subscription.Request{}, err
	}
	metrics.RecordSubscriptionRequest(string(to))

	expertName := expertID
	if p, err := s.profiles.GetProfile(ctx, expertID); err == nil {
		expertName = displayName(p)
	}

	if approve {
		_, err := s.subs.CreateSubscription(ctx, subscription.Subscription{InvestorID: req.InvestorID, ExpertID: req.ExpertID})
		switch {
		case err == nil:
			metrics.RecordSubscription(true)
		case !storage.IsConflict(err):
			s.log.WithError(err).WithField("request_id", req.ID).Warn("request approved but subscription not created")
			return req, err
		}
		s.notify(ctx, req.InvestorID, notification.TypeSubscriptionApproved,
			fmt.Sprintf("%s approved your subscription request", expertName), req.ID, "")
	} else {
		s.notify(ctx, req.InvestorID, notification.TypeSubscriptionDeclined,
			fmt.Sprintf("%s declined your subscription request", expertName), req.ID, "")
	}

	s.log.WithField("request_id", req.ID).
		WithField("status", req.Status).
		Info("subscription request answered")
	return req, nil
}

// restoreApproved repeats the subscription write of an approval whose
// request committed but whose subscription did not. An approval that is
// already complete is still an invalid transition.
func (s *Service) restoreApproved(ctx context.Context, req subscription.Request) (subscription.Request, error) {
	_, err := s.subs.GetSubscription(ctx, req.InvestorID, req.ExpertID)
	switch {
	case err == nil:
		return subscription.Request{}, ErrInvalidTransition
	case !storage.IsNotFound(err):
		return subscription.Request{}, err
	}

	_, err = s.subs.CreateSubscription(ctx, subscription.Subscription{InvestorID: req.InvestorID, ExpertID: req.ExpertID})
	switch {
	case err == nil:
		metrics.RecordSubscription(true)
	case storage.IsConflict(err):
		return subscription.Request{}, ErrInvalidTransition
	default:
		return req, err
	}
	s.log.WithField("request_id", req.ID).Info("subscription restored for approved request")
	return req, nil
}

// pair loads and checks the investor and expert profiles.
func (s *Service) pair(ctx context.Context, investorID, expertID string) (profile.Profile, profile.Profile, error) {
	investorID = strings.TrimSpace(investorID)
	expertID = strings.TrimSpace(expertID)
	if investorID == "" || expertID == "" {
		return profile.Profile{}, profile.Profile{}, services.Invalid("investor and expert are required")
	}
	if investorID == expertID {
		return profile.Profile{}, profile.Profile{}, ErrSelfSubscription
	}
	investor, err := s.profiles.GetProfile(ctx, investorID)
	if err != nil {
		return profile.Profile{}, profile.Profile{}, err
	}
	if investor.UserType != profile.TypeInvestor {
		return profile.Profile{}, profile.Profile{}, services.ErrNotInvestor
	}
	expert, err := s.profiles.GetProfile(ctx, expertID)
	if err != nil {
		return profile.Profile{}, profile.Profile{}, err
	}
	if !expert.IsExpert() {
		return profile.Profile{}, profile.Profile{}, services.Invalid("%s is not an expert", expertID)
	}
	return investor, expert, nil
}

// notify sends a side-effect notification. The primary write has already
// succeeded, so failures are logged and not returned.
func (s *Service) notify(ctx context.Context, userID, notificationType, message, relatedID, actionType string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, notificationType, message, relatedID, actionType); err != nil {
		s.log.WithError(err).
			WithField("user_id", userID).
			WithField("type", notificationType).
			Warn("notification not delivered")
	}
}

func displayName(p profile.Profile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "Someone"
}
