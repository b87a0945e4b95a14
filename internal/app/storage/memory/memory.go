package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/domain/marketplace"
	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu       sync.RWMutex
	lastTime time.Time

	profiles        map[string]profile.Profile
	expertDetails   map[string]profile.ExpertDetails
	investorDetails map[string]profile.InvestorDetails
	insights        map[string]insight.Insight
	likes           map[string]insight.Like // key: insightID|userID
	comments        map[string]insight.Comment
	subscriptions   map[string]subscription.Subscription // key: investorID|expertID
	requests        map[string]subscription.Request
	notifications   map[string]notification.Notification
	items           map[string]marketplace.Item
	testimonials    map[string]marketplace.Testimonial
	identities      map[string]identity.Credential
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.InsightStore = (*Store)(nil)
var _ storage.LikeStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.MarketplaceStore = (*Store)(nil)
var _ storage.IdentityStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		profiles:        make(map[string]profile.Profile),
		expertDetails:   make(map[string]profile.ExpertDetails),
		investorDetails: make(map[string]profile.InvestorDetails),
		insights:        make(map[string]insight.Insight),
		likes:           make(map[string]insight.Like),
		comments:        make(map[string]insight.Comment),
		subscriptions:   make(map[string]subscription.Subscription),
		requests:        make(map[string]subscription.Request),
		notifications:   make(map[string]notification.Notification),
		items:           make(map[string]marketplace.Item),
		testimonials:    make(map[string]marketplace.Testimonial),
		identities:      make(map[string]identity.Credential),
	}
}

// nowLocked returns a strictly increasing timestamp so newest-first ordering is stable.
func (s *Store) nowLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = now
	return now
}

func pairKey(a, b string) string {
	return a + "|" + b
}

// ProfileStore implementation -------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = p.UserID
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.UserID == "" {
		p.UserID = p.ID
	}
	if _, exists := s.profiles[p.ID]; exists {
		return profile.Profile{}, storage.Conflict("profile %s already exists", p.ID)
	}
	for _, existing := range s.profiles {
		if existing.UserID == p.UserID {
			return profile.Profile{}, storage.Conflict("profile for user %s already exists", p.UserID)
		}
	}

	now := s.nowLocked()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, storage.NotFound("profile", id)
	}
	return p, nil
}

func (s *Store) GetProfileByUserID(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	return profile.Profile{}, storage.NotFound("profile for user", userID)
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.profiles[p.ID]
	if !ok {
		return profile.Profile{}, storage.NotFound("profile", p.ID)
	}
	p.UserID = original.UserID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = s.nowLocked()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) ListProfilesByType(_ context.Context, userType profile.UserType) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]profile.Profile, 0)
	for _, p := range s.profiles {
		if p.UserType == userType {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListProfilesByIDs(_ context.Context, ids []string) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]profile.Profile, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.profiles[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) CreateExpertDetails(_ context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expertDetails[d.UserID]; exists {
		return profile.ExpertDetails{}, storage.Conflict("expert details for %s already exist", d.UserID)
	}
	d.MarketCategories = append([]string(nil), d.MarketCategories...)
	s.expertDetails[d.UserID] = d
	return cloneExpertDetails(d), nil
}

func (s *Store) GetExpertDetails(_ context.Context, userID string) (profile.ExpertDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.expertDetails[userID]
	if !ok {
		return profile.ExpertDetails{}, storage.NotFound("expert details", userID)
	}
	return cloneExpertDetails(d), nil
}

func (s *Store) UpdateExpertDetails(_ context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expertDetails[d.UserID]; !ok {
		return profile.ExpertDetails{}, storage.NotFound("expert details", d.UserID)
	}
	d.MarketCategories = append([]string(nil), d.MarketCategories...)
	s.expertDetails[d.UserID] = d
	return cloneExpertDetails(d), nil
}

func (s *Store) CreateInvestorDetails(_ context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.investorDetails[d.UserID]; exists {
		return profile.InvestorDetails{}, storage.Conflict("investor details for %s already exist", d.UserID)
	}
	s.investorDetails[d.UserID] = d
	return d, nil
}

func (s *Store) GetInvestorDetails(_ context.Context, userID string) (profile.InvestorDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.investorDetails[userID]
	if !ok {
		return profile.InvestorDetails{}, storage.NotFound("investor details", userID)
	}
	return d, nil
}

func (s *Store) UpdateInvestorDetails(_ context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investorDetails[d.UserID]; !ok {
		return profile.InvestorDetails{}, storage.NotFound("investor details", d.UserID)
	}
	s.investorDetails[d.UserID] = d
	return d, nil
}

// InsightStore implementation -------------------------------------------------

func (s *Store) CreateInsight(_ context.Context, in insight.Insight) (insight.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.NewString()
	} else if _, exists := s.insights[in.ID]; exists {
		return insight.Insight{}, storage.Conflict("insight %s already exists", in.ID)
	}
	now := s.nowLocked()
	in.CreatedAt = now
	in.UpdatedAt = now
	in.LikesCount = 0
	in.ViewsCount = 0
	s.insights[in.ID] = in
	return in, nil
}

func (s *Store) GetInsight(_ context.Context, id string) (insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.insights[id]
	if !ok {
		return insight.Insight{}, storage.NotFound("insight", id)
	}
	return in, nil
}

// UpdateInsight replaces editable fields; counters are owned by the store.
func (s *Store) UpdateInsight(_ context.Context, in insight.Insight) (insight.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.insights[in.ID]
	if !ok {
		return insight.Insight{}, storage.NotFound("insight", in.ID)
	}
	original.Title = in.Title
	original.Content = in.Content
	original.ImageURL = in.ImageURL
	original.Visibility = in.Visibility
	original.UpdatedAt = s.nowLocked()
	s.insights[in.ID] = original
	return original, nil
}

func (s *Store) DeleteInsight(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.insights[id]; !ok {
		return storage.NotFound("insight", id)
	}
	delete(s.insights, id)
	for key, like := range s.likes {
		if like.InsightID == id {
			delete(s.likes, key)
		}
	}
	for cid, c := range s.comments {
		if c.InsightID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) ListInsightsByExpert(ctx context.Context, expertID string) ([]insight.Insight, error) {
	return s.ListInsightsByExperts(ctx, []string{expertID})
}

func (s *Store) ListInsightsByExperts(_ context.Context, expertIDs []string) ([]insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(expertIDs))
	for _, id := range expertIDs {
		wanted[id] = true
	}
	result := make([]insight.Insight, 0)
	for _, in := range s.insights {
		if wanted[in.ExpertID] {
			result = append(result, in)
		}
	}
	sortInsightsNewestFirst(result)
	return result, nil
}

func (s *Store) ListPublicInsights(_ context.Context, limit int) ([]insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]insight.Insight, 0)
	for _, in := range s.insights {
		if in.Visibility == insight.VisibilityPublic {
			result = append(result, in)
		}
	}
	sortInsightsNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CountInsightsByExpert(_ context.Context, expertID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, in := range s.insights {
		if in.ExpertID == expertID {
			count++
		}
	}
	return count, nil
}

func (s *Store) IncrementInsightViews(_ context.Context, id string) (insight.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.insights[id]
	if !ok {
		return insight.Insight{}, storage.NotFound("insight", id)
	}
	in.ViewsCount++
	s.insights[id] = in
	return in, nil
}

func (s *Store) AdjustInsightLikes(_ context.Context, id string, delta int) (insight.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.insights[id]
	if !ok {
		return insight.Insight{}, storage.NotFound("insight", id)
	}
	in.LikesCount += delta
	if in.LikesCount < 0 {
		in.LikesCount = 0
	}
	s.insights[id] = in
	return in, nil
}

// LikeStore implementation ----------------------------------------------------

func (s *Store) CreateLike(_ context.Context, like insight.Like) (insight.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(like.InsightID, like.UserID)
	if _, exists := s.likes[key]; exists {
		return insight.Like{}, storage.Conflict("insight %s already liked by %s", like.InsightID, like.UserID)
	}
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	like.CreatedAt = s.nowLocked()
	s.likes[key] = like
	return like, nil
}

func (s *Store) DeleteLike(_ context.Context, insightID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(insightID, userID)
	if _, ok := s.likes[key]; !ok {
		return storage.NotFound("like", key)
	}
	delete(s.likes, key)
	return nil
}

func (s *Store) GetLike(_ context.Context, insightID, userID string) (insight.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	like, ok := s.likes[pairKey(insightID, userID)]
	if !ok {
		return insight.Like{}, storage.NotFound("like", pairKey(insightID, userID))
	}
	return like, nil
}

func (s *Store) ListLikedInsightIDs(_ context.Context, userID string, insightIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0)
	for _, id := range insightIDs {
		if _, ok := s.likes[pairKey(id, userID)]; ok {
			result = append(result, id)
		}
	}
	return result, nil
}

// CommentStore implementation -------------------------------------------------

func (s *Store) CreateComment(_ context.Context, c insight.Comment) (insight.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.nowLocked()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.ParentCommentID = cloneStringPtr(c.ParentCommentID)
	s.comments[c.ID] = c
	return cloneComment(c), nil
}

func (s *Store) GetComment(_ context.Context, id string) (insight.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return insight.Comment{}, storage.NotFound("comment", id)
	}
	return cloneComment(c), nil
}

// UpdateComment only changes the content.
func (s *Store) UpdateComment(_ context.Context, c insight.Comment) (insight.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.comments[c.ID]
	if !ok {
		return insight.Comment{}, storage.NotFound("comment", c.ID)
	}
	original.Content = c.Content
	original.UpdatedAt = s.nowLocked()
	s.comments[c.ID] = original
	return cloneComment(original), nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return storage.NotFound("comment", id)
	}
	delete(s.comments, id)
	for cid, c := range s.comments {
		if c.ParentCommentID != nil && *c.ParentCommentID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) ListComments(_ context.Context, insightID string) ([]insight.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]insight.Comment, 0)
	for _, c := range s.comments {
		if c.InsightID == insightID {
			result = append(result, cloneComment(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// SubscriptionStore implementation --------------------------------------------

func (s *Store) CreateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(sub.InvestorID, sub.ExpertID)
	if _, exists := s.subscriptions[key]; exists {
		return subscription.Subscription{}, storage.Conflict("investor %s already subscribed to %s", sub.InvestorID, sub.ExpertID)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = s.nowLocked()
	s.subscriptions[key] = sub
	return sub, nil
}

func (s *Store) DeleteSubscription(_ context.Context, investorID, expertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(investorID, expertID)
	if _, ok := s.subscriptions[key]; !ok {
		return storage.NotFound("subscription", key)
	}
	delete(s.subscriptions, key)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, investorID, expertID string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := pairKey(investorID, expertID)
	sub, ok := s.subscriptions[key]
	if !ok {
		return subscription.Subscription{}, storage.NotFound("subscription", key)
	}
	return sub, nil
}

func (s *Store) ListSubscriptionsByInvestor(_ context.Context, investorID string) ([]subscription.Subscription, error) {
	return s.filterSubscriptions(func(sub subscription.Subscription) bool { return sub.InvestorID == investorID }), nil
}

func (s *Store) ListSubscriptionsByExpert(_ context.Context, expertID string) ([]subscription.Subscription, error) {
	return s.filterSubscriptions(func(sub subscription.Subscription) bool { return sub.ExpertID == expertID }), nil
}

func (s *Store) CountSubscribers(ctx context.Context, expertID string) (int, error) {
	subs, _ := s.ListSubscriptionsByExpert(ctx, expertID)
	return len(subs), nil
}

func (s *Store) filterSubscriptions(keep func(subscription.Subscription) bool) []subscription.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if keep(sub) {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// RequestStore implementation -------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req subscription.Request) (subscription.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Status == "" {
		req.Status = subscription.StatusPending
	}
	if req.Status == subscription.StatusPending {
		for _, existing := range s.requests {
			if existing.InvestorID == req.InvestorID && existing.ExpertID == req.ExpertID && existing.Status == subscription.StatusPending {
				return subscription.Request{}, storage.Conflict("pending request from %s to %s already exists", req.InvestorID, req.ExpertID)
			}
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := s.nowLocked()
	req.CreatedAt = now
	req.UpdatedAt = now
	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (subscription.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return subscription.Request{}, storage.NotFound("subscription request", id)
	}
	return req, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id string, from, to subscription.Status) (subscription.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return subscription.Request{}, storage.NotFound("subscription request", id)
	}
	if req.Status != from {
		return subscription.Request{}, storage.Conflict("subscription request %s is %s, not %s", id, req.Status, from)
	}
	req.Status = to
	req.UpdatedAt = s.nowLocked()
	s.requests[id] = req
	return req, nil
}

func (s *Store) GetPendingRequest(_ context.Context, investorID, expertID string) (subscription.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.InvestorID == investorID && req.ExpertID == expertID && req.Status == subscription.StatusPending {
			return req, nil
		}
	}
	return subscription.Request{}, storage.NotFound("pending request", pairKey(investorID, expertID))
}

func (s *Store) ListRequestsByExpert(_ context.Context, expertID string, status subscription.Status) ([]subscription.Request, error) {
	return s.filterRequests(func(req subscription.Request) bool {
		return req.ExpertID == expertID && (status == "" || req.Status == status)
	}), nil
}

func (s *Store) ListRequestsByInvestor(_ context.Context, investorID string) ([]subscription.Request, error) {
	return s.filterRequests(func(req subscription.Request) bool { return req.InvestorID == investorID }), nil
}

func (s *Store) filterRequests(keep func(subscription.Request) bool) []subscription.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]subscription.Request, 0)
	for _, req := range s.requests {
		if keep(req) {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.nowLocked()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, storage.NotFound("notification", id)
	}
	return n, nil
}

func (s *Store) ListUnreadNotifications(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	unread, _ := s.ListUnreadNotifications(ctx, userID)
	return len(unread), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return storage.NotFound("notification", id)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

// MarketplaceStore implementation ---------------------------------------------

func (s *Store) CreateItem(_ context.Context, item marketplace.Item) (marketplace.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = s.nowLocked()
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) GetItem(_ context.Context, id string) (marketplace.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return marketplace.Item{}, storage.NotFound("marketplace item", id)
	}
	return item, nil
}

func (s *Store) UpdateItem(_ context.Context, item marketplace.Item) (marketplace.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.items[item.ID]
	if !ok {
		return marketplace.Item{}, storage.NotFound("marketplace item", item.ID)
	}
	item.ExpertID = original.ExpertID
	item.CreatedAt = original.CreatedAt
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return storage.NotFound("marketplace item", id)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListItems(_ context.Context) ([]marketplace.Item, error) {
	return s.filterItems(func(marketplace.Item) bool { return true }), nil
}

func (s *Store) ListItemsByExpert(_ context.Context, expertID string) ([]marketplace.Item, error) {
	return s.filterItems(func(item marketplace.Item) bool { return item.ExpertID == expertID }), nil
}

func (s *Store) filterItems(keep func(marketplace.Item) bool) []marketplace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]marketplace.Item, 0)
	for _, item := range s.items {
		if keep(item) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *Store) CreateTestimonial(_ context.Context, t marketplace.Testimonial) (marketplace.Testimonial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = s.nowLocked()
	s.testimonials[t.ID] = t
	return t, nil
}

func (s *Store) GetTestimonial(_ context.Context, id string) (marketplace.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.testimonials[id]
	if !ok {
		return marketplace.Testimonial{}, storage.NotFound("testimonial", id)
	}
	return t, nil
}

func (s *Store) ListTestimonials(_ context.Context, expertID string) ([]marketplace.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]marketplace.Testimonial, 0)
	for _, t := range s.testimonials {
		if expertID == "" || t.ExpertID == expertID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteTestimonial(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.testimonials[id]; !ok {
		return storage.NotFound("testimonial", id)
	}
	delete(s.testimonials, id)
	return nil
}

// IdentityStore implementation ------------------------------------------------

func (s *Store) CreateIdentity(_ context.Context, cred identity.Credential) (identity.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(cred.Email))
	for _, existing := range s.identities {
		if existing.Email == email {
			return identity.Credential{}, storage.Conflict("identity %s already exists", email)
		}
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.Email = email
	cred.CreatedAt = s.nowLocked()
	s.identities[cred.ID] = cred
	return cred, nil
}

func (s *Store) GetIdentity(_ context.Context, id string) (identity.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.identities[id]
	if !ok {
		return identity.Credential{}, storage.NotFound("identity", id)
	}
	return cred, nil
}

func (s *Store) GetIdentityByEmail(_ context.Context, email string) (identity.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, cred := range s.identities {
		if cred.Email == email {
			return cred, nil
		}
	}
	return identity.Credential{}, storage.NotFound("identity", email)
}

// helpers ---------------------------------------------------------------------

func sortInsightsNewestFirst(list []insight.Insight) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func cloneExpertDetails(d profile.ExpertDetails) profile.ExpertDetails {
	d.MarketCategories = append([]string(nil), d.MarketCategories...)
	return d
}

func cloneComment(c insight.Comment) insight.Comment {
	c.ParentCommentID = cloneStringPtr(c.ParentCommentID)
	return c
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
