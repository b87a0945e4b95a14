package storage

import (
	"context"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/domain/marketplace"
	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/domain/subscription"
)

// ProfileStore persists profiles and their role-specific details.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	ListProfilesByType(ctx context.Context, userType profile.UserType) ([]profile.Profile, error)
	ListProfilesByIDs(ctx context.Context, ids []string) ([]profile.Profile, error)

	CreateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error)
	GetExpertDetails(ctx context.Context, userID string) (profile.ExpertDetails, error)
	UpdateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error)

	CreateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error)
	GetInvestorDetails(ctx context.Context, userID string) (profile.InvestorDetails, error)
	UpdateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error)
}

// InsightStore persists insights. Counter updates are atomic in the store.
type InsightStore interface {
	CreateInsight(ctx context.Context, in insight.Insight) (insight.Insight, error)
	GetInsight(ctx context.Context, id string) (insight.Insight, error)
	UpdateInsight(ctx context.Context, in insight.Insight) (insight.Insight, error)
	DeleteInsight(ctx context.Context, id string) error
	// ListInsightsByExpert and ListInsightsByExperts return newest first.
	ListInsightsByExpert(ctx context.Context, expertID string) ([]insight.Insight, error)
	ListInsightsByExperts(ctx context.Context, expertIDs []string) ([]insight.Insight, error)
	ListPublicInsights(ctx context.Context, limit int) ([]insight.Insight, error)
	CountInsightsByExpert(ctx context.Context, expertID string) (int, error)
	IncrementInsightViews(ctx context.Context, id string) (insight.Insight, error)
	// AdjustInsightLikes adds delta to likes_count, never going below zero.
	AdjustInsightLikes(ctx context.Context, id string, delta int) (insight.Insight, error)
}

// LikeStore persists likes. A second like for the same pair returns ErrConflict.
type LikeStore interface {
	CreateLike(ctx context.Context, like insight.Like) (insight.Like, error)
	DeleteLike(ctx context.Context, insightID, userID string) error
	GetLike(ctx context.Context, insightID, userID string) (insight.Like, error)
	ListLikedInsightIDs(ctx context.Context, userID string, insightIDs []string) ([]string, error)
}

// CommentStore persists comments. Deleting a comment deletes its replies.
type CommentStore interface {
	CreateComment(ctx context.Context, c insight.Comment) (insight.Comment, error)
	GetComment(ctx context.Context, id string) (insight.Comment, error)
	UpdateComment(ctx context.Context, c insight.Comment) (insight.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	// ListComments returns every comment of an insight, oldest first.
	ListComments(ctx context.Context, insightID string) ([]insight.Comment, error)
}

// SubscriptionStore persists subscriptions. A duplicate pair returns ErrConflict.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error)
	DeleteSubscription(ctx context.Context, investorID, expertID string) error
	GetSubscription(ctx context.Context, investorID, expertID string) (subscription.Subscription, error)
	ListSubscriptionsByInvestor(ctx context.Context, investorID string) ([]subscription.Subscription, error)
	ListSubscriptionsByExpert(ctx context.Context, expertID string) ([]subscription.Subscription, error)
	CountSubscribers(ctx context.Context, expertID string) (int, error)
}

// RequestStore persists subscription requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req subscription.Request) (subscription.Request, error)
	GetRequest(ctx context.Context, id string) (subscription.Request, error)
	// UpdateRequestStatus moves a request from one status to another. It
	// returns ErrConflict when the stored status is no longer from.
	UpdateRequestStatus(ctx context.Context, id string, from, to subscription.Status) (subscription.Request, error)
	GetPendingRequest(ctx context.Context, investorID, expertID string) (subscription.Request, error)
	// ListRequestsByExpert filters by status unless status is empty.
	ListRequestsByExpert(ctx context.Context, expertID string, status subscription.Status) ([]subscription.Request, error)
	ListRequestsByInvestor(ctx context.Context, investorID string) ([]subscription.Request, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	// ListUnreadNotifications returns newest first.
	ListUnreadNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// MarketplaceStore persists marketplace items and testimonials.
type MarketplaceStore interface {
	CreateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error)
	GetItem(ctx context.Context, id string) (marketplace.Item, error)
	UpdateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]marketplace.Item, error)
	ListItemsByExpert(ctx context.Context, expertID string) ([]marketplace.Item, error)

	CreateTestimonial(ctx context.Context, t marketplace.Testimonial) (marketplace.Testimonial, error)
	GetTestimonial(ctx context.Context, id string) (marketplace.Testimonial, error)
	ListTestimonials(ctx context.Context, expertID string) ([]marketplace.Testimonial, error)
	DeleteTestimonial(ctx context.Context, id string) error
}

// IdentityStore persists locally managed credentials.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, cred identity.Credential) (identity.Credential, error)
	GetIdentity(ctx context.Context, id string) (identity.Credential, error)
	GetIdentityByEmail(ctx context.Context, email string) (identity.Credential, error)
}
