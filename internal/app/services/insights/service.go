// Package insights publishes expert insights and handles the feed, likes and
// comment threads.
package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/pkg/logger"
)

var (
	// ErrNestedReply is returned when replying to a reply or to a comment of another insight.
	ErrNestedReply = errors.New("replies can only be added to top-level comments of the same insight")
	// ErrSubscribersOnly is returned when a non-subscriber opens a subscribers-only insight.
	ErrSubscribersOnly = errors.New("this insight is only available to subscribers")
)

// Subscriptions answers who follows whom.
type Subscriptions interface {
	IsSubscribed(ctx context.Context, investorID, expertID string) (bool, error)
	SubscribedExpertIDs(ctx context.Context, investorID string) ([]string, error)
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType, message, relatedID, actionType string) (notification.Notification, error)
}

// Service manages insights, likes and comments.
type Service struct {
	profiles storage.ProfileStore
	insights storage.InsightStore
	likes    storage.LikeStore
	comments storage.CommentStore
	subs     Subscriptions
	notifier Notifier
	blobs    blob.Store
	bucket   string
	log      *logger.Logger
}

// New constructs an insight service. Images are uploaded to bucket.
func New(profiles storage.ProfileStore, insights storage.InsightStore, likes storage.LikeStore, comments storage.CommentStore,
	subs Subscriptions, notifier Notifier, blobs blob.Store, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("insights")
	}
	return &Service{
		profiles: profiles,
		insights: insights,
		likes:    likes,
		comments: comments,
		subs:     subs,
		notifier: notifier,
		blobs:    blobs,
		bucket:   bucket,
		log:      log,
	}
}

// PublishInput is a new insight.
type PublishInput struct {
	Title      string
	Content    string
	Visibility insight.Visibility
	Image      *blob.File
}

// UpdateInput changes an insight. Nil fields are left unchanged.
type UpdateInput struct {
	Title      *string
	Content    *string
	Visibility *insight.Visibility
	Image      *blob.File
}

// Publish creates an insight authored by expertID.
func (s *Service) Publish(ctx context.Context, expertID string, in PublishInput) (insight.Insight, error) {
	author, err := s.profiles.GetProfile(ctx, expertID)
	if err != nil {
		return insight.Insight{}, err
	}
	if !author.IsExpert() {
		return insight.Insight{}, services.ErrNotExpert
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return insight.Insight{}, services.Invalid("title is required")
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = insight.VisibilityPublic
	}
	if !visibility.Valid() {
		return insight.Insight{}, services.Invalid("visibility must be public or subscribers")
	}

	record := insight.Insight{
		ExpertID:   author.ID,
		Title:      title,
		Content:    strings.TrimSpace(in.Content),
		Visibility: visibility,
	}
	if !in.Image.Empty() {
		if record.ImageURL, err = s.upload(ctx, author.ID, in.Image); err != nil {
			return insight.Insight{}, err
		}
	}

	created, err := s.insights.CreateInsight(ctx, record)
	if err != nil {
		return insight.Insight{}, err
	}
	s.log.WithField("insight_id", created.ID).
		WithField("expert_id", author.ID).
		WithField("visibility", visibility).
		Info("insight published")
	return created, nil
}

// Update edits an insight. Only its author may edit it.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (insight.Insight, error) {
	current, err := s.owned(ctx, userID, id)
	if err != nil {
		return insight.Insight{}, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return insight.Insight{}, services.Invalid("title cannot be empty")
		}
		current.Title = title
	}
	if in.Content != nil {
		current.Content = strings.TrimSpace(*in.Content)
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return insight.Insight{}, services.Invalid("visibility must be public or subscribers")
		}
		current.Visibility = *in.Visibility
	}
	if !in.Image.Empty() {
		if current.ImageURL, err = s.upload(ctx, userID, in.Image); err != nil {
			return insight.Insight{}, err
		}
	}
	return s.insights.UpdateInsight(ctx, current)
}

// Delete removes an insight. Only its author may delete it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.insights.DeleteInsight(ctx, id); err != nil {
		return err
	}
	s.log.WithField("insight_id", id).Info("insight deleted")
	return nil
}

// Get returns an insight if viewerID may read it.
func (s *Service) Get(ctx context.Context, viewerID, id string) (insight.Insight, error) {
	in, err := s.insights.GetInsight(ctx, id)
	if err != nil {
		return insight.Insight{}, err
	}
	ok, err := s.canRead(ctx, viewerID, in)
	if err != nil {
		return insight.Insight{}, err
	}
	if !ok {
		return insight.Insight{}, ErrSubscribersOnly
	}
	return in, nil
}

// ListByExpert lists expertID's insights that viewerID may read, newest first.
func (s *Service) ListByExpert(ctx context.Context, viewerID, expertID string) ([]insight.Insight, error) {
	list, err := s.insights.ListInsightsByExpert(ctx, expertID)
	if err != nil {
		return nil, err
	}
	subscribed := viewerID == expertID
	if !subscribed && viewerID != "" {
		if subscribed, err = s.subs.IsSubscribed(ctx, viewerID, expertID); err != nil {
			return nil, err
		}
	}
	out := make([]insight.Insight, 0, len(list))
	for _, in := range list {
		if in.Visibility == insight.VisibilityPublic || subscribed {
			out = append(out, in)
		}
	}
	return out, nil
}

// ListPublic lists the newest public insights.
func (s *Service) ListPublic(ctx context.Context, limit int) ([]insight.Insight, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.insights.ListPublicInsights(ctx, limit)
}

// Feed returns the insights of the experts investorID follows, newest first,
// recording one view on each. The returned counts include that view.
func (s *Service) Feed(ctx context.Context, investorID string) ([]insight.Insight, error) {
	expertIDs, err := s.subs.SubscribedExpertIDs(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if len(expertIDs) == 0 {
		return []insight.Insight{}, nil
	}
	list, err := s.insights.ListInsightsByExperts(ctx, expertIDs)
	if err != nil {
		return nil, err
	}

	viewed := 0
	for i := range list {
		updated, err := s.insights.IncrementInsightViews(ctx, list[i].ID)
		if err != nil {
			s.log.WithError(err).WithField("insight_id", list[i].ID).Warn("view not recorded")
			continue
		}
		list[i] = updated
		viewed++
	}
	metrics.RecordViews(viewed)
	return list, nil
}

// LikedIDs returns which of insightIDs userID has liked.
func (s *Service) LikedIDs(ctx context.Context, userID string, insightIDs []string) ([]string, error) {
	if len(insightIDs) == 0 {
		return []string{}, nil
	}
	return s.likes.ListLikedInsightIDs(ctx, userID, insightIDs)
}

// LikeState is the outcome of a like toggle.
type LikeState struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// ToggleLike likes insightID for userID, or removes the like if present.
// A concurrent toggle that loses the race leaves the count untouched.
func (s *Service) ToggleLike(ctx context.Context, insightID, userID string) (LikeState, error) {
	in, err := s.insights.GetInsight(ctx, insightID)
	if err != nil {
		return LikeState{}, err
	}

	_, err = s.likes.GetLike(ctx, insightID, userID)
	switch {
	case err == nil:
		if err := s.likes.DeleteLike(ctx, insightID, userID); err != nil {
			if storage.IsNotFound(err) {
				return s.likeState(ctx, insightID, false)
			}
			return LikeState{}, err
		}
		updated, err := s.insights.AdjustInsightLikes(ctx, insightID, -1)
		if err != nil {
			return LikeState{}, err
		}
		metrics.RecordLike(false)
		return LikeState{Liked: false, LikesCount: updated.LikesCount}, nil

	case storage.IsNotFound(err):
		if _, err := s.likes.CreateLike(ctx, insight.Like{InsightID: in.ID, UserID: userID}); err != nil {
			if storage.IsConflict(err) {
				return s.likeState(ctx, insightID, true)
			}
			return LikeState{}, err
		}
		updated, err := s.insights.AdjustInsightLikes(ctx, insightID, 1)
		if err != nil {
			return LikeState{}, err
		}
		metrics.RecordLike(true)
		return LikeState{Liked: true, LikesCount: updated.LikesCount}, nil

	default:
		return LikeState{}, err
	}
}

func (s *Service) likeState(ctx context.Context, insightID string, liked bool) (LikeState, error) {
	in, err := s.insights.GetInsight(ctx, insightID)
	if err != nil {
		return LikeState{}, err
	}
	return LikeState{Liked: liked, LikesCount: in.LikesCount}, nil
}

// AddComment comments on insightID, or replies to parentID when it is set.
func (s *Service) AddComment(ctx context.Context, insightID, userID, content, parentID string) (insight.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return insight.Comment{}, services.Invalid("comment cannot be empty")
	}
	in, err := s.insights.GetInsight(ctx, insightID)
	if err != nil {
		return insight.Comment{}, err
	}

	c := insight.Comment{InsightID: in.ID, UserID: userID, Content: content}
	if parentID = strings.TrimSpace(parentID); parentID != "" {
		parent, err := s.comments.GetComment(ctx, parentID)
		if err != nil {
			return insight.Comment{}, err
		}
		if parent.InsightID != in.ID || parent.IsReply() {
			return insight.Comment{}, ErrNestedReply
		}
		c.ParentCommentID = &parent.ID
	}

	created, err := s.comments.CreateComment(ctx, c)
	if err != nil {
		return insight.Comment{}, err
	}

	if in.ExpertID != userID && s.notifier != nil {
		name := "Someone"
		if p, err := s.profiles.GetProfile(ctx, userID); err == nil && strings.TrimSpace(p.Name) != "" {
			name = p.Name
		}
		message := fmt.Sprintf("%s commented on %q", name, in.Title)
		if _, err := s.notifier.Notify(ctx, in.ExpertID, notification.TypeNewComment, message, in.ID, ""); err != nil {
			s.log.WithError(err).WithField("insight_id", in.ID).Warn("comment notification not delivered")
		}
	}
	return created, nil
}

// EditComment changes a comment's content. Only its author may edit it.
func (s *Service) EditComment(ctx context.Context, userID, commentID, content string) (insight.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return insight.Comment{}, services.Invalid("comment cannot be empty")
	}
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return insight.Comment{}, err
	}
	if c.UserID != userID {
		return insight.Comment{}, services.ErrForbidden
	}
	c.Content = content
	return s.comments.UpdateComment(ctx, c)
}

// DeleteComment removes a comment and its replies. Only its author may delete it.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return services.ErrForbidden
	}
	return s.comments.DeleteComment(ctx, commentID)
}

// Thread returns insightID's top-level comments, oldest first, each with its replies.
func (s *Service) Thread(ctx context.Context, insightID string) ([]insight.Thread, error) {
	all, err := s.comments.ListComments(ctx, insightID)
	if err != nil {
		return nil, err
	}
	return BuildThreads(all), nil
}

// BuildThreads groups comments under their parents. Replies whose parent is
// missing are dropped rather than promoted to the top level.
func BuildThreads(comments []insight.Comment) []insight.Thread {
	threads := make([]insight.Thread, 0)
	index := make(map[string]int)
	for _, c := range comments {
		if c.IsReply() {
			continue
		}
		index[c.ID] = len(threads)
		threads = append(threads, insight.Thread{Comment: c, Replies: []insight.Comment{}})
	}
	for _, c := range comments {
		if !c.IsReply() {
			continue
		}
		if i, ok := index[*c.ParentCommentID]; ok {
			threads[i].Replies = append(threads[i].Replies, c)
		}
	}
	return threads
}

func (s *Service) owned(ctx context.Context, userID, id string) (insight.Insight, error) {
	in, err := s.insights.GetInsight(ctx, id)
	if err != nil {
		return insight.Insight{}, err
	}
	if in.ExpertID != userID {
		return insight.Insight{}, services.ErrForbidden
	}
	return in, nil
}

func (s *Service) canRead(ctx context.Context, viewerID string, in insight.Insight) (bool, error) {
	if in.Visibility == insight.VisibilityPublic || viewerID == in.ExpertID {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}
	return s.subs.IsSubscribed(ctx, viewerID, in.ExpertID)
}

func (s *Service) upload(ctx context.Context, owner string, f *blob.File) (string, error) {
	if s.blobs == nil {
		return "", services.Invalid("image uploads are not configured")
	}
	return blob.Put(ctx, s.blobs, s.bucket, owner, f)
}
