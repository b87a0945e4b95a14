package supabase

import (
	"context"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/marketbridge/platform/internal/app/domain/insight"
)

func (s *Store) CreateInsight(ctx context.Context, in insight.Insight) (insight.Insight, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Visibility == "" {
		in.Visibility = insight.VisibilityPublic
	}
	now := s.now()
	in.CreatedAt = now
	in.UpdatedAt = now
	in.LikesCount = 0
	in.ViewsCount = 0
	var out insight.Insight
	err := s.insertOne(ctx, "insights", in, &out, "insight", in.ID)
	return out, err
}

func (s *Store) GetInsight(ctx context.Context, id string) (insight.Insight, error) {
	var out insight.Insight
	err := s.getOne(ctx, s.c.From("insights").Select("*").Eq("id", id), &out, "insight", id)
	return out, err
}

func (s *Store) UpdateInsight(ctx context.Context, in insight.Insight) (insight.Insight, error) {
	patch := map[string]any{
		"title":      in.Title,
		"content":    in.Content,
		"image_url":  in.ImageURL,
		"visibility": in.Visibility,
		"updated_at": s.now(),
	}
	var out insight.Insight
	err := s.updateOne(ctx, s.c.From("insights").Eq("id", in.ID), patch, &out, "insight", in.ID)
	return out, err
}

func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	return s.deleteSome(ctx, s.c.From("insights").Eq("id", id), "insight", id)
}

func (s *Store) ListInsightsByExpert(ctx context.Context, expertID string) ([]insight.Insight, error) {
	out := []insight.Insight{}
	err := s.list(ctx, s.c.From("insights").Select("*").Eq("expert_id", expertID).Order("created_at", false), &out)
	return out, err
}

func (s *Store) ListInsightsByExperts(ctx context.Context, expertIDs []string) ([]insight.Insight, error) {
	out := []insight.Insight{}
	if len(expertIDs) == 0 {
		return out, nil
	}
	err := s.list(ctx, s.c.From("insights").Select("*").In("expert_id", expertIDs).Order("created_at", false), &out)
	return out, err
}

func (s *Store) ListPublicInsights(ctx context.Context, limit int) ([]insight.Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	out := []insight.Insight{}
	err := s.list(ctx, s.c.From("insights").Select("*").Eq("visibility", insight.VisibilityPublic).Order("created_at", false).Limit(limit), &out)
	return out, err
}

func (s *Store) CountInsightsByExpert(ctx context.Context, expertID string) (int, error) {
	return s.count(ctx, s.c.From("insights").Eq("expert_id", expertID))
}

// IncrementInsightViews runs the increment_insight_views function so the
// read-modify-write happens inside the database.
func (s *Store) IncrementInsightViews(ctx context.Context, id string) (insight.Insight, error) {
	var out insight.Insight
	err := s.rpcOne(ctx, "increment_insight_views", map[string]any{"p_insight_id": id}, &out, "insight", id)
	return out, err
}

func (s *Store) AdjustInsightLikes(ctx context.Context, id string, delta int) (insight.Insight, error) {
	var out insight.Insight
	err := s.rpcOne(ctx, "adjust_insight_likes", map[string]any{"p_insight_id": id, "p_delta": delta}, &out, "insight", id)
	return out, err
}

// --- LikeStore ---------------------------------------------------------------

func (s *Store) CreateLike(ctx context.Context, like insight.Like) (insight.Like, error) {
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	like.CreatedAt = s.now()
	var out insight.Like
	err := s.insertOne(ctx, "likes", like, &out, "like", like.InsightID)
	return out, err
}

func (s *Store) DeleteLike(ctx context.Context, insightID, userID string) error {
	return s.deleteSome(ctx, s.c.From("likes").Eq("insight_id", insightID).Eq("user_id", userID), "like", insightID+"|"+userID)
}

func (s *Store) GetLike(ctx context.Context, insightID, userID string) (insight.Like, error) {
	var out insight.Like
	err := s.getOne(ctx, s.c.From("likes").Select("*").Eq("insight_id", insightID).Eq("user_id", userID), &out, "like", insightID+"|"+userID)
	return out, err
}

func (s *Store) ListLikedInsightIDs(ctx context.Context, userID string, insightIDs []string) ([]string, error) {
	out := []string{}
	if len(insightIDs) == 0 {
		return out, nil
	}
	resp, err := s.c.From("likes").Select("insight_id").Eq("user_id", userID).In("insight_id", insightIDs).Execute(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range gjson.GetBytes(resp.Body, "#.insight_id").Array() {
		out = append(out, id.String())
	}
	return out, nil
}

// --- CommentStore ------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c insight.Comment) (insight.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	var out insight.Comment
	err := s.insertOne(ctx, "comments", c, &out, "comment", c.ID)
	return out, err
}

func (s *Store) GetComment(ctx context.Context, id string) (insight.Comment, error) {
	var out insight.Comment
	err := s.getOne(ctx, s.c.From("comments").Select("*").Eq("id", id), &out, "comment", id)
	return out, err
}

func (s *Store) UpdateComment(ctx context.Context, c insight.Comment) (insight.Comment, error) {
	patch := map[string]any{"content": c.Content, "updated_at": s.now()}
	var out insight.Comment
	err := s.updateOne(ctx, s.c.From("comments").Eq("id", c.ID), patch, &out, "comment", c.ID)
	return out, err
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.deleteSome(ctx, s.c.From("comments").Eq("id", id), "comment", id)
}

func (s *Store) ListComments(ctx context.Context, insightID string) ([]insight.Comment, error) {
	out := []insight.Comment{}
	err := s.list(ctx, s.c.From("comments").Select("*").Eq("insight_id", insightID).Order("created_at", true), &out)
	return out, err
}
