package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/marketbridge/platform/internal/app/domain/insight"
)

const insightColumns = `id, expert_id, title, content, image_url, visibility, likes_count, views_count, created_at, updated_at`

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

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO insights (`+insightColumns+`)
		VALUES (:id, :expert_id, :title, :content, :image_url, :visibility, :likes_count, :views_count, :created_at, :updated_at)
	`, in)
	if err != nil {
		return insight.Insight{}, mapError(err, "insight", in.ID)
	}
	return in, nil
}

func (s *Store) GetInsight(ctx context.Context, id string) (insight.Insight, error) {
	var in insight.Insight
	err := s.db.GetContext(ctx, &in, `SELECT `+insightColumns+` FROM insights WHERE id = $1`, id)
	return in, mapError(err, "insight", id)
}

func (s *Store) UpdateInsight(ctx context.Context, in insight.Insight) (insight.Insight, error) {
	var out insight.Insight
	err := s.db.GetContext(ctx, &out, `
		UPDATE insights
		SET title = $2, content = $3, image_url = $4, visibility = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+insightColumns,
		in.ID, in.Title, in.Content, in.ImageURL, in.Visibility, s.now())
	return out, mapError(err, "insight", in.ID)
}

func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "insight", id)
}

func (s *Store) ListInsightsByExpert(ctx context.Context, expertID string) ([]insight.Insight, error) {
	out := []insight.Insight{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+insightColumns+` FROM insights WHERE expert_id = $1 ORDER BY created_at DESC
	`, expertID)
	return out, err
}

func (s *Store) ListInsightsByExperts(ctx context.Context, expertIDs []string) ([]insight.Insight, error) {
	out := []insight.Insight{}
	if len(expertIDs) == 0 {
		return out, nil
	}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+insightColumns+` FROM insights WHERE expert_id = ANY($1) ORDER BY created_at DESC
	`, pq.Array(expertIDs))
	return out, err
}

func (s *Store) ListPublicInsights(ctx context.Context, limit int) ([]insight.Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	out := []insight.Insight{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+insightColumns+` FROM insights WHERE visibility = 'public' ORDER BY created_at DESC LIMIT $1
	`, limit)
	return out, err
}

func (s *Store) CountInsightsByExpert(ctx context.Context, expertID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM insights WHERE expert_id = $1`, expertID)
	return n, err
}

func (s *Store) IncrementInsightViews(ctx context.Context, id string) (insight.Insight, error) {
	var out insight.Insight
	err := s.db.GetContext(ctx, &out, `
		UPDATE insights SET views_count = views_count + 1 WHERE id = $1 RETURNING `+insightColumns, id)
	return out, mapError(err, "insight", id)
}

func (s *Store) AdjustInsightLikes(ctx context.Context, id string, delta int) (insight.Insight, error) {
	var out insight.Insight
	err := s.db.GetContext(ctx, &out, `
		UPDATE insights SET likes_count = GREATEST(likes_count + $2, 0) WHERE id = $1 RETURNING `+insightColumns, id, delta)
	return out, mapError(err, "insight", id)
}

// --- LikeStore ---------------------------------------------------------------

func (s *Store) CreateLike(ctx context.Context, like insight.Like) (insight.Like, error) {
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	like.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (id, insight_id, user_id, created_at) VALUES ($1, $2, $3, $4)
	`, like.ID, like.InsightID, like.UserID, like.CreatedAt)
	if err != nil {
		return insight.Like{}, mapError(err, "like", like.InsightID)
	}
	return like, nil
}

func (s *Store) DeleteLike(ctx context.Context, insightID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE insight_id = $1 AND user_id = $2`, insightID, userID)
	if err != nil {
		return err
	}
	return expectAffected(res, "like", insightID+"|"+userID)
}

func (s *Store) GetLike(ctx context.Context, insightID, userID string) (insight.Like, error) {
	var like insight.Like
	err := s.db.GetContext(ctx, &like, `
		SELECT id, insight_id, user_id, created_at FROM likes WHERE insight_id = $1 AND user_id = $2
	`, insightID, userID)
	return like, mapError(err, "like", insightID+"|"+userID)
}

func (s *Store) ListLikedInsightIDs(ctx context.Context, userID string, insightIDs []string) ([]string, error) {
	out := []string{}
	if len(insightIDs) == 0 {
		return out, nil
	}
	err := s.db.SelectContext(ctx, &out, `
		SELECT insight_id FROM likes WHERE user_id = $1 AND insight_id = ANY($2)
	`, userID, pq.Array(insightIDs))
	return out, err
}

// --- CommentStore ------------------------------------------------------------

const commentColumns = `id, insight_id, user_id, content, parent_comment_id, created_at, updated_at`

func (s *Store) CreateComment(ctx context.Context, c insight.Comment) (insight.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (:id, :insight_id, :user_id, :content, :parent_comment_id, :created_at, :updated_at)
	`, c)
	if err != nil {
		return insight.Comment{}, mapError(err, "comment", c.ID)
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (insight.Comment, error) {
	var c insight.Comment
	err := s.db.GetContext(ctx, &c, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	return c, mapError(err, "comment", id)
}

func (s *Store) UpdateComment(ctx context.Context, c insight.Comment) (insight.Comment, error) {
	var out insight.Comment
	err := s.db.GetContext(ctx, &out, `
		UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1 RETURNING `+commentColumns,
		c.ID, c.Content, s.now())
	return out, mapError(err, "comment", c.ID)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "comment", id)
}

func (s *Store) ListComments(ctx context.Context, insightID string) ([]insight.Comment, error) {
	out := []insight.Comment{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+commentColumns+` FROM comments WHERE insight_id = $1 ORDER BY created_at
	`, insightID)
	return out, err
}
