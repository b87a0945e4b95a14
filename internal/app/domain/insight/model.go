package insight

import "time"

// Visibility controls who may read an insight.
type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilitySubscribers Visibility = "subscribers"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilitySubscribers
}

// Insight is a post published by an expert.
type Insight struct {
	ID         string     `json:"id" db:"id"`
	ExpertID   string     `json:"expert_id" db:"expert_id"`
	Title      string     `json:"title" db:"title"`
	Content    string     `json:"content" db:"content"`
	ImageURL   string     `json:"image_url" db:"image_url"`
	Visibility Visibility `json:"visibility" db:"visibility"`
	LikesCount int        `json:"likes_count" db:"likes_count"`
	ViewsCount int        `json:"views_count" db:"views_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Like marks one user's like of one insight. (InsightID, UserID) is unique.
type Like struct {
	ID        string    `json:"id" db:"id"`
	InsightID string    `json:"insight_id" db:"insight_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Comment is a comment on an insight. Replies point at a top-level comment.
type Comment struct {
	ID              string    `json:"id" db:"id"`
	InsightID       string    `json:"insight_id" db:"insight_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	Content         string    `json:"content" db:"content"`
	ParentCommentID *string   `json:"parent_comment_id" db:"parent_comment_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentCommentID != nil && *c.ParentCommentID != ""
}

// Thread is a top-level comment with its direct replies, oldest first.
type Thread struct {
	Comment
	Replies []Comment `json:"replies"`
}
