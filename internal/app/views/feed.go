package views

import (
	"context"
	"sync"

	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/services/insights"
)

// FeedSource is what the insight feed reads and writes.
type FeedSource interface {
	Feed(ctx context.Context, investorID string) ([]insight.Insight, error)
	LikedIDs(ctx context.Context, userID string, insightIDs []string) ([]string, error)
	ToggleLike(ctx context.Context, insightID, userID string) (insights.LikeState, error)
}

// FeedState is a snapshot of the feed.
type FeedState struct {
	Insights []insight.Insight `json:"insights"`
	Liked    []string          `json:"liked"`
}

// Feed is the insight feed of one investor.
type Feed struct {
	src    FeedSource
	userID string

	mu       sync.Mutex
	insights []insight.Insight
	liked    map[string]bool
}

// NewFeed creates an empty feed for userID.
func NewFeed(src FeedSource, userID string) *Feed {
	return &Feed{src: src, userID: userID, liked: make(map[string]bool)}
}

// Load fetches the feed (recording a view on each insight) and the likes.
func (f *Feed) Load(ctx context.Context) error {
	list, err := f.src.Feed(ctx, f.userID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(list))
	for _, in := range list {
		ids = append(ids, in.ID)
	}
	liked, err := f.src.LikedIDs(ctx, f.userID, ids)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.insights = list
	f.liked = toSet(liked)
	return nil
}

// State returns a snapshot.
func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedState{
		Insights: append([]insight.Insight(nil), f.insights...),
		Liked:    fromSet(f.liked),
	}
}

// ToggleLike flips the like locally, then writes it. On failure the local
// change is rolled back; on success the count is taken from the store.
func (f *Feed) ToggleLike(ctx context.Context, insightID string) (insights.LikeState, error) {
	f.mu.Lock()
	wasLiked := f.liked[insightID]
	f.applyLocked(insightID, !wasLiked, optimisticDelta(wasLiked))
	f.mu.Unlock()

	state, err := f.src.ToggleLike(ctx, insightID, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.applyLocked(insightID, wasLiked, -optimisticDelta(wasLiked))
		return insights.LikeState{}, err
	}
	f.liked[insightID] = state.Liked
	if !state.Liked {
		delete(f.liked, insightID)
	}
	for i := range f.insights {
		if f.insights[i].ID == insightID {
			f.insights[i].LikesCount = state.LikesCount
		}
	}
	return state, nil
}

func optimisticDelta(wasLiked bool) int {
	if wasLiked {
		return -1
	}
	return 1
}

func (f *Feed) applyLocked(insightID string, liked bool, delta int) {
	if liked {
		f.liked[insightID] = true
	} else {
		delete(f.liked, insightID)
	}
	for i := range f.insights {
		if f.insights[i].ID == insightID {
			f.insights[i].LikesCount += delta
			if f.insights[i].LikesCount < 0 {
				f.insights[i].LikesCount = 0
			}
		}
	}
}
