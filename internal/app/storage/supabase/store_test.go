package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/supabase/client"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := client.New(client.Config{URL: server.URL, APIKey: "service"})
	require.NoError(t, err)
	return New(c)
}

func TestIncrementInsightViewsUsesRPC(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/increment_insight_views", r.URL.Path)
		var params map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "in-1", params["p_insight_id"])
		_, _ = w.Write([]byte(`[{"id":"in-1","expert_id":"e1","title":"t","visibility":"public","likes_count":0,"views_count":3,"created_at":"2024-05-01T12:00:00+00:00","updated_at":"2024-05-01T12:00:00+00:00"}]`))
	})

	in, err := store.IncrementInsightViews(context.Background(), "in-1")
	require.NoError(t, err)
	assert.Equal(t, 3, in.ViewsCount)
}

func TestIncrementInsightViewsMissing(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.IncrementInsightViews(context.Background(), "gone")
	assert.True(t, storage.IsNotFound(err))
}

func TestGetProfileNotFound(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`))
	})

	_, err := store.GetProfile(context.Background(), "nobody")
	assert.True(t, storage.IsNotFound(err))
}

func TestBackendMessagePassesThrough(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"23514","message":"new row for relation \"insights\" violates check constraint"}`))
	})

	_, err := store.ListInsightsByExpert(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, `new row for relation "insights" violates check constraint`, err.Error())
}

func TestCountSubscribers(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/subscriptions", r.URL.Path)
		assert.Equal(t, "eq.e1", r.URL.Query().Get("expert_id"))
		w.Header().Set("Content-Range", "0-4/5")
	})

	n, err := store.CountSubscribers(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCreateLikeDuplicateIsConflict(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	})

	_, err := store.CreateSubscription(context.Background(), subscription.Subscription{InvestorID: "i", ExpertID: "e"})
	assert.True(t, storage.IsConflict(err))
}

func TestUpdateRequestStatusAlreadyAnswered(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"code":"PGRST116","message":"no rows"}`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"r1","investor_id":"i","expert_id":"e","status":"declined","created_at":"2024-05-01T12:00:00Z","updated_at":"2024-05-01T12:00:00Z"}`))
		}
	})

	_, err := store.UpdateRequestStatus(context.Background(), "r1", subscription.StatusPending, subscription.StatusApproved)
	assert.True(t, storage.IsConflict(err))
}

func TestListLikedInsightIDs(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `in.("a","b")`, r.URL.Query().Get("insight_id"))
		_, _ = w.Write([]byte(`[{"insight_id":"a"}]`))
	})

	ids, err := store.ListLikedInsightIDs(context.Background(), "u1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}
