package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{URL: server.URL + "/", APIKey: "service-key"})
	require.NoError(t, err)
	return c
}

func TestNewRequiresURLAndKey(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x"})
	assert.Error(t, err)
}

func TestQueryBuilderBuildsPostgRESTParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/insights", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, `in.("e1","e2")`, q.Get("expert_id"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"i1"}]`))
	})

	var rows []map[string]any
	err := c.From("insights").
		Select("*").
		In("expert_id", []string{"e1", "e2"}).
		Order("created_at", false).
		Limit(10).
		ExecuteInto(context.Background(), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "i1", rows[0]["id"])
}

func TestHeadCountParsesContentRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "eq.exp-1", r.URL.Query().Get("expert_id"))
		w.Header().Set("Content-Range", "0-0/17")
	})

	resp, err := c.From("subscriptions").Select("id").Eq("expert_id", "exp-1").Count("exact").Head().Execute(context.Background())
	require.NoError(t, err)
	n, err := resp.Count()
	require.NoError(t, err)
	assert.Equal(t, 17, n)
}

func TestResponseCountEmptyRange(t *testing.T) {
	resp := &Response{Headers: http.Header{"Content-Range": []string{"*/0"}}}
	n, err := resp.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	resp = &Response{Headers: http.Header{}}
	_, err = resp.Count()
	assert.Error(t, err)
}

func TestSingleNotFoundIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows"}`))
	})

	_, err := c.From("profiles").Select("*").Eq("id", "missing").Single().Execute(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "JSON object requested, multiple (or no) rows returned", apiErr.Error())
	assert.Equal(t, "The result contains 0 rows", apiErr.Details)
}

func TestUpdateUsesFiltersAndSchemaProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "marketplace", r.Header.Get("Content-Profile"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"investment_goal":"growth"}`, string(body))
		_, _ = w.Write([]byte(`[{"user_id":"u1","investment_goal":"growth"}]`))
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{URL: server.URL, APIKey: "service-key", Schema: "marketplace"})
	require.NoError(t, err)
	resp, err := c.From("investor_details").Eq("user_id", "u1").ExecuteUpdate(context.Background(), map[string]string{
		"investment_goal": "growth",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStorageDeleteSendsPrefixes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/insights", r.URL.Path)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"u1/chart.png"}, body["prefixes"])
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Storage().From("insights").Delete(context.Background(), []string{"u1/chart.png"})
	require.NoError(t, err)
}

func TestConflictDetected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"likes_insight_id_user_id_key\""}`))
	})

	_, err := c.From("likes").ExecuteInsert(context.Background(), map[string]string{"insight_id": "i", "user_id": "u"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsConflict())
}

func TestRPCPostsParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/increment_insight_views", r.URL.Path)
		var params map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "i1", params["p_insight_id"])
		_, _ = w.Write([]byte(`{"id":"i1","views_count":4}`))
	})

	resp, err := c.RPC(context.Background(), "increment_insight_views", map[string]string{"p_insight_id": "i1"})
	require.NoError(t, err)
	var row map[string]any
	require.NoError(t, resp.JSON(&row))
	assert.EqualValues(t, 4, row["views_count"])
}

func TestAuthSignInErrorMessageIsVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Email not confirmed"}`))
	})

	_, err := c.Auth().SignIn(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, "Email not confirmed", err.Error())
}

func TestAuthSignUpWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "expert", payload["data"].(map[string]any)["user_type"])
		_, _ = w.Write([]byte(`{"id":"user-1","email":"a@b.c"}`))
	})

	resp, err := c.Auth().SignUp(context.Background(), "a@b.c", "pw", map[string]any{"user_type": "expert"})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Empty(t, resp.AccessToken)
}

func TestAuthSignOutSendsUserToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Auth().SignOut(context.Background(), "user-token"))
}

func TestStorageUploadAndPublicURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/avatars/u1/a.png", r.URL.Path)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		_, _ = w.Write([]byte(`{"Key":"avatars/u1/a.png"}`))
	})

	_, err := c.Storage().From("avatars").Upload(context.Background(), "u1/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, c.BaseURL()+"/storage/v1/object/public/avatars/u1/a.png", c.Storage().From("avatars").GetPublicURL("u1/a.png"))
}

func TestParseAPIErrorFallsBackToBody(t *testing.T) {
	apiErr := parseAPIError(http.StatusBadGateway, []byte("upstream exploded"))
	assert.Equal(t, "upstream exploded", apiErr.Message)

	apiErr = parseAPIError(http.StatusBadGateway, nil)
	assert.Equal(t, "supabase error: status 502", apiErr.Message)

	apiErr = parseAPIError(http.StatusUnprocessableEntity, []byte(`{"code":422,"msg":"User already registered"}`))
	assert.Equal(t, "User already registered", apiErr.Message)
}
