package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/platform/supabase/client"
)

func TestObjectPathKeepsExtension(t *testing.T) {
	p := ObjectPath("u1", "Avatar.PNG")
	assert.True(t, strings.HasPrefix(p, "u1/"))
	assert.True(t, strings.HasSuffix(p, ".png"))
	assert.NotEqual(t, p, ObjectPath("u1", "Avatar.PNG"))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image", MediaType("image/jpeg"))
	assert.Equal(t, "video", MediaType("video/mp4"))
	assert.Equal(t, "file", MediaType("application/pdf"))
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore("http://localhost:8080/")
	ctx := context.Background()

	url, err := store.Upload(ctx, "avatars", "u1/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/avatars/u1/a.png", url)

	obj, err := store.Get("avatars", "u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, store.Delete(ctx, "avatars", "u1/a.png"))
	_, err = store.Get("avatars", "u1/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "avatars", "u1/a.png"), ErrNotFound)
}

func TestSupabaseStoreUploadReturnsPublicURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/insights/e1/x.jpg", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "jpeg", string(body))
		_, _ = w.Write([]byte(`{"Key":"insights/e1/x.jpg"}`))
	}))
	defer server.Close()

	c, err := client.New(client.Config{URL: server.URL, APIKey: "k"})
	require.NoError(t, err)

	url, err := NewSupabaseStore(c).Upload(context.Background(), "insights", "e1/x.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/public/insights/e1/x.jpg", url)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(root, "http://localhost:8080")
	require.NoError(t, err)
	url, err := first.Upload(ctx, "marketplace", "e1/cover.png", []byte("\x89PNG\r\n\x1a\n"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/marketplace/e1/cover.png", url)

	second, err := NewFileStore(root, "http://localhost:8080")
	require.NoError(t, err)
	obj, err := second.Get("marketplace", "e1/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\n", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = second.Upload(ctx, "marketplace", "e1/notes", []byte("plain words"), "text/plain")
	require.NoError(t, err)
	obj, err = second.Get("marketplace", "e1/notes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.ContentType, "text/plain"))

	require.NoError(t, second.Delete(ctx, "marketplace", "e1/cover.png"))
	_, err = first.Get("marketplace", "e1/cover.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, first.Delete(ctx, "marketplace", "e1/cover.png"), ErrNotFound)
}

func TestFileStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"../secret", "a/../../b", "a//b", ".upload-123"} {
		_, err := store.Upload(ctx, "avatars", p, []byte("x"), "text/plain")
		assert.Error(t, err, p)
	}
	_, err = store.Upload(ctx, "..", "a.png", []byte("x"), "image/png")
	assert.Error(t, err)
	_, err = store.Get("avatars", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}
