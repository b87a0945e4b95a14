package migrations

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceWalksAllVersions(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	var versions []uint
	v, err := src.First()
	require.NoError(t, err)
	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d missing up", v)
		_ = up.Close()
		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d missing down", v)
		_ = down.Close()

		next, err := src.Next(v)
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		v = next
	}

	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6}, versions)
}

func TestCounterFunctionsAreAtomicUpdates(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	r, _, err := src.ReadUp(2)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	sql := string(body)

	assert.Contains(t, sql, "FUNCTION increment_insight_views")
	assert.Contains(t, sql, "views_count = views_count + 1")
	assert.Contains(t, sql, "FUNCTION adjust_insight_likes")
	assert.Contains(t, sql, "GREATEST(likes_count + p_delta, 0)")
	assert.Contains(t, sql, "UNIQUE (insight_id, user_id)")
}

func TestUniquenessConstraints(t *testing.T) {
	body, err := files.ReadFile("sql/000003_subscriptions.up.sql")
	require.NoError(t, err)
	sql := string(body)

	assert.Contains(t, sql, "UNIQUE (investor_id, expert_id)")
	assert.True(t, strings.Contains(sql, "WHERE status = 'pending'"))
}
