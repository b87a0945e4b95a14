package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	fallback := New(LoggingConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, fallback.Formatter)
}

func TestWithContextAddsTraceAndUser(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefault("test")
	log.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	log.WithContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-1", line["trace_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "test", line["component"])
}

func TestLogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefault("http")
	log.SetOutput(&buf)

	log.LogRequest(context.Background(), http.MethodGet, "/feed", http.StatusInternalServerError, 5*time.Millisecond)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.EqualValues(t, 500, line["status"])
}

func TestContextHelpersOnEmptyContext(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetUserID(context.Background()))
	assert.Empty(t, GetRole(context.Background()))
	assert.NotEmpty(t, NewTraceID())
}
