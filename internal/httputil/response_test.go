package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/marketbridge/platform/internal/errors"
	"github.com/marketbridge/platform/pkg/logger"
)

func TestWriteErrorIncludesTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(logger.WithTraceID(req.Context(), "trace-1"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, svcerrors.Conflict("already subscribed"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "already subscribed", body.Error)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, "trace-1", body.TraceID)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "Ada", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"nmae":"Ada"}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, svcerrors.GetServiceError(err).HTTPStatus)

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(""))
	err = DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
	assert.Equal(t, "request body is required", svcerrors.GetServiceError(err).Message)
}
