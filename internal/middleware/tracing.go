package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/marketbridge/platform/pkg/logger"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

const infoKey contextKey = "request_info"

// requestInfo is filled in by handlers further down the chain so the access
// log can include it.
type requestInfo struct {
	userID string
}

// TracingMiddleware adds a trace id to every request and writes the access log.
type TracingMiddleware struct {
	logger *logger.Logger
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(log *logger.Logger) *TracingMiddleware {
	return &TracingMiddleware{logger: log}
}

// Handler returns the tracing middleware handler
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = logger.NewTraceID()
		}
		info := &requestInfo{}
		ctx := context.WithValue(logger.WithTraceID(r.Context(), traceID), infoKey, info)
		w.Header().Set(TraceHeader, traceID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		r = r.WithContext(ctx)
		next.ServeHTTP(rw, r)

		logCtx := ctx
		if info.userID != "" {
			logCtx = logger.WithUserID(ctx, info.userID)
		}
		m.logger.LogRequest(logCtx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
