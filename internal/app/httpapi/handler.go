// Package httpapi exposes the marketplace services over REST and websockets.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/marketbridge/platform/internal/app"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/internal/httputil"
	"github.com/marketbridge/platform/internal/middleware"
	"github.com/marketbridge/platform/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	Logger      *logger.Logger
	CORSOrigins []string
	// RateLimiter is applied to /api/v1 when set.
	RateLimiter *middleware.RateLimiter
	// Media serves uploaded objects under /media when the blob store is local.
	Media blob.Source
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	log      *logger.Logger
	media    blob.Source
	upgrader websocket.Upgrader
	started  time.Time
}

// NewHandler returns the router exposing the marketplace API.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	cors := middleware.NewCORSMiddleware(opts.CORSOrigins)
	h := &handler{
		app:     application,
		log:     log,
		media:   opts.Media,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cors.CheckOrigin,
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if h.media != nil {
		r.HandleFunc("/media/{bucket}/{path:.+}", h.serveMedia).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	authn := middleware.NewAuthMiddleware(application.Verifier, log.Component("auth"), []string{
		"/api/v1/auth/signup",
		"/api/v1/auth/signin",
	})
	api.Use(authn.Handler)
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}

	h.authRoutes(api)
	h.profileRoutes(api)
	h.expertRoutes(api)
	h.insightRoutes(api)
	h.notificationRoutes(api)
	h.marketplaceRoutes(api)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errMethodNotAllowed)
	})

	var root http.Handler = r
	root = middleware.MetricsMiddleware()(root)
	root = middleware.Recovery(log)(root)
	root = cors.Handler(root)
	root = middleware.NewTracingMiddleware(log.Component("access")).Handler(root)
	return root
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

func (h *handler) serveMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	obj, err := h.media.Get(vars["bucket"], vars["path"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(obj.Data)
}

// caller returns the authenticated identity id. Profiles share their owner's
// identity id, so it doubles as the caller's profile id.
func caller(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}
