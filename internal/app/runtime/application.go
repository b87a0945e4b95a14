// Package runtime turns a Config into a running marketplace server: it picks
// the storage backend, the change feed and the auth provider, then serves the
// HTTP API until the context is cancelled.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	app "github.com/marketbridge/platform/internal/app"
	"github.com/marketbridge/platform/internal/app/httpapi"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/app/storage/postgres"
	supastore "github.com/marketbridge/platform/internal/app/storage/supabase"
	"github.com/marketbridge/platform/internal/app/system"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/internal/config"
	"github.com/marketbridge/platform/internal/middleware"
	"github.com/marketbridge/platform/internal/platform/migrations"
	"github.com/marketbridge/platform/pkg/logger"
	"github.com/marketbridge/platform/supabase/client"
)

// realtimeTables are the tables whose changes drive live views.
var realtimeTables = []string{"notifications"}

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	scheduler  *cron.Cron
	limiter    *middleware.RateLimiter
	db         *sqlx.DB
	rdb        *redis.Client
}

// backend is what a storage mode contributes to the wiring.
type backend struct {
	stores   app.Stores
	blobs    blob.Store
	media    blob.Source
	provider auth.Provider
	realtime *changefeed.RealtimeFeed
	db       *sqlx.DB
}

// NewApplication constructs the server from cfg. Nothing listens until Run.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	be, err := buildBackend(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure backend: %w", err)
	}

	a := &Application{cfg: cfg, log: log, db: be.db}

	feed, err := a.buildFeed(ctx, be)
	if err != nil {
		a.closeConns()
		return nil, fmt.Errorf("configure change feed: %w", err)
	}

	application, err := app.New(be.stores, app.Options{
		Feed:     feed,
		Blobs:    be.blobs,
		Provider: be.provider,
		Verifier: verifier,
		Buckets: app.Buckets{
			Avatars:      cfg.Storage.AvatarBucket,
			Insights:     cfg.Storage.InsightBucket,
			Marketplace:  cfg.Storage.MarketplaceBucket,
			Testimonials: cfg.Storage.TestimonialBucket,
		},
	}, log.Component("app"))
	if err != nil {
		_ = feed.Close()
		a.closeConns()
		return nil, err
	}
	a.app = application

	if be.realtime != nil {
		rt := be.realtime
		if err := application.Attach(system.Func{
			ServiceName: "realtime",
			OnStart: func(ctx context.Context) error {
				return rt.Start(ctx, realtimeTables)
			},
		}); err != nil {
			return nil, err
		}
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Component("ratelimit"))
	}

	a.scheduler = cron.New()
	if err := a.scheduleMaintenance(verifier, be.realtime); err != nil {
		return nil, fmt.Errorf("schedule maintenance: %w", err)
	}
	if err := application.Attach(system.Func{
		ServiceName: "scheduler",
		OnStart: func(context.Context) error {
			a.scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-a.scheduler.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	}); err != nil {
		return nil, err
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		Logger:      log.Component("http"),
		CORSOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter: a.limiter,
		Media:       be.media,
	})
	a.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Services exposes the wired domain services.
func (a *Application) Services() *app.Application {
	return a.app
}

// Run starts the services and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s (backend %s)", a.httpServer.Addr, a.cfg.Backend.Mode)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the services and the connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.closeConns()
	return errors.Join(errs...)
}

func (a *Application) closeConns() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.rdb = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

func (a *Application) buildFeed(ctx context.Context, be backend) (changefeed.Feed, error) {
	if be.realtime != nil {
		be.realtime.OnReceive = func(e changefeed.Event) {
			metrics.RecordChangeEvent(e.Table, string(e.Type))
		}
		return be.realtime, nil
	}
	if a.cfg.Redis.Addr == "" {
		return changefeed.NewBroker(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	feed, err := changefeed.NewRedisFeed(ctx, rdb, a.cfg.Redis.Channel, a.log.Component("changefeed"))
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	a.rdb = rdb
	return feed, nil
}

func (a *Application) scheduleMaintenance(verifier *auth.Verifier, rt *changefeed.RealtimeFeed) error {
	spec := a.cfg.RateLimit.CleanupSpec
	if spec == "" {
		spec = "@every 10m"
	}
	log := a.log.Component("scheduler")

	if a.limiter != nil {
		limiter := a.limiter
		if _, err := a.scheduler.AddFunc(spec, func() {
			if n := limiter.Cleanup(); n > 0 {
				log.WithField("evicted", n).Debug("rate limiter cleanup")
			}
		}); err != nil {
			return err
		}
	}

	if _, err := a.scheduler.AddFunc(spec, func() {
		if n := verifier.PurgeRevoked(); n > 0 {
			log.WithField("purged", n).Debug("expired token revocations purged")
		}
	}); err != nil {
		return err
	}

	if rt != nil {
		if _, err := a.scheduler.AddFunc("@every 30s", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := rt.EnsureConnected(ctx); err != nil {
				log.WithError(err).Warn("realtime reconnect failed")
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

func buildBackend(cfg *config.Config, log *logger.Logger) (backend, error) {
	switch cfg.Backend.Mode {
	case config.ModePostgres:
		return postgresBackend(cfg, log)
	case config.ModeSupabase:
		return supabaseBackend(cfg, log)
	default:
		media := blob.NewMemoryStore(cfg.Storage.PublicBaseURL)
		return backend{blobs: media, media: media}, nil
	}
}

func postgresBackend(cfg *config.Config, log *logger.Logger) (backend, error) {
	if cfg.Database.AutoMigrate {
		mg, err := migrations.New(cfg.Database.DSN, log.Component("migrations"))
		if err != nil {
			return backend{}, err
		}
		err = mg.Up()
		_ = mg.Close()
		if err != nil {
			return backend{}, err
		}
	}

	db, err := postgres.Open(cfg.Database.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return backend{}, err
	}

	store := postgres.New(db)
	media, err := blob.NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		db.Close()
		return backend{}, err
	}
	return backend{
		stores: app.Stores{
			Profiles:      store,
			Insights:      store,
			Likes:         store,
			Comments:      store,
			Subscriptions: store,
			Requests:      store,
			Notifications: store,
			Marketplace:   store,
			Identities:    store,
		},
		blobs: media,
		media: media,
		db:    db,
	}, nil
}

func supabaseBackend(cfg *config.Config, log *logger.Logger) (backend, error) {
	key := cfg.SupabaseKey()
	breakerLog := log.Component("supabase")
	breakerCfg := client.DefaultCircuitBreakerConfig()
	breakerCfg.OnStateChange = func(from, to client.CircuitState) {
		metrics.SetBackendCircuit(int(to))
		breakerLog.WithField("from", from.String()).WithField("to", to.String()).Warn("backend circuit breaker changed state")
	}
	c, err := client.New(client.Config{
		URL:        cfg.Supabase.URL,
		APIKey:     key,
		Schema:     cfg.Supabase.Schema,
		HTTPClient: &http.Client{Timeout: cfg.Supabase.Timeout},
		Breaker:    client.NewCircuitBreaker(breakerCfg),
	})
	if err != nil {
		return backend{}, fmt.Errorf("supabase client: %w", err)
	}

	store := supastore.New(c)
	be := backend{
		stores: app.Stores{
			Profiles:      store,
			Insights:      store,
			Likes:         store,
			Comments:      store,
			Subscriptions: store,
			Requests:      store,
			Notifications: store,
			Marketplace:   store,
		},
		blobs:    blob.NewSupabaseStore(c),
		provider: auth.NewSupabaseProvider(c),
	}
	if cfg.Supabase.Realtime {
		rt := client.NewRealtimeClient(cfg.Supabase.URL, key)
		be.realtime = changefeed.NewRealtimeFeed(rt, log.Component("changefeed"))
	}
	return be, nil
}
