// Package app wires the marketplace stores, services and change feed together.
package app

import (
	"context"

	"github.com/marketbridge/platform/internal/app/services/accounts"
	"github.com/marketbridge/platform/internal/app/services/insights"
	marketsvc "github.com/marketbridge/platform/internal/app/services/marketplace"
	"github.com/marketbridge/platform/internal/app/services/notifications"
	"github.com/marketbridge/platform/internal/app/services/profiles"
	"github.com/marketbridge/platform/internal/app/services/subscriptions"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/app/storage/memory"
	"github.com/marketbridge/platform/internal/app/system"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Profiles      storage.ProfileStore
	Insights      storage.InsightStore
	Likes         storage.LikeStore
	Comments      storage.CommentStore
	Subscriptions storage.SubscriptionStore
	Requests      storage.RequestStore
	Notifications storage.NotificationStore
	Marketplace   storage.MarketplaceStore
	Identities    storage.IdentityStore
}

// Buckets names the blob buckets uploads go to.
type Buckets struct {
	Avatars      string
	Insights     string
	Marketplace  string
	Testimonials string
}

// Options carries the non-storage collaborators. Nil fields get in-process
// defaults: a broker feed, an in-memory blob store and a local auth provider.
type Options struct {
	Feed     changefeed.Feed
	Blobs    blob.Store
	Provider auth.Provider
	Verifier *auth.Verifier
	Buckets  Buckets
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Feed     changefeed.Feed
	Blobs    blob.Store
	Verifier *auth.Verifier

	Accounts      *accounts.Service
	Profiles      *profiles.Service
	Subscriptions *subscriptions.Service
	Insights      *insights.Service
	Notifications *notifications.Service
	Marketplace   *marketsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Insights == nil {
		stores.Insights = mem
	}
	if stores.Likes == nil {
		stores.Likes = mem
	}
	if stores.Comments == nil {
		stores.Comments = mem
	}
	if stores.Subscriptions == nil {
		stores.Subscriptions = mem
	}
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Marketplace == nil {
		stores.Marketplace = mem
	}
	if stores.Identities == nil {
		stores.Identities = mem
	}

	if opts.Feed == nil {
		opts.Feed = changefeed.NewBroker()
	}
	if opts.Blobs == nil {
		opts.Blobs = blob.NewMemoryStore("")
	}
	if opts.Verifier == nil {
		opts.Verifier = auth.NewVerifier("insecure-development-secret", "", 0)
		log.Warn("no token verifier configured; using an insecure development secret")
	}
	if opts.Provider == nil {
		opts.Provider = auth.NewLocalProvider(stores.Identities, opts.Verifier)
	}
	b := opts.Buckets
	if b.Avatars == "" {
		b.Avatars = "avatars"
	}
	if b.Insights == "" {
		b.Insights = "insights"
	}
	if b.Marketplace == "" {
		b.Marketplace = "marketplace"
	}
	if b.Testimonials == "" {
		b.Testimonials = "testimonials"
	}

	notes := notifications.New(stores.Notifications, opts.Feed, log.Component("notifications"))
	subs := subscriptions.New(stores.Profiles, stores.Insights, stores.Subscriptions, stores.Requests, notes, log.Component("subscriptions"))
	ins := insights.New(stores.Profiles, stores.Insights, stores.Likes, stores.Comments, subs, notes,
		opts.Blobs, b.Insights, log.Component("insights"))
	profileSvc := profiles.New(stores.Profiles, opts.Blobs, b.Avatars, log.Component("profiles"))
	market := marketsvc.New(stores.Marketplace, stores.Profiles, opts.Blobs,
		marketsvc.Buckets{Items: b.Marketplace, Testimonials: b.Testimonials}, log.Component("marketplace"))
	acct := accounts.New(opts.Provider, stores.Profiles, log.Component("accounts"))

	manager := system.NewManager()
	feed := opts.Feed
	if err := manager.Register(system.Func{
		ServiceName: "changefeed",
		OnStop: func(context.Context) error {
			return feed.Close()
		},
	}); err != nil {
		return nil, err
	}

	return &Application{
		manager:       manager,
		log:           log,
		Feed:          opts.Feed,
		Blobs:         opts.Blobs,
		Verifier:      opts.Verifier,
		Accounts:      acct,
		Profiles:      profileSvc,
		Subscriptions: subs,
		Insights:      ins,
		Notifications: notes,
		Marketplace:   market,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
