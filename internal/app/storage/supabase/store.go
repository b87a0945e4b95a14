// Package supabase implements the storage interfaces on the hosted backend's
// PostgREST API.
package supabase

import (
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/supabase/client"
)

// Store implements the storage interfaces on top of a Supabase project.
type Store struct {
	c   *client.Client
	now func() time.Time
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.InsightStore = (*Store)(nil)
var _ storage.LikeStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.MarketplaceStore = (*Store)(nil)
var _ storage.IdentityStore = (*Store)(nil)

// New creates a Store using c. c should carry the service-role key.
func New(c *client.Client) *Store {
	return &Store{c: c, now: func() time.Time { return time.Now().UTC() }}
}

// Ping issues a cheap query so health checks reach the backend.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.c.From("profiles").Select("id").Limit(1).Execute(ctx)
	return err
}

// mapError translates PostgREST failures into storage sentinels while keeping
// the backend's message in the chain.
func mapError(err error, kind, key string) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsConflict():
			return storage.Conflict("%s", apiErr.Message)
		case apiErr.IsNotFound():
			return storage.NotFound(kind, key)
		}
	}
	return err
}

func (s *Store) getOne(ctx context.Context, q *client.QueryBuilder, out any, kind, key string) error {
	return mapError(q.Single().ExecuteInto(ctx, out), kind, key)
}

func (s *Store) list(ctx context.Context, q *client.QueryBuilder, out any) error {
	return q.ExecuteInto(ctx, out)
}

func (s *Store) insertOne(ctx context.Context, table string, row any, out any, kind, key string) error {
	resp, err := s.c.From(table).Single().ExecuteInsert(ctx, row)
	if err != nil {
		return mapError(err, kind, key)
	}
	return resp.JSON(out)
}

func (s *Store) updateOne(ctx context.Context, q *client.QueryBuilder, patch any, out any, kind, key string) error {
	resp, err := q.Single().ExecuteUpdate(ctx, patch)
	if err != nil {
		return mapError(err, kind, key)
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

// deleteSome deletes the filtered rows and reports ErrNotFound when none matched.
func (s *Store) deleteSome(ctx context.Context, q *client.QueryBuilder, kind, key string) error {
	resp, err := q.ExecuteDelete(ctx)
	if err != nil {
		return mapError(err, kind, key)
	}
	if len(gjson.ParseBytes(resp.Body).Array()) == 0 {
		return storage.NotFound(kind, key)
	}
	return nil
}

func (s *Store) count(ctx context.Context, q *client.QueryBuilder) (int, error) {
	resp, err := q.Select("id").Count("exact").Head().Execute(ctx)
	if err != nil {
		return 0, err
	}
	return resp.Count()
}

// rpcOne calls a set-returning function and decodes the first row.
func (s *Store) rpcOne(ctx context.Context, fn string, params any, out any, kind, key string) error {
	resp, err := s.c.RPC(ctx, fn, params)
	if err != nil {
		return mapError(err, kind, key)
	}
	first := gjson.ParseBytes(resp.Body)
	if first.IsArray() {
		rows := first.Array()
		if len(rows) == 0 {
			return storage.NotFound(kind, key)
		}
		first = rows[0]
	}
	return (&client.Response{Body: []byte(first.Raw)}).JSON(out)
}
