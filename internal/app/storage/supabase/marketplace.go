package supabase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/marketplace"
)

func (s *Store) CreateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = s.now()
	var out marketplace.Item
	err := s.insertOne(ctx, "marketplace_items", item, &out, "marketplace item", item.ID)
	return out, err
}

func (s *Store) GetItem(ctx context.Context, id string) (marketplace.Item, error) {
	var out marketplace.Item
	err := s.getOne(ctx, s.c.From("marketplace_items").Select("*").Eq("id", id), &out, "marketplace item", id)
	return out, err
}

func (s *Store) UpdateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error) {
	patch := map[string]any{
		"title":       item.Title,
		"description": item.Description,
		"price":       item.Price,
		"item_type":   item.ItemType,
		"media_url":   item.MediaURL,
		"media_type":  item.MediaType,
	}
	var out marketplace.Item
	err := s.updateOne(ctx, s.c.From("marketplace_items").Eq("id", item.ID), patch, &out, "marketplace item", item.ID)
	return out, err
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.deleteSome(ctx, s.c.From("marketplace_items").Eq("id", id), "marketplace item", id)
}

func (s *Store) ListItems(ctx context.Context) ([]marketplace.Item, error) {
	out := []marketplace.Item{}
	err := s.list(ctx, s.c.From("marketplace_items").Select("*").Order("created_at", false), &out)
	return out, err
}

func (s *Store) ListItemsByExpert(ctx context.Context, expertID string) ([]marketplace.Item, error) {
	out := []marketplace.Item{}
	err := s.list(ctx, s.c.From("marketplace_items").Select("*").Eq("expert_id", expertID).Order("created_at", false), &out)
	return out, err
}

func (s *Store) CreateTestimonial(ctx context.Context, t marketplace.Testimonial) (marketplace.Testimonial, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = s.now()
	var out marketplace.Testimonial
	err := s.insertOne(ctx, "testimonials", t, &out, "testimonial", t.ID)
	return out, err
}

func (s *Store) GetTestimonial(ctx context.Context, id string) (marketplace.Testimonial, error) {
	var out marketplace.Testimonial
	err := s.getOne(ctx, s.c.From("testimonials").Select("*").Eq("id", id), &out, "testimonial", id)
	return out, err
}

func (s *Store) ListTestimonials(ctx context.Context, expertID string) ([]marketplace.Testimonial, error) {
	q := s.c.From("testimonials").Select("*")
	if expertID != "" {
		q = q.Eq("expert_id", expertID)
	}
	out := []marketplace.Testimonial{}
	err := s.list(ctx, q.Order("created_at", false), &out)
	return out, err
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	return s.deleteSome(ctx, s.c.From("testimonials").Eq("id", id), "testimonial", id)
}

// --- IdentityStore -----------------------------------------------------------
// Only used when the local auth provider runs against a hosted database.

type identityRow struct {
	identity.Identity
	PasswordHash string `json:"password_hash"`
}

func (s *Store) CreateIdentity(ctx context.Context, cred identity.Credential) (identity.Credential, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.Email = strings.ToLower(strings.TrimSpace(cred.Email))
	cred.CreatedAt = s.now()
	var out identityRow
	err := s.insertOne(ctx, "identities", identityRow{Identity: cred.Identity, PasswordHash: cred.PasswordHash}, &out, "identity", cred.Email)
	return identity.Credential{Identity: out.Identity, PasswordHash: out.PasswordHash}, err
}

func (s *Store) GetIdentity(ctx context.Context, id string) (identity.Credential, error) {
	var out identityRow
	err := s.getOne(ctx, s.c.From("identities").Select("*").Eq("id", id), &out, "identity", id)
	return identity.Credential{Identity: out.Identity, PasswordHash: out.PasswordHash}, err
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (identity.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out identityRow
	err := s.getOne(ctx, s.c.From("identities").Select("*").Eq("email", email), &out, "identity", email)
	return identity.Credential{Identity: out.Identity, PasswordHash: out.PasswordHash}, err
}
