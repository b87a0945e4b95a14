package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/marketplace"
)

const itemColumns = `id, expert_id, title, description, price, item_type, media_url, media_type, created_at`

func (s *Store) CreateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = s.now()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO marketplace_items (`+itemColumns+`)
		VALUES (:id, :expert_id, :title, :description, :price, :item_type, :media_url, :media_type, :created_at)
	`, item)
	if err != nil {
		return marketplace.Item{}, mapError(err, "marketplace item", item.ID)
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (marketplace.Item, error) {
	var item marketplace.Item
	err := s.db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM marketplace_items WHERE id = $1`, id)
	return item, mapError(err, "marketplace item", id)
}

func (s *Store) UpdateItem(ctx context.Context, item marketplace.Item) (marketplace.Item, error) {
	var out marketplace.Item
	err := s.db.GetContext(ctx, &out, `
		UPDATE marketplace_items
		SET title = $2, description = $3, price = $4, item_type = $5, media_url = $6, media_type = $7
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Title, item.Description, item.Price, item.ItemType, item.MediaURL, item.MediaType)
	return out, mapError(err, "marketplace item", item.ID)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM marketplace_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "marketplace item", id)
}

func (s *Store) ListItems(ctx context.Context) ([]marketplace.Item, error) {
	out := []marketplace.Item{}
	err := s.db.SelectContext(ctx, &out, `SELECT `+itemColumns+` FROM marketplace_items ORDER BY created_at DESC`)
	return out, err
}

func (s *Store) ListItemsByExpert(ctx context.Context, expertID string) ([]marketplace.Item, error) {
	out := []marketplace.Item{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+itemColumns+` FROM marketplace_items WHERE expert_id = $1 ORDER BY created_at DESC
	`, expertID)
	return out, err
}

const testimonialColumns = `id, expert_id, media_url, media_type, video_url, created_at`

func (s *Store) CreateTestimonial(ctx context.Context, t marketplace.Testimonial) (marketplace.Testimonial, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = s.now()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO testimonials (`+testimonialColumns+`)
		VALUES (:id, :expert_id, :media_url, :media_type, :video_url, :created_at)
	`, t)
	if err != nil {
		return marketplace.Testimonial{}, mapError(err, "testimonial", t.ID)
	}
	return t, nil
}

func (s *Store) GetTestimonial(ctx context.Context, id string) (marketplace.Testimonial, error) {
	var t marketplace.Testimonial
	err := s.db.GetContext(ctx, &t, `SELECT `+testimonialColumns+` FROM testimonials WHERE id = $1`, id)
	return t, mapError(err, "testimonial", id)
}

func (s *Store) ListTestimonials(ctx context.Context, expertID string) ([]marketplace.Testimonial, error) {
	out := []marketplace.Testimonial{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+testimonialColumns+` FROM testimonials
		WHERE ($1::text = '' OR expert_id = $1)
		ORDER BY created_at DESC
	`, expertID)
	return out, err
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM testimonials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "testimonial", id)
}
