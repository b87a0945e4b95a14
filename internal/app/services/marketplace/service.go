// Package marketplace lists what experts sell and the testimonials vouching for them.
package marketplace

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/marketplace"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/pkg/logger"
)

// ErrContactUnavailable is returned by ContactExpert, which has no delivery channel.
var ErrContactUnavailable = errors.New("contacting experts is not available yet")

// Buckets names the upload buckets.
type Buckets struct {
	Items        string
	Testimonials string
}

// Service manages marketplace items and testimonials.
type Service struct {
	store    storage.MarketplaceStore
	profiles storage.ProfileStore
	blobs    blob.Store
	buckets  Buckets
	log      *logger.Logger
}

// New constructs a marketplace service.
func New(store storage.MarketplaceStore, profiles storage.ProfileStore, blobs blob.Store, buckets Buckets, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("marketplace")
	}
	return &Service{store: store, profiles: profiles, blobs: blobs, buckets: buckets, log: log}
}

// ItemInput is a new or edited item. Nil fields are left unchanged on update.
type ItemInput struct {
	Title       *string
	Description *string
	Price       *float64
	ItemType    *string
	Media       *blob.File
}

// Listing is the marketplace with each seller's profile resolved.
type Listing struct {
	Items   []marketplace.Item         `json:"items"`
	Sellers map[string]profile.Profile `json:"sellers"`
}

// CreateItem lists a new item for expertID.
func (s *Service) CreateItem(ctx context.Context, expertID string, in ItemInput) (marketplace.Item, error) {
	if err := s.requireExpert(ctx, expertID); err != nil {
		return marketplace.Item{}, err
	}
	item := marketplace.Item{ExpertID: expertID, ItemType: "course"}
	if err := apply(&item, in); err != nil {
		return marketplace.Item{}, err
	}
	if item.Title == "" {
		return marketplace.Item{}, services.Invalid("title is required")
	}
	if err := s.attachMedia(ctx, &item, in.Media); err != nil {
		return marketplace.Item{}, err
	}
	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return marketplace.Item{}, err
	}
	s.log.WithField("item_id", created.ID).
		WithField("expert_id", expertID).
		Info("marketplace item created")
	return created, nil
}

// UpdateItem edits an item. Only its seller may edit it.
func (s *Service) UpdateItem(ctx context.Context, expertID, id string, in ItemInput) (marketplace.Item, error) {
	item, err := s.ownedItem(ctx, expertID, id)
	if err != nil {
		return marketplace.Item{}, err
	}
	if err := apply(&item, in); err != nil {
		return marketplace.Item{}, err
	}
	if item.Title == "" {
		return marketplace.Item{}, services.Invalid("title cannot be empty")
	}
	if err := s.attachMedia(ctx, &item, in.Media); err != nil {
		return marketplace.Item{}, err
	}
	return s.store.UpdateItem(ctx, item)
}

// DeleteItem removes an item. Only its seller may delete it.
func (s *Service) DeleteItem(ctx context.Context, expertID, id string) error {
	if _, err := s.ownedItem(ctx, expertID, id); err != nil {
		return err
	}
	return s.store.DeleteItem(ctx, id)
}

// List returns every item, newest first, with the profiles of the sellers
// present, fetched in a single query.
func (s *Service) List(ctx context.Context) (Listing, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return Listing{}, err
	}
	sellers := make(map[string]profile.Profile)
	ids := distinctSellers(items)
	if len(ids) > 0 {
		profiles, err := s.profiles.ListProfilesByIDs(ctx, ids)
		if err != nil {
			return Listing{}, err
		}
		for _, p := range profiles {
			sellers[p.ID] = p
		}
	}
	return Listing{Items: items, Sellers: sellers}, nil
}

// ListByExpert returns expertID's items.
func (s *Service) ListByExpert(ctx context.Context, expertID string) ([]marketplace.Item, error) {
	return s.store.ListItemsByExpert(ctx, expertID)
}

// ContactExpert would message the seller of an item. No channel exists.
func (s *Service) ContactExpert(ctx context.Context, userID, itemID string) error {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return err
	}
	return ErrContactUnavailable
}

// TestimonialInput is a new testimonial. Media is required unless VideoURL is set.
type TestimonialInput struct {
	Media    *blob.File
	VideoURL string
}

// AddTestimonial attaches a testimonial to expertID.
func (s *Service) AddTestimonial(ctx context.Context, expertID string, in TestimonialInput) (marketplace.Testimonial, error) {
	if err := s.requireExpert(ctx, expertID); err != nil {
		return marketplace.Testimonial{}, err
	}
	t := marketplace.Testimonial{ExpertID: expertID, VideoURL: strings.TrimSpace(in.VideoURL)}
	switch {
	case !in.Media.Empty():
		url, err := s.upload(ctx, s.buckets.Testimonials, expertID, in.Media)
		if err != nil {
			return marketplace.Testimonial{}, err
		}
		t.MediaURL = url
		t.MediaType = blob.MediaType(in.Media.ContentType)
	case t.VideoURL != "":
		t.MediaURL = t.VideoURL
		t.MediaType = "video"
	default:
		return marketplace.Testimonial{}, services.Invalid("media or video_url is required")
	}
	return s.store.CreateTestimonial(ctx, t)
}

// ListTestimonials returns expertID's testimonials.
func (s *Service) ListTestimonials(ctx context.Context, expertID string) ([]marketplace.Testimonial, error) {
	return s.store.ListTestimonials(ctx, expertID)
}

// DeleteTestimonial removes a testimonial. Only the expert it belongs to may delete it.
func (s *Service) DeleteTestimonial(ctx context.Context, expertID, id string) error {
	t, err := s.store.GetTestimonial(ctx, id)
	if err != nil {
		return err
	}
	if t.ExpertID != expertID {
		return services.ErrForbidden
	}
	return s.store.DeleteTestimonial(ctx, id)
}

// apply copies the edited fields onto item. Media is handled by attachMedia
// once every check has passed, so a rejected edit uploads nothing.
func apply(item *marketplace.Item, in ItemInput) error {
	if in.Title != nil {
		item.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price < 0 || math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0) {
			return services.Invalid("price must be zero or more")
		}
		item.Price = *in.Price
	}
	if in.ItemType != nil {
		if t := strings.TrimSpace(*in.ItemType); t != "" {
			item.ItemType = strings.ToLower(t)
		}
	}
	return nil
}

func (s *Service) attachMedia(ctx context.Context, item *marketplace.Item, media *blob.File) error {
	if media.Empty() {
		return nil
	}
	url, err := s.upload(ctx, s.buckets.Items, item.ExpertID, media)
	if err != nil {
		return err
	}
	item.MediaURL = url
	item.MediaType = blob.MediaType(media.ContentType)
	return nil
}

func (s *Service) ownedItem(ctx context.Context, expertID, id string) (marketplace.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return marketplace.Item{}, err
	}
	if item.ExpertID != expertID {
		return marketplace.Item{}, services.ErrForbidden
	}
	return item, nil
}

func (s *Service) requireExpert(ctx context.Context, id string) error {
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsExpert() {
		return services.ErrNotExpert
	}
	return nil
}

func (s *Service) upload(ctx context.Context, bucket, owner string, f *blob.File) (string, error) {
	if s.blobs == nil {
		return "", services.Invalid("uploads are not configured")
	}
	return blob.Put(ctx, s.blobs, bucket, owner, f)
}

func distinctSellers(items []marketplace.Item) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.ExpertID] {
			seen[item.ExpertID] = true
			ids = append(ids, item.ExpertID)
		}
	}
	return ids
}
