package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage/memory"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/pkg/logger"
	"github.com/marketbridge/platform/pkg/testutil"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) (*Service, profile.Profile, profile.Profile) {
	t.Helper()
	store := memory.New()
	expert := testutil.Expert(t, store, "exp", "Grace", nil)
	investor := testutil.Investor(t, store, "inv", "Ada")
	svc := New(store, store, blob.NewMemoryStore("http://test"), Buckets{Items: "marketplace", Testimonials: "testimonials"}, logger.NewDiscard())
	return svc, expert, investor
}

func TestItemLifecycle(t *testing.T) {
	svc, expert, investor := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateItem(ctx, investor.ID, ItemInput{Title: ptr("x")}); !errors.Is(err, services.ErrNotExpert) {
		t.Fatalf("expected ErrNotExpert, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, expert.ID, ItemInput{Title: ptr("x"), Price: ptr(-5.0)}); !services.IsInvalid(err) {
		t.Fatalf("expected price validation, got %v", err)
	}

	item, err := svc.CreateItem(ctx, expert.ID, ItemInput{
		Title: ptr("Options course"),
		Price: ptr(49.0),
		Media: &blob.File{Name: "intro.mp4", ContentType: "video/mp4", Data: []byte("mp4")},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.MediaType != "video" || item.ItemType != "course" {
		t.Fatalf("unexpected item: %+v", item)
	}

	if _, err := svc.UpdateItem(ctx, investor.ID, item.ID, ItemInput{Price: ptr(1.0)}); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	updated, err := svc.UpdateItem(ctx, expert.ID, item.ID, ItemInput{Price: ptr(39.0)})
	if err != nil || updated.Price != 39 || updated.Title != "Options course" {
		t.Fatalf("update: %+v %v", updated, err)
	}

	listing, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Items) != 1 || listing.Sellers[expert.ID].Name != "Grace" {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	if err := svc.ContactExpert(ctx, investor.ID, item.ID); !errors.Is(err, ErrContactUnavailable) {
		t.Fatalf("expected ErrContactUnavailable, got %v", err)
	}

	if err := svc.DeleteItem(ctx, expert.ID, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	listing, _ = svc.List(ctx)
	if len(listing.Items) != 0 || len(listing.Sellers) != 0 {
		t.Fatalf("expected empty listing: %+v", listing)
	}
}

// countingStore records uploads that reach the blob store.
type countingStore struct {
	*blob.MemoryStore
	uploads int
}

func (c *countingStore) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	c.uploads++
	return c.MemoryStore.Upload(ctx, bucket, objectPath, data, contentType)
}

func TestRejectedItemUploadsNothing(t *testing.T) {
	store := memory.New()
	expert := testutil.Expert(t, store, "exp", "Grace", nil)
	media := &countingStore{MemoryStore: blob.NewMemoryStore("http://test")}
	svc := New(store, store, media, Buckets{Items: "marketplace", Testimonials: "testimonials"}, logger.NewDiscard())
	ctx := context.Background()
	clip := &blob.File{Name: "intro.mp4", ContentType: "video/mp4", Data: []byte("mp4")}

	if _, err := svc.CreateItem(ctx, expert.ID, ItemInput{Media: clip}); !services.IsInvalid(err) {
		t.Fatalf("expected missing title to be rejected, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, expert.ID, ItemInput{Title: ptr("x"), Price: ptr(-1.0), Media: clip}); !services.IsInvalid(err) {
		t.Fatalf("expected price validation, got %v", err)
	}

	item, err := svc.CreateItem(ctx, expert.ID, ItemInput{Title: ptr("Options course")})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := svc.UpdateItem(ctx, expert.ID, item.ID, ItemInput{Title: ptr(""), Media: clip}); !services.IsInvalid(err) {
		t.Fatalf("expected empty title to be rejected, got %v", err)
	}
	if media.uploads != 0 {
		t.Fatalf("rejected edits uploaded %d objects", media.uploads)
	}

	if _, err := svc.UpdateItem(ctx, expert.ID, item.ID, ItemInput{Media: clip}); err != nil {
		t.Fatalf("attach media: %v", err)
	}
	if media.uploads != 1 {
		t.Fatalf("expected one upload, got %d", media.uploads)
	}
}

func TestTestimonials(t *testing.T) {
	svc, expert, investor := newService(t)
	ctx := context.Background()

	if _, err := svc.AddTestimonial(ctx, expert.ID, TestimonialInput{}); !services.IsInvalid(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	img, err := svc.AddTestimonial(ctx, expert.ID, TestimonialInput{Media: &blob.File{Name: "t.jpg", ContentType: "image/jpeg", Data: []byte("j")}})
	if err != nil || img.MediaType != "image" {
		t.Fatalf("add image testimonial: %+v %v", img, err)
	}
	vid, err := svc.AddTestimonial(ctx, expert.ID, TestimonialInput{VideoURL: "https://video.example/1"})
	if err != nil || vid.MediaType != "video" {
		t.Fatalf("add video testimonial: %+v %v", vid, err)
	}

	list, _ := svc.ListTestimonials(ctx, expert.ID)
	if len(list) != 2 {
		t.Fatalf("expected 2 testimonials, got %d", len(list))
	}
	if err := svc.DeleteTestimonial(ctx, investor.ID, img.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteTestimonial(ctx, expert.ID, img.ID); err != nil {
		t.Fatalf("delete testimonial: %v", err)
	}
}
