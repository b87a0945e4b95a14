package blob

import (
	"context"

	"github.com/marketbridge/platform/supabase/client"
)

// SupabaseStore keeps objects in public storage buckets.
type SupabaseStore struct {
	client *client.Client
}

// NewSupabaseStore creates a store over c.
func NewSupabaseStore(c *client.Client) *SupabaseStore {
	return &SupabaseStore{client: c}
}

func (s *SupabaseStore) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	b := s.client.Storage().From(bucket)
	if _, err := b.Upload(ctx, objectPath, data, contentType); err != nil {
		return "", err
	}
	return b.GetPublicURL(objectPath), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, bucket, objectPath string) error {
	_, err := s.client.Storage().From(bucket).Delete(ctx, []string{objectPath})
	return err
}
