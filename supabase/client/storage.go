package client

import (
	"context"
	"net/http"
)

// StorageClient calls the storage API under /storage/v1.
type StorageClient struct {
	client *Client
}

// Storage returns the object storage API.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{client: c}
}

// BucketClient addresses objects inside one bucket.
type BucketClient struct {
	client *Client
	bucket string
}

// From selects bucket.
func (s *StorageClient) From(bucket string) *BucketClient {
	return &BucketClient{client: s.client, bucket: bucket}
}

func (b *BucketClient) objectURL(objectPath string) string {
	return b.client.baseURL + "/storage/v1/object/" + b.bucket + "/" + objectPath
}

// Upload stores data at objectPath, replacing any existing object.
func (b *BucketClient) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (*Response, error) {
	req, err := b.client.newRequest(ctx, http.MethodPost, b.objectURL(objectPath), data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	return b.client.do(req)
}

// Delete removes the objects at paths.
func (b *BucketClient) Delete(ctx context.Context, paths []string) (*Response, error) {
	req, err := b.client.newRequest(ctx, http.MethodDelete, b.client.baseURL+"/storage/v1/object/"+b.bucket,
		map[string][]string{"prefixes": paths})
	if err != nil {
		return nil, err
	}
	return b.client.do(req)
}

// GetPublicURL returns the URL a public bucket serves objectPath at.
func (b *BucketClient) GetPublicURL(objectPath string) string {
	return b.client.baseURL + "/storage/v1/object/public/" + b.bucket + "/" + objectPath
}
