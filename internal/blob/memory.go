package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in process. Objects are served by the HTTP layer
// under /media/{bucket}/{path}.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// NewMemoryStore creates an empty store whose URLs are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *MemoryStore) Upload(_ context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	if bucket == "" || objectPath == "" {
		return "", fmt.Errorf("bucket and path are required")
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key(bucket, objectPath)] = Object{Data: buf, ContentType: contentType}
	m.mu.Unlock()
	return m.URL(bucket, objectPath), nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(bucket, objectPath)
	if _, ok := m.objects[k]; !ok {
		return ErrNotFound
	}
	delete(m.objects, k)
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, objectPath string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key(bucket, objectPath)]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// URL is the public URL of bucket/objectPath.
func (m *MemoryStore) URL(bucket, objectPath string) string {
	return m.baseURL + "/media/" + bucket + "/" + strings.TrimLeft(objectPath, "/")
}

func key(bucket, objectPath string) string {
	return bucket + "/" + strings.TrimLeft(objectPath, "/")
}
