// Package blob stores uploaded media and returns the public URL it is served from.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store uploads and removes objects in named buckets.
type Store interface {
	// Upload writes data at bucket/objectPath, replacing any existing object,
	// and returns its public URL.
	Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, bucket, objectPath string) error
}

// ObjectPath builds a unique object path under owner, keeping filename's extension.
func ObjectPath(owner, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return owner + "/" + uuid.NewString() + ext
}

// MediaType classifies a content type as image or video, the two kinds the
// marketplace renders. Anything else is "file".
func MediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "file"
	}
}

// File is an upload received from a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether no file was provided.
func (f *File) Empty() bool {
	return f == nil || len(f.Data) == 0
}

// Put uploads f under owner in bucket and returns its public URL.
func Put(ctx context.Context, store Store, bucket, owner string, f *File) (string, error) {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return store.Upload(ctx, bucket, ObjectPath(owner, f.Name), f.Data, contentType)
}
