package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source reads objects back for the /media route.
type Source interface {
	Get(bucket, objectPath string) (Object, error)
}

var (
	_ Store  = (*FileStore)(nil)
	_ Source = (*FileStore)(nil)
	_ Store  = (*MemoryStore)(nil)
	_ Source = (*MemoryStore)(nil)
)

// FileStore keeps objects under root/{bucket}/{path}. Point root at a
// volume shared by every instance when more than one serves /media.
type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore creates root if needed. URLs are rooted at baseURL like MemoryStore's.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: storage directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", abs, err)
	}
	return &FileStore{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (f *FileStore) Upload(_ context.Context, bucket, objectPath string, data []byte, _ string) (string, error) {
	target, err := f.locate(bucket, objectPath)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blob: create %s: %w", dir, err)
	}

	// Write then rename so readers never see a partial object.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: write %s/%s: %w", bucket, objectPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: write %s/%s: %w", bucket, objectPath, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: store %s/%s: %w", bucket, objectPath, err)
	}
	return f.URL(bucket, objectPath), nil
}

func (f *FileStore) Delete(_ context.Context, bucket, objectPath string) error {
	target, err := f.locate(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("blob: delete %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Get reads an object. The content type comes from the extension, falling
// back to sniffing the data.
func (f *FileStore) Get(bucket, objectPath string) (Object, error) {
	target, err := f.locate(bucket, objectPath)
	if err != nil {
		return Object{}, ErrNotFound
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("blob: read %s/%s: %w", bucket, objectPath, err)
	}
	ct := mime.TypeByExtension(path.Ext(objectPath))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Object{Data: data, ContentType: ct}, nil
}

// URL is the public URL of bucket/objectPath.
func (f *FileStore) URL(bucket, objectPath string) string {
	return f.baseURL + "/media/" + bucket + "/" + strings.TrimLeft(objectPath, "/")
}

// locate maps bucket/objectPath to a file under root, rejecting paths that
// would escape it.
func (f *FileStore) locate(bucket, objectPath string) (string, error) {
	objectPath = strings.TrimLeft(objectPath, "/")
	if bucket == "" || objectPath == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("blob: invalid object %q/%q", bucket, objectPath)
	}
	for _, seg := range strings.Split(objectPath, "/") {
		if seg == ".." || seg == "." || seg == "" || strings.HasPrefix(seg, ".upload-") {
			return "", fmt.Errorf("blob: invalid object path %q", objectPath)
		}
	}
	target := filepath.Join(f.root, bucket, filepath.FromSlash(objectPath))
	if !strings.HasPrefix(target, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: invalid object path %q", objectPath)
	}
	return target, nil
}
