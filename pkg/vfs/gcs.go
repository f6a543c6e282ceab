package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSProvider serves gs:// URIs.
type GCSProvider struct {
	client *storage.Client
}

// NewGCSProvider wraps a GCS client.
func NewGCSProvider(client *storage.Client) *GCSProvider {
	return &GCSProvider{client: client}
}

// ReadFile implements FileProvider.
func (p *GCSProvider) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	bucket, object := SplitBucketKey(StripScheme(uri))
	r, err := p.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", uri, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// FileExists implements FileProvider.
func (p *GCSProvider) FileExists(ctx context.Context, uri string) (bool, error) {
	bucket, object := SplitBucketKey(StripScheme(uri))
	_, err := p.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs stat %s: %w", uri, err)
	}
	return true, nil
}

// ListFiles implements FileProvider.
func (p *GCSProvider) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	bucket, prefix := SplitBucketKey(StripScheme(dir))
	it := p.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", dir, err)
		}
		ok, err := path.Match(pattern, path.Base(attrs.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid glob %s: %w", pattern, err)
		}
		if ok {
			out = append(out, "gs://"+bucket+"/"+attrs.Name)
		}
	}
}
