// Package blobstore keeps uploaded statement bytes in Google Cloud Storage.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/wyat/capital/internal/extraction"
)

const uploadTimeout = 2 * time.Minute

// GCS is an extraction.BlobStore over one bucket. Blob ids are object
// names, or full gs:// URIs which may name another bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a storage client using Application Default Credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCS: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: creating storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) locate(blobID string) (bucket, object string, err error) {
	if strings.HasPrefix(blobID, "gs://") {
		return ParseURI(blobID)
	}
	if blobID == "" {
		return "", "", fmt.Errorf("empty blob id")
	}
	return g.bucket, blobID, nil
}

// Get downloads the object bytes.
func (g *GCS) Get(ctx context.Context, blobID string) ([]byte, error) {
	bucket, object, err := g.locate(blobID)
	if err != nil {
		return nil, fmt.Errorf("GCS.Get: %w", err)
	}
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCS.Get: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCS.Get: reading bytes: %w", err)
	}
	return data, nil
}

// Put uploads data under blobID.
func (g *GCS) Put(ctx context.Context, blobID string, data []byte, contentType string) error {
	bucket, object, err := g.locate(blobID)
	if err != nil {
		return fmt.Errorf("GCS.Put: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCS.Put: writing %s/%s: %w", bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCS.Put: finalizing %s/%s: %w", bucket, object, err)
	}
	return nil
}

// URI returns the gs:// form of blobID in this store.
func (g *GCS) URI(blobID string) string {
	if strings.HasPrefix(blobID, "gs://") {
		return blobID
	}
	return "gs://" + g.bucket + "/" + blobID
}

// ParseURI splits gs://bucket/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a gs:// URI, e.g.
// "gs://bucket/folder/file.pdf" gives "file.pdf".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ extraction.BlobStore = (*GCS)(nil)
