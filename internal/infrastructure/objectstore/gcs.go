// Package objectstore stores and fetches document bytes (statement
// PDFs, cropped check images) in Google Cloud Storage.
//
// Objects are addressed by gs:// URIs so references can be persisted
// as plain strings. Application Default Credentials are assumed
// (gcloud auth application-default login).
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Store reads and writes opaque objects addressed by URI.
type Store interface {
	// Put uploads data and returns the object's URI.
	Put(ctx context.Context, objectName string, contentType string, data []byte) (string, error)

	// Fetch downloads the object at the given URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCS implements Store on a single Google Cloud Storage bucket.
type GCS struct {
	bucket string
}

var _ Store = (*GCS)(nil)

// NewGCS creates a store for the given bucket.
func NewGCS(bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket name is required")
	}
	return &GCS{bucket: bucket}, nil
}

// Put uploads data under objectName and returns its gs:// URI.
func (g *GCS) Put(ctx context.Context, objectName string, contentType string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %q: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, objectName), nil
}

// Fetch downloads the object bytes for a gs:// URI.
func (g *GCS) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}

// ParseURI splits a gs://bucket/path URI into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
