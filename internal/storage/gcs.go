package storage

import (
	"context"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// GCS stores avatars in a publicly readable Google Cloud Storage bucket.
// Credentials come from the usual Application Default Credentials chain.
type GCS struct {
	client *gcs.Client
	bucket string
	folder string
}

func NewGCS(ctx context.Context, bucket, folder string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCS{
		client: client,
		bucket: bucket,
		folder: strings.Trim(folder, "/"),
	}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	objectPath := name
	if g.folder != "" {
		objectPath = g.folder + "/" + name
	}

	w := g.client.Bucket(g.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gs://%s/%s: %w", g.bucket, objectPath, err)
	}

	return PublicGCSURL(g.bucket, objectPath), nil
}

// PublicGCSURL builds the public https URL for an object.
func PublicGCSURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
