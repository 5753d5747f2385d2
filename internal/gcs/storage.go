// Package gcs reads ledger snapshots from and writes reports to Google Cloud
// Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
)

const uploadTimeout = 2 * time.Minute

var _ pipeline.StorageService = (*Service)(nil)

// Service is the Cloud Storage implementation of pipeline.StorageService.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type Service struct {
	client *storage.Client
}

// NewService creates a service with its own storage client.
func NewService(ctx context.Context) (*Service, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewService: create storage client: %w", err)
	}
	return &Service{client: client}, nil
}

// Close closes the storage client.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func (s *Service) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// UploadBytes writes data to bucketName/objectName.
func (s *Service) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	return s.upload(ctx, bucketName, objectName, bytes.NewReader(data), contentType)
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func (s *Service) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	return s.upload(ctx, bucketName, objectName, f, "")
}

func (s *Service) upload(ctx context.Context, bucketName, objectName string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s/%s: copy to GCS writer: %w", bucketName, objectName, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s/%s: finalize: %w", bucketName, objectName, err)
	}

	return nil
}
