package archive

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// GCSStore writes archives to a Cloud Storage bucket
type GCSStore struct {
	bucket string
	client *storage.Client
	handle *storage.BucketHandle
}

// NewGCSStore uses credentialsFile when set, application default
// credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string, extra ...option.ClientOption) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return &GCSStore{
		bucket: bucket,
		client: client,
		handle: client.Bucket(bucket),
	}, nil
}

// Put implements Store
func (s *GCSStore) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	w := s.handle.Object(key).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.ContentEncoding = meta.ContentEncoding
	w.Metadata = map[string]string{"run-id": meta.RunID}

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload archive to GCS").
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize GCS object").
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}
	return nil
}

// Location implements Store
func (s *GCSStore) Location(key string) string {
	return "gs://" + s.bucket + "/" + key
}

// Close implements Store
func (s *GCSStore) Close() error {
	return s.client.Close()
}
