package archive

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

const uploadPartSize = 5 * 1024 * 1024 // 5MB

// S3Store uploads archives to an S3 bucket. Credentials come from the
// default AWS chain: environment, shared config or instance role.
type S3Store struct {
	bucket   string
	uploader *manager.Uploader
}

// NewS3Store loads the AWS configuration for region
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	return NewS3StoreFromClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3StoreFromClient uses an existing client
func NewS3StoreFromClient(client manager.UploadAPIClient, bucket string) *S3Store {
	return &S3Store{
		bucket: bucket,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
			u.Concurrency = 1
		}),
	}
}

// Put implements Store
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(meta.ContentType),
		Metadata:    map[string]string{"run-id": meta.RunID},
	}
	if meta.ContentEncoding != "" {
		input.ContentEncoding = aws.String(meta.ContentEncoding)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload archive to S3").
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}
	return nil
}

// Location implements Store
func (s *S3Store) Location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// Close implements Store
func (s *S3Store) Close() error { return nil }
