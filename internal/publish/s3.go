// Package publish uploads finished archives to S3-compatible storage.
package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/naming"
)

// S3Publisher uploads archives under a key prefix in one bucket.
type S3Publisher struct {
	bucket   string
	prefix   string
	uploader *s3manager.Uploader
}

// NewS3Publisher builds a publisher from cfg. Static credentials are used
// when both keys are set; otherwise the SDK's default chain applies
// (environment, shared config, instance role).
func NewS3Publisher(cfg config.S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3: create session: %w", err)
	}
	return &S3Publisher{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Key is the object key zipPath is stored under.
func (p *S3Publisher) Key(zipPath string) string {
	return naming.ArchiveKey(p.prefix, zipPath)
}

// Publish uploads zipPath and returns its s3:// location. The local file
// is never modified.
func (p *S3Publisher) Publish(ctx context.Context, zipPath string) (string, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := p.Key(zipPath)
	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}
