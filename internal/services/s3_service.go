package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"contacts-crm/config"
	"contacts-crm/internal/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3Service struct {
	s3Client s3iface.S3API
	config   config.S3Config
}

func NewS3Service(cfg config.S3Config) (*S3Service, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating s3 session: %w", err)
	}

	return &S3Service{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// NewS3ServiceWithClient wraps an existing client, e.g. a stub in tests.
func NewS3ServiceWithClient(client s3iface.S3API, cfg config.S3Config) *S3Service {
	return &S3Service{s3Client: client, config: cfg}
}

// BackupBucket is the bucket migrate snapshots go to; empty disables backups.
func (s *S3Service) BackupBucket() string {
	return s.config.BackupBucket
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, found := strings.CutPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !found || !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q", uri)
	}
	return bucket, key, nil
}

func (s *S3Service) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3Service) UploadBytes(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	utils.LogInfo("Uploading to S3: s3://%s/%s", bucket, key)

	params := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return "", fmt.Errorf("error uploading to s3: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
