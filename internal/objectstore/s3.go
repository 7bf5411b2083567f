package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store writes cached images to an S3-compatible bucket, extending the
// aws-sdk-go-v2 core/config/credentials family already part of the corpus's
// dependency graph with its s3 service package.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	publicBaseURL string
}

// S3Config configures the bucket and optional custom endpoint (for
// S3-compatible providers such as MinIO or R2).
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	PublicBaseURL   string
}

// NewS3Store builds an S3Store from S3Config. Endpoint is optional; when
// set, path-style addressing is used (required by most non-AWS providers).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Put uploads data under prefix+key and returns the public URL.
func (s *S3Store) Put(key string, data []byte, contentType string) (string, error) {
	fullKey := s.prefix + key
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", fullKey, err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + fullKey, nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, fullKey), nil
}
