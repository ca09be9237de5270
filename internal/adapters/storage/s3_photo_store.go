package storage

import (
	"context"
	"delivery-batch-service/internal/config"
	"delivery-batch-service/internal/platform/obs"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PhotoStore uploads proof-of-delivery photos and returns their public URL.
type S3PhotoStore struct {
	client           objectPutter
	bucket           string
	region           string
	cloudFrontDomain string
}

func NewS3PhotoStore(ctx context.Context, cfg config.S3Config) (*S3PhotoStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 photo store: bucket is empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	// Static keys win; otherwise the default chain (env, profile, role) applies.
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3PhotoStore{
		client:           s3.NewFromConfig(sdkConfig),
		bucket:           cfg.Bucket,
		region:           cfg.Region,
		cloudFrontDomain: strings.TrimSpace(cfg.CloudFrontDomain),
	}, nil
}

func (s *S3PhotoStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (_ string, err error) {
	defer obs.Time(ctx, "photo.s3.Put")(&err)

	if key == "" {
		return "", errors.New("put photo: key is empty")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo %q: %w", key, err)
	}

	return s.objectURL(key), nil
}

func (s *S3PhotoStore) objectURL(key string) string {
	if s.cloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cloudFrontDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PhotoKey builds a unique object key for a stop's proof-of-delivery photo.
func PhotoKey(batchID, stopID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("deliveries/%s/%s/%s%s", batchID, stopID, uuid.NewString(), ext)
}
