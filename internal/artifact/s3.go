package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Getter is the subset of the S3 client used to download artifacts
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds object storage settings for runners that upload results
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO
	Endpoint string
}

// S3Fetcher downloads s3://bucket/key artifacts directly from object storage
type S3Fetcher struct {
	client S3Getter
}

// NewS3Fetcher builds a fetcher from static or default AWS credentials
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3FetcherWithClient(client), nil
}

// NewS3FetcherWithClient wraps an existing S3 client
func NewS3FetcherWithClient(client S3Getter) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// Scheme implements transport.ArtifactFetcher
func (f *S3Fetcher) Scheme() string {
	return "s3"
}

// Fetch streams the object addressed by locator
func (f *S3Fetcher) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	loc, ok := ParseLocator(locator)
	if !ok || loc.Scheme != f.Scheme() {
		return nil, fmt.Errorf("invalid s3 locator %q", locator)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3 object %s: %w", locator, err)
	}

	return out.Body, nil
}
