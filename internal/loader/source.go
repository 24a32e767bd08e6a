package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
)

// BlobSource hands out the raw bytes of a named data file.
type BlobSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Name() string
}

// DirSource reads files from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Name() string { return "dir" }

func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, filepath.Clean("/"+name)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// HTTPSource fetches files relative to a base URL, typically an open-data
// portal. Transport errors and 5xx responses are retried; 4xx are not.
type HTTPSource struct {
	BaseURL    string
	Client     *http.Client
	MaxRetries uint64
	RetryDelay time.Duration
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, name)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	retries := s.MaxRetries
	if retries == 0 {
		retries = 3
	}
	delay := s.RetryDelay
	if delay == 0 {
		delay = 200 * time.Millisecond
	}

	var resp *http.Response
	err = backoff.Retry(
		func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if reqErr != nil {
				return backoff.Permanent(reqErr)
			}
			r, httpErr := client.Do(req)
			if httpErr != nil {
				return fmt.Errorf("get %s: %w", u, httpErr)
			}
			if r.StatusCode != http.StatusOK {
				_ = r.Body.Close()
				statusErr := fmt.Errorf("get %s: status %d", u, r.StatusCode)
				if r.StatusCode < 500 {
					return backoff.Permanent(statusErr)
				}
				return statusErr
			}
			resp = r
			return nil
		},
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(backoff.WithInitialInterval(delay)), retries),
			ctx,
		),
	)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// S3Config selects the bucket and, for MinIO style deployments, an explicit
// endpoint with path-style addressing.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// S3Source reads objects from a single bucket under an optional prefix.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Source) Name() string { return "s3" }

func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(s.prefix, name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}
