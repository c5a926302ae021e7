package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"CrmAPI/internal/config"
	"CrmAPI/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gobreaker "github.com/sony/gobreaker/v2"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 stores blobs in an S3-compatible bucket behind a circuit breaker.
type S3 struct {
	client s3API
	bucket string
	cb     *gobreaker.CircuitBreaker[any]
}

// NewS3 loads AWS configuration for cfg.Region. A non-empty endpoint enables
// path-style addressing (MinIO and similar).
func NewS3(ctx context.Context, cfg config.BlobConfig) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3(s3.NewFromConfig(awsCfg, opts...), cfg.Bucket), nil
}

func newS3(client s3API, bucket string) *S3 {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "blob-s3",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state", map[string]any{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return &S3{client: client, bucket: bucket, cb: cb}
}

var errNotFound = errors.New("blob: object not found")

func (s *S3) Put(ctx context.Context, folder, filename string, body io.Reader, contentType string) (string, error) {
	key, err := objectPath(folder, filename)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.cb.Execute(func() (any, error) {
		return s.client.PutObject(ctx, in)
	}); err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return key, nil
}

func (s *S3) Delete(ctx context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	if _, err := s.cb.Execute(func() (any, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	}); err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, p string) (bool, error) {
	key, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = s.cb.Execute(func() (any, error) {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, errNotFound
		}
		return out, err
	})
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("s3 head object: %w", err)
	}
	return true, nil
}
