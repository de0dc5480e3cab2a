package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/marmos91/idhost/internal/logger"
)

// S3Store is an S3-backed implementation of Store, keyed by opaque
// per-image tokens under an optional prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	mu     sync.RWMutex
	closed bool
}

// NewS3Store creates a new S3 image store using an existing client.
func NewS3Store(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// NewS3StoreFromConfig builds an S3 client from cfg and returns a Store
// backed by it.
func NewS3StoreFromConfig(cfg S3Config) (*S3Store, error) {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("images: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewS3Store(client, cfg), nil
}

func (s *S3Store) key(token string) string {
	return s.prefix + token
}

// Put allocates a fresh token and uploads data under it.
func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", ErrClosed
	}
	s.mu.RUnlock()

	token := uuid.New().String()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(token)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("images: s3 put object: %w", err)
	}
	return token, nil
}

// PutThumbnail transcodes data into a thumbnail and uploads it under a
// fresh token.
func (s *S3Store) PutThumbnail(ctx context.Context, data []byte) (string, error) {
	thumb, err := transcodeThumbnail(data)
	if err != nil {
		return "", fmt.Errorf("images: generating thumbnail: %w", err)
	}
	return s.Put(ctx, thumb)
}

// Get downloads the bytes stored under token.
func (s *S3Store) Get(ctx context.Context, token string) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	s.mu.RUnlock()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(token)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("images: s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("images: reading s3 object body: %w", err)
	}
	return data, nil
}

// Delete removes the object for token, logging (not propagating) any
// failure, matching the disk backend's best-effort semantics.
func (s *S3Store) Delete(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(token)),
	})
	if err != nil {
		logger.Warn("images: failed to delete s3 object", "token", token, "error", err)
	}
}

// Close marks the store as closed.
func (s *S3Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}
