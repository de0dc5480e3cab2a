// Package images implements the token-based profile image store:
// 128-bit opaque tokens, atomic create-then-rename writes,
// allocate-a-new-token-before-every-write discipline so no reader ever
// observes a half-written file, and best-effort deletion of superseded
// files.
package images

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a token has no corresponding image.
var ErrNotFound = errors.New("images: not found")

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("images: store is closed")

// Store is the interface internal/store.ImageStore also targets: Put
// allocates a fresh token and writes data, PutThumbnail does the same
// after transcoding, and Delete is best-effort (errors are logged, never
// propagated).
type Store interface {
	// Put allocates a new token and writes the full-size image.
	Put(ctx context.Context, data []byte) (token string, err error)

	// PutThumbnail allocates a new token and writes a transcoded
	// thumbnail derived from data.
	PutThumbnail(ctx context.Context, data []byte) (token string, err error)

	// Get returns the bytes stored under token.
	Get(ctx context.Context, token string) ([]byte, error)

	// Delete removes the file(s) referenced by token. Failures are
	// logged, not returned, since a torn delete after a token swap only
	// leaves an orphan reclaimable by offline sweep.
	Delete(ctx context.Context, token string)

	// Close releases resources held by the store.
	Close() error
}

// New constructs the configured backend (disk or s3).
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDiskStore(cfg.Path)
	case "s3":
		return NewS3StoreFromConfig(cfg.S3)
	default:
		return nil, errors.New("images: unsupported backend " + cfg.Backend)
	}
}

// Config mirrors internal/config.ImagesConfig so this package stays
// decoupled from the config package's import graph.
type Config struct {
	Backend string
	Path    string
	S3      S3Config
}

// S3Config configures the optional S3-backed image store. When both
// AccessKeyID and SecretAccessKey are set they take precedence over the
// ambient AWS credential chain (useful against MinIO/Localstack-style
// endpoints).
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}
