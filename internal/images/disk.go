package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/marmos91/idhost/internal/logger"
)

// thumbnailMaxDim is the longest edge of a generated thumbnail, in pixels.
const thumbnailMaxDim = 128

// DiskStore implements Store on the local filesystem: images live under
// dir, named by their token. Writes are atomic (write to a temp file,
// then os.Rename into place) so a concurrent Get never observes a partial
// file.
type DiskStore struct {
	dir string
}

// NewDiskStore creates (if needed) dir and returns a DiskStore rooted
// there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("images: creating directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) path(token string) string {
	return filepath.Join(d.dir, token)
}

// Put allocates a fresh token and atomically writes data under it.
func (d *DiskStore) Put(ctx context.Context, data []byte) (string, error) {
	token := uuid.New().String()
	if err := d.writeAtomic(token, data); err != nil {
		return "", err
	}
	return token, nil
}

// PutThumbnail decodes data, downsamples it to thumbnailMaxDim on its
// longest edge, re-encodes in the same format family, and writes it under
// a fresh token.
func (d *DiskStore) PutThumbnail(ctx context.Context, data []byte) (string, error) {
	thumb, err := transcodeThumbnail(data)
	if err != nil {
		return "", fmt.Errorf("images: generating thumbnail: %w", err)
	}
	token := uuid.New().String()
	if err := d.writeAtomic(token, thumb); err != nil {
		return "", err
	}
	return token, nil
}

func (d *DiskStore) writeAtomic(token string, data []byte) error {
	tmp, err := os.CreateTemp(d.dir, token+".tmp-*")
	if err != nil {
		return fmt.Errorf("images: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("images: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("images: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path(token)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("images: renaming into place: %w", err)
	}
	return nil
}

// Get reads the bytes stored under token.
func (d *DiskStore) Get(ctx context.Context, token string) ([]byte, error) {
	data, err := os.ReadFile(d.path(token))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the file for token. Errors are logged only; a failed
// delete just leaves an orphaned file reclaimable by offline sweep.
func (d *DiskStore) Delete(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := os.Remove(d.path(token)); err != nil && !os.IsNotExist(err) {
		logger.Warn("images: failed to delete image file", "token", token, "error", err)
	}
}

// Close is a no-op for the disk backend.
func (d *DiskStore) Close() error { return nil }

// transcodeThumbnail decodes a PNG or JPEG image and returns a downsized
// re-encoding no larger than thumbnailMaxDim on its longest edge, using a
// simple nearest-neighbor box sample (no external resize dependency is
// wired anywhere in the example pack for this shape of work).
func transcodeThumbnail(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	scale := 1.0
	if w > h && w > thumbnailMaxDim {
		scale = float64(thumbnailMaxDim) / float64(w)
	} else if h >= w && h > thumbnailMaxDim {
		scale = float64(thumbnailMaxDim) / float64(h)
	}
	newW, newH := int(float64(w)*scale), int(float64(h)*scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			srcX := bounds.Min.X + x*w/newW
			srcY := bounds.Min.Y + y*h/newH
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
