package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/idhost/internal/model"
)

// GetByID returns the hosted identity row for id, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Identity, error) {
	var row Identity
	err := s.db.WithContext(ctx).Where("identity_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CountHosted returns the number of identities with an active contract
// (ExpirationDate == nil), the quantity bounded by MaxHostedIdentities.
func (s *Store) CountHosted(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Identity{}).
		Where("expiration_date IS NULL").
		Count(&n).Error
	return n, err
}

// ListHosted returns every identity row, active and pending-sweep alike,
// ordered by creation so the CLI's "identity list" command has a stable
// listing. Unbounded is fine here: this is an operator command, not a
// peer-facing search path, so it doesn't share search.go's page caps.
func (s *Store) ListHosted(ctx context.Context) ([]Identity, error) {
	var rows []Identity
	err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error
	return rows, err
}

// InsertOrResurrect implements the hosting-registration insert: a
// fresh row for a never-seen identity id, or a reset of a previously
// cancelled row, preserving the id. Acquires the identity lock and the
// MaxHostedIdentities quota check inside one transaction.
func (s *Store) InsertOrResurrect(ctx context.Context, id string, publicKey []byte, typeHint string, maxHosted int) (*Identity, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var result *Identity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Identity
		err := tx.Where("identity_id = ?", id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			var hosted int64
			if err := tx.Model(&Identity{}).Where("expiration_date IS NULL").Count(&hosted).Error; err != nil {
				return err
			}
			if maxHosted > 0 && hosted >= int64(maxHosted) {
				return ErrQuotaExceeded
			}
			row := Identity{
				IdentityID: id,
				PublicKey:  publicKey,
				Type:       typeHint,
				HomeNodeID: "",
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result = &row
			return nil

		case err != nil:
			return err

		default:
			if existing.ExpirationDate == nil {
				return ErrAlreadyExists
			}
			var hosted int64
			if err := tx.Model(&Identity{}).
				Where("expiration_date IS NULL AND identity_id != ?", id).
				Count(&hosted).Error; err != nil {
				return err
			}
			if maxHosted > 0 && hosted >= int64(maxHosted) {
				return ErrQuotaExceeded
			}
			existing.PublicKey = publicKey
			existing.Type = typeHint
			existing.Name = ""
			existing.VersionMaj, existing.VersionMin, existing.VersionPat = 0, 0, 0
			existing.HasLocation = false
			existing.LatitudeE6, existing.LongitudeE6 = 0, 0
			existing.ExtraData = ""
			existing.ProfileImageToken = nil
			existing.ThumbnailImageToken = nil
			existing.HomeNodeID = ""
			existing.ExpirationDate = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = &existing
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProfilePatch carries the optional fields of an UpdateProfile request;
// a nil pointer means the corresponding set_* flag was false.
type ProfilePatch struct {
	Version   *model.Version
	Name      *string
	Location  *model.Location
	ExtraData *string
	Image     []byte // raw uploaded bytes; nil means "no image field set"
}

// anySet reports whether at least one field of the patch is present.
func (p *ProfilePatch) anySet() bool {
	return p.Version != nil || p.Name != nil || p.Location != nil || p.ExtraData != nil || p.Image != nil
}

// ImageStore is the minimal surface UpdateProfile needs from
// internal/images to allocate and swap profile/thumbnail tokens without
// this package depending on the image backend's concrete type.
type ImageStore interface {
	Put(ctx context.Context, data []byte) (token string, err error)
	PutThumbnail(ctx context.Context, data []byte) (token string, err error)
	Delete(ctx context.Context, token string)
}

// UpdateProfile applies patch to id's row, enforcing the field
// validation and initialization rules and swapping image tokens
// through images when a new image is supplied.
func (s *Store) UpdateProfile(ctx context.Context, id string, patch ProfilePatch, images ImageStore) (*Identity, error) {
	if !patch.anySet() {
		return nil, invalidField("set*")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var newProfileToken, newThumbToken string
	var oldProfileToken, oldThumbToken *string

	var result *Identity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Identity
		if err := tx.Where("identity_id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		firstUpdate := !row.Initialized()
		if firstUpdate {
			if patch.Version == nil || patch.Name == nil || patch.Location == nil {
				return invalidField("set*")
			}
		}

		if patch.Version != nil {
			if *patch.Version != model.SupportedVersion {
				return invalidField("version")
			}
			row.VersionMaj, row.VersionMin, row.VersionPat = patch.Version.Major, patch.Version.Minor, patch.Version.Patch
		}

		if patch.Name != nil {
			name := *patch.Name
			if name == "" || len(name) > model.NameMax || !isValidUTF8(name) {
				return invalidField("name")
			}
			row.Name = name
		}

		if patch.Location != nil {
			loc := *patch.Location
			if loc.Latitude < -90 || loc.Latitude > 90 {
				return invalidField("latitude")
			}
			if loc.Longitude <= -180 || loc.Longitude > 180 {
				return invalidField("longitude")
			}
			row.HasLocation = true
			row.LatitudeE6 = int64(loc.Latitude * 1e6)
			row.LongitudeE6 = int64(loc.Longitude * 1e6)
		}

		if patch.ExtraData != nil {
			extra := *patch.ExtraData
			if len(extra) > model.ExtraMax || !validExtraData(extra) {
				return invalidField("extra_data")
			}
			row.ExtraData = extra
		}

		if patch.Image != nil {
			if images == nil {
				return fmt.Errorf("store: no image backend configured")
			}
			if err := validateImage(patch.Image); err != nil {
				return invalidField("image")
			}
			token, err := images.Put(ctx, patch.Image)
			if err != nil {
				return fmt.Errorf("store: writing profile image: %w", err)
			}
			thumbToken, err := images.PutThumbnail(ctx, patch.Image)
			if err != nil {
				images.Delete(ctx, token)
				return fmt.Errorf("store: writing thumbnail: %w", err)
			}
			newProfileToken, newThumbToken = token, thumbToken
			oldProfileToken, oldThumbToken = row.ProfileImageToken, row.ThumbnailImageToken
			row.ProfileImageToken = &newProfileToken
			row.ThumbnailImageToken = &newThumbToken
		}

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort delete of superseded image files, outside the DB
	// transaction: swap references first, then delete old files.
	if images != nil {
		if oldProfileToken != nil {
			images.Delete(ctx, *oldProfileToken)
		}
		if oldThumbToken != nil {
			images.Delete(ctx, *oldThumbToken)
		}
	}

	return result, nil
}

// Cancel ends a hosting contract: with a redirect target, the
// contract ends in CancelRedirectGrace; without one, it ends immediately.
// Image files are scheduled for deletion right away regardless of grace.
func (s *Store) Cancel(ctx context.Context, id string, redirectTo string, images ImageStore) (*Identity, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var oldProfileToken, oldThumbToken *string
	var result *Identity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Identity
		if err := tx.Where("identity_id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !row.Initialized() {
			row.VersionMaj, row.VersionMin, row.VersionPat = model.SupportedVersion.Major, model.SupportedVersion.Minor, model.SupportedVersion.Patch
		}

		now := time.Now()
		if redirectTo != "" {
			exp := now.Add(model.CancelRedirectGrace)
			row.ExpirationDate = &exp
			row.HomeNodeID = redirectTo
		} else {
			row.ExpirationDate = &now
		}

		oldProfileToken, oldThumbToken = row.ProfileImageToken, row.ThumbnailImageToken
		row.ProfileImageToken = nil
		row.ThumbnailImageToken = nil

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if images != nil {
		if oldProfileToken != nil {
			images.Delete(ctx, *oldProfileToken)
		}
		if oldThumbToken != nil {
			images.Delete(ctx, *oldThumbToken)
		}
	}

	return result, nil
}

// SweepExpired deletes every hosted identity row whose ExpirationDate
// has passed. Returns the number of rows removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expiration_date IS NOT NULL AND expiration_date < ?", time.Now()).
		Delete(&Identity{})
	return res.RowsAffected, res.Error
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}

// validExtraData checks the semicolon-separated key=value format
// required of ExtraData.
func validExtraData(s string) bool {
	if s == "" {
		return true
	}
	for _, pair := range strings.Split(s, ";") {
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			return false
		}
		kv := strings.SplitN(pair, "=", 2)
		if kv[0] == "" {
			return false
		}
	}
	return true
}

// validateImage checks that data is a PNG or JPEG within ImageMax
// bytes.
func validateImage(data []byte) error {
	if len(data) < 1 || len(data) > model.ImageMax {
		return fmt.Errorf("store: image size %d out of bounds", len(data))
	}
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store: undecodable image: %w", err)
	}
	if format != "png" && format != "jpeg" {
		return fmt.Errorf("store: unsupported image format %q", format)
	}
	return nil
}
