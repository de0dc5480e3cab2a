package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GetRelation returns a single related-identity card by composite key.
func (s *Store) GetRelation(ctx context.Context, identityID, applicationID string) (*RelatedIdentity, error) {
	var row RelatedIdentity
	err := s.db.WithContext(ctx).
		Where("identity_id = ? AND application_id = ?", identityID, applicationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListRelations returns every relationship card held by identityID.
func (s *Store) ListRelations(ctx context.Context, identityID string) ([]RelatedIdentity, error) {
	var rows []RelatedIdentity
	err := s.db.WithContext(ctx).Where("identity_id = ?", identityID).Find(&rows).Error
	return rows, err
}

// AddRelation inserts a relationship card, enforcing MaxRelations per
// identity under the identity lock. Card verification
// (CardID/signature/validity checks) is the caller's responsibility —
// internal/protocol's handleAddRelatedIdentity runs it before this is
// ever called, so a row reaching here is already trusted.
func (s *Store) AddRelation(ctx context.Context, row *RelatedIdentity, maxRelations int) error {
	unlock := s.locks.Lock(row.IdentityID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&RelatedIdentity{}).Where("identity_id = ?", row.IdentityID).Count(&count).Error; err != nil {
			return err
		}
		if maxRelations > 0 && count >= int64(maxRelations) {
			return ErrQuotaExceeded
		}

		var existing RelatedIdentity
		err := tx.Where("identity_id = ? AND application_id = ?", row.IdentityID, row.ApplicationID).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row.CreatedAt = time.Now()
		return tx.Create(row).Error
	})
}

// RemoveRelation deletes a relationship card by composite key.
func (s *Store) RemoveRelation(ctx context.Context, identityID, applicationID string) error {
	unlock := s.locks.Lock(identityID)
	defer unlock()

	res := s.db.WithContext(ctx).
		Where("identity_id = ? AND application_id = ?", identityID, applicationID).
		Delete(&RelatedIdentity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
