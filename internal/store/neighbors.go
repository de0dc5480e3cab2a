package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// UpsertNeighbor writes or replaces a mirrored neighbor identity row,
// called from the directory interface when a NeighborhoodChangedNotification
// adds or updates a peer profile.
func (s *Store) UpsertNeighbor(ctx context.Context, row *NeighborIdentity) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing NeighborIdentity
		err := tx.Where("identity_id = ?", row.IdentityID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(row).Error
		case err != nil:
			return err
		default:
			row.IdentityID = existing.IdentityID
			return tx.Save(row).Error
		}
	})
}

// DeleteNeighbor removes a single mirrored neighbor row, called when the
// directory reports it as removed from another node's neighborhood.
func (s *Store) DeleteNeighbor(ctx context.Context, identityID string) error {
	return s.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Delete(&NeighborIdentity{}).Error
}

// PurgeNeighborsByHomeNode deletes every mirrored row whose home node was
// removed from the neighborhood.
func (s *Store) PurgeNeighborsByHomeNode(ctx context.Context, homeNodeID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("home_node_id = ?", homeNodeID).
		Delete(&NeighborIdentity{})
	return res.RowsAffected, res.Error
}

// CountNeighbors returns the number of mirrored neighbor rows. The number
// of rows is not capped; MaxNeighborhoodSize is not enforced anywhere.
func (s *Store) CountNeighbors(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&NeighborIdentity{}).Count(&n).Error
	return n, err
}
