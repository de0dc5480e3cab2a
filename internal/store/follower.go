package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// UpsertFollower records or refreshes a follower node's last-seen
// timestamp, enforcing MaxFollowerServersCount. Bookkeeping only;
// never consulted for authorization.
func (s *Store) UpsertFollower(ctx context.Context, nodeID, address string, port, maxFollowers int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing FollowerNode
		err := tx.Where("node_id = ?", nodeID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			var count int64
			if err := tx.Model(&FollowerNode{}).Count(&count).Error; err != nil {
				return err
			}
			if maxFollowers > 0 && count >= int64(maxFollowers) {
				return ErrQuotaExceeded
			}
			row := FollowerNode{NodeID: nodeID, Address: address, Port: port, LastSeenAt: time.Now()}
			return tx.Create(&row).Error
		case err != nil:
			return err
		default:
			existing.Address = address
			existing.Port = port
			existing.LastSeenAt = time.Now()
			return tx.Save(&existing).Error
		}
	})
}

// ListFollowers returns every known follower node.
func (s *Store) ListFollowers(ctx context.Context) ([]FollowerNode, error) {
	var rows []FollowerNode
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

// RemoveFollower deletes a follower node by id.
func (s *Store) RemoveFollower(ctx context.Context, nodeID string) error {
	return s.db.WithContext(ctx).Where("node_id = ?", nodeID).Delete(&FollowerNode{}).Error
}
