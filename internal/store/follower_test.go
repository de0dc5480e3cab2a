package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertFollowerInsertsThenRefreshes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFollower(ctx, "node-1", "10.0.0.1", 9000, 0))
	require.NoError(t, s.UpsertFollower(ctx, "node-1", "10.0.0.2", 9001, 0))

	rows, err := s.ListFollowers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "10.0.0.2", rows[0].Address)
}

func TestUpsertFollowerEnforcesMaxFollowers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFollower(ctx, "node-1", "10.0.0.1", 9000, 1))
	err := s.UpsertFollower(ctx, "node-2", "10.0.0.2", 9001, 1)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestRemoveFollower(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFollower(ctx, "node-1", "10.0.0.1", 9000, 0))
	require.NoError(t, s.RemoveFollower(ctx, "node-1"))

	rows, err := s.ListFollowers(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}
