package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertNeighborInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row := &NeighborIdentity{IdentityID: "n-1", Name: "Carol", Type: "person", HomeNodeID: "peer-a"}
	require.NoError(t, s.UpsertNeighbor(ctx, row))

	n, err := s.CountNeighbors(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	updated := &NeighborIdentity{IdentityID: "n-1", Name: "Carol Updated", Type: "person", HomeNodeID: "peer-a"}
	require.NoError(t, s.UpsertNeighbor(ctx, updated))

	n, err = s.CountNeighbors(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "upsert on an existing identity id must not create a second row")
}

func TestDeleteNeighbor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertNeighbor(ctx, &NeighborIdentity{IdentityID: "n-1", HomeNodeID: "peer-a"}))

	require.NoError(t, s.DeleteNeighbor(ctx, "n-1"))

	n, err := s.CountNeighbors(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestPurgeNeighborsByHomeNode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertNeighbor(ctx, &NeighborIdentity{IdentityID: "n-1", HomeNodeID: "peer-a"}))
	require.NoError(t, s.UpsertNeighbor(ctx, &NeighborIdentity{IdentityID: "n-2", HomeNodeID: "peer-a"}))
	require.NoError(t, s.UpsertNeighbor(ctx, &NeighborIdentity{IdentityID: "n-3", HomeNodeID: "peer-b"}))

	purged, err := s.PurgeNeighborsByHomeNode(ctx, "peer-a")
	require.NoError(t, err)
	require.Equal(t, int64(2), purged)

	n, err := s.CountNeighbors(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
