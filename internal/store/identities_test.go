package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertOrResurrectFreshIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row, err := s.InsertOrResurrect(ctx, "id-1", []byte("pubkey-32-bytes-not-really-used"), "person", 0)
	require.NoError(t, err)
	require.Equal(t, "id-1", row.IdentityID)
	require.False(t, row.Initialized())
	require.True(t, row.Hosted())

	_, err = s.InsertOrResurrect(ctx, "id-1", []byte("pubkey"), "person", 0)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestInsertOrResurrectRespectsQuota(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 1)
	require.NoError(t, err)

	_, err = s.InsertOrResurrect(ctx, "id-2", []byte("pk2"), "person", 1)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestInsertOrResurrectResurrectsCancelledRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	_, err = s.Cancel(ctx, "id-1", "", nil)
	require.NoError(t, err)

	row, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1-new"), "person", 0)
	require.NoError(t, err)
	require.Equal(t, "id-1", row.IdentityID)
	require.Nil(t, row.ExpirationDate)
	require.False(t, row.Initialized())
}

func TestUpdateProfileRequiresFullInitializationFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	name := "Alice"
	_, err = s.UpdateProfile(ctx, "id-1", ProfilePatch{Name: &name}, nil)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "set*", fe.Field)
}

func TestUpdateProfileInitializationSucceeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	version := model.SupportedVersion
	name := "Alice"
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	row, err := s.UpdateProfile(ctx, "id-1", ProfilePatch{Version: &version, Name: &name, Location: &loc}, nil)
	require.NoError(t, err)
	require.True(t, row.Initialized())
	require.Equal(t, "Alice", row.Name)
	require.Equal(t, int64(50_000_000), row.LatitudeE6)
}

func TestUpdateProfileRejectsNoFieldsSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)
	version := model.SupportedVersion
	name := "Alice"
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	_, err = s.UpdateProfile(ctx, "id-1", ProfilePatch{Version: &version, Name: &name, Location: &loc}, nil)
	require.NoError(t, err)

	_, err = s.UpdateProfile(ctx, "id-1", ProfilePatch{}, nil)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "set*", fe.Field)
}

func TestUpdateProfileValidatesLocationBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	version := model.SupportedVersion
	name := "Alice"
	badLoc := model.Location{Latitude: 91, Longitude: 14.4}
	_, err = s.UpdateProfile(ctx, "id-1", ProfilePatch{Version: &version, Name: &name, Location: &badLoc}, nil)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "latitude", fe.Field)
}

func TestUpdateProfileRejectsUnsupportedVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	badVersion := model.Version{Major: 2}
	name := "Alice"
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	_, err = s.UpdateProfile(ctx, "id-1", ProfilePatch{Version: &badVersion, Name: &name, Location: &loc}, nil)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "version", fe.Field)
}

func TestCancelWithoutRedirectExpiresImmediately(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	row, err := s.Cancel(ctx, "id-1", "", nil)
	require.NoError(t, err)
	require.NotNil(t, row.ExpirationDate)
	require.True(t, row.Initialized(), "cancellation of an uninitialized row must force Version=1.0.0 so it stays searchable")
}

func TestCancelWithRedirectSetsHomeNodeAndGrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)

	row, err := s.Cancel(ctx, "id-1", "new-home-node", nil)
	require.NoError(t, err)
	require.Equal(t, "new-home-node", row.HomeNodeID)
	require.NotNil(t, row.ExpirationDate)
	require.WithinDuration(t, time.Now().Add(model.CancelRedirectGrace), *row.ExpirationDate, 5*time.Second)
}

func TestSweepExpiredRemovesOnlyPastRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, "id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, "id-1", "", nil)
	require.NoError(t, err)

	_, err = s.InsertOrResurrect(ctx, "id-2", []byte("pk2"), "person", 0)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, "id-2", "redirect", nil)
	require.NoError(t, err)

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.GetByID(ctx, "id-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByID(ctx, "id-2")
	require.NoError(t, err)
}

func TestValidExtraData(t *testing.T) {
	require.True(t, validExtraData(""))
	require.True(t, validExtraData("a=1;b=2"))
	require.False(t, validExtraData("a=1;noequals"))
	require.False(t, validExtraData("=1"))
}
