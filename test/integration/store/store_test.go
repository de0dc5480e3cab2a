//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/store/migrations"
)

// pgHelper holds the shared PostgreSQL container for this suite
// (started once per test run).
type pgHelper struct {
	container testcontainers.Container
	host      string
	port      int
	database  string
	user      string
	password  string
}

var sharedPG *pgHelper

func newPGHelper(t *testing.T) *pgHelper {
	t.Helper()

	if sharedPG != nil {
		return sharedPG
	}

	ctx := context.Background()

	// PostgreSQL outputs "database system is ready" twice during startup
	// (once during bootstrap, once when fully ready), so wait for 2
	// occurrences.
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("idhost_it"),
		postgres.WithUsername("idhost_it"),
		postgres.WithPassword("idhost_it"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container port: %v", err)
	}

	sharedPG = &pgHelper{
		container: container,
		host:      host,
		port:      port.Int(),
		database:  "idhost_it",
		user:      "idhost_it",
		password:  "idhost_it",
	}
	return sharedPG
}

func (h *pgHelper) connectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		h.user, h.password, h.host, h.port, h.database)
}

func (h *pgHelper) storeConfig() *store.Config {
	return &store.Config{
		Type: store.DatabaseTypePostgres,
		Postgres: store.PostgresConfig{
			Host:     h.host,
			Port:     h.port,
			Database: h.database,
			User:     h.user,
			Password: h.password,
			SSLMode:  "disable",
		},
	}
}

// newPGStore opens a Store against the shared container and truncates
// all tables so each test starts clean.
func newPGStore(t *testing.T) *store.Store {
	t.Helper()

	h := newPGHelper(t)
	s, err := store.New(h.storeConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, table := range []string{
		"identities", "neighbor_identities", "related_identities", "follower_nodes",
	} {
		require.NoError(t, s.DB().Exec("TRUNCATE TABLE "+table).Error)
	}
	return s
}

func TestPostgresMigrationsApplyCleanly(t *testing.T) {
	h := newPGHelper(t)
	ctx := context.Background()

	require.NoError(t, migrations.RunPostgres(ctx, h.connectionString()))
	// A second run must be a no-op rather than an error.
	require.NoError(t, migrations.RunPostgres(ctx, h.connectionString()))
}

func TestPostgresHostingLifecycle(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	row, err := s.InsertOrResurrect(ctx, "it-id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)
	require.False(t, row.Initialized())

	_, err = s.InsertOrResurrect(ctx, "it-id-1", []byte("pk1"), "person", 0)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	version := model.SupportedVersion
	name := "Alice"
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	row, err = s.UpdateProfile(ctx, "it-id-1", store.ProfilePatch{
		Version: &version, Name: &name, Location: &loc,
	}, nil)
	require.NoError(t, err)
	require.True(t, row.Initialized())
	require.Equal(t, "Alice", row.Name)

	// Immediate cancellation expires the row now; the sweeper purges it
	// and the identity can register again afterwards.
	_, err = s.Cancel(ctx, "it-id-1", "", nil)
	require.NoError(t, err)

	purged, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	_, err = s.GetByID(ctx, "it-id-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.InsertOrResurrect(ctx, "it-id-1", []byte("pk1"), "person", 0)
	require.NoError(t, err)
}

func TestPostgresCancelWithRedirectKeepsRowInGrace(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	_, err := s.InsertOrResurrect(ctx, "it-id-2", []byte("pk2"), "person", 0)
	require.NoError(t, err)

	row, err := s.Cancel(ctx, "it-id-2", "new-home-node", nil)
	require.NoError(t, err)
	require.NotNil(t, row.ExpirationDate)
	require.True(t, row.ExpirationDate.After(time.Now().Add(13*24*time.Hour)))
	require.Equal(t, "new-home-node", row.HomeNodeID)

	// Still inside the redirection grace window, so the sweeper must
	// leave the row alone.
	purged, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, purged)

	got, err := s.GetByID(ctx, "it-id-2")
	require.NoError(t, err)
	require.False(t, got.Hosted())
}

func TestPostgresSearchBoundingSquareAndHaversine(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	version := model.SupportedVersion
	seed := func(id, name string, lat, lon float64) {
		t.Helper()
		_, err := s.InsertOrResurrect(ctx, id, []byte("pk-"+id), "person", 0)
		require.NoError(t, err)
		loc := model.Location{Latitude: lat, Longitude: lon}
		_, err = s.UpdateProfile(ctx, id, store.ProfilePatch{
			Version: &version, Name: &name, Location: &loc,
		}, nil)
		require.NoError(t, err)
	}

	seed("near-1", "Near One", 50.00, 14.40)
	seed("near-2", "Near Two", 50.05, 14.45)
	// Inside the bounding square of a 10 km radius but outside the
	// circle, so the exact haversine check must drop it.
	seed("corner", "Corner", 50.089, 14.539)
	seed("far", "Far", 10.0, 10.0)

	results, err := s.Search(ctx, store.SearchQuery{
		MaxTotal:     100,
		HasLocation:  true,
		CenterLat:    50.0,
		CenterLon:    14.4,
		RadiusMeters: 10000,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.IdentityID)
	}
	require.ElementsMatch(t, []string{"near-1", "near-2"}, ids)
}

func TestPostgresSearchFillsFromNeighborMirror(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	version := model.SupportedVersion
	name := "Hosted"
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	_, err := s.InsertOrResurrect(ctx, "hosted-1", []byte("pk-h"), "person", 0)
	require.NoError(t, err)
	_, err = s.UpdateProfile(ctx, "hosted-1", store.ProfilePatch{
		Version: &version, Name: &name, Location: &loc,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpsertNeighbor(ctx, &store.NeighborIdentity{
		IdentityID:  "neighbor-1",
		PublicKey:   []byte("pk-n"),
		Name:        "Neighbor",
		Type:        "person",
		VersionMaj:  1,
		HasLocation: true,
		LatitudeE6:  50_000_000,
		LongitudeE6: 14_400_000,
		HomeNodeID:  "peer-node",
	}))

	results, err := s.Search(ctx, store.SearchQuery{MaxTotal: 10, TypeFilter: "person"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	hostedOnly, err := s.Search(ctx, store.SearchQuery{
		MaxTotal: 10, TypeFilter: "person", HostedOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, hostedOnly, 1)
	require.Equal(t, "hosted-1", hostedOnly[0].IdentityID)
}

func TestPostgresNeighborPurgeByHomeNode(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("n-%d", i)
		require.NoError(t, s.UpsertNeighbor(ctx, &store.NeighborIdentity{
			IdentityID: id,
			PublicKey:  []byte("pk-" + id),
			Type:       "person",
			HomeNodeID: "departing-node",
		}))
	}
	require.NoError(t, s.UpsertNeighbor(ctx, &store.NeighborIdentity{
		IdentityID: "n-other",
		PublicKey:  []byte("pk-other"),
		Type:       "person",
		HomeNodeID: "staying-node",
	}))

	purged, err := s.PurgeNeighborsByHomeNode(ctx, "departing-node")
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)

	count, err := s.CountNeighbors(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestPostgresRelationQuota(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	_, err := s.InsertOrResurrect(ctx, "rel-owner", []byte("pk-rel"), "person", 0)
	require.NoError(t, err)

	card := func(appID string) *store.RelatedIdentity {
		return &store.RelatedIdentity{
			IdentityID:         "rel-owner",
			ApplicationID:      appID,
			CardID:             "0011223344556677",
			IssuerPublicKey:    []byte("issuer-public-key-32-bytes-long!"),
			IssuerSignature:    []byte("issuer-signature"),
			RecipientPublicKey: []byte("recip-public-key-32-bytes-long!!"),
			RecipientSignature: []byte("recipient-signature"),
			Type:               "friend",
			ValidFrom:          time.Now().Add(-time.Hour),
			ValidTo:            time.Now().Add(time.Hour),
		}
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AddRelation(ctx, card(fmt.Sprintf("app-%d", i)), 2))
	}

	err = s.AddRelation(ctx, card("app-overflow"), 2)
	require.ErrorIs(t, err, store.ErrQuotaExceeded)

	require.NoError(t, s.RemoveRelation(ctx, "rel-owner", "app-0"))
	rows, err := s.ListRelations(ctx, "rel-owner")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
