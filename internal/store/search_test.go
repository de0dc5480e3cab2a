package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/model"
)

func TestHaversineSymmetricAndZeroAtSamePoint(t *testing.T) {
	require.InDelta(t, 0.0, haversine(50.0, 14.4, 50.0, 14.4), 1e-6)
	d1 := haversine(50.0, 14.4, 51.0, 14.4)
	d2 := haversine(51.0, 14.4, 50.0, 14.4)
	require.InDelta(t, d1, d2, 1e-6)
	require.Greater(t, d1, 0.0)
}

func TestBoundingSquareClampsToValidRange(t *testing.T) {
	minLat, maxLat, minLon, maxLon := boundingSquare(89.9, 179.9, 50000)
	require.LessOrEqual(t, maxLat, 90.0)
	require.LessOrEqual(t, maxLon, 180.0)
	require.GreaterOrEqual(t, minLat, -90.0)
	require.GreaterOrEqual(t, minLon, -180.0)
}

func TestSqlWildcardTranslatesGlobToLike(t *testing.T) {
	require.Equal(t, "Al%", sqlWildcard("Al*"))
	require.Equal(t, "A_ice", sqlWildcard("A?ice"))
	require.Equal(t, "100\\%", sqlWildcard("100%"))
}

func TestSearchFiltersByTypeAndName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInitialize(t, s, "id-1", "Alice", "person", 50.0, 14.4, "")
	mustInitialize(t, s, "id-2", "Bob", "service", 50.0, 14.4, "")

	results, err := s.Search(ctx, SearchQuery{MaxTotal: 10, TypeFilter: "person"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "id-1", results[0].IdentityID)
}

func TestSearchAppliesExactHaversineAfterBoundingBox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInitialize(t, s, "near", "Near", "person", 50.0, 14.4, "")
	mustInitialize(t, s, "far", "Far", "person", 10.0, 10.0, "")

	results, err := s.Search(ctx, SearchQuery{
		MaxTotal: 10, HasLocation: true, CenterLat: 50.0, CenterLon: 14.4, RadiusMeters: 10000,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "near", results[0].IdentityID)
}

func TestSearchRegexFiltersExtraData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInitialize(t, s, "id-1", "Alice", "person", 50.0, 14.4, "color=red")
	mustInitialize(t, s, "id-2", "Bob", "person", 50.0, 14.4, "color=blue")

	results, err := s.Search(ctx, SearchQuery{MaxTotal: 10, ExtraRegex: "color=red"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "id-1", results[0].IdentityID)
}

func TestSearchHostedOnlySkipsNeighbors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInitialize(t, s, "id-1", "Alice", "person", 50.0, 14.4, "")
	require.NoError(t, s.UpsertNeighbor(ctx, &NeighborIdentity{
		IdentityID: "neighbor-1", Name: "Carol", Type: "person", HomeNodeID: "peer-node",
	}))

	all, err := s.Search(ctx, SearchQuery{MaxTotal: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)

	hostedOnly, err := s.Search(ctx, SearchQuery{MaxTotal: 10, HostedOnly: true})
	require.NoError(t, err)
	require.Len(t, hostedOnly, 1)
	require.Equal(t, "id-1", hostedOnly[0].IdentityID)
}

func TestSearchInvalidRegexReturnsFieldError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(context.Background(), SearchQuery{MaxTotal: 10, ExtraRegex: "(unclosed"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "extra_regex", fe.Field)
}

// mustInitialize creates and fully initializes a hosted identity for search tests.
func mustInitialize(t *testing.T, s *Store, id, name, typ string, lat, lon float64, extra string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.InsertOrResurrect(ctx, id, []byte("pk-"+id), typ, 0)
	require.NoError(t, err)

	version := model.SupportedVersion
	n := name
	loc := model.Location{Latitude: lat, Longitude: lon}
	extraPtr := &extra
	_, err = s.UpdateProfile(ctx, id, ProfilePatch{Version: &version, Name: &n, Location: &loc, ExtraData: extraPtr}, nil)
	require.NoError(t, err)
}
