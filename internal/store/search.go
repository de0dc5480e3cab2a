package store

import (
	"context"
	"math"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/marmos91/idhost/internal/model"
)

// earthRadiusMeters is used by the haversine distance check.
const earthRadiusMeters = 6371000.0

// SearchQuery describes a ProfileSearch request.
type SearchQuery struct {
	MaxTotal      int
	TypeFilter    string // SQL LIKE wildcard pattern, empty = any
	NameFilter    string // SQL LIKE wildcard pattern, empty = any
	HasLocation   bool
	CenterLat     float64
	CenterLon     float64
	RadiusMeters  float64
	ExtraRegex    string // empty = no filter
	IncludeImages bool
	HostedOnly    bool
}

// SearchResult is one matching row, projected from either the hosted or
// neighbor repository.
type SearchResult struct {
	IdentityID          string
	Name                string
	Type                string
	Latitude            float64
	Longitude           float64
	HasLocation         bool
	ExtraData           string
	ProfileImageToken   *string
	ThumbnailImageToken *string
	HomeNodeID          string // empty means hosted at this node
}

// Search implements the two-phase search: a bounding-square
// pre-filter at the SQL level, followed by an exact haversine distance
// check and a budgeted regex match on ExtraData. The hosted repository is
// consulted first; the neighbor repository fills any remainder unless
// HostedOnly is set. Runs under a wall-clock deadline (default 15s).
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, model.SearchDeadline)
	defer cancel()

	var re *regexp.Regexp
	if q.ExtraRegex != "" {
		compiled, err := regexp.Compile(q.ExtraRegex)
		if err != nil {
			return nil, invalidField("extra_regex")
		}
		re = compiled
	}
	budget := newRegexBudget()

	maxTotal := q.MaxTotal
	if maxTotal <= 0 {
		maxTotal = model.MaxResponseRecordsPage
	}
	batchSize := maxInt(1000, maxTotal*10)

	var results []SearchResult

	hosted, err := s.searchHosted(ctx, q, re, budget, batchSize, maxTotal)
	if err != nil {
		return nil, err
	}
	results = append(results, hosted...)

	if len(results) < maxTotal && !q.HostedOnly && !budget.exhausted() {
		remaining := maxTotal - len(results)
		neighbors, err := s.searchNeighbors(ctx, q, re, budget, batchSize, remaining)
		if err != nil {
			return nil, err
		}
		results = append(results, neighbors...)
	}

	return results, nil
}

func (s *Store) searchHosted(ctx context.Context, q SearchQuery, re *regexp.Regexp, budget *regexBudget, batchSize, maxTotal int) ([]SearchResult, error) {
	var out []SearchResult
	offset := 0
	for len(out) < maxTotal {
		if err := ctx.Err(); err != nil {
			return out, nil
		}
		if budget.exhausted() {
			return out, nil
		}

		tx := s.db.WithContext(ctx).Model(&Identity{}).Where("NOT (version_maj = 0 AND version_min = 0 AND version_pat = 0)")
		tx = applyCommonFilters(tx, q)

		var rows []Identity
		if err := tx.Offset(offset).Limit(batchSize).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		offset += len(rows)

		for _, row := range rows {
			if len(out) >= maxTotal {
				break
			}
			if budget.exhausted() {
				break
			}
			lat, lon := float64(row.LatitudeE6)/1e6, float64(row.LongitudeE6)/1e6
			if q.HasLocation && row.HasLocation {
				if haversine(q.CenterLat, q.CenterLon, lat, lon) > q.RadiusMeters {
					continue
				}
			} else if q.HasLocation && !row.HasLocation {
				continue
			}
			if re != nil {
				m := budget.match(re, row.ExtraData)
				if !m.ok || !m.matched {
					continue
				}
			}
			out = append(out, SearchResult{
				IdentityID:          row.IdentityID,
				Name:                row.Name,
				Type:                row.Type,
				Latitude:            lat,
				Longitude:           lon,
				HasLocation:         row.HasLocation,
				ExtraData:           row.ExtraData,
				ProfileImageToken:   row.ProfileImageToken,
				ThumbnailImageToken: row.ThumbnailImageToken,
				HomeNodeID:          row.HomeNodeID,
			})
		}

		if len(rows) < batchSize {
			break
		}
	}
	return out, nil
}

func (s *Store) searchNeighbors(ctx context.Context, q SearchQuery, re *regexp.Regexp, budget *regexBudget, batchSize, maxTotal int) ([]SearchResult, error) {
	var out []SearchResult
	offset := 0
	for len(out) < maxTotal {
		if err := ctx.Err(); err != nil {
			return out, nil
		}
		if budget.exhausted() {
			return out, nil
		}

		tx := s.db.WithContext(ctx).Model(&NeighborIdentity{})
		tx = applyCommonFilters(tx, q)

		var rows []NeighborIdentity
		if err := tx.Offset(offset).Limit(batchSize).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		offset += len(rows)

		for _, row := range rows {
			if len(out) >= maxTotal {
				break
			}
			if budget.exhausted() {
				break
			}
			lat, lon := float64(row.LatitudeE6)/1e6, float64(row.LongitudeE6)/1e6
			if q.HasLocation && row.HasLocation {
				if haversine(q.CenterLat, q.CenterLon, lat, lon) > q.RadiusMeters {
					continue
				}
			} else if q.HasLocation && !row.HasLocation {
				continue
			}
			if re != nil {
				m := budget.match(re, row.ExtraData)
				if !m.ok || !m.matched {
					continue
				}
			}
			out = append(out, SearchResult{
				IdentityID:          row.IdentityID,
				Name:                row.Name,
				Type:                row.Type,
				Latitude:            lat,
				Longitude:           lon,
				HasLocation:         row.HasLocation,
				ExtraData:           row.ExtraData,
				ProfileImageToken:   row.ProfileImageToken,
				ThumbnailImageToken: row.ThumbnailImageToken,
				HomeNodeID:          row.HomeNodeID,
			})
		}

		if len(rows) < batchSize {
			break
		}
	}
	return out, nil
}

// applyCommonFilters attaches the SQL-level type/name wildcard filters and
// the GPS bounding square, shared between the hosted and neighbor queries.
func applyCommonFilters(tx *gorm.DB, q SearchQuery) *gorm.DB {
	if q.TypeFilter != "" {
		tx = tx.Where("type LIKE ?", sqlWildcard(q.TypeFilter))
	}
	if q.NameFilter != "" {
		tx = tx.Where("name LIKE ?", sqlWildcard(q.NameFilter))
	}
	if q.HasLocation && q.RadiusMeters > 0 {
		minLat, maxLat, minLon, maxLon := boundingSquare(q.CenterLat, q.CenterLon, q.RadiusMeters)
		tx = tx.Where("has_location = ? AND latitude_e6 BETWEEN ? AND ? AND longitude_e6 BETWEEN ? AND ?",
			true, int64(minLat*1e6), int64(maxLat*1e6), int64(minLon*1e6), int64(maxLon*1e6))
	}
	return tx
}

// sqlWildcard turns a user-supplied '*'/'?' glob into a SQL LIKE pattern.
func sqlWildcard(pattern string) string {
	r := strings.NewReplacer("%", "\\%", "_", "\\_", "*", "%", "?", "_")
	return r.Replace(pattern)
}

// boundingSquare returns the lat/lon square fully containing the circle
// of radiusMeters around (lat, lon), for a cheap SQL-level pre-filter
// before the exact haversine check.
func boundingSquare(lat, lon, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	degLat := radiusMeters / 111320.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.0001 {
		cosLat = 0.0001
	}
	degLon := radiusMeters / (111320.0 * cosLat)

	minLat, maxLat = lat-degLat, lat+degLat
	minLon, maxLon = lon-degLon, lon+degLon
	if minLat < -90 {
		minLat = -90
	}
	if maxLat > 90 {
		maxLat = 90
	}
	if minLon < -180 {
		minLon = -180
	}
	if maxLon > 180 {
		maxLon = 180
	}
	return
}

// haversine returns the great-circle distance in meters between two
// lat/lon points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

