package protocol

import (
	"errors"

	"github.com/marmos91/idhost/internal/metrics"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

// searchResultPageLimit caps a single ProfileSearch/ProfileSearchPart
// response: the image-carrying cap of model.MaxResponseImagesPage when
// images are requested, or the plain record cap of
// model.MaxResponseRecordsPage otherwise.
func searchResultPageLimit(includeImages bool) int {
	if includeImages {
		return model.MaxResponseImagesPage
	}
	return model.MaxResponseRecordsPage
}

func toResultItem(r store.SearchResult, includeImages bool) ProfileSearchResultItem {
	item := ProfileSearchResultItem{
		IdentityID:  r.IdentityID,
		Name:        r.Name,
		Type:        r.Type,
		HasLocation: r.HasLocation,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		ExtraData:   r.ExtraData,
		HomeNodeID:  r.HomeNodeID,
	}
	if includeImages {
		if r.ProfileImageToken != nil {
			item.ProfileImageToken = *r.ProfileImageToken
		}
		if r.ThumbnailImageToken != nil {
			item.ThumbnailImageToken = *r.ThumbnailImageToken
		}
	}
	return item
}

// handleProfileSearch runs the bounded location/attribute search and
// caches any remainder on the session for a follow-up
// ProfileSearchPart.
func handleProfileSearch(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req ProfileSearchRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	maxTotal := int(req.MaxTotal)
	if maxTotal <= 0 || maxTotal > model.MaxResponseRecordsPage {
		maxTotal = model.MaxResponseRecordsPage
	}

	query := store.SearchQuery{
		MaxTotal:      maxTotal,
		TypeFilter:    req.TypePattern,
		NameFilter:    req.NamePattern,
		HasLocation:   req.HasLocation,
		CenterLat:     req.Latitude,
		CenterLon:     req.Longitude,
		RadiusMeters:  req.RadiusMeters,
		ExtraRegex:    req.ExtraRegex,
		IncludeImages: req.IncludeImages,
		HostedOnly:    req.HostedOnly,
	}

	rows, err := hc.Store.Search(hc.Ctx, query)
	var fieldErr *store.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return model.StatusInvalidValue, fieldErr.Field, nil, nil
	case err != nil:
		return 0, "", nil, err
	}

	limit := searchResultPageLimit(req.IncludeImages)

	cached := make([]any, len(rows))
	for i, r := range rows {
		cached[i] = r
	}
	hc.Session.SaveSearchResults(cached, req.IncludeImages)

	page := rows
	overflow := false
	if len(page) > limit {
		page = page[:limit]
		overflow = true
	}

	resp := &ProfileSearchResponse{Overflow: overflow}
	for _, r := range page {
		resp.Results = append(resp.Results, toResultItem(r, req.IncludeImages))
	}
	metrics.RecordSearch(overflow, len(resp.Results))
	return model.StatusOk, "", wire.Marshal(resp), nil
}

// handleProfileSearchPart returns a later slice of the cached search
// page from a prior ProfileSearch, without re-running the query.
func handleProfileSearchPart(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req ProfileSearchPartRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	includeImages := hc.Session.SearchResultsIncludeImages()
	limit := searchResultPageLimit(includeImages)
	count := int(req.Count)
	if count <= 0 || count > limit {
		count = limit
	}

	results, ok := hc.Session.GetSearchResults(int(req.Offset), count)
	if !ok {
		return model.StatusNotFound, "", nil, nil
	}

	resp := &ProfileSearchPartResponse{More: hc.Session.SearchResultsRemaining(int(req.Offset), count)}
	for _, v := range results {
		r, ok := v.(store.SearchResult)
		if !ok {
			continue
		}
		resp.Results = append(resp.Results, toResultItem(r, includeImages))
	}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

