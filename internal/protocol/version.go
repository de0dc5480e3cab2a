package protocol

import "github.com/marmos91/idhost/internal/model"

// SelectVersion implements the common-version-selection step of
// StartConversation. 1.0.0 is the only version this node speaks, so
// the walk below is a first-match scan rather than a real negotiation.
// Offered is the client's advertised version list in preference order.
func SelectVersion(offered []model.Version) (model.Version, bool) {
	for _, v := range offered {
		if v == model.SupportedVersion {
			return v, true
		}
	}
	return model.Version{}, false
}
