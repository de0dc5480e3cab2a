package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/idhost/internal/registry"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/store"
)

// Deps are the components the admin surface reports on and drives,
// assembled by cmd/idhostd once the rest of the node is wired up.
type Deps struct {
	Store    *store.Store
	Registry *registry.Registry
	Relays   *relay.Manager

	// ActiveConnections reports the sum of every role server's current
	// connection count. Supplied as a func rather than a slice of
	// *server.RoleServer to avoid this package importing internal/server
	// for a single integer.
	ActiveConnections func() int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealthz answers liveness probes unauthenticated.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statsResponse mirrors protocol.ProfileStatsResponse in JSON, plus the
// neighbor/relay/connection figures only an operator needs.
type statsResponse struct {
	HostedCount      int64 `json:"hosted_count"`
	NeighborCount    int64 `json:"neighbor_count"`
	OnlineIdentities int   `json:"online_identities"`
	Connections      int32 `json:"connections"`
	OpenRelays       int   `json:"open_relays"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		hosted, err := deps.Store.CountHosted(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		neighbors, err := deps.Store.CountNeighbors(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_, onlineIdentities := deps.Registry.Count()

		resp := statsResponse{
			HostedCount:      hosted,
			NeighborCount:    neighbors,
			OnlineIdentities: onlineIdentities,
			OpenRelays:       deps.Relays.Count(),
		}
		if deps.ActiveConnections != nil {
			resp.Connections = deps.ActiveConnections()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// sweepResponse reports what an out-of-band sweep found, for the operator
// to confirm the normally-scheduled background sweep is keeping up.
type sweepResponse struct {
	ExpiredIdentities int64 `json:"expired_identities"`
	ExpiredRelays     int   `json:"expired_relays"`
}

// handleSweep triggers the same cleanup the background ticker runs on
// its interval,
// for an operator who doesn't want to wait for the next tick.
func handleSweep(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		expired, err := deps.Store.SweepExpired(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		relaysExpired := deps.Relays.SweepExpired(ctx)

		writeJSON(w, http.StatusOK, sweepResponse{
			ExpiredIdentities: expired,
			ExpiredRelays:     relaysExpired,
		})
	}
}
