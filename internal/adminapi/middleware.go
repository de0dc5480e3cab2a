package adminapi

import (
	"net/http"
	"strings"
)

// requireBearer gates every route under it on a valid Authorization:
// Bearer <token> header. No per-request claims injection; no handler
// here needs one.
func requireBearer(jwtSvc *jwtService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(header, prefix)
			if _, err := jwtSvc.Validate(raw); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
