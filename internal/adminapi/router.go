package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/idhost/internal/logger"
)

// NewRouter builds the admin HTTP surface: unauthenticated liveness,
// everything else bearer-gated (request id, real IP, custom logger,
// recoverer, timeout; a public health group, a protected group behind
// the JWT middleware).
func NewRouter(deps Deps, jwtSvc *jwtService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(requireBearer(jwtSvc))
		r.Get("/stats", handleStats(deps))
		r.Post("/sweep", handleSweep(deps))
		r.Handle("/metrics", promhttp.Handler())
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("admin api request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
