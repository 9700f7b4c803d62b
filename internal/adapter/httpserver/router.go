package httpserver

import (
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/observability"
)

// parseOrigins splits a comma-separated origin list into a slice, trimming spaces.
func parseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the Gateway HTTP API with its full middleware chain
// and route table.
func BuildRouter(cfg config.Config, s *Server) chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(Recoverer())
	r.Use(RequestID())
	r.Use(TimeoutMiddleware(cfg.HTTPWriteTimeout))
	r.Use(TraceMiddleware)
	r.Use(AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: parseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))

	r.Get("/api/v1/cars", s.CarsListHandler())
	r.Post("/api/v1/rental", s.CreateRentalHandler())
	r.Get("/api/v1/rental", s.ListRentalsHandler())
	r.Get("/api/v1/rental/{uid}", s.GetRentalHandler())
	r.Delete("/api/v1/rental/{uid}", s.CancelRentalHandler())
	r.Post("/api/v1/rental/{uid}/finish", s.FinishRentalHandler())

	r.Get("/manage/prometheus", promhttp.Handler().ServeHTTP)

	return r
}
