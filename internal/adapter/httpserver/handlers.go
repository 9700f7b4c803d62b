package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carrental/gateway/internal/aggregator"
	"github.com/carrental/gateway/internal/breaker"
	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/domain"
	"github.com/carrental/gateway/internal/saga"
	"github.com/carrental/gateway/internal/upstream"
)

// Server aggregates the dependencies every handler needs: the cars
// pass-through client+breaker, the saga coordinator (writes), and the read
// aggregator (reads).
type Server struct {
	cfg config.Config

	cars        *upstream.Client
	carsBreaker *breaker.Breaker

	saga       *saga.Coordinator
	aggregator *aggregator.Aggregator
}

// NewServer constructs a Server with all handler dependencies wired.
func NewServer(cfg config.Config, cars *upstream.Client, breakers *breaker.Registry, coordinator *saga.Coordinator, agg *aggregator.Aggregator) *Server {
	carsSettings := cfg.Breakers()[0] // cars_service is first in canonical order
	return &Server{
		cfg:         cfg,
		cars:        cars,
		carsBreaker: breakers.Get(carsSettings.Name, carsSettings.FailureThreshold, carsSettings.OpenTimeout),
		saga:        coordinator,
		aggregator:  agg,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// CarsListHandler is the simple pass-through GET /api/v1/cars?page=&size=&showAll=
// endpoint. On cars outage it falls back to an empty page.
func (s *Server) CarsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := q.Get("page")
		size := q.Get("size")
		showAll := q.Get("showAll")

		carPage, err := breaker.Call[domain.CarPage](s.carsBreaker, func() (domain.CarPage, error) {
			var out domain.CarPage
			values := url.Values{}
			if page != "" {
				values.Set("page", page)
			}
			if size != "" {
				values.Set("size", size)
			}
			if showAll != "" {
				values.Set("show_all", showAll)
			}
			path := "/api/v1/cars"
			if enc := values.Encode(); enc != "" {
				path += "?" + enc
			}
			_, e := s.cars.Do(r.Context(), http.MethodGet, path, nil, &out)
			return out, e
		}, func() (domain.CarPage, error) {
			return domain.CarPage{Items: []domain.Car{}}, nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, carPage)
	}
}

// CreateRentalHandler is POST /api/v1/rental.
func (s *Server) CreateRentalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateRentalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeValidationError(w, err)
			return
		}

		username := r.Header.Get("X-User-Name")
		resp, err := s.saga.CreateRental(r.Context(), username, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListRentalsHandler is GET /api/v1/rental.
func (s *Server) ListRentalsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-User-Name")
		out, err := s.aggregator.ListRentals(r.Context(), username)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetRentalHandler is GET /api/v1/rental/{uid}.
func (s *Server) GetRentalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-User-Name")
		uid := chi.URLParam(r, "uid")
		out, err := s.aggregator.GetRental(r.Context(), username, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CancelRentalHandler is DELETE /api/v1/rental/{uid}.
func (s *Server) CancelRentalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-User-Name")
		uid := chi.URLParam(r, "uid")
		if err := s.saga.CancelRental(r.Context(), username, uid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// FinishRentalHandler is POST /api/v1/rental/{uid}/finish.
func (s *Server) FinishRentalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-User-Name")
		uid := chi.URLParam(r, "uid")
		if err := s.saga.FinishRental(r.Context(), username, uid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
