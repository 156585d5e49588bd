// Package server is the HTTP surface of the candles service (vigild). It
// exposes the create/update/list/count contract the session's api backend
// consumes, plus health and Prometheus metrics endpoints.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vigilspace/vigil/internal/store"
)

// Config holds the service's HTTP settings.
type Config struct {
	Addr                 string
	APIKey               string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	MaxNoteLength        int
}

// Server wires the store backend into HTTP handlers.
type Server struct {
	Store   store.Backend
	Log     zerolog.Logger
	Metrics *Collector
	Config  Config
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(s.Config.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-API-Key"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: s.Config.CORSAllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route("/api/v1/candles", func(r chi.Router) {
		if s.Config.APIKey != "" {
			r.Use(s.requireAPIKey)
		}

		r.Post("/", s.createCandle)
		r.Get("/", s.listCandles)
		r.Get("/count", s.countCandles)
		r.Patch("/{id}", s.updateCandle)
	})

	return r
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.Config.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
