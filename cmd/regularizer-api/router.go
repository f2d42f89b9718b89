// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/cmd/regularizer-api/handlers"
	"github.com/saaqdata/regularizer/internal/config"
	"github.com/saaqdata/regularizer/pkg/engine"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger zerolog.Logger, eng *engine.Engine, db *sql.DB, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"regularizer"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	pairsHandler := handlers.NewPairsHandler(logger, eng)
	mappingsHandler := handlers.NewMappingsHandler(logger, eng)
	expansionHandler := handlers.NewExpansionHandler(logger, eng)
	adminHandler := handlers.NewAdminHandler(logger, eng)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pairs", func(r chi.Router) {
			r.Get("/", pairsHandler.List)
			r.Get("/coverage", pairsHandler.Coverage)
		})

		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", mappingsHandler.List)
			r.Post("/", mappingsHandler.Create)
			r.Put("/{id}", mappingsHandler.Update)
			r.Delete("/{id}", mappingsHandler.Delete)
			r.Post("/years", mappingsHandler.CreateYear)
			r.Delete("/years/{id}", mappingsHandler.DeleteYear)
		})

		r.Route("/expand", func(r chi.Router) {
			r.Post("/", expansionHandler.Expand)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/years", adminHandler.GetYears)
			r.Put("/years", adminHandler.PutYears)
			r.Get("/regularization", adminHandler.GetToggle)
			r.Put("/regularization", adminHandler.PutToggle)
			r.Post("/autoassign", adminHandler.AutoAssign)
			r.Get("/runs", adminHandler.Runs)
		})
	})

	return r
}
