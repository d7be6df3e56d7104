package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/sigepol/risk-engine/internal/engine"
	"github.com/sigepol/risk-engine/internal/engine/clusterimport"
	"github.com/sigepol/risk-engine/internal/logger"
	"github.com/sigepol/risk-engine/internal/store"
)

type application struct {
	config    config
	store     *store.Storage
	engine    *engine.Engine
	importer  *clusterimport.Importer
	validate  *validator.Validate
	appLogger *logger.Logger
}

type config struct {
	addr     string
	logLevel string
	devStore bool
	db       dbConfig
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/stats", app.handleGetCollectionStats)
			r.Post("/{id}/payment", app.handleRegisterPayment)
			r.Post("/{id}/cancel", app.handleCancelCollection)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/stats", app.handleGetAlertStats)
			r.Patch("/{id}/read", app.handleMarkAlertRead)
			r.Patch("/{id}/resolve", app.handleResolveAlert)
			r.Patch("/{id}/discard", app.handleDiscardAlert)
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/", app.handleRunEvaluation)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/{id}/classification", app.handleClassifyPolicy)
		})

		r.Route("/ml", func(r chi.Router) {
			r.Post("/import", app.handleImportClusterResults)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	app.appLogger.Info("Main", "Server started on %s", app.config.addr)
	return srv.ListenAndServe()
}
