// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package main is the entry point for the NBI access-control server.
//
// The server wires the components in the following order:
//
//  1. Configuration: defaults, optional YAML file, NBI_-prefixed env vars (Koanf v2)
//  2. Logging: zerolog, JSON by default
//  3. Identity source: document database (internal mode) or an external
//     identity backend driver (delegated mode)
//  4. Permission catalog: the RBAC policy files compiled into the
//     operation/role indexes
//  5. Authenticator: token store, authorization engine and HTTP middleware
//  6. HTTP server: token API, health and Prometheus metrics endpoints
//
// Every route except token creation, /healthz and /metrics sits behind the
// authorization middleware. Shutdown is graceful on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfvlabs/nbi/internal/auth"
	"github.com/nfvlabs/nbi/internal/authz"
	"github.com/nfvlabs/nbi/internal/config"
	"github.com/nfvlabs/nbi/internal/database"
	"github.com/nfvlabs/nbi/internal/identity"
	"github.com/nfvlabs/nbi/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Log)
	logging.Info().Str("backend", cfg.Auth.Backend).Str("addr", cfg.HTTP.Addr).
		Msg("Starting NBI server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db database.Store
	var backend identity.Backend
	switch cfg.Auth.Backend {
	case "internal":
		db, err = database.Open(database.Config{
			Driver: cfg.Database.Driver,
			Path:   cfg.Database.Path,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Closing database")
			}
		}()
	case "delegated":
		backend, err = identity.Open(cfg.Auth.DelegatedDriver, nil)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open identity backend")
		}
	}

	resources, roles, err := authz.LoadPolicyFiles(cfg.RBAC.ResourcesFile, cfg.RBAC.RolesFile)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load RBAC policy files")
	}
	catalog, err := authz.LoadCatalog(resources, roles)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to compile permission catalog")
	}
	logging.Info().Int("operations", len(catalog.Operations())).
		Msg("Permission catalog compiled")

	store, err := auth.NewTokenStore(cfg.Auth.Backend, auth.StoreConfig{
		TokenTTL:      cfg.Auth.TokenTTL,
		PruneInterval: cfg.Auth.PruneInterval,
	}, db, backend)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build token store")
	}

	if seeder, ok := store.(interface {
		Bootstrap(ctx context.Context, initialPassword string) error
	}); ok {
		password := cfg.Auth.InitialAdminPassword
		if password == "" {
			password = "admin"
		}
		if err := seeder.Bootstrap(ctx, password); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed initial admin user")
		}
	}

	authenticator := auth.New(auth.Options{
		Mode:                     cfg.Auth.Backend,
		AllowBasicAuth:           cfg.Auth.AllowBasicAuth,
		Realm:                    cfg.Auth.Realm,
		TestUserNotAuthorized:    cfg.Auth.TestUserNotAuthorized,
		TestProjectNotAuthorized: cfg.Auth.TestProjectNotAuthorized,
	}, store, catalog, authz.NewEngine(catalog, store), backend)
	tokens := auth.NewTokenHandler(authenticator)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	router.Handle("/metrics", promhttp.Handler())

	// Token creation is how sessions begin, so it cannot sit behind the
	// session middleware.
	router.Post("/admin/v1/tokens", tokens.Create)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authenticator))
		r.Mount("/admin/v1/tokens", tokens.ProtectedRoutes())
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logging.Info().Msg("Server stopped gracefully")
}
