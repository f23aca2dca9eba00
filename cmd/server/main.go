// Package main provides the obdai API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obdai/obdai/internal/api"
	"github.com/obdai/obdai/internal/auth"
	"github.com/obdai/obdai/internal/catalog"
	"github.com/obdai/obdai/internal/config"
	"github.com/obdai/obdai/internal/database"
	"github.com/obdai/obdai/internal/diagnosis"
	"github.com/obdai/obdai/internal/llm"
	"github.com/obdai/obdai/internal/logging"
	"github.com/rs/zerolog"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		migrateOnly = flag.Bool("migrate", false, "Run migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.IsDevelopment())

	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger, migrateOnly bool) error {
	// Accounts are optional: without DATABASE_URL the server only diagnoses.
	withAccounts := cfg.DatabaseURL != ""

	req := config.RequireGemini
	if withAccounts {
		req |= config.RequireDatabase | config.RequireJWT
	}
	if migrateOnly {
		req = config.RequireDatabase
	}
	if err := cfg.Validate(req); err != nil {
		return err
	}

	apiCfg := api.Config{
		Logger:        logger,
		CORSOrigin:    cfg.CORSOrigin,
		RatePerMinute: cfg.Diagnose.RatePerMinute,
		Burst:         cfg.Diagnose.Burst,
	}

	ctx := context.Background()

	if withAccounts {
		logger.Info().Msg("running database migrations")
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info().Msg("migrations complete")

		if migrateOnly {
			return nil
		}

		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}

		verifiers := auth.Chain{issuer}
		if cfg.Auth.ProviderDomain != "" {
			provider, err := auth.NewProviderVerifier(ctx, auth.ProviderConfig{
				Domain:   cfg.Auth.ProviderDomain,
				Audience: cfg.Auth.ProviderAudience,
			})
			if err != nil {
				return fmt.Errorf("failed to create provider verifier: %w", err)
			}
			verifiers = append(verifiers, provider)
			logger.Info().Str("domain", cfg.Auth.ProviderDomain).Msg("identity provider sessions enabled")
		}

		apiCfg.Store = db
		apiCfg.Issuer = issuer
		apiCfg.Verifier = verifiers
	} else {
		logger.Warn().Msg("DATABASE_URL not set; accounts, garage and history are disabled")
	}

	client, err := llm.NewClient(cfg.Gemini.APIKey,
		llm.WithModel(cfg.Gemini.Model),
		llm.WithBaseURL(cfg.Gemini.BaseURL),
	)
	if err != nil {
		return err
	}
	apiCfg.Diagnoser = diagnosis.New(client,
		diagnosis.WithStrict(cfg.Diagnose.Strict),
		diagnosis.WithLogger(logger.With().Str("component", "diagnosis").Logger()),
	)

	lookup, err := catalog.NewClient(cfg.Catalog.CacheSize,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithLogger(logger.With().Str("component", "catalog").Logger()),
	)
	if err != nil {
		return err
	}
	apiCfg.Catalog = lookup

	server := api.NewServer(apiCfg)

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		// Diagnoses wait up to the completion timeout.
		WriteTimeout: llm.DefaultTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("model", client.Model()).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
