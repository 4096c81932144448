package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rendis/procdoc/internal/api"
	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/export"
	"github.com/rendis/procdoc/internal/expressions"
	"github.com/rendis/procdoc/internal/kpi"
	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/review"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/streaming"
	"github.com/rendis/procdoc/internal/validation"
)

// app is the wired dependency graph shared by serve, mcp and seed.
type app struct {
	logger   *slog.Logger
	store    *store.LibSQLStore
	hub      *streaming.MemoryHub
	reviews  *review.Scheduler
	service  *service.Service
	reports  *reports.Runner
	tokens   *auth.TokenIssuer
	accounts *auth.Accounts
	cel      *expressions.CELEngine
}

// openApp opens and migrates the store, then builds every component.
func openApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s, err := store.NewLibSQLStore(cfg.dbURL())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a, err := buildApp(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return a, nil
}

func buildApp(cfg Config, s *store.LibSQLStore, logger *slog.Logger) (*app, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("no jwt_secret configured; using a random one, sessions end on restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, time.Duration(cfg.TokenTTL))
	if err != nil {
		return nil, err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, fmt.Errorf("cel engine: %w", err)
	}
	validator, err := validation.NewMetadataValidator()
	if err != nil {
		return nil, fmt.Errorf("metadata validator: %w", err)
	}
	compiler, err := export.NewCompiler(export.CompilerConfig{
		URL:              cfg.CompilerURL,
		Timeout:          time.Duration(cfg.CompilerTimeout),
		Retries:          cfg.CompilerRetries,
		BreakerThreshold: cfg.BreakerLimit,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	hub := streaming.NewMemoryHub()
	reviews := review.NewScheduler(s, hub, logger, time.Duration(cfg.ReviewInterval))
	tracker := kpi.NewTracker(s, expressions.NewExprEngine(), logger)

	svc, err := service.New(service.Deps{
		Store:     s,
		Hub:       hub,
		Validator: validator,
		Reviews:   reviews,
		KPIs:      tracker,
		Compiler:  compiler,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		logger:   logger,
		store:    s,
		hub:      hub,
		reviews:  reviews,
		service:  svc,
		reports:  reports.NewRunner(s, expressions.NewGoJQEngine(), tracker),
		tokens:   tokens,
		accounts: auth.NewAccounts(s, tokens, logger),
		cel:      cel,
	}, nil
}

// apiHandler builds the HTTP handler for the policy and cookie settings in cfg.
// It is called again on reload when those settings change.
func (a *app) apiHandler(cfg Config) (http.Handler, error) {
	policy, err := auth.NewPolicy(a.cel, cfg.Policies)
	if err != nil {
		return nil, err
	}
	srv := api.NewServer(api.Deps{
		Service:      a.service,
		Accounts:     a.accounts,
		Tokens:       a.tokens,
		Policy:       policy,
		Reports:      a.reports,
		Hub:          a.hub,
		Logger:       a.logger,
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
	})
	return srv.Handler(), nil
}

func (a *app) Close() error {
	_ = a.reviews.Stop()
	return a.store.Close()
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
