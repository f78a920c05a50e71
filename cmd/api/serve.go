package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/auth"
	"github.com/octobees/dealflow-crm/internal/config"
	"github.com/octobees/dealflow-crm/internal/database"
	"github.com/octobees/dealflow-crm/internal/extraction"
	"github.com/octobees/dealflow-crm/internal/handler"
	middlewarepkg "github.com/octobees/dealflow-crm/internal/middleware"
	"github.com/octobees/dealflow-crm/internal/repository"
	"github.com/octobees/dealflow-crm/internal/router"
	"github.com/octobees/dealflow-crm/internal/service"
	"github.com/octobees/dealflow-crm/internal/service/enrichment"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var jwtOpts []auth.Option
	if cfg.JWTAudience != "" {
		jwtOpts = append(jwtOpts, auth.WithAudience(cfg.JWTAudience))
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0, jwtOpts...)

	companiesService, enrichmentService := buildServices(pool, cfg)

	extractor, err := extraction.NewClient(nil, cfg.WorkerBaseURL)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Companies:  handler.NewCompaniesHandler(companiesService),
		Enrichment: handler.NewEnrichmentHandler(enrichmentService, extractor),
		Import:     handler.NewImportHandler(companiesService),
	})

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("port", cfg.Port))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutdown requested")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func buildServices(db repository.DB, cfg *config.Config) (*service.CompaniesService, *enrichment.Service) {
	companiesRepo := repository.NewPGXCompaniesRepository(db)
	auditLogger := repository.NewAuditLogger(repository.NewPGXAuditRepository(db))

	enrichmentService := enrichment.NewService(
		companiesRepo,
		repository.NewPGXContactsRepository(db),
		repository.NewPGXDealsRepository(db),
		auditLogger,
		enrichment.WithPhoneRegion(cfg.PhoneRegion),
		enrichment.WithNameMatchLimit(cfg.NameMatchLimit),
	)

	return service.NewCompaniesService(companiesRepo, enrichmentService), enrichmentService
}
