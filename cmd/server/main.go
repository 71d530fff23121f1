package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	reportapp "github.com/inzighted/report-service/internal/application/report"
	"github.com/inzighted/report-service/internal/infrastructure/config"
	"github.com/inzighted/report-service/internal/infrastructure/insights"
	"github.com/inzighted/report-service/internal/infrastructure/logger"
	"github.com/inzighted/report-service/internal/infrastructure/render"
	"github.com/inzighted/report-service/internal/infrastructure/storage"
	"github.com/inzighted/report-service/internal/infrastructure/tenant"
	"github.com/inzighted/report-service/internal/interfaces/http/handler"
	"github.com/inzighted/report-service/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting report service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Object storage: the PDF cache. The service degrades to
	// render-always when storage is disabled.
	var store reportapp.ObjectStore
	if cfg.Storage.Enabled {
		gateway, err := storage.NewS3Gateway(cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := gateway.EnsureBucket(ensureCtx); err != nil {
			log.Warn("Bucket check failed, uploads may not persist", zap.Error(err))
		}
		cancel()
		store = gateway
		log.Info("Object storage connected", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		store = storage.NewDisabledGateway()
		log.Info("Object storage disabled, every request renders fresh")
	}

	// Headless browser session. The browser itself launches lazily on
	// the first render.
	session := render.NewSession(cfg.PDF, log)
	defer func() {
		if err := session.Close(); err != nil {
			log.Error("Error closing browser session", zap.Error(err))
		}
	}()

	resolver := tenant.NewResolver(
		exactTenants(cfg.Tenants),
		keywordTenants(cfg.Tenants),
		tenant.URLs{
			Frontend: cfg.Tenants.DefaultFrontend,
			Backend:  cfg.Tenants.DefaultBackend,
		},
		log,
	)
	log.Info("Tenant table loaded", zap.Int("sites", len(cfg.Tenants.Sites)))

	insightsClient := insights.NewClient(nil, log)

	reportService := reportapp.NewService(store, session, resolver, insightsClient, log,
		reportapp.Options{
			TempDir:         cfg.PDF.TempDir,
			CleanupDelay:    cfg.PDF.CleanupDelay,
			ScheduleCleanup: cfg.IsProduction(),
			BulkConcurrency: cfg.PDF.BulkConcurrency,
		})

	engine := router.New(router.Deps{
		Config:  cfg,
		Logger:  log,
		Reports: handler.NewReportHandler(reportService, cfg.IsProduction(), cfg.Tenants.DefaultFrontend),
		Health:  handler.NewHealthHandler(cfg.App.Env, cfg.App.Name, cfg.App.Version),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// exactTenants builds the origin -> tenant table keyed by each site's
// frontend URL.
func exactTenants(cfg config.TenantsConfig) map[string]tenant.URLs {
	exact := make(map[string]tenant.URLs, len(cfg.Sites))
	for _, site := range cfg.Sites {
		if site.Frontend == "" {
			continue
		}
		exact[site.Frontend] = tenant.URLs{
			Frontend: site.Frontend,
			Backend:  site.Backend,
		}
	}
	return exact
}

// keywordTenants collects the sites that also route by hostname keyword.
func keywordTenants(cfg config.TenantsConfig) []tenant.KeywordTenant {
	var keywords []tenant.KeywordTenant
	for _, site := range cfg.Sites {
		if site.Keyword == "" {
			continue
		}
		keywords = append(keywords, tenant.KeywordTenant{
			Keyword: site.Keyword,
			URLs: tenant.URLs{
				Frontend: site.Frontend,
				Backend:  site.Backend,
			},
		})
	}
	return keywords
}
