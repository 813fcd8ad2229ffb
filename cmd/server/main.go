package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion-saas/backend/internal/models"
	"companion-saas/backend/internal/repository"
	"companion-saas/backend/pkg/config"
	"companion-saas/backend/pkg/di"
	"companion-saas/backend/pkg/logger"
	"companion-saas/backend/pkg/observability"
	"companion-saas/backend/pkg/router"
	"companion-saas/backend/pkg/secrets"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every resource so that deferred cleanup happens on all exit paths
func run() error {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", cfg.Server.Version, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretManager, err := secrets.NewVaultManager(secrets.VaultConfig{
		Enabled:     cfg.Vault.Enabled,
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		Mount:       cfg.Vault.Mount,
		SecretsPath: cfg.Vault.SecretsPath,
		Timeout:     cfg.Vault.Timeout,
		MaxRetries:  3,
	}, log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		return err
	}
	cfg.ApplySecrets(ctx, secretManager)

	if err := cfg.Validate(); err != nil {
		log.LogError(err, "Invalid configuration")
		return err
	}

	if cfg.Observability.Tracing {
		shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName, cfg.Server.Version, os.Stdout)
		if err != nil {
			log.LogError(err, "Failed to initialize tracing")
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.LogError(err, "Failed to flush traces")
			}
		}()
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize database", "driver", cfg.Database.Driver)
		return err
	}
	defer closeStore()

	container, err := di.New(cfg, log, store)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		return err
	}

	r, err := router.New(container)
	if err != nil {
		log.LogError(err, "Failed to initialize router")
		return err
	}
	r.SetupRoutes()

	container.Health.Start(ctx, 30*time.Second)
	go container.RateLimiter.Run(ctx, time.Minute)
	if cfg.Vault.Enabled {
		go secretManager.Run(ctx)
	}
	go reloadOnHangup(ctx, r, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
		return err
	}

	log.Info("Server exited gracefully")
	return nil
}

// reloadOnHangup re-reads the OpenAPI schema on SIGHUP
func reloadOnHangup(ctx context.Context, r *router.Router, log *logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := r.ReloadOpenAPISchema(); err != nil {
				log.LogError(err, "Failed to reload OpenAPI schema")
			}
		}
	}
}

// openStore connects with the configured driver and prepares the schema
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (di.Store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPgx:
		pool, err := config.NewPool(ctx, cfg)
		if err != nil {
			return di.Store{}, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := repository.NewPgxCompanionRepository(pool).InitSchema(ctx); err != nil {
				pool.Close()
				return di.Store{}, nil, err
			}
		}
		return di.NewPgxStore(pool), pool.Close, nil

	default:
		db, err := config.NewDB(cfg, log)
		if err != nil {
			return di.Store{}, nil, err
		}
		return gormStore(db, cfg.Database.AutoMigrate)
	}
}

// gormStore migrates the schema when asked; the connection is closed if that fails
func gormStore(db *gorm.DB, autoMigrate bool) (di.Store, func(), error) {
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if autoMigrate {
		if err := db.AutoMigrate(&models.Companion{}); err != nil {
			closeDB()
			return di.Store{}, nil, err
		}
	}
	return di.NewGormStore(db), closeDB, nil
}
