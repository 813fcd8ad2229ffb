package di

import (
	"context"
	"fmt"
	"time"

	"companion-saas/backend/internal/repository"
	"companion-saas/backend/internal/service"
	"companion-saas/backend/pkg/auth"
	"companion-saas/backend/pkg/config"
	"companion-saas/backend/pkg/health"
	"companion-saas/backend/pkg/logger"
	"companion-saas/backend/pkg/middleware"
	"companion-saas/backend/pkg/observability"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// MetricsNamespace prefixes every exported metric
const MetricsNamespace = "companion_saas"

// Store is the persistence backend chosen by DB_DRIVER
type Store struct {
	Repository repository.CompanionRepository
	Ping       func(ctx context.Context) error
}

// NewGormStore wraps a gorm connection
func NewGormStore(db *gorm.DB) Store {
	return Store{
		Repository: repository.NewGormCompanionRepository(db),
		Ping: func(ctx context.Context) error {
			return config.TestConnection(ctx, db)
		},
	}
}

// NewPgxStore wraps a pgx pool
func NewPgxStore(pool *pgxpool.Pool) Store {
	return Store{
		Repository: repository.NewPgxCompanionRepository(pool),
		Ping:       pool.Ping,
	}
}

// Container holds all the dependencies for the application
type Container struct {
	Config           *config.Config
	Logger           *logger.Logger
	Store            Store
	Verifier         *auth.Verifier
	Metrics          *observability.Metrics
	Health           *health.Checker
	CompanionService *service.CompanionService
	RateLimiter      *middleware.RateLimiter
}

// New wires the application services on top of store
func New(cfg *config.Config, log *logger.Logger, store Store) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store.Repository == nil {
		return nil, fmt.Errorf("store repository is required")
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:       cfg.Auth.JWTSecret,
		PublicKeyPEM: cfg.Auth.JWTPublicKey,
		Issuer:       cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	metrics := observability.NewMetrics(MetricsNamespace)

	checker := health.NewChecker(log, cfg.Server.Version, cfg.Database.Timeout)
	if store.Ping != nil {
		checker.RegisterDatabaseCheck(store.Ping)
	}

	companionService := service.NewCompanionService(
		store.Repository,
		service.CompanionServiceConfig{AllowAnonymous: cfg.Auth.AllowAnonymous},
		log,
		metrics,
	)

	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	limiterOpts.ExpiryDuration = 30 * time.Minute

	return &Container{
		Config:           cfg,
		Logger:           log,
		Store:            store,
		Verifier:         verifier,
		Metrics:          metrics,
		Health:           checker,
		CompanionService: companionService,
		RateLimiter:      middleware.NewRateLimiter(log, limiterOpts),
	}, nil
}
