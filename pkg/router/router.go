package router

import (
	"net/http"

	"companion-saas/backend/internal/api"
	"companion-saas/backend/pkg/config"
	"companion-saas/backend/pkg/di"
	"companion-saas/backend/pkg/errors"
	"companion-saas/backend/pkg/logger"
	"companion-saas/backend/pkg/middleware"
	"companion-saas/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
	validator *validator.OpenAPIValidator
}

// New creates a router with the global middleware chain installed
func New(container *di.Container) (*Router, error) {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(api.Templates())

	// Request id first so the logger and error handler can tag their lines
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(metricsMiddleware(container))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))

	r := &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}

	if cfg.OpenAPI.Validate {
		v, err := validator.NewOpenAPIValidator(cfg.OpenAPI.SchemaPath)
		if err != nil {
			return nil, err
		}
		r.validator = v
		container.Logger.Info("OpenAPI validation enabled", "schema", schemaName(cfg.OpenAPI.SchemaPath))
	}

	return r, nil
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	r.Engine.GET("/", api.LandingPage)

	r.Engine.GET("/health", c.Health.Handler())
	r.Engine.GET("/api/health", c.Health.Handler())
	r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))
	r.Engine.GET("/api/docs/openapi.yaml", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/yaml", validator.Schema)
	})

	v1 := r.Engine.Group("/api/v1")
	v1.Use(middleware.BodyLimit(r.Config.Security.MaxBodySize))
	v1.Use(middleware.IdentityMiddleware(c.Verifier, middleware.IdentityOptions{
		SessionCookie:  r.Config.Auth.SessionCookie,
		AllowedOrigins: r.Config.Security.AllowedOrigins,
	}))
	if !r.Config.Auth.AllowAnonymous {
		v1.Use(middleware.RequireIdentity(api.AnonymousDisabledDetails))
	}
	v1.Use(c.RateLimiter.Middleware())
	if r.validator != nil {
		v1.Use(r.validator.Middleware())
	}

	api.NewCompanionHandler(c.CompanionService).RegisterRoutesV1(v1)
}

// ReloadOpenAPISchema re-reads the OpenAPI schema used for request validation
func (r *Router) ReloadOpenAPISchema() error {
	if r.validator == nil {
		return nil
	}
	if err := r.validator.ReloadSchema(); err != nil {
		return err
	}
	r.Logger.Info("OpenAPI schema reloaded", "schema", schemaName(r.Config.OpenAPI.SchemaPath))
	return nil
}

func schemaName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
