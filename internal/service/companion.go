package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"companion-saas/backend/internal/models"
	"companion-saas/backend/internal/repository"
	"companion-saas/backend/pkg/auth"
	"companion-saas/backend/pkg/logger"
	"companion-saas/backend/pkg/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCreationFailedMessage is reported when the database neither
// returned a row nor an error message
const DefaultCreationFailedMessage = "Failed to create a companion"

const maxDuration = 240

var (
	ErrCreationFailed   = errors.New("companion creation failed")
	ErrInvalidCompanion = errors.New("invalid companion")
	ErrUnauthenticated  = errors.New("authentication required to create a companion")
)

// CreationFailedError carries the database's message for a rejected insert.
// It matches ErrCreationFailed with errors.Is.
type CreationFailedError struct {
	Message string
	Err     error
}

func (e *CreationFailedError) Error() string {
	return e.Message
}

func (e *CreationFailedError) Unwrap() error {
	return e.Err
}

func (e *CreationFailedError) Is(target error) bool {
	return target == ErrCreationFailed
}

func newCreationFailed(err error) *CreationFailedError {
	msg := DefaultCreationFailedMessage
	var storeErr *repository.StoreError
	switch {
	case errors.As(err, &storeErr) && storeErr.Message != "":
		msg = storeErr.Message
	case err != nil && err.Error() != "":
		msg = err.Error()
	}
	return &CreationFailedError{Message: msg, Err: err}
}

// CompanionServiceConfig tunes the creation policy
type CompanionServiceConfig struct {
	// AllowAnonymous lets callers without a verified identity create
	// companions with a null author
	AllowAnonymous bool
}

// CompanionService creates companions on behalf of authenticated callers
type CompanionService struct {
	repo    repository.CompanionRepository
	config  CompanionServiceConfig
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewCompanionService(repo repository.CompanionRepository, config CompanionServiceConfig, log *logger.Logger, metrics *observability.Metrics) *CompanionService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CompanionService{
		repo:    repo,
		config:  config,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("companion-saas/backend/internal/service"),
	}
}

// CreateCompanion validates req, stamps it with the caller as author and
// inserts it. The returned companion is the row reported by the database.
func (s *CompanionService) CreateCompanion(ctx context.Context, identity auth.Identity, req *models.CreateCompanionRequest) (companion *models.Companion, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "companion.create",
		trace.WithAttributes(attribute.Bool("companion.anonymous", identity.IsAnonymous())),
	)
	defer func() {
		s.observe(err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateCompanion(req); err != nil {
		return nil, err
	}

	if identity.IsAnonymous() {
		if !s.config.AllowAnonymous {
			return nil, ErrUnauthenticated
		}
		s.log.Warn("Creating companion without an author", "subject", req.Subject)
	}

	row := req.ToCompanion(identity.Author())

	rows, err := s.repo.Insert(ctx, row)
	if err != nil {
		return nil, newCreationFailed(err)
	}
	if len(rows) == 0 {
		return nil, newCreationFailed(nil)
	}

	created := rows[0]
	span.SetAttributes(attribute.Int64("companion.id", int64(created.ID)))
	s.log.Info("Companion created",
		"companion_id", created.ID,
		"author", identity.UserID,
		"subject", created.Subject,
	)

	return &created, nil
}

func (s *CompanionService) observe(err error, d time.Duration) {
	if s.metrics == nil {
		return
	}

	outcome := observability.OutcomeCreated
	switch {
	case errors.Is(err, ErrInvalidCompanion):
		outcome = observability.OutcomeInvalid
	case errors.Is(err, ErrUnauthenticated):
		outcome = observability.OutcomeUnauthenticated
	case err != nil:
		outcome = observability.OutcomeFailed
	}
	s.metrics.ObserveCreate(outcome, d)
}

// validateCompanion repeats the binding rules for callers that do not come
// through gin. Whitespace-only values count as missing; req is not modified.
func validateCompanion(req *models.CreateCompanionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing request", ErrInvalidCompanion)
	}

	required := []struct {
		field, value string
		max          int
	}{
		{"name", req.Name, 100},
		{"subject", req.Subject, 50},
		{"voice", req.Voice, 50},
		{"style", req.Style, 50},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidCompanion, f.field)
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidCompanion, f.field, f.max)
		}
	}
	if utf8.RuneCountInString(req.Topic) > 500 {
		return fmt.Errorf("%w: topic must be at most 500 characters", ErrInvalidCompanion)
	}
	if req.Duration < 1 || req.Duration > maxDuration {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidCompanion, maxDuration)
	}

	return nil
}
