package repository

import (
	"context"
	"errors"

	"companion-saas/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanionRepository inserts companions into the hosted database.
// Insert returns the rows the database reports as inserted; an empty slice
// with a nil error means the database accepted the statement but returned nothing.
type CompanionRepository interface {
	Insert(ctx context.Context, companion *models.Companion) ([]models.Companion, error)
}

// StoreError is a failure reported by the database. Message is the database's
// own description, e.g. the PostgreSQL server message.
type StoreError struct {
	Message string
	Code    string
	Err     error
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// newStoreError extracts the server message from PostgreSQL errors so callers
// see "duplicate key value violates unique constraint ..." rather than the
// driver's formatted string
func newStoreError(err error) *StoreError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreError{Message: pgErr.Message, Code: pgErr.Code, Err: err}
	}
	return &StoreError{Message: err.Error(), Err: err}
}

// GormCompanionRepository is the default gorm-backed repository
type GormCompanionRepository struct {
	db *gorm.DB
}

func NewGormCompanionRepository(db *gorm.DB) *GormCompanionRepository {
	return &GormCompanionRepository{db: db}
}

func (r *GormCompanionRepository) Insert(ctx context.Context, companion *models.Companion) ([]models.Companion, error) {
	row := *companion

	result := r.db.WithContext(ctx).
		Table(models.CompanionsTable).
		Clauses(clause.Returning{}).
		Create(&row)
	if result.Error != nil {
		return nil, newStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return []models.Companion{}, nil
	}

	return []models.Companion{row}, nil
}
