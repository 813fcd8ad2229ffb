package repository

import (
	"context"
	"fmt"

	"companion-saas/backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertCompanionSQL = `INSERT INTO ` + models.CompanionsTable + ` (name, subject, topic, voice, style, duration, author, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	RETURNING id, name, subject, topic, voice, style, duration, author, created_at`

// PgxCompanionRepository talks to PostgreSQL through a pgx pool without an ORM
type PgxCompanionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxCompanionRepository(pool *pgxpool.Pool) *PgxCompanionRepository {
	return &PgxCompanionRepository{pool: pool}
}

// InitSchema creates the companions table when it does not exist yet
func (r *PgxCompanionRepository) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + models.CompanionsTable + ` (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			subject TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			voice TEXT NOT NULL,
			style TEXT NOT NULL,
			duration BIGINT NOT NULL,
			author TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_companions_author ON ` + models.CompanionsTable + ` (author);`,
		`CREATE INDEX IF NOT EXISTS idx_companions_subject ON ` + models.CompanionsTable + ` (subject);`,
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *PgxCompanionRepository) Insert(ctx context.Context, companion *models.Companion) ([]models.Companion, error) {
	rows, err := r.pool.Query(ctx, insertCompanionSQL, insertArgs(companion)...)
	if err != nil {
		return nil, newStoreError(err)
	}

	inserted, err := pgx.CollectRows(rows, scanCompanion)
	if err != nil {
		return nil, newStoreError(err)
	}
	return inserted, nil
}

func insertArgs(c *models.Companion) []any {
	return []any{c.Name, c.Subject, c.Topic, c.Voice, c.Style, c.Duration, c.Author}
}

func scanCompanion(row pgx.CollectableRow) (models.Companion, error) {
	var c models.Companion
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.Topic, &c.Voice, &c.Style, &c.Duration, &c.Author, &c.CreatedAt)
	return c, err
}
