package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
)

const substitutionColumns = `id, timetable_id, entry_id, substitute_teacher_id, substitution_type,
date, start_date, end_date, reason, notes, is_active, created_by, created_at, updated_at`

// SubstitutionRepository persists teacher override records.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository constructs repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

func (r *SubstitutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts one substitution.
func (r *SubstitutionRepository) Create(ctx context.Context, substitution *models.Substitution) error {
	return r.insert(ctx, r.db, substitution)
}

// BulkCreateWithTx inserts a batch of substitutions atomically.
func (r *SubstitutionRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, substitutions []models.Substitution) error {
	for i := range substitutions {
		if err := r.insert(ctx, tx, &substitutions[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads one substitution.
func (r *SubstitutionRepository) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	query := `SELECT ` + substitutionColumns + ` FROM substitutions WHERE id = $1`
	var substitution models.Substitution
	if err := r.db.GetContext(ctx, &substitution, query, id); err != nil {
		return nil, err
	}
	return &substitution, nil
}

// Deactivate flips is_active off; the record is kept for history.
func (r *SubstitutionRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE substitutions SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate substitution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("substitution rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActive returns every substitution still flagged active; window-based
// status filtering happens in the service layer.
func (r *SubstitutionRepository) ListActive(ctx context.Context) ([]models.Substitution, error) {
	query := `SELECT ` + substitutionColumns + ` FROM substitutions WHERE is_active = TRUE ORDER BY created_at DESC`
	var substitutions []models.Substitution
	if err := r.db.SelectContext(ctx, &substitutions, query); err != nil {
		return nil, fmt.Errorf("list active substitutions: %w", err)
	}
	return substitutions, nil
}

func (r *SubstitutionRepository) insert(ctx context.Context, exec sqlx.ExtContext, substitution *models.Substitution) error {
	if substitution == nil {
		return fmt.Errorf("substitution payload is nil")
	}
	if substitution.ID == "" {
		substitution.ID = uuid.NewString()
	}
	if substitution.Type == "" {
		substitution.Type = models.SubstitutionSinglePeriod
	}
	now := time.Now().UTC()
	substitution.CreatedAt = now
	substitution.UpdatedAt = now

	const query = `
INSERT INTO substitutions (id, timetable_id, entry_id, substitute_teacher_id, substitution_type,
	date, start_date, end_date, reason, notes, is_active, created_by, created_at, updated_at)
VALUES (:id, :timetable_id, :entry_id, :substitute_teacher_id, :substitution_type,
	:date, :start_date, :end_date, :reason, :notes, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, substitution); err != nil {
		return fmt.Errorf("insert substitution: %w", err)
	}
	return nil
}
