package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campushq/timetable-api/internal/models"
)

const conflictColumns = `id, timetable_id, conflict_type, day_of_week, period_number, description,
involved_entries, is_resolved, created_at`

// ConflictRepository persists advisory conflict records.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository constructs repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

func (r *ConflictRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreateWithTx inserts conflict records inside one transaction.
func (r *ConflictRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, conflicts []models.Conflict) error {
	const query = `
INSERT INTO timetable_conflicts (id, timetable_id, conflict_type, day_of_week, period_number, description,
	involved_entries, is_resolved, created_at)
VALUES (:id, :timetable_id, :conflict_type, :day_of_week, :period_number, :description,
	:involved_entries, :is_resolved, :created_at)`
	for i := range conflicts {
		if conflicts[i].ID == "" {
			conflicts[i].ID = uuid.NewString()
		}
		if len(conflicts[i].InvolvedEntries) == 0 {
			conflicts[i].InvolvedEntries = types.JSONText(`[]`)
		}
		conflicts[i].CreatedAt = time.Now().UTC()
		if _, err := sqlx.NamedExecContext(ctx, r.exec(tx), query, conflicts[i]); err != nil {
			return fmt.Errorf("insert timetable conflict: %w", err)
		}
	}
	return nil
}

// ListByTimetable returns conflict records, optionally including resolved.
func (r *ConflictRepository) ListByTimetable(ctx context.Context, timetableID string, includeResolved bool) ([]models.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM timetable_conflicts WHERE timetable_id = $1`
	if !includeResolved {
		query += ` AND is_resolved = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable conflicts: %w", err)
	}
	return conflicts, nil
}

// FindByID loads one conflict record.
func (r *ConflictRepository) FindByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM timetable_conflicts WHERE id = $1`
	var conflict models.Conflict
	if err := r.db.GetContext(ctx, &conflict, query, id); err != nil {
		return nil, err
	}
	return &conflict, nil
}

// MarkResolved flags a conflict as handled.
func (r *ConflictRepository) MarkResolved(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetable_conflicts SET is_resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resolve timetable conflict: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable conflict rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
