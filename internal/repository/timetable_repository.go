package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campushq/timetable-api/internal/models"
)

const timetableColumns = `id, branch_id, session_id, season_id, shift_id, name, description, status,
effective_from, effective_to, schedule_data, created_by, published_by, published_at,
current_version, created_at, updated_at`

// TimetableRepository persists timetable headers and their lifecycle state.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// AcquireGenerationLock serialises generation for one scheduling context via
// a transaction-scoped advisory lock. Released automatically on commit or
// rollback.
func (r *TimetableRepository) AcquireGenerationLock(ctx context.Context, tx *sqlx.Tx, branchID, sessionID, shiftID string, seasonID *string) error {
	season := ""
	if seasonID != nil {
		season = *seasonID
	}
	key := strings.Join([]string{"timetable_generation", branchID, sessionID, shiftID, season}, ":")
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("acquire generation lock: %w", err)
	}
	return nil
}

// CreateWithTx inserts a timetable header.
func (r *TimetableRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.ScheduleData) == 0 {
		timetable.ScheduleData = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	timetable.CreatedAt = now
	timetable.UpdatedAt = now

	const query = `
INSERT INTO timetables (id, branch_id, session_id, season_id, shift_id, name, description, status,
	effective_from, effective_to, schedule_data, created_by, current_version, created_at, updated_at)
VALUES (:id, :branch_id, :session_id, :season_id, :shift_id, :name, :description, :status,
	:effective_from, :effective_to, :schedule_data, :created_by, :current_version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(tx), query, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// FindByID loads one timetable.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// List returns timetables matching the filter plus the unpaginated total.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", idx))
		args = append(args, filter.BranchID)
		idx++
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", idx))
		args = append(args, filter.SessionID)
		idx++
	}
	if filter.ShiftID != "" {
		conditions = append(conditions, fmt.Sprintf("shift_id = $%d", idx))
		args = append(args, filter.ShiftID)
		idx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM timetables WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM timetables WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		timetableColumns, where, idx, idx+1)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, total, nil
}

// MarkPublishedWithTx flips the timetable to published and records the new
// version, snapshot, publisher, and effective window.
func (r *TimetableRepository) MarkPublishedWithTx(ctx context.Context, tx *sqlx.Tx, id string, version int, snapshot types.JSONText, publishedBy string, effectiveFrom, effectiveTo *time.Time) error {
	const query = `
UPDATE timetables
SET status = $1, current_version = $2, schedule_data = $3, published_by = $4, published_at = $5,
	effective_from = COALESCE($6, effective_from), effective_to = COALESCE($7, effective_to), updated_at = $5
WHERE id = $8`
	now := time.Now().UTC()
	var publisher interface{}
	if publishedBy != "" {
		publisher = publishedBy
	}
	result, err := r.exec(tx).ExecContext(ctx, query, models.TimetableStatusPublished, version, snapshot, publisher, now, effectiveFrom, effectiveTo, id)
	if err != nil {
		return fmt.Errorf("mark timetable published: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable publish rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSnapshotWithTx replaces the cached schedule snapshot and bumps the
// version counter; used by restore.
func (r *TimetableRepository) UpdateSnapshotWithTx(ctx context.Context, tx *sqlx.Tx, id string, version int, snapshot types.JSONText) error {
	const query = `UPDATE timetables SET current_version = $1, schedule_data = $2, updated_at = $3 WHERE id = $4`
	result, err := r.exec(tx).ExecContext(ctx, query, version, snapshot, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable snapshot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
