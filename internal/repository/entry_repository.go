package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
)

const entryColumns = `id, timetable_id, section_id, day_of_week, period_slot_id, period_number,
subject_id, teacher_id, room_id, created_at, updated_at`

// EntryRepository persists individual schedule cells.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository constructs repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads one entry.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE id = $1`
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByTimetable returns every cell of a timetable in canonical order.
func (r *EntryRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
WHERE timetable_id = $1 ORDER BY day_of_week, period_number, section_id`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListFiltered narrows cells by section, teacher, or weekday.
func (r *EntryRepository) ListFiltered(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error) {
	conditions := []string{"timetable_id = $1"}
	args := []interface{}{filter.TimetableID}
	idx := 2
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", idx))
		args = append(args, filter.SectionID)
		idx++
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", idx))
		args = append(args, filter.TeacherID)
		idx++
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", idx))
		args = append(args, *filter.DayOfWeek)
		idx++
	}

	query := fmt.Sprintf(`SELECT %s FROM timetable_entries WHERE %s ORDER BY day_of_week, period_number, section_id`,
		entryColumns, strings.Join(conditions, " AND "))
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list filtered entries: %w", err)
	}
	return entries, nil
}

// Create inserts a single cell.
func (r *EntryRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	return r.insert(ctx, r.db, entry)
}

// BulkCreateWithTx inserts generated cells inside one transaction.
func (r *EntryRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.TimetableEntry) error {
	for i := range entries {
		if err := r.insert(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceAllWithTx drops every cell of a timetable and writes the given set;
// used by restore. Substitutions referencing the old cells cascade away.
func (r *EntryRepository) ReplaceAllWithTx(ctx context.Context, tx *sqlx.Tx, timetableID string, entries []models.TimetableEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE timetable_id = $1`, timetableID); err != nil {
		return fmt.Errorf("clear timetable entries: %w", err)
	}
	for i := range entries {
		entries[i].TimetableID = timetableID
		if err := r.insert(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update rewrites a cell's mutable fields.
func (r *EntryRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	if entry == nil {
		return fmt.Errorf("entry payload is nil")
	}
	entry.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE timetable_entries
SET section_id = :section_id, day_of_week = :day_of_week, period_slot_id = :period_slot_id,
	period_number = :period_number, subject_id = :subject_id, teacher_id = :teacher_id,
	room_id = :room_id, updated_at = :updated_at
WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, entry)
	if err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one cell.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timetable_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *EntryRepository) insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if entry == nil {
		return fmt.Errorf("entry payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `
INSERT INTO timetable_entries (id, timetable_id, section_id, day_of_week, period_slot_id, period_number,
	subject_id, teacher_id, room_id, created_at, updated_at)
VALUES (:id, :timetable_id, :section_id, :day_of_week, :period_slot_id, :period_number,
	:subject_id, :teacher_id, :room_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}
