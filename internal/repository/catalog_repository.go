package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
)

// CatalogRepository reads the external entity tables the engine schedules
// against. All of them are owned by the school-admin service; this repository
// never writes to them.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindActiveTemplate resolves the active period template for a scheduling
// context. Season-scoped templates win over season-less ones.
func (r *CatalogRepository) FindActiveTemplate(ctx context.Context, branchID, shiftID string, seasonID *string) (*models.PeriodTemplate, error) {
	const query = `
SELECT id, branch_id, shift_id, season_id, name, is_active
FROM period_templates
WHERE branch_id = $1 AND shift_id = $2 AND is_active = TRUE
	AND (season_id = $3 OR season_id IS NULL)
ORDER BY season_id NULLS LAST
LIMIT 1`
	var template models.PeriodTemplate
	if err := r.db.GetContext(ctx, &template, query, branchID, shiftID, seasonID); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListSlots returns a template's slots ordered by period number, breaks
// included.
func (r *CatalogRepository) ListSlots(ctx context.Context, templateID string) ([]models.PeriodSlot, error) {
	const query = `
SELECT id, template_id, period_number, name, start_time, end_time, is_break
FROM period_slots WHERE template_id = $1 ORDER BY period_number`
	var slots []models.PeriodSlot
	if err := r.db.SelectContext(ctx, &slots, query, templateID); err != nil {
		return nil, fmt.Errorf("list period slots: %w", err)
	}
	return slots, nil
}

// FindSlot loads one period slot.
func (r *CatalogRepository) FindSlot(ctx context.Context, slotID string) (*models.PeriodSlot, error) {
	const query = `
SELECT id, template_id, period_number, name, start_time, end_time, is_break
FROM period_slots WHERE id = $1`
	var slot models.PeriodSlot
	if err := r.db.GetContext(ctx, &slot, query, slotID); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListByShift returns the active sections scheduled in one shift.
func (r *CatalogRepository) ListByShift(ctx context.Context, branchID, shiftID, sessionID string) ([]models.Section, error) {
	const query = `
SELECT s.id, s.grade_id, g.name AS grade_name, s.name, s.shift_id, s.is_active
FROM sections s
JOIN grades g ON g.id = s.grade_id
WHERE g.branch_id = $1 AND s.shift_id = $2 AND g.session_id = $3 AND s.is_active = TRUE
ORDER BY g.name, s.name`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, branchID, shiftID, sessionID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListBySections returns the active assignments for a section set, with
// subject and teacher display names joined in.
func (r *CatalogRepository) ListBySections(ctx context.Context, sectionIDs []string, sessionID string) ([]models.Assignment, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
SELECT a.id, a.section_id, a.subject_id, sub.name AS subject_name,
	a.teacher_id, t.full_name AS teacher_name, a.session_id, a.weekly_periods, a.is_active
FROM assignments a
JOIN subjects sub ON sub.id = a.subject_id
JOIN teachers t ON t.id = a.teacher_id
WHERE a.section_id IN (?) AND a.session_id = ? AND a.is_active = TRUE`, sectionIDs, sessionID)
	if err != nil {
		return nil, fmt.Errorf("build assignment query: %w", err)
	}
	query = r.db.Rebind(query)

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindTeacher loads one roster teacher.
func (r *CatalogRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, is_active, is_placeholder FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListActiveTeachers returns the active roster, placeholders included;
// callers filter placeholders where they matter.
func (r *CatalogRepository) ListActiveTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, full_name, is_active, is_placeholder FROM teachers WHERE is_active = TRUE ORDER BY full_name`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}
