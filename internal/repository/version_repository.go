package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campushq/timetable-api/internal/models"
)

const versionColumns = `id, timetable_id, version_number, schedule_data, change_note, diff_summary, created_by, created_at`

// VersionRepository persists immutable timetable snapshots.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateWithTx inserts a new version row. Version numbers are caller-assigned;
// the unique constraint on (timetable_id, version_number) catches races.
func (r *VersionRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, version *models.TimetableVersion) error {
	if version == nil {
		return fmt.Errorf("version payload is nil")
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if len(version.ScheduleData) == 0 {
		version.ScheduleData = types.JSONText(`{}`)
	}
	if len(version.DiffSummary) == 0 {
		version.DiffSummary = types.JSONText(`{}`)
	}
	version.CreatedAt = time.Now().UTC()

	const query = `
INSERT INTO timetable_versions (id, timetable_id, version_number, schedule_data, change_note, diff_summary, created_by, created_at)
VALUES (:id, :timetable_id, :version_number, :schedule_data, :change_note, :diff_summary, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(tx), query, version); err != nil {
		return fmt.Errorf("insert timetable version: %w", err)
	}
	return nil
}

// FindByID loads one version snapshot.
func (r *VersionRepository) FindByID(ctx context.Context, id string) (*models.TimetableVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM timetable_versions WHERE id = $1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// FindLatest returns the highest-numbered version of a timetable.
func (r *VersionRepository) FindLatest(ctx context.Context, timetableID string) (*models.TimetableVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM timetable_versions WHERE timetable_id = $1 ORDER BY version_number DESC LIMIT 1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query, timetableID); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByTimetable returns version history newest first with the total count.
func (r *VersionRepository) ListByTimetable(ctx context.Context, timetableID string, page, pageSize int) ([]models.TimetableVersion, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timetable_versions WHERE timetable_id = $1`, timetableID); err != nil {
		return nil, 0, fmt.Errorf("count timetable versions: %w", err)
	}

	query := `SELECT ` + versionColumns + ` FROM timetable_versions WHERE timetable_id = $1 ORDER BY version_number DESC LIMIT $2 OFFSET $3`
	var versions []models.TimetableVersion
	if err := r.db.SelectContext(ctx, &versions, query, timetableID, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list timetable versions: %w", err)
	}
	return versions, total, nil
}
