package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type timetableRepository interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	MarkPublishedWithTx(ctx context.Context, tx *sqlx.Tx, id string, version int, snapshot types.JSONText, publishedBy string, effectiveFrom, effectiveTo *time.Time) error
	UpdateSnapshotWithTx(ctx context.Context, tx *sqlx.Tx, id string, version int, snapshot types.JSONText) error
}

type versionRepository interface {
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, version *models.TimetableVersion) error
	FindByID(ctx context.Context, id string) (*models.TimetableVersion, error)
	FindLatest(ctx context.Context, timetableID string) (*models.TimetableVersion, error)
	ListByTimetable(ctx context.Context, timetableID string, page, pageSize int) ([]models.TimetableVersion, int, error)
}

type entryReader interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error)
}

type entryReplacer interface {
	ReplaceAllWithTx(ctx context.Context, tx *sqlx.Tx, timetableID string, entries []models.TimetableEntry) error
}

type timetableTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// TimetableService owns the read, validate, publish, and restore lifecycle
// of persisted timetables.
type TimetableService struct {
	timetables timetableRepository
	versions   versionRepository
	entries    entryReader
	replacer   entryReplacer
	tx         timetableTxProvider
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService wires timetable lifecycle dependencies.
func NewTimetableService(
	timetables timetableRepository,
	versions versionRepository,
	entries entryReader,
	replacer entryReplacer,
	tx timetableTxProvider,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		versions:   versions,
		entries:    entries,
		replacer:   replacer,
		tx:         tx,
		cache:      cache,
		validator:  validate,
		logger:     logger,
	}
}

// Get returns one timetable by id.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// List returns timetables matching the filter with pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return items, pagination, nil
}

// Validate replays the timetable's current cells through a fresh conflict
// detector and reports every violation found.
func (s *TimetableService) Validate(ctx context.Context, id string) (*dto.ValidationResult, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	conflicts := replayEntries(entries)
	return &dto.ValidationResult{Valid: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// Publish snapshots the current cell set as a new version and flips the
// timetable to published. Refused atomically when validation finds any
// conflict.
func (s *TimetableService) Publish(ctx context.Context, id string, req dto.PublishTimetableRequest, publishedBy string) (*dto.PublishTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	if conflicts := replayEntries(entries); len(conflicts) > 0 {
		violation := &models.ConflictViolationError{
			Message:   fmt.Sprintf("cannot publish: %d conflicts detected", len(conflicts)),
			Conflicts: conflicts,
		}
		return nil, appErrors.Wrap(violation, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, violation.Message)
	}

	// Snapshot from live entries, not the cached schedule_data, so manual
	// edits made after generation are always captured.
	nextSnapshot := buildScheduleSnapshot(entries)
	encoded, err := encodeScheduleSnapshot(nextSnapshot)
	if err != nil {
		return nil, err
	}

	previousSnapshot := make(scheduleSnapshot)
	if latest, findErr := s.versions.FindLatest(ctx, id); findErr == nil {
		previousSnapshot, err = decodeScheduleSnapshot(latest.ScheduleData)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(findErr, sql.ErrNoRows) {
		return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest version")
	}

	diffPayload, err := json.Marshal(diffSnapshots(previousSnapshot, nextSnapshot))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode version diff")
	}

	newVersion := timetable.CurrentVersion + 1
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	version := &models.TimetableVersion{
		TimetableID:   id,
		VersionNumber: newVersion,
		ScheduleData:  encoded,
		ChangeNote:    req.ChangeNote,
		DiffSummary:   types.JSONText(diffPayload),
	}
	if publishedBy != "" {
		version.CreatedBy = &publishedBy
	}
	if err = s.versions.CreateWithTx(ctx, tx, version); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable version")
		return nil, err
	}
	if err = s.timetables.MarkPublishedWithTx(ctx, tx, id, newVersion, encoded, publishedBy, req.EffectiveFrom, req.EffectiveTo); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark timetable published")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("timetable published",
		zap.String("timetable_id", id),
		zap.Int("version", newVersion),
		zap.String("published_by", publishedBy),
	)
	return &dto.PublishTimetableResponse{Version: newVersion}, nil
}

// Restore rolls the timetable forward to a copy of an older snapshot. A new
// version is always minted; history is never renumbered or deleted.
func (s *TimetableService) Restore(ctx context.Context, id, versionID string, req dto.RestoreVersionRequest, restoredBy string) (*dto.RestoreVersionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid restore payload")
	}
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable version")
	}
	if target.TimetableID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "version does not belong to this timetable")
	}

	snapshot, err := decodeScheduleSnapshot(target.ScheduleData)
	if err != nil {
		return nil, err
	}
	cells := snapshotCells(snapshot)
	for i := range cells {
		cells[i].TimetableID = id
	}

	newVersion := timetable.CurrentVersion + 1
	changeNote := req.ChangeNote
	if changeNote == "" {
		changeNote = fmt.Sprintf("restored from version %d", target.VersionNumber)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	version := &models.TimetableVersion{
		TimetableID:   id,
		VersionNumber: newVersion,
		ScheduleData:  target.ScheduleData,
		ChangeNote:    changeNote,
	}
	if restoredBy != "" {
		version.CreatedBy = &restoredBy
	}
	if err = s.versions.CreateWithTx(ctx, tx, version); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create restore version")
		return nil, err
	}
	if err = s.replacer.ReplaceAllWithTx(ctx, tx, id, cells); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild timetable entries")
		return nil, err
	}
	if err = s.timetables.UpdateSnapshotWithTx(ctx, tx, id, newVersion, target.ScheduleData); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable snapshot")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit restore transaction")
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("timetable restored",
		zap.String("timetable_id", id),
		zap.Int("restored_from", target.VersionNumber),
		zap.Int("new_version", newVersion),
	)
	return &dto.RestoreVersionResponse{RestoredFrom: target.VersionNumber, NewVersion: newVersion}, nil
}

// GetVersion returns one snapshot from the timetable's history.
func (s *TimetableService) GetVersion(ctx context.Context, id, versionID string) (*models.TimetableVersion, error) {
	version, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable version")
	}
	if version.TimetableID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "version does not belong to this timetable")
	}
	return version, nil
}

// ListVersions returns the timetable's version history, newest first.
func (s *TimetableService) ListVersions(ctx context.Context, id string, page, pageSize int) ([]models.TimetableVersion, *models.Pagination, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	items, total, err := s.versions.ListByTimetable(ctx, id, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable versions")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return items, pagination, nil
}

func (s *TimetableService) invalidate(ctx context.Context, timetableID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "timetable:"+timetableID+":*"); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}
