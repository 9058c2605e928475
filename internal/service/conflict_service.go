package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type conflictRepository interface {
	ListByTimetable(ctx context.Context, timetableID string, includeResolved bool) ([]models.Conflict, error)
	FindByID(ctx context.Context, id string) (*models.Conflict, error)
	MarkResolved(ctx context.Context, id string) error
}

// ConflictService exposes the persisted conflict records attached to a
// timetable, mainly generation failures awaiting operator action.
type ConflictService struct {
	conflicts conflictRepository
	logger    *zap.Logger
}

// NewConflictService wires conflict record dependencies.
func NewConflictService(conflicts conflictRepository, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{conflicts: conflicts, logger: logger}
}

// List returns a timetable's conflict records.
func (s *ConflictService) List(ctx context.Context, timetableID string, includeResolved bool) ([]models.Conflict, error) {
	if timetableID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	conflicts, err := s.conflicts.ListByTimetable(ctx, timetableID, includeResolved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	return conflicts, nil
}

// Resolve marks one conflict record as handled.
func (s *ConflictService) Resolve(ctx context.Context, id string) error {
	conflict, err := s.conflicts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict")
	}
	if conflict.Resolved {
		return nil
	}
	if err := s.conflicts.MarkResolved(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve conflict")
	}
	s.logger.Info("conflict resolved", zap.String("conflict_id", id))
	return nil
}
