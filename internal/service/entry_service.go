package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type entryRepository interface {
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error)
	ListFiltered(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, id string) error
}

type slotReader interface {
	FindSlot(ctx context.Context, slotID string) (*models.PeriodSlot, error)
}

type timetableReader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

// EntryService handles manual cell edits. Every mutation is conflict-checked
// against the timetable's other cells before it is written.
type EntryService struct {
	entries    entryRepository
	slots      slotReader
	timetables timetableReader
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEntryService wires entry editing dependencies.
func NewEntryService(
	entries entryRepository,
	slots slotReader,
	timetables timetableReader,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *EntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryService{
		entries:    entries,
		slots:      slots,
		timetables: timetables,
		cache:      cache,
		validator:  validate,
		logger:     logger,
	}
}

// List returns a timetable's cells, optionally narrowed to one section or
// teacher.
func (s *EntryService) List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error) {
	if filter.TimetableID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	entries, err := s.entries.ListFiltered(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	return entries, nil
}

// Create adds one cell after checking it against every other cell in the
// timetable. A collision is refused with the conflicting occupant in the
// error detail.
func (s *EntryService) Create(ctx context.Context, req dto.CreateEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}
	if err := s.ensureEditable(ctx, req.TimetableID); err != nil {
		return nil, err
	}

	slot, err := s.resolveSlot(ctx, req.PeriodSlotID)
	if err != nil {
		return nil, err
	}

	entry := &models.TimetableEntry{
		TimetableID:  req.TimetableID,
		SectionID:    req.SectionID,
		DayOfWeek:    *req.DayOfWeek,
		PeriodSlotID: slot.ID,
		PeriodNumber: slot.PeriodNumber,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		RoomID:       req.RoomID,
	}
	if err := s.checkEntry(ctx, entry, ""); err != nil {
		return nil, err
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable entry")
	}
	s.invalidate(ctx, entry.TimetableID)
	return entry, nil
}

// Update mutates an existing cell; identity fields left nil keep their
// current value. The edited cell is excluded from its own conflict check.
func (s *EntryService) Update(ctx context.Context, id string, req dto.UpdateEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}
	entry, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, entry.TimetableID); err != nil {
		return nil, err
	}

	if req.SectionID != nil {
		entry.SectionID = *req.SectionID
	}
	if req.DayOfWeek != nil {
		entry.DayOfWeek = *req.DayOfWeek
	}
	if req.PeriodSlotID != nil {
		slot, slotErr := s.resolveSlot(ctx, *req.PeriodSlotID)
		if slotErr != nil {
			return nil, slotErr
		}
		entry.PeriodSlotID = slot.ID
		entry.PeriodNumber = slot.PeriodNumber
	}
	if req.SubjectID != nil {
		entry.SubjectID = *req.SubjectID
	}
	if req.TeacherID != nil {
		entry.TeacherID = *req.TeacherID
	}
	if req.RoomID != nil {
		entry.RoomID = req.RoomID
	}

	if err := s.checkEntry(ctx, entry, entry.ID); err != nil {
		return nil, err
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
	}
	s.invalidate(ctx, entry.TimetableID)
	return entry, nil
}

// Delete removes one cell.
func (s *EntryService) Delete(ctx context.Context, id string) error {
	entry, err := s.findEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, entry.TimetableID); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
	}
	s.invalidate(ctx, entry.TimetableID)
	return nil
}

func (s *EntryService) findEntry(ctx context.Context, id string) (*models.TimetableEntry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return entry, nil
}

func (s *EntryService) resolveSlot(ctx context.Context, slotID string) (*models.PeriodSlot, error) {
	slot, err := s.slots.FindSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
	}
	if slot.IsBreak {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot schedule a class into a break period")
	}
	return slot, nil
}

// ensureEditable refuses edits on published timetables; a published schedule
// only changes through restore, which mints a new version.
func (s *EntryService) ensureEditable(ctx context.Context, timetableID string) error {
	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if timetable.Status == models.TimetableStatusPublished {
		return appErrors.Clone(appErrors.ErrPublished, "published timetables cannot be edited directly")
	}
	return nil
}

func (s *EntryService) checkEntry(ctx context.Context, entry *models.TimetableEntry, skipEntryID string) error {
	existing, err := s.entries.ListByTimetable(ctx, entry.TimetableID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	detector := replayDetector(existing, skipEntryID)
	roomID := ""
	if entry.RoomID != nil {
		roomID = *entry.RoomID
	}
	ok, conflicts := detector.CanAssign(entry.TeacherID, entry.SectionID, entry.DayOfWeek, entry.PeriodNumber, roomID)
	if !ok {
		violation := &models.ConflictViolationError{
			Message:   fmt.Sprintf("entry collides with %d existing cells", len(conflicts)),
			Conflicts: conflicts,
		}
		return appErrors.Wrap(violation, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, violation.Message)
	}
	return nil
}

func (s *EntryService) invalidate(ctx context.Context, timetableID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "timetable:"+timetableID+":*"); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}
