package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type substitutionRepository interface {
	Create(ctx context.Context, substitution *models.Substitution) error
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, substitutions []models.Substitution) error
	FindByID(ctx context.Context, id string) (*models.Substitution, error)
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]models.Substitution, error)
}

type substitutionEntryReader interface {
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error)
	ListFiltered(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
}

type teacherRoster interface {
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
	ListActiveTeachers(ctx context.Context) ([]models.Teacher, error)
}

type substitutionTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// SubstitutionService manages temporary teacher overrides. Substitutions
// never mutate the underlying cells and are invisible to versioning.
type SubstitutionService struct {
	substitutions substitutionRepository
	entries       substitutionEntryReader
	teachers      teacherRoster
	tx            substitutionTxProvider
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewSubstitutionService wires substitution dependencies.
func NewSubstitutionService(
	substitutions substitutionRepository,
	entries substitutionEntryReader,
	teachers teacherRoster,
	tx substitutionTxProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstitutionService{
		substitutions: substitutions,
		entries:       entries,
		teachers:      teachers,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// Create validates the substitution window and records the override.
func (s *SubstitutionService) Create(ctx context.Context, req dto.CreateSubstitutionRequest, createdBy string) (*dto.SubstitutionItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution payload")
	}
	if err := validateWindow(req.Type, req.Date, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	entry, err := s.entries.FindByID(ctx, req.EntryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	if entry.TimetableID != req.TimetableID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry does not belong to this timetable")
	}
	if entry.TeacherID == req.SubstituteTeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute teacher must differ from the scheduled teacher")
	}
	if _, err := s.teachers.FindTeacher(ctx, req.SubstituteTeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute teacher")
	}

	substitution := &models.Substitution{
		TimetableID:         req.TimetableID,
		EntryID:             req.EntryID,
		SubstituteTeacherID: req.SubstituteTeacherID,
		Type:                req.Type,
		Date:                req.Date,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		Reason:              req.Reason,
		Notes:               req.Notes,
		Active:              true,
	}
	if createdBy != "" {
		substitution.CreatedBy = &createdBy
	}
	if err := s.substitutions.Create(ctx, substitution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create substitution")
	}
	return s.decorate(*substitution), nil
}

// BulkCreate covers every cell of a (teacher, section) pair with date-range
// substitutions, optionally narrowed to one period number.
func (s *SubstitutionService) BulkCreate(ctx context.Context, req dto.BulkSubstitutionRequest, createdBy string) (*dto.BulkSubstitutionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk substitution payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}

	entries, err := s.entries.ListFiltered(ctx, models.EntryFilter{
		TimetableID: req.TimetableID,
		SectionID:   req.SectionID,
		TeacherID:   req.OriginalTeacherID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}

	startDate := req.StartDate
	endDate := req.EndDate
	substitutions := make([]models.Substitution, 0, len(entries))
	for _, entry := range entries {
		if req.PeriodNumber != nil && entry.PeriodNumber != *req.PeriodNumber {
			continue
		}
		substitution := models.Substitution{
			TimetableID:         req.TimetableID,
			EntryID:             entry.ID,
			SubstituteTeacherID: req.SubstituteTeacherID,
			Type:                models.SubstitutionDateRange,
			StartDate:           &startDate,
			EndDate:             &endDate,
			Reason:              req.Reason,
			Active:              true,
		}
		if createdBy != "" {
			substitution.CreatedBy = &createdBy
		}
		substitutions = append(substitutions, substitution)
	}
	if len(substitutions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no matching entries for this teacher and section")
	}

	if err := s.persistBulk(ctx, substitutions); err != nil {
		return nil, err
	}

	items := make([]dto.SubstitutionItem, 0, len(substitutions))
	for _, substitution := range substitutions {
		items = append(items, *s.decorate(substitution))
	}
	return &dto.BulkSubstitutionResponse{Covered: len(items), Created: items}, nil
}

// Cancel deactivates a substitution; its derived status becomes cancelled.
func (s *SubstitutionService) Cancel(ctx context.Context, id string) error {
	if _, err := s.substitutions.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	if err := s.substitutions.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel substitution")
	}
	return nil
}

// ListActive returns substitutions whose derived status is active today.
func (s *SubstitutionService) ListActive(ctx context.Context) ([]dto.SubstitutionItem, error) {
	substitutions, err := s.substitutions.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}
	today := s.now()
	items := make([]dto.SubstitutionItem, 0, len(substitutions))
	for _, substitution := range substitutions {
		if substitution.StatusOn(today) != models.SubstitutionActive {
			continue
		}
		items = append(items, dto.SubstitutionItem{Substitution: substitution, Status: models.SubstitutionActive})
	}
	return items, nil
}

// MarkTeacherAbsent creates a single-period substitution for every cell the
// absent teacher holds on the given date. Periods without an operator-supplied
// substitute are reported back as skipped; no substitute is ever auto-picked.
func (s *SubstitutionService) MarkTeacherAbsent(ctx context.Context, timetableID string, req dto.MarkTeacherAbsentRequest, createdBy string) (*dto.MarkTeacherAbsentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}

	day := weekdayIndex(req.Date)
	entries, err := s.entries.ListFiltered(ctx, models.EntryFilter{
		TimetableID: timetableID,
		TeacherID:   req.TeacherID,
		DayOfWeek:   &day,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	if len(entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher has no scheduled periods on this date")
	}

	date := req.Date
	var substitutions []models.Substitution
	var skipped []dto.SkippedPeriod
	for _, entry := range entries {
		substituteID, ok := req.Substitutes[entry.PeriodNumber]
		if !ok || substituteID == "" {
			skipped = append(skipped, dto.SkippedPeriod{
				PeriodNumber: entry.PeriodNumber,
				SectionID:    entry.SectionID,
				SubjectID:    entry.SubjectID,
			})
			continue
		}
		substitution := models.Substitution{
			TimetableID:         timetableID,
			EntryID:             entry.ID,
			SubstituteTeacherID: substituteID,
			Type:                models.SubstitutionSinglePeriod,
			Date:                &date,
			Reason:              req.Reason,
			Active:              true,
		}
		if createdBy != "" {
			substitution.CreatedBy = &createdBy
		}
		substitutions = append(substitutions, substitution)
	}

	if len(substitutions) > 0 {
		if err := s.persistBulk(ctx, substitutions); err != nil {
			return nil, err
		}
	}

	created := make([]dto.SubstitutionItem, 0, len(substitutions))
	for _, substitution := range substitutions {
		created = append(created, *s.decorate(substitution))
	}
	return &dto.MarkTeacherAbsentResponse{Created: created, Skipped: skipped}, nil
}

// AvailableTeachers returns roster teachers free across every requested
// period, computed by replaying the timetable's cells through the conflict
// detector rather than a separate busy-scan.
func (s *SubstitutionService) AvailableTeachers(ctx context.Context, timetableID string, day int, periods []int) ([]dto.AvailableTeacher, error) {
	if day < 0 || day > 6 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be between 0 (Monday) and 6 (Sunday)")
	}
	if len(periods) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one period is required")
	}

	entries, err := s.entries.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	detector := replayDetector(entries, "")

	teachers, err := s.teachers.ListActiveTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}

	var available []dto.AvailableTeacher
	for _, teacher := range teachers {
		if teacher.Placeholder {
			continue
		}
		free := true
		for _, period := range periods {
			if !detector.TeacherFree(teacher.ID, day, period) {
				free = false
				break
			}
		}
		if free {
			available = append(available, dto.AvailableTeacher{TeacherID: teacher.ID, FullName: teacher.FullName})
		}
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].FullName < available[j].FullName
	})
	return available, nil
}

func (s *SubstitutionService) persistBulk(ctx context.Context, substitutions []models.Substitution) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.substitutions.BulkCreateWithTx(ctx, tx, substitutions); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create substitutions")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit substitution transaction")
		return err
	}
	return nil
}

func (s *SubstitutionService) decorate(substitution models.Substitution) *dto.SubstitutionItem {
	return &dto.SubstitutionItem{
		Substitution: substitution,
		Status:       substitution.StatusOn(s.now()),
	}
}

// validateWindow enforces the per-type date requirements.
func validateWindow(kind models.SubstitutionType, date, startDate, endDate *time.Time) error {
	switch kind {
	case models.SubstitutionSinglePeriod:
		if date == nil {
			return appErrors.Clone(appErrors.ErrValidation, "single_period substitutions require a date")
		}
	case models.SubstitutionDateRange:
		if startDate == nil || endDate == nil {
			return appErrors.Clone(appErrors.ErrValidation, "date_range substitutions require start and end dates")
		}
		if endDate.Before(*startDate) {
			return appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
		}
	case models.SubstitutionFullTerm:
		if startDate == nil {
			return appErrors.Clone(appErrors.ErrValidation, "full_term substitutions require a start date")
		}
		if endDate != nil && endDate.Before(*startDate) {
			return appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
		}
	}
	return nil
}

// weekdayIndex converts a calendar date to the engine's 0=Monday weekday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
