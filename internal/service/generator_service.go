package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type periodCatalog interface {
	FindActiveTemplate(ctx context.Context, branchID, shiftID string, seasonID *string) (*models.PeriodTemplate, error)
	ListSlots(ctx context.Context, templateID string) ([]models.PeriodSlot, error)
}

type sectionCatalog interface {
	ListByShift(ctx context.Context, branchID, shiftID, sessionID string) ([]models.Section, error)
}

type assignmentCatalog interface {
	ListBySections(ctx context.Context, sectionIDs []string, sessionID string) ([]models.Assignment, error)
}

type timetableCreator interface {
	AcquireGenerationLock(ctx context.Context, tx *sqlx.Tx, branchID, sessionID, shiftID string, seasonID *string) error
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable) error
}

type entryBulkWriter interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.TimetableEntry) error
}

type conflictBulkWriter interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, conflicts []models.Conflict) error
}

type generatorTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type generationObserver interface {
	ObserveGeneration(success bool, filled, failed int, duration time.Duration)
}

// GeneratorConfig carries engine defaults sourced from configuration.
type GeneratorConfig struct {
	MaxIterations int
	WorkingDays   []int
}

// GeneratorService resolves the scheduling context, runs the in-memory
// placement pass, and persists the resulting draft in one transaction.
type GeneratorService struct {
	periods     periodCatalog
	sections    sectionCatalog
	assignments assignmentCatalog
	timetables  timetableCreator
	entries     entryBulkWriter
	conflicts   conflictBulkWriter
	tx          generatorTxProvider
	metrics     generationObserver
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         GeneratorConfig
}

// NewGeneratorService wires generation dependencies.
func NewGeneratorService(
	periods periodCatalog,
	sections sectionCatalog,
	assignments assignmentCatalog,
	timetables timetableCreator,
	entries entryBulkWriter,
	conflicts conflictBulkWriter,
	tx generatorTxProvider,
	metrics generationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg GeneratorConfig,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if len(cfg.WorkingDays) == 0 {
		cfg.WorkingDays = []int{0, 1, 2, 3, 4, 5}
	}
	return &GeneratorService{
		periods:     periods,
		sections:    sections,
		assignments: assignments,
		timetables:  timetables,
		entries:     entries,
		conflicts:   conflicts,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds and persists a draft timetable for the requested context.
// Per-requirement placement failures are non-fatal: the draft is persisted
// with whatever could be filled, and every failure is recorded as an
// unresolved generation_failure conflict.
func (s *GeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	workingDays, err := resolveWorkingDays(req.WorkingDays, s.cfg.WorkingDays)
	if err != nil {
		return nil, err
	}

	input, err := s.resolveInput(ctx, req, workingDays)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	outcome := newTimetableGenerator(*input).run()
	elapsed := time.Since(started)

	timetable, err := s.persistDraft(ctx, req, createdBy, outcome)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveGeneration(outcome.Success, outcome.Statistics.Filled, outcome.Statistics.Failed, elapsed)
	}
	s.logger.Info("timetable generated",
		zap.String("timetable_id", timetable.ID),
		zap.Bool("success", outcome.Success),
		zap.Int("filled", outcome.Statistics.Filled),
		zap.Int("failed", outcome.Statistics.Failed),
		zap.Duration("duration", elapsed),
	)

	return &dto.GenerateTimetableResponse{
		Success:            outcome.Success,
		TimetableID:        timetable.ID,
		Statistics:         outcome.Statistics,
		FailedRequirements: outcome.Failed,
	}, nil
}

// resolveInput loads the scheduling context. A missing period template or an
// empty section set is fatal: no partial schedule is produced.
func (s *GeneratorService) resolveInput(ctx context.Context, req dto.GenerateTimetableRequest, workingDays []int) (*generationInput, error) {
	template, err := s.periods.FindActiveTemplate(ctx, req.BranchID, req.ShiftID, req.SeasonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no period template found for the given configuration")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period template")
	}

	allSlots, err := s.periods.ListSlots(ctx, template.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slots")
	}
	slots := make([]models.PeriodSlot, 0, len(allSlots))
	for _, slot := range allSlots {
		if !slot.IsBreak {
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "period template has no teaching slots")
	}

	sections, err := s.sections.ListByShift(ctx, req.BranchID, req.ShiftID, req.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	if len(sections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no sections found for the given shift")
	}

	sectionIDs := make([]string, 0, len(sections))
	for _, section := range sections {
		sectionIDs = append(sectionIDs, section.ID)
	}
	assignments, err := s.assignments.ListBySections(ctx, sectionIDs, req.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	assignmentsBySection := make(map[string][]models.Assignment, len(sections))
	for _, assignment := range assignments {
		if !assignment.Active {
			continue
		}
		assignmentsBySection[assignment.SectionID] = append(assignmentsBySection[assignment.SectionID], assignment)
	}

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = s.cfg.MaxIterations
	}

	seed := time.Now().UnixNano()
	if req.RandomSeed != nil {
		seed = *req.RandomSeed
	}

	return &generationInput{
		WorkingDays:   workingDays,
		Slots:         slots,
		Sections:      sections,
		Assignments:   assignmentsBySection,
		MaxIterations: maxIterations,
		Rand:          rand.New(rand.NewSource(seed)),
	}, nil
}

// persistDraft writes the timetable, its cells, and one unresolved conflict
// row per placement failure inside a single transaction. An advisory lock on
// the scheduling context serialises concurrent generation calls for the same
// (branch, session, shift, season).
func (s *GeneratorService) persistDraft(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string, outcome generationOutcome) (*models.Timetable, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.AcquireGenerationLock(ctx, tx, req.BranchID, req.SessionID, req.ShiftID, req.SeasonID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
		return nil, err
	}

	snapshot, err := encodeScheduleSnapshot(buildScheduleSnapshot(outcome.Cells))
	if err != nil {
		return nil, err
	}

	timetable := &models.Timetable{
		BranchID:     req.BranchID,
		SessionID:    req.SessionID,
		SeasonID:     req.SeasonID,
		ShiftID:      req.ShiftID,
		Name:         req.Name,
		Description:  req.Description,
		Status:       models.TimetableStatusDraft,
		ScheduleData: snapshot,
	}
	if createdBy != "" {
		timetable.CreatedBy = &createdBy
	}
	if err = s.timetables.CreateWithTx(ctx, tx, timetable); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		return nil, err
	}

	entries := make([]models.TimetableEntry, len(outcome.Cells))
	copy(entries, outcome.Cells)
	for i := range entries {
		entries[i].TimetableID = timetable.ID
	}
	if len(entries) > 0 {
		if err = s.entries.BulkCreateWithTx(ctx, tx, entries); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable entries")
			return nil, err
		}
	}

	if len(outcome.Failed) > 0 {
		conflicts, buildErr := failureConflicts(timetable.ID, outcome.Failed)
		if buildErr != nil {
			err = buildErr
			return nil, err
		}
		if err = s.conflicts.BulkCreateWithTx(ctx, tx, conflicts); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generation conflicts")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation transaction")
		return nil, err
	}
	return timetable, nil
}

func failureConflicts(timetableID string, failed []dto.FailedRequirement) ([]models.Conflict, error) {
	conflicts := make([]models.Conflict, 0, len(failed))
	for _, item := range failed {
		involved, err := json.Marshal(item)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode failed requirement")
		}
		conflicts = append(conflicts, models.Conflict{
			TimetableID:     timetableID,
			ConflictType:    models.ConflictGenerationFailure,
			Description:     item.Subject + " for " + item.Section + ": " + item.Reason,
			InvolvedEntries: types.JSONText(involved),
		})
	}
	return conflicts, nil
}

func resolveWorkingDays(requested, fallback []int) ([]int, error) {
	days := requested
	if len(days) == 0 {
		days = fallback
	}
	seen := make(map[int]bool, len(days))
	result := make([]int, 0, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "working days must be between 0 (Monday) and 6 (Sunday)")
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		result = append(result, day)
	}
	if len(result) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one working day is required")
	}
	sort.Ints(result)
	return result, nil
}
