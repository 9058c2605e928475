package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type stubPeriodCatalog struct {
	template    *models.PeriodTemplate
	templateErr error
	slots       []models.PeriodSlot
}

func (s *stubPeriodCatalog) FindActiveTemplate(_ context.Context, _, _ string, _ *string) (*models.PeriodTemplate, error) {
	if s.templateErr != nil {
		return nil, s.templateErr
	}
	return s.template, nil
}

func (s *stubPeriodCatalog) ListSlots(_ context.Context, _ string) ([]models.PeriodSlot, error) {
	return s.slots, nil
}

type stubSectionCatalog struct {
	sections []models.Section
}

func (s *stubSectionCatalog) ListByShift(_ context.Context, _, _, _ string) ([]models.Section, error) {
	return s.sections, nil
}

type stubAssignmentCatalog struct {
	assignments []models.Assignment
}

func (s *stubAssignmentCatalog) ListBySections(_ context.Context, _ []string, _ string) ([]models.Assignment, error) {
	return s.assignments, nil
}

type stubTimetableCreator struct {
	lockKeys []string
	created  *models.Timetable
}

func (s *stubTimetableCreator) AcquireGenerationLock(_ context.Context, _ *sqlx.Tx, branchID, sessionID, shiftID string, seasonID *string) error {
	s.lockKeys = append(s.lockKeys, branchID+":"+sessionID+":"+shiftID)
	return nil
}

func (s *stubTimetableCreator) CreateWithTx(_ context.Context, _ *sqlx.Tx, timetable *models.Timetable) error {
	timetable.ID = "tt-generated"
	s.created = timetable
	return nil
}

type stubEntryBulkWriter struct {
	entries []models.TimetableEntry
}

func (s *stubEntryBulkWriter) BulkCreateWithTx(_ context.Context, _ *sqlx.Tx, entries []models.TimetableEntry) error {
	s.entries = entries
	return nil
}

type stubConflictBulkWriter struct {
	conflicts []models.Conflict
}

func (s *stubConflictBulkWriter) BulkCreateWithTx(_ context.Context, _ *sqlx.Tx, conflicts []models.Conflict) error {
	s.conflicts = conflicts
	return nil
}

type generatorTxMock struct {
	db *sqlx.DB
}

func (m *generatorTxMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newGeneratorTxMock(t *testing.T) (*generatorTxMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &generatorTxMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

type generatorFixture struct {
	periods     *stubPeriodCatalog
	sections    *stubSectionCatalog
	assignments *stubAssignmentCatalog
	timetables  *stubTimetableCreator
	entries     *stubEntryBulkWriter
	conflicts   *stubConflictBulkWriter
	mock        sqlmock.Sqlmock
	svc         *GeneratorService
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	f := &generatorFixture{
		periods: &stubPeriodCatalog{
			template: &models.PeriodTemplate{ID: "tmpl-1", Active: true},
			slots: []models.PeriodSlot{
				{ID: "slot-1", TemplateID: "tmpl-1", PeriodNumber: 1},
				{ID: "slot-2", TemplateID: "tmpl-1", PeriodNumber: 2},
				{ID: "slot-break", TemplateID: "tmpl-1", PeriodNumber: 3, IsBreak: true},
			},
		},
		sections: &stubSectionCatalog{sections: []models.Section{
			{ID: "section-1", GradeName: "10", Name: "A", Active: true},
		}},
		assignments: &stubAssignmentCatalog{assignments: []models.Assignment{
			{ID: "a-1", SectionID: "section-1", SubjectID: "math", SubjectName: "Mathematics", TeacherID: "teacher-1", TeacherName: "T One", WeeklyPeriods: 2, Active: true},
		}},
		timetables: &stubTimetableCreator{},
		entries:    &stubEntryBulkWriter{},
		conflicts:  &stubConflictBulkWriter{},
	}
	txMock, mock := newGeneratorTxMock(t)
	f.mock = mock
	f.svc = NewGeneratorService(
		f.periods, f.sections, f.assignments,
		f.timetables, f.entries, f.conflicts,
		txMock, nil, nil, nil,
		GeneratorConfig{MaxIterations: 1000, WorkingDays: []int{0, 1}},
	)
	return f
}

func generateRequest() dto.GenerateTimetableRequest {
	seed := int64(42)
	return dto.GenerateTimetableRequest{
		BranchID:   uuid.NewString(),
		SessionID:  uuid.NewString(),
		ShiftID:    uuid.NewString(),
		Name:       "Winter Timetable",
		RandomSeed: &seed,
	}
}

func TestGeneratorServiceGenerate(t *testing.T) {
	f := newGeneratorFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Generate(context.Background(), generateRequest(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "tt-generated", result.TimetableID)
	assert.Equal(t, 2, result.Statistics.Filled)
	// Break slots are excluded from the grid.
	assert.Equal(t, 2, result.Statistics.PeriodsPerDay)

	require.NotNil(t, f.timetables.created)
	assert.Equal(t, models.TimetableStatusDraft, f.timetables.created.Status)
	require.Len(t, f.entries.entries, 2)
	for _, entry := range f.entries.entries {
		assert.Equal(t, "tt-generated", entry.TimetableID)
	}
	assert.Empty(t, f.conflicts.conflicts)
	assert.Len(t, f.timetables.lockKeys, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGeneratorServiceGeneratePersistsFailures(t *testing.T) {
	f := newGeneratorFixture(t)
	// One teaching slot across one day cannot hold two weekly periods plus a
	// second section's demand for the same teacher.
	f.periods.slots = []models.PeriodSlot{{ID: "slot-1", TemplateID: "tmpl-1", PeriodNumber: 1}}
	f.sections.sections = append(f.sections.sections, models.Section{ID: "section-2", GradeName: "10", Name: "B", Active: true})
	f.assignments.assignments = []models.Assignment{
		{ID: "a-1", SectionID: "section-1", SubjectID: "math", SubjectName: "Mathematics", TeacherID: "teacher-1", TeacherName: "T One", WeeklyPeriods: 1, Active: true},
		{ID: "a-2", SectionID: "section-2", SubjectID: "math", SubjectName: "Mathematics", TeacherID: "teacher-1", TeacherName: "T One", WeeklyPeriods: 1, Active: true},
	}
	req := generateRequest()
	req.WorkingDays = []int{0}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Generate(context.Background(), req, "user-1")

	require.NoError(t, err, "placement failures are not fatal")
	assert.False(t, result.Success)
	require.Len(t, result.FailedRequirements, 1)
	require.Len(t, f.conflicts.conflicts, 1)
	assert.Equal(t, models.ConflictGenerationFailure, f.conflicts.conflicts[0].ConflictType)
	assert.Equal(t, "tt-generated", f.conflicts.conflicts[0].TimetableID)
	assert.NotEmpty(t, f.conflicts.conflicts[0].InvolvedEntries)
}

func TestGeneratorServiceMissingTemplateIsFatal(t *testing.T) {
	f := newGeneratorFixture(t)
	f.periods.templateErr = sql.ErrNoRows

	_, err := f.svc.Generate(context.Background(), generateRequest(), "user-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.timetables.created)
}

func TestGeneratorServiceNoSectionsIsFatal(t *testing.T) {
	f := newGeneratorFixture(t)
	f.sections.sections = nil

	_, err := f.svc.Generate(context.Background(), generateRequest(), "user-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceInactiveAssignmentsIgnored(t *testing.T) {
	f := newGeneratorFixture(t)
	f.assignments.assignments = []models.Assignment{
		{ID: "a-1", SectionID: "section-1", SubjectID: "math", TeacherID: "teacher-1", WeeklyPeriods: 2, Active: false},
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Generate(context.Background(), generateRequest(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 0, result.Statistics.TotalRequirements)
	assert.Empty(t, f.entries.entries)
}

func TestResolveWorkingDaysRejectsOutOfRange(t *testing.T) {
	_, err := resolveWorkingDays([]int{0, 9}, []int{0, 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResolveWorkingDaysDedupesAndSorts(t *testing.T) {
	days, err := resolveWorkingDays([]int{4, 0, 4, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, days)
}
