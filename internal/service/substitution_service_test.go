package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type stubSubstitutionRepo struct {
	created     *models.Substitution
	bulkCreated []models.Substitution
	byID        *models.Substitution
	active      []models.Substitution
	deactivated string
}

func (s *stubSubstitutionRepo) Create(_ context.Context, substitution *models.Substitution) error {
	s.created = substitution
	return nil
}

func (s *stubSubstitutionRepo) BulkCreateWithTx(_ context.Context, _ *sqlx.Tx, substitutions []models.Substitution) error {
	s.bulkCreated = substitutions
	return nil
}

func (s *stubSubstitutionRepo) FindByID(_ context.Context, _ string) (*models.Substitution, error) {
	if s.byID == nil {
		return nil, sql.ErrNoRows
	}
	return s.byID, nil
}

func (s *stubSubstitutionRepo) Deactivate(_ context.Context, id string) error {
	s.deactivated = id
	return nil
}

func (s *stubSubstitutionRepo) ListActive(_ context.Context) ([]models.Substitution, error) {
	return s.active, nil
}

type stubSubEntryReader struct {
	byID     *models.TimetableEntry
	byTable  []models.TimetableEntry
	filtered []models.TimetableEntry
}

func (s *stubSubEntryReader) FindByID(_ context.Context, _ string) (*models.TimetableEntry, error) {
	if s.byID == nil {
		return nil, sql.ErrNoRows
	}
	return s.byID, nil
}

func (s *stubSubEntryReader) ListByTimetable(_ context.Context, _ string) ([]models.TimetableEntry, error) {
	return s.byTable, nil
}

func (s *stubSubEntryReader) ListFiltered(_ context.Context, _ models.EntryFilter) ([]models.TimetableEntry, error) {
	return s.filtered, nil
}

type stubTeacherRoster struct {
	teachers map[string]*models.Teacher
	active   []models.Teacher
}

func (s *stubTeacherRoster) FindTeacher(_ context.Context, id string) (*models.Teacher, error) {
	teacher, ok := s.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (s *stubTeacherRoster) ListActiveTeachers(_ context.Context) ([]models.Teacher, error) {
	return s.active, nil
}

type substitutionTxMock struct {
	db *sqlx.DB
}

func (m *substitutionTxMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newSubstitutionTxMock(t *testing.T) (*substitutionTxMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &substitutionTxMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSubstitutionServiceCreate(t *testing.T) {
	timetableID := uuid.NewString()
	entryID := uuid.NewString()
	teacherID := uuid.NewString()
	substituteID := uuid.NewString()

	repo := &stubSubstitutionRepo{}
	entries := &stubSubEntryReader{byID: &models.TimetableEntry{ID: entryID, TimetableID: timetableID, TeacherID: teacherID}}
	roster := &stubTeacherRoster{teachers: map[string]*models.Teacher{substituteID: {ID: substituteID, FullName: "Sub Teacher"}}}

	svc := NewSubstitutionService(repo, entries, roster, nil, nil, nil)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc.now = fixedClock(today)

	item, err := svc.Create(context.Background(), dto.CreateSubstitutionRequest{
		TimetableID:         timetableID,
		EntryID:             entryID,
		SubstituteTeacherID: substituteID,
		Type:                models.SubstitutionSinglePeriod,
		Date:                &today,
	}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.SubstitutionActive, item.Status)
	require.NotNil(t, repo.created)
	assert.True(t, repo.created.Active)
}

func TestSubstitutionServiceCreateRejectsSameTeacher(t *testing.T) {
	timetableID := uuid.NewString()
	entryID := uuid.NewString()
	teacherID := uuid.NewString()

	entries := &stubSubEntryReader{byID: &models.TimetableEntry{ID: entryID, TimetableID: timetableID, TeacherID: teacherID}}
	svc := NewSubstitutionService(&stubSubstitutionRepo{}, entries, &stubTeacherRoster{}, nil, nil, nil)

	date := time.Now()
	_, err := svc.Create(context.Background(), dto.CreateSubstitutionRequest{
		TimetableID:         timetableID,
		EntryID:             entryID,
		SubstituteTeacherID: teacherID,
		Type:                models.SubstitutionSinglePeriod,
		Date:                &date,
	}, "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateWindow(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	later := day.AddDate(0, 0, 5)

	tests := []struct {
		name    string
		kind    models.SubstitutionType
		date    *time.Time
		start   *time.Time
		end     *time.Time
		wantErr bool
	}{
		{name: "single period with date", kind: models.SubstitutionSinglePeriod, date: &day},
		{name: "single period without date", kind: models.SubstitutionSinglePeriod, wantErr: true},
		{name: "date range with window", kind: models.SubstitutionDateRange, start: &day, end: &later},
		{name: "date range missing end", kind: models.SubstitutionDateRange, start: &day, wantErr: true},
		{name: "date range inverted", kind: models.SubstitutionDateRange, start: &later, end: &day, wantErr: true},
		{name: "full term open ended", kind: models.SubstitutionFullTerm, start: &day},
		{name: "full term without start", kind: models.SubstitutionFullTerm, wantErr: true},
		{name: "full term inverted", kind: models.SubstitutionFullTerm, start: &later, end: &day, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWindow(tt.kind, tt.date, tt.start, tt.end)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubstitutionServiceMarkTeacherAbsent(t *testing.T) {
	timetableID := uuid.NewString()
	teacherID := uuid.NewString()
	substituteID := uuid.NewString()

	repo := &stubSubstitutionRepo{}
	entries := &stubSubEntryReader{filtered: []models.TimetableEntry{
		{ID: "e-1", TimetableID: timetableID, SectionID: "section-1", DayOfWeek: 1, PeriodNumber: 1, SubjectID: "math", TeacherID: teacherID},
		{ID: "e-2", TimetableID: timetableID, SectionID: "section-1", DayOfWeek: 1, PeriodNumber: 3, SubjectID: "science", TeacherID: teacherID},
	}}
	txMock, mock := newSubstitutionTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewSubstitutionService(repo, entries, &stubTeacherRoster{}, txMock, nil, nil)

	// 2026-03-10 is a Tuesday, weekday index 1.
	result, err := svc.MarkTeacherAbsent(context.Background(), timetableID, dto.MarkTeacherAbsentRequest{
		TeacherID:   teacherID,
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Substitutes: map[int]string{1: substituteID},
	}, "user-1")

	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, models.SubstitutionSinglePeriod, result.Created[0].Type)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].PeriodNumber)
	assert.Len(t, repo.bulkCreated, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionServiceBulkCreate(t *testing.T) {
	timetableID := uuid.NewString()
	sectionID := uuid.NewString()
	teacherID := uuid.NewString()
	substituteID := uuid.NewString()

	repo := &stubSubstitutionRepo{}
	entries := &stubSubEntryReader{filtered: []models.TimetableEntry{
		{ID: "e-1", TimetableID: timetableID, SectionID: sectionID, PeriodNumber: 1, TeacherID: teacherID},
		{ID: "e-2", TimetableID: timetableID, SectionID: sectionID, PeriodNumber: 2, TeacherID: teacherID},
	}}
	txMock, mock := newSubstitutionTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewSubstitutionService(repo, entries, &stubTeacherRoster{}, txMock, nil, nil)

	result, err := svc.BulkCreate(context.Background(), dto.BulkSubstitutionRequest{
		TimetableID:         timetableID,
		OriginalTeacherID:   teacherID,
		SubstituteTeacherID: substituteID,
		SectionID:           sectionID,
		StartDate:           time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Covered)
	assert.Len(t, repo.bulkCreated, 2)
	for _, substitution := range repo.bulkCreated {
		assert.Equal(t, models.SubstitutionDateRange, substitution.Type)
	}
}

func TestSubstitutionServiceBulkCreatePeriodFilter(t *testing.T) {
	timetableID := uuid.NewString()
	sectionID := uuid.NewString()
	teacherID := uuid.NewString()

	repo := &stubSubstitutionRepo{}
	entries := &stubSubEntryReader{filtered: []models.TimetableEntry{
		{ID: "e-1", TimetableID: timetableID, SectionID: sectionID, PeriodNumber: 1, TeacherID: teacherID},
		{ID: "e-2", TimetableID: timetableID, SectionID: sectionID, PeriodNumber: 2, TeacherID: teacherID},
	}}
	txMock, mock := newSubstitutionTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewSubstitutionService(repo, entries, &stubTeacherRoster{}, txMock, nil, nil)

	period := 2
	result, err := svc.BulkCreate(context.Background(), dto.BulkSubstitutionRequest{
		TimetableID:         timetableID,
		OriginalTeacherID:   teacherID,
		SubstituteTeacherID: uuid.NewString(),
		SectionID:           sectionID,
		StartDate:           time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		PeriodNumber:        &period,
	}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Covered)
	assert.Equal(t, "e-2", result.Created[0].EntryID)
}

func TestSubstitutionServiceListActiveFiltersByWindow(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	repo := &stubSubstitutionRepo{active: []models.Substitution{
		{ID: "s-1", Active: true, Type: models.SubstitutionSinglePeriod, Date: &today},
		{ID: "s-2", Active: true, Type: models.SubstitutionSinglePeriod, Date: &yesterday},
	}}

	svc := NewSubstitutionService(repo, &stubSubEntryReader{}, &stubTeacherRoster{}, nil, nil, nil)
	svc.now = fixedClock(today)

	items, err := svc.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s-1", items[0].ID)
}

func TestSubstitutionServiceAvailableTeachers(t *testing.T) {
	entries := &stubSubEntryReader{byTable: []models.TimetableEntry{
		{ID: "e-1", SectionID: "section-1", DayOfWeek: 0, PeriodNumber: 1, SubjectID: "math", TeacherID: "teacher-busy"},
	}}
	roster := &stubTeacherRoster{active: []models.Teacher{
		{ID: "teacher-busy", FullName: "Busy Teacher", Active: true},
		{ID: "teacher-free", FullName: "Free Teacher", Active: true},
		{ID: "teacher-ghost", FullName: "Unassigned Slot", Active: true, Placeholder: true},
	}}

	svc := NewSubstitutionService(&stubSubstitutionRepo{}, entries, roster, nil, nil, nil)

	available, err := svc.AvailableTeachers(context.Background(), "tt-1", 0, []int{1})

	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "teacher-free", available[0].TeacherID)
}

func TestSubstitutionServiceCancel(t *testing.T) {
	repo := &stubSubstitutionRepo{byID: &models.Substitution{ID: "s-1", Active: true}}
	svc := NewSubstitutionService(repo, &stubSubEntryReader{}, &stubTeacherRoster{}, nil, nil, nil)

	require.NoError(t, svc.Cancel(context.Background(), "s-1"))
	assert.Equal(t, "s-1", repo.deactivated)
}

func TestWeekdayIndex(t *testing.T) {
	// 2026-03-09 is a Monday.
	assert.Equal(t, 0, weekdayIndex(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, weekdayIndex(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
}
