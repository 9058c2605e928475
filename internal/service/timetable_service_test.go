package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type stubTimetableRepo struct {
	timetable    *models.Timetable
	findErr      error
	markedVer    int
	markedSnap   types.JSONText
	snapshotVer  int
	snapshotData types.JSONText
}

func (s *stubTimetableRepo) FindByID(_ context.Context, _ string) (*models.Timetable, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.timetable, nil
}

func (s *stubTimetableRepo) List(_ context.Context, _ models.TimetableFilter) ([]models.Timetable, int, error) {
	return []models.Timetable{*s.timetable}, 1, nil
}

func (s *stubTimetableRepo) MarkPublishedWithTx(_ context.Context, _ *sqlx.Tx, _ string, version int, snapshot types.JSONText, _ string, _, _ *time.Time) error {
	s.markedVer = version
	s.markedSnap = snapshot
	return nil
}

func (s *stubTimetableRepo) UpdateSnapshotWithTx(_ context.Context, _ *sqlx.Tx, _ string, version int, snapshot types.JSONText) error {
	s.snapshotVer = version
	s.snapshotData = snapshot
	return nil
}

type stubVersionRepo struct {
	latest     *models.TimetableVersion
	latestErr  error
	target     *models.TimetableVersion
	targetErr  error
	created    *models.TimetableVersion
	createErr  error
	listResult []models.TimetableVersion
}

func (s *stubVersionRepo) CreateWithTx(_ context.Context, _ *sqlx.Tx, version *models.TimetableVersion) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = version
	return nil
}

func (s *stubVersionRepo) FindByID(_ context.Context, _ string) (*models.TimetableVersion, error) {
	if s.targetErr != nil {
		return nil, s.targetErr
	}
	return s.target, nil
}

func (s *stubVersionRepo) FindLatest(_ context.Context, _ string) (*models.TimetableVersion, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.latest, nil
}

func (s *stubVersionRepo) ListByTimetable(_ context.Context, _ string, _, _ int) ([]models.TimetableVersion, int, error) {
	return s.listResult, len(s.listResult), nil
}

type stubEntryReader struct {
	entries []models.TimetableEntry
	err     error
}

func (s *stubEntryReader) ListByTimetable(_ context.Context, _ string) ([]models.TimetableEntry, error) {
	return s.entries, s.err
}

type stubEntryReplacer struct {
	timetableID string
	replaced    []models.TimetableEntry
}

func (s *stubEntryReplacer) ReplaceAllWithTx(_ context.Context, _ *sqlx.Tx, timetableID string, entries []models.TimetableEntry) error {
	s.timetableID = timetableID
	s.replaced = entries
	return nil
}

type stubInvalidator struct {
	patterns []string
}

func (s *stubInvalidator) Invalidate(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

type lifecycleTxMock struct {
	db *sqlx.DB
}

func (m *lifecycleTxMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newLifecycleTxMock(t *testing.T) (*lifecycleTxMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &lifecycleTxMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func draftTimetable() *models.Timetable {
	return &models.Timetable{
		ID:             "tt-1",
		BranchID:       "branch-1",
		SessionID:      "session-1",
		ShiftID:        "shift-1",
		Name:           "Winter Draft",
		Status:         models.TimetableStatusDraft,
		CurrentVersion: 0,
	}
}

func cleanEntries() []models.TimetableEntry {
	return []models.TimetableEntry{
		{ID: "e-1", TimetableID: "tt-1", SectionID: "section-1", DayOfWeek: 0, PeriodSlotID: "slot-1", PeriodNumber: 1, SubjectID: "math", TeacherID: "teacher-1"},
		{ID: "e-2", TimetableID: "tt-1", SectionID: "section-1", DayOfWeek: 0, PeriodSlotID: "slot-2", PeriodNumber: 2, SubjectID: "science", TeacherID: "teacher-2"},
	}
}

func TestTimetableServicePublish(t *testing.T) {
	timetables := &stubTimetableRepo{timetable: draftTimetable()}
	versions := &stubVersionRepo{latestErr: sql.ErrNoRows}
	reader := &stubEntryReader{entries: cleanEntries()}
	txMock, mock := newLifecycleTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	cache := &stubInvalidator{}

	svc := NewTimetableService(timetables, versions, reader, &stubEntryReplacer{}, txMock, cache, nil, nil)
	result, err := svc.Publish(context.Background(), "tt-1", dto.PublishTimetableRequest{ChangeNote: "initial publish"}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.Equal(t, 1, timetables.markedVer)
	require.NotNil(t, versions.created)
	assert.Equal(t, 1, versions.created.VersionNumber)
	assert.Equal(t, "initial publish", versions.created.ChangeNote)
	assert.Equal(t, []string{"timetable:tt-1:*"}, cache.patterns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServicePublishRefusesConflicts(t *testing.T) {
	conflicting := []models.TimetableEntry{
		{ID: "e-1", TimetableID: "tt-1", SectionID: "section-1", DayOfWeek: 0, PeriodNumber: 1, SubjectID: "math", TeacherID: "teacher-1"},
		{ID: "e-2", TimetableID: "tt-1", SectionID: "section-2", DayOfWeek: 0, PeriodNumber: 1, SubjectID: "math", TeacherID: "teacher-1"},
	}
	timetables := &stubTimetableRepo{timetable: draftTimetable()}
	versions := &stubVersionRepo{}
	reader := &stubEntryReader{entries: conflicting}
	txMock, _ := newLifecycleTxMock(t)

	svc := NewTimetableService(timetables, versions, reader, &stubEntryReplacer{}, txMock, nil, nil, nil)
	_, err := svc.Publish(context.Background(), "tt-1", dto.PublishTimetableRequest{ChangeNote: "publish"}, "user-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	var violation *models.ConflictViolationError
	require.True(t, errors.As(err, &violation))
	assert.Len(t, violation.Conflicts, 1)
	assert.Nil(t, versions.created, "no version may be minted on a refused publish")
}

func TestTimetableServicePublishIncrementsVersion(t *testing.T) {
	timetable := draftTimetable()
	timetable.CurrentVersion = 3
	previous, err := encodeScheduleSnapshot(buildScheduleSnapshot(cleanEntries()))
	require.NoError(t, err)

	timetables := &stubTimetableRepo{timetable: timetable}
	versions := &stubVersionRepo{latest: &models.TimetableVersion{VersionNumber: 3, ScheduleData: previous}}
	reader := &stubEntryReader{entries: cleanEntries()}
	txMock, mock := newLifecycleTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewTimetableService(timetables, versions, reader, &stubEntryReplacer{}, txMock, nil, nil, nil)
	result, err := svc.Publish(context.Background(), "tt-1", dto.PublishTimetableRequest{ChangeNote: "republish"}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 4, result.Version)
}

func TestTimetableServiceValidate(t *testing.T) {
	timetables := &stubTimetableRepo{timetable: draftTimetable()}
	reader := &stubEntryReader{entries: cleanEntries()}

	svc := NewTimetableService(timetables, &stubVersionRepo{}, reader, &stubEntryReplacer{}, nil, nil, nil, nil)
	result, err := svc.Validate(context.Background(), "tt-1")

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Conflicts)
}

func TestTimetableServiceRestore(t *testing.T) {
	timetable := draftTimetable()
	timetable.CurrentVersion = 2
	snapshot, err := encodeScheduleSnapshot(buildScheduleSnapshot(cleanEntries()))
	require.NoError(t, err)

	timetables := &stubTimetableRepo{timetable: timetable}
	versions := &stubVersionRepo{
		target: &models.TimetableVersion{ID: "v-1", TimetableID: "tt-1", VersionNumber: 1, ScheduleData: snapshot},
	}
	replacer := &stubEntryReplacer{}
	txMock, mock := newLifecycleTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewTimetableService(timetables, versions, &stubEntryReader{}, replacer, txMock, nil, nil, nil)
	result, err := svc.Restore(context.Background(), "tt-1", "v-1", dto.RestoreVersionRequest{}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.RestoredFrom)
	assert.Equal(t, 3, result.NewVersion)
	assert.Equal(t, "tt-1", replacer.timetableID)
	assert.Len(t, replacer.replaced, 2)
	require.NotNil(t, versions.created)
	assert.Equal(t, "restored from version 1", versions.created.ChangeNote)
	assert.Equal(t, 3, timetables.snapshotVer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceRestoreRejectsForeignVersion(t *testing.T) {
	timetables := &stubTimetableRepo{timetable: draftTimetable()}
	versions := &stubVersionRepo{
		target: &models.TimetableVersion{ID: "v-9", TimetableID: "tt-other", VersionNumber: 1},
	}

	svc := NewTimetableService(timetables, versions, &stubEntryReader{}, &stubEntryReplacer{}, nil, nil, nil, nil)
	_, err := svc.Restore(context.Background(), "tt-1", "v-9", dto.RestoreVersionRequest{}, "user-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGetNotFound(t *testing.T) {
	timetables := &stubTimetableRepo{findErr: sql.ErrNoRows}

	svc := NewTimetableService(timetables, &stubVersionRepo{}, &stubEntryReader{}, &stubEntryReplacer{}, nil, nil, nil, nil)
	_, err := svc.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
