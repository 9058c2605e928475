package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timetableRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "branch_id", "session_id", "season_id", "shift_id", "name", "description", "status",
		"effective_from", "effective_to", "schedule_data", "created_by", "published_by", "published_at",
		"current_version", "created_at", "updated_at",
	}).AddRow("tt-1", "branch-1", "session-1", nil, "shift-1", "Winter", "", "draft",
		nil, nil, []byte(`{}`), nil, nil, nil, 0, now, now)
}

func TestTimetableRepositoryCreateWithTx(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timetables").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	timetable := &models.Timetable{BranchID: "branch-1", SessionID: "session-1", ShiftID: "shift-1", Name: "Winter"}
	require.NoError(t, repo.CreateWithTx(context.Background(), tx, timetable))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, timetable.ID, "id is assigned on insert")
	assert.Equal(t, models.TimetableStatusDraft, timetable.Status)
	assert.Equal(t, types.JSONText(`{}`), timetable.ScheduleData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryAcquireGenerationLock(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("timetable_generation:branch-1:session-1:shift-1:").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, repo.AcquireGenerationLock(context.Background(), tx, "branch-1", "session-1", "shift-1", nil))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE id = \\$1").
		WithArgs("tt-1").
		WillReturnRows(timetableRows())

	timetable, err := repo.FindByID(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", timetable.ID)
	assert.Equal(t, models.TimetableStatusDraft, timetable.Status)
}

func TestTimetableRepositoryList(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetables WHERE 1=1 AND branch_id = $1")).
		WithArgs("branch-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE 1=1 AND branch_id = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("branch-1", 20, 0).
		WillReturnRows(timetableRows())

	items, total, err := repo.List(context.Background(), models.TimetableFilter{BranchID: "branch-1", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryMarkPublishedWithTx(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE timetables").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, repo.MarkPublishedWithTx(context.Background(), tx, "tt-1", 1, types.JSONText(`{}`), "user-1", nil, nil))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryMarkPublishedMissingRow(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE timetables").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.MarkPublishedWithTx(context.Background(), tx, "missing", 1, types.JSONText(`{}`), "", nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
}
