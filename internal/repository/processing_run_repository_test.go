package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
)

func newRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var runRowColumns = []string{"id", "exam_id", "params", "status", "progress", "school_count", "student_count", "created_by", "created_at", "started_at", "finished_at", "error_message"}

func TestProcessingRunRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewProcessingRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_runs")).
		WithArgs(sqlmock.AnyArg(), "exam-1", sqlmock.AnyArg(), "QUEUED", 0, 0, 0, "user-1", sqlmock.AnyArg(), nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.ProcessingRun{ExamID: "exam-1", Params: models.ProcessingRunParams{IncludeAbsent: true}, CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), run))
	require.NotEmpty(t, run.ID)
	require.Equal(t, models.ProcessingStatusQueued, run.Status)

	rows := sqlmock.NewRows(runRowColumns).
		AddRow(run.ID, "exam-1", `{"includeAbsent":true}`, "QUEUED", 0, 0, 0, "user-1", time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + runColumns + " FROM processing_runs WHERE id = $1")).
		WithArgs(run.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, fetched.ID)
	require.True(t, fetched.Params.IncludeAbsent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingRunRepositoryFindActiveNone(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewProcessingRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('QUEUED', 'PROCESSING')")).
		WithArgs("exam-1").
		WillReturnError(sql.ErrNoRows)

	run, err := repo.FindActive(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingRunRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewProcessingRunRepository(db)

	now := time.Now()
	status := models.ProcessingStatusFinished
	progress := 100
	students := 420
	mock.ExpectExec(regexp.QuoteMeta("UPDATE processing_runs SET status = $1, progress = $2, student_count = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, progress, students, now, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "run-1", UpdateProcessingRunParams{
		Status:       &status,
		Progress:     &progress,
		StudentCount: &students,
		FinishedAt:   &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingRunRepositoryUpdateNoop(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewProcessingRunRepository(db)

	require.NoError(t, repo.Update(context.Background(), "run-1", UpdateProcessingRunParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingRunRepositoryRecovery(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewProcessingRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE processing_runs SET status = 'FAILED'")).
		WithArgs("interrupted by restart", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	rows := sqlmock.NewRows(runRowColumns).
		AddRow("run-2", "exam-1", `{}`, "QUEUED", 0, 0, 0, "user-1", time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	failed, err := repo.FailStale(context.Background(), "interrupted by restart")
	require.NoError(t, err)
	require.EqualValues(t, 2, failed)

	queued, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
