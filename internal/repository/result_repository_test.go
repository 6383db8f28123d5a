package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
)

func newResultRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func expectResultDeletes(mock sqlmock.Sqlmock, examID string) {
	for _, table := range resultTables {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table + " WHERE exam_id = $1")).
			WithArgs(examID).
			WillReturnResult(sqlmock.NewResult(0, 3))
	}
}

func TestResultRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	avg := 71.5
	division := models.DivisionII
	set := ResultSet{
		Students: []models.StudentResult{
			{ExamID: "exam-1", StudentID: "st-1", SchoolID: "sch-1", Sex: "F", Level: models.LevelCSEE, Average: &avg, Division: &division},
		},
		Positions: []models.RankingPosition{
			{ExamID: "exam-1", EntityType: models.EntityStudent, EntityID: "st-1", Scope: models.ScopeSchool, ScopeID: "sch-1", Position: 1, Total: 1},
		},
		Locations: []models.LocationSummary{
			{ExamID: "exam-1", LocationType: models.LocationSchool, LocationID: "sch-1", Name: "Azania", TotalStudents: 1},
		},
	}

	mock.ExpectBegin()
	expectResultDeletes(mock, "exam-1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_results")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ranking_positions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO location_summaries")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET results_processed = TRUE")).
		WithArgs(sqlmock.AnyArg(), "exam-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Replace(context.Background(), "exam-1", set))
	require.False(t, set.Students[0].CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	set := ResultSet{Students: []models.StudentResult{{ExamID: "exam-1", StudentID: "st-1", SchoolID: "sch-1"}}}
	boom := errors.New("disk full")

	mock.ExpectBegin()
	expectResultDeletes(mock, "exam-1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_results")).WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), "exam-1", set)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "insert student_results")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryReplaceBatchesLargeSets(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	positions := make([]models.RankingPosition, insertBatchSize+1)
	for i := range positions {
		positions[i] = models.RankingPosition{ExamID: "exam-1", EntityType: models.EntityStudent, EntityID: "st", Scope: models.ScopeNational, ScopeID: models.NationalID}
	}

	mock.ExpectBegin()
	expectResultDeletes(mock, "exam-1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ranking_positions")).WillReturnResult(sqlmock.NewResult(0, int64(insertBatchSize)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ranking_positions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET results_processed = TRUE")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Replace(context.Background(), "exam-1", ResultSet{Positions: positions}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryClear(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	expectResultDeletes(mock, "exam-1")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET results_processed = FALSE")).
		WithArgs(sqlmock.AnyArg(), "exam-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Clear(context.Background(), "exam-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryGetStudentResult(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"exam_id", "student_id", "school_id", "sex", "level", "counted_subjects", "total", "average", "grade", "gpa", "points", "division", "subjects", "created_at"}).
		AddRow("exam-1", "st-1", "sch-1", "M", "CSEE", 7, 500.0, 71.4286, nil, 2.1429, 15, "I", `[{"subject_code":"ENG","marks":80,"grade":"A","grade_points":1,"counted":true}]`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_results WHERE exam_id = $1 AND student_id = $2")).
		WithArgs("exam-1", "st-1").
		WillReturnRows(rows)

	result, err := repo.GetStudentResult(context.Background(), "exam-1", "st-1")
	require.NoError(t, err)
	require.Equal(t, "I", *result.Division)
	require.Nil(t, result.Grade)
	require.Len(t, result.Subjects, 1)
	require.True(t, result.Subjects[0].Counted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryGetLocationSummaryNotFound(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM location_summaries")).
		WithArgs("exam-1", models.LocationRegion, "r9").
		WillReturnRows(sqlmock.NewRows([]string{"exam_id"}))

	_, err := repo.GetLocationSummary(context.Background(), "exam-1", models.LocationRegion, "r9")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryListSchoolRanking(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"school_id", "school_name", "registration_no", "position", "total", "total_students", "average", "gpa", "division_summary", "grades_summary"}).
		AddRow("sch-1", "Azania", "S0101", 1, 2, 40, 68.2, 2.4, `{"I":10,"II":30}`, `{}`).
		AddRow("sch-2", "Mzumbe", "S0202", 2, 2, 35, 61.0, 2.9, `{"II":35}`, `{}`)
	mock.ExpectQuery(regexp.QuoteMeta("rp.subject_code = ''")).
		WithArgs("exam-1", models.ScopeRegion, "r1", 10, 0).
		WillReturnRows(rows)

	ranking, err := repo.ListSchoolRanking(context.Background(), models.RankingFilter{
		ExamID: "exam-1", Scope: models.ScopeRegion, ScopeID: "r1", Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	require.Equal(t, 30, ranking[0].DivisionSummary["II"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryListSubjectRanking(t *testing.T) {
	db, mock, cleanup := newResultRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"school_id", "school_name", "registration_no", "position", "total", "student_count", "average", "gpa", "pass_rate"}).
		AddRow("sch-2", "Mzumbe", "S0202", 1, 1, 35, 74.0, 1.8, 97.14)
	mock.ExpectQuery(regexp.QuoteMeta("rp.subject_code = $4")).
		WithArgs("exam-1", models.ScopeNational, models.NationalID, "MAT", nil, 0).
		WillReturnRows(rows)

	ranking, err := repo.ListSubjectRanking(context.Background(), models.RankingFilter{
		ExamID: "exam-1", Scope: models.ScopeNational, ScopeID: models.NationalID, SubjectCode: "MAT",
	})
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	require.InDelta(t, 97.14, ranking[0].PassRate, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}
