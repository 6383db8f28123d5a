package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/pkg/database"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
)

const insertBatchSize = 500

const (
	studentResultColumns   = `exam_id, student_id, school_id, sex, level, counted_subjects, total, average, grade, gpa, points, division, subjects, created_at`
	locationSummaryColumns = `exam_id, location_type, location_id, parent_id, name, total_schools, total_students, ranked_students, average_sum, total_sum, gpa_sum, gpa_count, average, gpa, division_summary, grades_summary`
	subjectSummaryColumns  = `exam_id, location_type, location_id, subject_code, registered, sat, absent, student_count, passed, marks_sum, points_sum, average, gpa, pass_rate, grade_counts`
	positionColumns        = `exam_id, entity_type, entity_id, scope, scope_id, subject_code, position, total`
)

// ResultSet is everything produced by processing one exam.
type ResultSet struct {
	Students  []models.StudentResult
	Positions []models.RankingPosition
	Locations []models.LocationSummary
	Subjects  []models.SubjectSummary
}

// ResultRepository stores and reads processed exam results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

var resultTables = []string{"student_results", "ranking_positions", "location_summaries", "subject_summaries"}

// Replace atomically swaps the exam's stored results for set and marks the
// exam processed.
func (r *ResultRepository) Replace(ctx context.Context, examID string, set ResultSet) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := deleteResults(ctx, tx, examID); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range set.Students {
			set.Students[i].CreatedAt = now
		}
		if err := insertBatches(ctx, tx, "student_results", studentResultColumns, len(set.Students), func(lo, hi int) interface{} { return set.Students[lo:hi] }); err != nil {
			return err
		}
		if err := insertBatches(ctx, tx, "ranking_positions", positionColumns, len(set.Positions), func(lo, hi int) interface{} { return set.Positions[lo:hi] }); err != nil {
			return err
		}
		if err := insertBatches(ctx, tx, "location_summaries", locationSummaryColumns, len(set.Locations), func(lo, hi int) interface{} { return set.Locations[lo:hi] }); err != nil {
			return err
		}
		if err := insertBatches(ctx, tx, "subject_summaries", subjectSummaryColumns, len(set.Subjects), func(lo, hi int) interface{} { return set.Subjects[lo:hi] }); err != nil {
			return err
		}

		const mark = `UPDATE exams SET results_processed = TRUE, processed_at = $1, updated_at = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, mark, now, examID); err != nil {
			return fmt.Errorf("mark exam processed: %w", err)
		}
		return nil
	})
}

// Clear removes the exam's stored results and marks it unprocessed.
func (r *ResultRepository) Clear(ctx context.Context, examID string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := deleteResults(ctx, tx, examID); err != nil {
			return err
		}
		const unmark = `UPDATE exams SET results_processed = FALSE, processed_at = NULL, updated_at = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, unmark, time.Now().UTC(), examID); err != nil {
			return fmt.Errorf("mark exam unprocessed: %w", err)
		}
		return nil
	})
}

func deleteResults(ctx context.Context, tx *sqlx.Tx, examID string) error {
	for _, table := range resultTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE exam_id = $1", table), examID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

func insertBatches(ctx context.Context, tx *sqlx.Tx, table, columns string, n int, slice func(lo, hi int) interface{}) error {
	if n == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns, namedParams(columns))
	for lo := 0; lo < n; lo += insertBatchSize {
		hi := lo + insertBatchSize
		if hi > n {
			hi = n
		}
		if _, err := tx.NamedExecContext(ctx, query, slice(lo, hi)); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

// GetStudentResult returns one stored student result or ErrNotFound.
func (r *ResultRepository) GetStudentResult(ctx context.Context, examID, studentID string) (*models.StudentResult, error) {
	query := `SELECT ` + studentResultColumns + ` FROM student_results WHERE exam_id = $1 AND student_id = $2`
	var result models.StudentResult
	if err := r.db.GetContext(ctx, &result, query, examID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student result not found")
		}
		return nil, fmt.Errorf("get student result: %w", err)
	}
	return &result, nil
}

// ListPositions returns every stored position of an entity.
func (r *ResultRepository) ListPositions(ctx context.Context, examID string, entity models.RankEntity, entityID string) ([]models.RankingPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM ranking_positions
WHERE exam_id = $1 AND entity_type = $2 AND entity_id = $3
ORDER BY subject_code ASC, scope ASC`
	var positions []models.RankingPosition
	if err := r.db.SelectContext(ctx, &positions, query, examID, entity, entityID); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}

// GetLocationSummary returns one stored location summary or ErrNotFound.
func (r *ResultRepository) GetLocationSummary(ctx context.Context, examID string, locationType models.LocationType, locationID string) (*models.LocationSummary, error) {
	query := `SELECT ` + locationSummaryColumns + ` FROM location_summaries
WHERE exam_id = $1 AND location_type = $2 AND location_id = $3`
	var summary models.LocationSummary
	if err := r.db.GetContext(ctx, &summary, query, examID, locationType, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s summary not found", locationType))
		}
		return nil, fmt.Errorf("get location summary: %w", err)
	}
	return &summary, nil
}

// ListChildSummaries returns the summaries of a location's direct children.
func (r *ResultRepository) ListChildSummaries(ctx context.Context, examID string, childType models.LocationType, parentID string) ([]models.LocationSummary, error) {
	query := `SELECT ` + locationSummaryColumns + ` FROM location_summaries
WHERE exam_id = $1 AND location_type = $2 AND parent_id = $3
ORDER BY name ASC, location_id ASC`
	var summaries []models.LocationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, examID, childType, parentID); err != nil {
		return nil, fmt.Errorf("list child summaries: %w", err)
	}
	return summaries, nil
}

// ListLocationSummaries returns every stored summary above school level.
func (r *ResultRepository) ListLocationSummaries(ctx context.Context, examID string) ([]models.LocationSummary, error) {
	query := `SELECT ` + locationSummaryColumns + ` FROM location_summaries
WHERE exam_id = $1 AND location_type <> 'school'
ORDER BY name ASC, location_id ASC`
	var summaries []models.LocationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, examID); err != nil {
		return nil, fmt.Errorf("list location summaries: %w", err)
	}
	return summaries, nil
}

// ListSubjectSummaries returns per-subject aggregates for one location.
func (r *ResultRepository) ListSubjectSummaries(ctx context.Context, examID string, locationType models.LocationType, locationID string) ([]models.SubjectSummary, error) {
	query := `SELECT ` + subjectSummaryColumns + ` FROM subject_summaries
WHERE exam_id = $1 AND location_type = $2 AND location_id = $3
ORDER BY subject_code ASC`
	var summaries []models.SubjectSummary
	if err := r.db.SelectContext(ctx, &summaries, query, examID, locationType, locationID); err != nil {
		return nil, fmt.Errorf("list subject summaries: %w", err)
	}
	return summaries, nil
}

// ListSchoolRanking returns ranked schools for a scope in position order.
// Unranked schools come last.
func (r *ResultRepository) ListSchoolRanking(ctx context.Context, filter models.RankingFilter) ([]models.SchoolRankingRow, error) {
	const query = `SELECT rp.entity_id AS school_id, s.name AS school_name, s.registration_no, rp.position, rp.total,
ls.total_students, ls.average, ls.gpa, ls.division_summary, ls.grades_summary
FROM ranking_positions rp
JOIN schools s ON s.id = rp.entity_id
JOIN location_summaries ls ON ls.exam_id = rp.exam_id AND ls.location_type = 'school' AND ls.location_id = rp.entity_id
WHERE rp.exam_id = $1 AND rp.entity_type = 'school' AND rp.scope = $2 AND rp.scope_id = $3 AND rp.subject_code = ''
ORDER BY rp.position = 0 ASC, rp.position ASC, s.name ASC
LIMIT $4 OFFSET $5`
	var rows []models.SchoolRankingRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.ExamID, filter.Scope, filter.ScopeID, limitOrAll(filter.Limit), filter.Offset); err != nil {
		return nil, fmt.Errorf("list school ranking: %w", err)
	}
	return rows, nil
}

// ListSubjectRanking returns schools ranked on one subject within a scope.
func (r *ResultRepository) ListSubjectRanking(ctx context.Context, filter models.RankingFilter) ([]models.SubjectRankingRow, error) {
	const query = `SELECT rp.entity_id AS school_id, s.name AS school_name, s.registration_no, rp.position, rp.total,
ss.student_count, ss.average, ss.gpa, ss.pass_rate
FROM ranking_positions rp
JOIN schools s ON s.id = rp.entity_id
JOIN subject_summaries ss ON ss.exam_id = rp.exam_id AND ss.location_type = 'school' AND ss.location_id = rp.entity_id AND ss.subject_code = rp.subject_code
WHERE rp.exam_id = $1 AND rp.entity_type = 'school' AND rp.scope = $2 AND rp.scope_id = $3 AND rp.subject_code = $4
ORDER BY rp.position = 0 ASC, rp.position ASC, s.name ASC
LIMIT $5 OFFSET $6`
	var rows []models.SubjectRankingRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.ExamID, filter.Scope, filter.ScopeID, filter.SubjectCode, limitOrAll(filter.Limit), filter.Offset); err != nil {
		return nil, fmt.Errorf("list subject ranking: %w", err)
	}
	return rows, nil
}

func limitOrAll(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
