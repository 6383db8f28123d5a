package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-results-api/internal/models"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
)

const examColumns = `id, name, level, year, avg_style, ranking_style, subject_ranking_style, pass_grade, results_processed, processed_at, created_at, updated_at`

// ExamRepository reads exam configuration.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns an exam or ErrNotFound.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, fmt.Errorf("find exam: %w", err)
	}
	return &exam, nil
}

// ListGrades returns the exam's grade bands.
func (r *ExamRepository) ListGrades(ctx context.Context, examID string) ([]models.ExamGrade, error) {
	const query = `SELECT id, exam_id, grade, lowest_marks, highest_marks, grade_points
FROM exam_grades WHERE exam_id = $1 ORDER BY lowest_marks DESC`
	var grades []models.ExamGrade
	if err := r.db.SelectContext(ctx, &grades, query, examID); err != nil {
		return nil, fmt.Errorf("list exam grades: %w", err)
	}
	return grades, nil
}

// ListDivisions returns the exam's division bands.
func (r *ExamRepository) ListDivisions(ctx context.Context, examID string) ([]models.ExamDivision, error) {
	const query = `SELECT id, exam_id, division, lowest_points, highest_points, division_points
FROM exam_divisions WHERE exam_id = $1 ORDER BY lowest_points ASC`
	var divisions []models.ExamDivision
	if err := r.db.SelectContext(ctx, &divisions, query, examID); err != nil {
		return nil, fmt.Errorf("list exam divisions: %w", err)
	}
	return divisions, nil
}

// ListSubjects returns the exam's subjects.
func (r *ExamRepository) ListSubjects(ctx context.Context, examID string) ([]models.ExamSubject, error) {
	const query = `SELECT id, exam_id, code, name, short_name, has_practical, exclude_from_gpa, is_primary, is_olevel, is_alevel
FROM exam_subjects WHERE exam_id = $1 ORDER BY code ASC`
	var subjects []models.ExamSubject
	if err := r.db.SelectContext(ctx, &subjects, query, examID); err != nil {
		return nil, fmt.Errorf("list exam subjects: %w", err)
	}
	return subjects, nil
}
