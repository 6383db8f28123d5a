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

const schoolColumns = `s.id, s.name, s.registration_no, w.id AS ward_id, w.name AS ward_name,
c.id AS council_id, c.name AS council_name, r.id AS region_id, r.name AS region_name`

const schoolJoins = `JOIN wards w ON w.id = s.ward_id
JOIN councils c ON c.id = w.council_id
JOIN regions r ON r.id = c.region_id`

// MarkRepository reads uploaded candidates, schools and marks for processing.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs the repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// ListSchools returns every school with at least one candidate in the exam,
// resolved to its ward, council and region.
func (r *MarkRepository) ListSchools(ctx context.Context, examID string) ([]models.School, error) {
	query := `SELECT ` + schoolColumns + `
FROM schools s
` + schoolJoins + `
WHERE EXISTS (SELECT 1 FROM students st WHERE st.school_id = s.id AND st.exam_id = $1)
ORDER BY s.id ASC`
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, examID); err != nil {
		return nil, fmt.Errorf("list exam schools: %w", err)
	}
	return schools, nil
}

// FindSchool returns a school with its location or ErrNotFound.
func (r *MarkRepository) FindSchool(ctx context.Context, id string) (*models.School, error) {
	query := `SELECT ` + schoolColumns + `
FROM schools s
` + schoolJoins + `
WHERE s.id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return &school, nil
}

// ListMarks returns every registered subject row for the exam's candidates,
// ordered by school, student and subject.
func (r *MarkRepository) ListMarks(ctx context.Context, examID string) ([]models.StudentMark, error) {
	const query = `SELECT m.exam_id, m.student_id, st.school_id, st.sex, m.subject_code, m.marks, m.absent
FROM student_marks m
JOIN students st ON st.id = m.student_id
WHERE m.exam_id = $1
ORDER BY st.school_id ASC, m.student_id ASC, m.subject_code ASC`
	var marks []models.StudentMark
	if err := r.db.SelectContext(ctx, &marks, query, examID); err != nil {
		return nil, fmt.Errorf("list exam marks: %w", err)
	}
	return marks, nil
}

// FindStudent returns a candidate of an exam or ErrNotFound.
func (r *MarkRepository) FindStudent(ctx context.Context, examID, studentID string) (*models.Student, error) {
	const query = `SELECT id, exam_id, school_id, candidate_no, full_name, sex, created_at
FROM students WHERE exam_id = $1 AND id = $2`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, examID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}
