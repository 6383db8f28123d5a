package grading

import (
	"sort"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// ExamConfig is a validated exam configuration. Build it once per exam with
// NewExamConfig and share it read-only between workers.
type ExamConfig struct {
	Exam      models.Exam
	Grades    *GradeScale
	Divisions *DivisionScale
	Subjects  map[string]models.ExamSubject

	subjectCodes []string
	passPoints   int
}

// NewExamConfig validates the exam and its grade, division and subject
// configuration. An empty avg_style defaults to AUTO and an empty
// subject_ranking_style defaults to AVERAGE_ONLY.
func NewExamConfig(exam models.Exam, grades []models.ExamGrade, divisions []models.ExamDivision, subjects []models.ExamSubject) (*ExamConfig, error) {
	if !exam.Level.Valid() {
		return nil, configError(exam.ID, "level", "unknown exam level %q", exam.Level)
	}
	if exam.AvgStyle == "" {
		exam.AvgStyle = models.AvgStyleAuto
	}
	if !exam.AvgStyle.Valid() {
		return nil, configError(exam.ID, "avg_style", "unknown avg_style %q", exam.AvgStyle)
	}
	if !exam.RankingStyle.Valid() {
		return nil, configError(exam.ID, "ranking_style", "unknown ranking_style %q", exam.RankingStyle)
	}
	if exam.SubjectRankingStyle == "" {
		exam.SubjectRankingStyle = models.RankingAverageOnly
	}
	switch exam.SubjectRankingStyle {
	case models.RankingAverageOnly, models.RankingGPAThenAverage, models.RankingAverageThenGPA:
	default:
		return nil, configError(exam.ID, "subject_ranking_style", "unsupported subject_ranking_style %q", exam.SubjectRankingStyle)
	}

	secondary := exam.Level.IsSecondary()
	if !secondary && exam.RankingStyle.UsesGPA() {
		return nil, configError(exam.ID, "ranking_style", "%s ranks by GPA but %s exams have no GPA", exam.RankingStyle, exam.Level)
	}
	if !secondary && exam.SubjectRankingStyle.UsesGPA() {
		return nil, configError(exam.ID, "subject_ranking_style", "%s ranks by GPA but %s exams have no GPA", exam.SubjectRankingStyle, exam.Level)
	}

	scale, err := NewGradeScale(exam.ID, grades)
	if err != nil {
		return nil, err
	}

	cfg := &ExamConfig{
		Exam:     exam,
		Grades:   scale,
		Subjects: make(map[string]models.ExamSubject, len(subjects)),
	}

	if secondary {
		divs, err := NewDivisionScale(exam.ID, divisions)
		if err != nil {
			return nil, err
		}
		if n := exam.AvgStyle.BestOf(); n > 0 {
			lo, hi := n*scale.Best().GradePoints, n*scale.Worst().GradePoints
			if !divs.Covers(lo, hi) {
				return nil, configError(exam.ID, "divisions", "bands do not cover %d-%d points for %s", lo, hi, exam.AvgStyle)
			}
		}
		cfg.Divisions = divs
	}

	for _, subject := range subjects {
		if subject.Code == "" {
			return nil, configError(exam.ID, "subjects", "subject %q has no code", subject.Name)
		}
		if _, dup := cfg.Subjects[subject.Code]; dup {
			return nil, configError(exam.ID, "subjects", "subject code %s configured twice", subject.Code)
		}
		cfg.Subjects[subject.Code] = subject
		cfg.subjectCodes = append(cfg.subjectCodes, subject.Code)
	}
	sort.Strings(cfg.subjectCodes)

	if exam.PassGrade == "" {
		cfg.passPoints = scale.Worst().GradePoints - 1
	} else {
		band, ok := scale.Lookup(exam.PassGrade)
		if !ok {
			return nil, configError(exam.ID, "pass_grade", "pass grade %q is not a configured grade", exam.PassGrade)
		}
		cfg.passPoints = band.GradePoints
	}

	return cfg, nil
}

// Secondary reports whether the exam computes GPA and divisions.
func (c *ExamConfig) Secondary() bool {
	return c.Exam.Level.IsSecondary()
}

// SubjectCodes returns the configured subject codes in ascending order.
func (c *ExamConfig) SubjectCodes() []string {
	out := make([]string, len(c.subjectCodes))
	copy(out, c.subjectCodes)
	return out
}

// Passes reports whether a grade is at or above the exam's pass grade.
func (c *ExamConfig) Passes(grade models.ExamGrade) bool {
	return grade.GradePoints <= c.passPoints
}
