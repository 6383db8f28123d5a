package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// Mark is one raw subject mark. A nil Marks value without Absent means the
// mark was never captured.
type Mark struct {
	SubjectCode string
	Marks       *float64
	Absent      bool
}

// StudentMarks is everything needed to score one student.
type StudentMarks struct {
	StudentID string
	SchoolID  string
	Sex       string
	Marks     []Mark
}

// SubjectResult is one graded subject of a student.
type SubjectResult struct {
	SubjectCode string
	Marks       *float64
	Grade       string
	GradePoints *int
	Absent      bool
	Counted     bool
}

// Valid reports whether the subject carries a usable mark.
func (r SubjectResult) Valid() bool {
	return !r.Absent && r.Marks != nil
}

// PrimaryOutcome is the overall result shape of a primary exam.
type PrimaryOutcome struct {
	// Grade is the band of the overall average, S for an absent candidate
	// and empty when the average is undefined for any other reason.
	Grade string
}

// SecondaryOutcome is the overall result shape of a secondary exam.
type SecondaryOutcome struct {
	GPA      *float64
	Points   *int
	Division string
}

// StudentResult is a scored student. Exactly one of Primary and Secondary is
// set, according to the exam level. Average and Total are nil when no
// subject was counted.
type StudentResult struct {
	StudentID string
	SchoolID  string
	Sex       string
	Level     models.ExamLevel
	Subjects  []SubjectResult
	Counted   int
	Total     *float64
	Average   *float64

	Primary   *PrimaryOutcome
	Secondary *SecondaryOutcome
}

// GPA returns the overall GPA, nil for primary exams.
func (r StudentResult) GPA() *float64 {
	if r.Secondary == nil {
		return nil
	}
	return r.Secondary.GPA
}

// Division returns the division tag, empty for primary exams.
func (r StudentResult) Division() string {
	if r.Secondary == nil {
		return ""
	}
	return r.Secondary.Division
}

// OverallGrade returns the overall grade, empty for secondary exams.
func (r StudentResult) OverallGrade() string {
	if r.Primary == nil {
		return ""
	}
	return r.Primary.Grade
}

// ScoreStudent grades every subject mark and computes the student's overall
// metrics according to the exam's avg_style.
func ScoreStudent(cfg *ExamConfig, in StudentMarks) (StudentResult, error) {
	result := StudentResult{
		StudentID: in.StudentID,
		SchoolID:  in.SchoolID,
		Sex:       in.Sex,
		Level:     cfg.Exam.Level,
		Subjects:  make([]SubjectResult, 0, len(in.Marks)),
	}

	seen := make(map[string]struct{}, len(in.Marks))
	anyAbsent, anyValid := false, false
	for _, mark := range in.Marks {
		if _, ok := cfg.Subjects[mark.SubjectCode]; !ok {
			return StudentResult{}, fmt.Errorf("student %s subject %s: %w", in.StudentID, mark.SubjectCode, ErrUnknownSubject)
		}
		if _, dup := seen[mark.SubjectCode]; dup {
			return StudentResult{}, fmt.Errorf("student %s subject %s: %w", in.StudentID, mark.SubjectCode, ErrDuplicateMark)
		}
		seen[mark.SubjectCode] = struct{}{}

		subject := SubjectResult{SubjectCode: mark.SubjectCode, Absent: mark.Absent}
		switch {
		case mark.Absent:
			subject.Grade = models.GradeAbsent
			anyAbsent = true
		case mark.Marks != nil:
			band, err := cfg.Grades.Grade(*mark.Marks)
			if err != nil {
				return StudentResult{}, err
			}
			value := *mark.Marks
			points := band.GradePoints
			subject.Marks = &value
			subject.Grade = band.Grade
			subject.GradePoints = &points
			anyValid = true
		}
		result.Subjects = append(result.Subjects, subject)
	}
	sort.Slice(result.Subjects, func(i, j int) bool {
		return result.Subjects[i].SubjectCode < result.Subjects[j].SubjectCode
	})

	counted, complete := selectCounted(cfg, result.Subjects)
	for _, idx := range counted {
		result.Subjects[idx].Counted = true
	}
	result.Counted = len(counted)

	var (
		marksSum  float64
		pointsSum int
		gpaCount  int
	)
	for _, idx := range counted {
		subject := result.Subjects[idx]
		marksSum += *subject.Marks
		if !cfg.Subjects[subject.SubjectCode].ExcludeFromGPA {
			pointsSum += *subject.GradePoints
			gpaCount++
		}
	}

	if len(counted) > 0 {
		total := round4(marksSum)
		average := round4(marksSum / float64(len(counted)))
		result.Total = &total
		result.Average = &average
	}

	if !cfg.Secondary() {
		result.Primary = &PrimaryOutcome{}
		switch {
		case result.Average != nil:
			band, err := cfg.Grades.Grade(*result.Average)
			if err != nil {
				return StudentResult{}, err
			}
			result.Primary.Grade = band.Grade
		case anyAbsent && !anyValid:
			result.Primary.Grade = models.GradeAbsent
		}
		return result, nil
	}

	outcome := &SecondaryOutcome{}
	if gpaCount > 0 {
		gpa := round4(float64(pointsSum) / float64(gpaCount))
		points := pointsSum
		outcome.GPA = &gpa
		outcome.Points = &points
	}

	switch {
	case !anyValid && anyAbsent:
		outcome.Division = models.DivisionAbsent
	case gpaCount == 0 || !complete:
		outcome.Division = models.DivisionIncomplete
	case !cfg.Divisions.Covers(pointsSum, pointsSum):
		// AUTO totals depend on how many subjects a candidate sat and can
		// fall outside the configured bands.
		outcome.Division = models.DivisionIncomplete
	default:
		division, err := cfg.Divisions.Division(pointsSum)
		if err != nil {
			return StudentResult{}, err
		}
		outcome.Division = division.Division
	}
	result.Secondary = outcome

	return result, nil
}

// selectCounted returns the indexes of the counted subjects and whether the
// selection is complete enough to award a division.
//
// AUTO counts every valid mark and is complete when every registered GPA
// subject has one. Best-N styles pick the N lowest grade points among valid
// GPA subjects, ties by subject code, and are complete when N were found.
func selectCounted(cfg *ExamConfig, subjects []SubjectResult) ([]int, bool) {
	n := cfg.Exam.AvgStyle.BestOf()
	if n == 0 {
		counted := make([]int, 0, len(subjects))
		complete := true
		for i, subject := range subjects {
			excluded := cfg.Subjects[subject.SubjectCode].ExcludeFromGPA
			if subject.Valid() {
				counted = append(counted, i)
			} else if !excluded {
				complete = false
			}
		}
		return counted, complete
	}

	candidates := make([]int, 0, len(subjects))
	for i, subject := range subjects {
		if subject.Valid() && !cfg.Subjects[subject.SubjectCode].ExcludeFromGPA {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		sa, sb := subjects[candidates[a]], subjects[candidates[b]]
		if *sa.GradePoints != *sb.GradePoints {
			return *sa.GradePoints < *sb.GradePoints
		}
		return sa.SubjectCode < sb.SubjectCode
	})

	if len(candidates) < n {
		return candidates, false
	}
	return candidates[:n], true
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
