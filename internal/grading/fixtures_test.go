package grading

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
)

func testGrades() []models.ExamGrade {
	return []models.ExamGrade{
		{Grade: "A", LowestMarks: 81, HighestMarks: 100, GradePoints: 1},
		{Grade: "B", LowestMarks: 61, HighestMarks: 80, GradePoints: 2},
		{Grade: "C", LowestMarks: 41, HighestMarks: 60, GradePoints: 3},
		{Grade: "D", LowestMarks: 21, HighestMarks: 40, GradePoints: 4},
		{Grade: "F", LowestMarks: 0, HighestMarks: 20, GradePoints: 5},
	}
}

func testDivisions() []models.ExamDivision {
	return []models.ExamDivision{
		{Division: models.DivisionI, LowestPoints: 1, HighestPoints: 17, DivisionPoints: 1},
		{Division: models.DivisionII, LowestPoints: 18, HighestPoints: 21, DivisionPoints: 2},
		{Division: models.DivisionIII, LowestPoints: 22, HighestPoints: 25, DivisionPoints: 3},
		{Division: models.DivisionIV, LowestPoints: 26, HighestPoints: 33, DivisionPoints: 4},
		{Division: models.DivisionZero, LowestPoints: 34, HighestPoints: 60, DivisionPoints: 5},
	}
}

// sevenSubjectDivisions bands totals of seven subjects, so fewer subjects
// can score below division I.
func sevenSubjectDivisions() []models.ExamDivision {
	return []models.ExamDivision{
		{Division: models.DivisionI, LowestPoints: 7, HighestPoints: 17, DivisionPoints: 1},
		{Division: models.DivisionII, LowestPoints: 18, HighestPoints: 21, DivisionPoints: 2},
		{Division: models.DivisionIII, LowestPoints: 22, HighestPoints: 25, DivisionPoints: 3},
		{Division: models.DivisionIV, LowestPoints: 26, HighestPoints: 33, DivisionPoints: 4},
		{Division: models.DivisionZero, LowestPoints: 34, HighestPoints: 35, DivisionPoints: 5},
	}
}

func testSubjects(codes ...string) []models.ExamSubject {
	subjects := make([]models.ExamSubject, 0, len(codes))
	for _, code := range codes {
		subjects = append(subjects, models.ExamSubject{Code: code, Name: "Subject " + code})
	}
	return subjects
}

func subjectCodes(n int) []string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("S%02d", i+1)
	}
	return codes
}

func secondaryExam(style models.AvgStyle, ranking models.RankingStyle) models.Exam {
	return models.Exam{
		ID:           "exam-1",
		Name:         "CSEE 2024",
		Level:        models.LevelCSEE,
		Year:         2024,
		AvgStyle:     style,
		RankingStyle: ranking,
	}
}

func primaryExam() models.Exam {
	return models.Exam{
		ID:           "exam-2",
		Name:         "PSLE 2024",
		Level:        models.LevelPSLE,
		Year:         2024,
		AvgStyle:     models.AvgStyleAuto,
		RankingStyle: models.RankingAverageOnly,
	}
}

func mustConfig(t *testing.T, exam models.Exam, subjects []models.ExamSubject) *ExamConfig {
	t.Helper()
	var divisions []models.ExamDivision
	if exam.Level.IsSecondary() {
		divisions = testDivisions()
	}
	cfg, err := NewExamConfig(exam, testGrades(), divisions, subjects)
	require.NoError(t, err)
	return cfg
}

func f(v float64) *float64 { return &v }

func marksFor(codes []string, values ...float64) []Mark {
	marks := make([]Mark, len(values))
	for i, v := range values {
		marks[i] = Mark{SubjectCode: codes[i], Marks: f(v)}
	}
	return marks
}
