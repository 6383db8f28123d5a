package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
)

func scoreAll(t *testing.T, cfg *ExamConfig, students []StudentMarks) []StudentResult {
	t.Helper()
	results := make([]StudentResult, 0, len(students))
	for _, s := range students {
		r, err := ScoreStudent(cfg, s)
		require.NoError(t, err)
		results = append(results, r)
	}
	return results
}

func TestAggregateSubject(t *testing.T) {
	cfg := mustConfig(t, secondaryExam(models.AvgStyleAuto, models.RankingGPAThenAverage), testSubjects("MAT", "ENG"))
	results := scoreAll(t, cfg, []StudentMarks{
		{StudentID: "st-1", Marks: []Mark{{SubjectCode: "MAT", Marks: f(90)}, {SubjectCode: "ENG", Marks: f(50)}}},
		{StudentID: "st-2", Marks: []Mark{{SubjectCode: "MAT", Marks: f(10)}}},
		{StudentID: "st-3", Marks: []Mark{{SubjectCode: "MAT", Absent: true}}},
		{StudentID: "st-4", Marks: []Mark{{SubjectCode: "MAT", Marks: f(50)}}},
	})

	agg := AggregateSubject(cfg, "MAT", results, false)
	assert.Equal(t, 4, agg.Registered)
	assert.Equal(t, 3, agg.Sat)
	assert.Equal(t, 1, agg.Absent)
	assert.Equal(t, 3, agg.StudentCount)
	assert.Equal(t, 50.0, agg.Average)
	require.NotNil(t, agg.GPA)
	assert.Equal(t, 3.0, *agg.GPA)
	assert.Equal(t, 2, agg.Passed)
	assert.Equal(t, 0.6667, agg.PassRate)
	assert.Equal(t, map[string]int{"A": 1, "C": 1, "F": 1, models.GradeAbsent: 1}, agg.GradeCounts)
}

func TestAggregateSubjectIncludeAbsent(t *testing.T) {
	cfg := mustConfig(t, secondaryExam(models.AvgStyleAuto, models.RankingGPAThenAverage), testSubjects("MAT"))
	results := scoreAll(t, cfg, []StudentMarks{
		{StudentID: "st-1", Marks: []Mark{{SubjectCode: "MAT", Marks: f(90)}}},
		{StudentID: "st-2", Marks: []Mark{{SubjectCode: "MAT", Absent: true}}},
	})

	agg := AggregateSubject(cfg, "MAT", results, true)
	assert.Equal(t, 2, agg.StudentCount)
	assert.Equal(t, 45.0, agg.Average)
	assert.Equal(t, 3.0, *agg.GPA)
	assert.Equal(t, 0.5, agg.PassRate)
}

func TestAggregateSubjectEmptyPopulation(t *testing.T) {
	cfg := mustConfig(t, secondaryExam(models.AvgStyleAuto, models.RankingGPAThenAverage), testSubjects("MAT"))

	agg := AggregateSubject(cfg, "MAT", nil, false)
	assert.Equal(t, "MAT", agg.SubjectCode)
	assert.Zero(t, agg.StudentCount)
	assert.Zero(t, agg.Average)
	assert.Zero(t, agg.PassRate)
	assert.Nil(t, agg.GPA)
	assert.NotNil(t, agg.GradeCounts)
}

func TestAggregateSubjectPrimaryHasNoGPA(t *testing.T) {
	cfg := mustConfig(t, primaryExam(), testSubjects("MAT"))
	results := scoreAll(t, cfg, []StudentMarks{{StudentID: "st-1", Marks: []Mark{{SubjectCode: "MAT", Marks: f(70)}}}})

	agg := AggregateSubject(cfg, "MAT", results, false)
	assert.Equal(t, 70.0, agg.Average)
	assert.Nil(t, agg.GPA)
	assert.Equal(t, 1.0, agg.PassRate)
}

func TestSubjectAggregateMerge(t *testing.T) {
	cfg := mustConfig(t, secondaryExam(models.AvgStyleAuto, models.RankingGPAThenAverage), testSubjects("MAT"))
	a := AggregateSubject(cfg, "MAT", scoreAll(t, cfg, []StudentMarks{
		{StudentID: "st-1", Marks: []Mark{{SubjectCode: "MAT", Marks: f(90)}}},
	}), false)
	b := AggregateSubject(cfg, "MAT", scoreAll(t, cfg, []StudentMarks{
		{StudentID: "st-2", Marks: []Mark{{SubjectCode: "MAT", Marks: f(60)}}},
		{StudentID: "st-3", Marks: []Mark{{SubjectCode: "MAT", Marks: f(30)}}},
	}), false)

	a.Merge(b)
	assert.Equal(t, 3, a.StudentCount)
	assert.Equal(t, 60.0, a.Average)
	assert.Equal(t, 2.6667, *a.GPA)
	assert.Equal(t, map[string]int{"A": 1, "C": 1, "D": 1}, a.GradeCounts)
}
