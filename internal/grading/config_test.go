package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
)

func TestNewExamConfigDefaults(t *testing.T) {
	exam := secondaryExam("", models.RankingGPAThenAverage)
	cfg, err := NewExamConfig(exam, testGrades(), testDivisions(), testSubjects("PHY", "BIO", "CIV"))
	require.NoError(t, err)

	assert.Equal(t, models.AvgStyleAuto, cfg.Exam.AvgStyle)
	assert.Equal(t, models.RankingAverageOnly, cfg.Exam.SubjectRankingStyle)
	assert.Equal(t, []string{"BIO", "CIV", "PHY"}, cfg.SubjectCodes())
	assert.True(t, cfg.Secondary())
	require.NotNil(t, cfg.Divisions)

	d, _ := cfg.Grades.Lookup("D")
	fail, _ := cfg.Grades.Lookup("F")
	assert.True(t, cfg.Passes(d))
	assert.False(t, cfg.Passes(fail))
}

func TestNewExamConfigPassGrade(t *testing.T) {
	exam := secondaryExam(models.AvgStyleAuto, models.RankingAverageOnly)
	exam.PassGrade = "C"
	cfg, err := NewExamConfig(exam, testGrades(), testDivisions(), testSubjects("PHY"))
	require.NoError(t, err)

	c, _ := cfg.Grades.Lookup("C")
	d, _ := cfg.Grades.Lookup("D")
	assert.True(t, cfg.Passes(c))
	assert.False(t, cfg.Passes(d))
}

func TestNewExamConfigPrimaryHasNoDivisions(t *testing.T) {
	cfg, err := NewExamConfig(primaryExam(), testGrades(), nil, testSubjects("ENG", "MAT"))
	require.NoError(t, err)
	assert.False(t, cfg.Secondary())
	assert.Nil(t, cfg.Divisions)
}

func TestNewExamConfigRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name      string
		exam      func() models.Exam
		divisions []models.ExamDivision
		subjects  []models.ExamSubject
		field     string
	}{
		{
			name:     "unknown level",
			exam:     func() models.Exam { e := primaryExam(); e.Level = "KCSE"; return e },
			subjects: testSubjects("ENG"),
			field:    "level",
		},
		{
			name:      "unknown avg style",
			exam:      func() models.Exam { return secondaryExam("NINE_BEST", models.RankingAverageOnly) },
			divisions: testDivisions(),
			subjects:  testSubjects("ENG"),
			field:     "avg_style",
		},
		{
			name:      "unknown ranking style",
			exam:      func() models.Exam { return secondaryExam(models.AvgStyleAuto, "MEDIAN") },
			divisions: testDivisions(),
			subjects:  testSubjects("ENG"),
			field:     "ranking_style",
		},
		{
			name:     "gpa ranking on primary",
			exam:     func() models.Exam { e := primaryExam(); e.RankingStyle = models.RankingGPAThenAverage; return e },
			subjects: testSubjects("ENG"),
			field:    "ranking_style",
		},
		{
			name: "total subject ranking",
			exam: func() models.Exam {
				e := secondaryExam(models.AvgStyleAuto, models.RankingAverageOnly)
				e.SubjectRankingStyle = models.RankingTotalOnly
				return e
			},
			divisions: testDivisions(),
			subjects:  testSubjects("ENG"),
			field:     "subject_ranking_style",
		},
		{
			name:     "secondary without divisions",
			exam:     func() models.Exam { return secondaryExam(models.AvgStyleAuto, models.RankingAverageOnly) },
			subjects: testSubjects("ENG"),
			field:    "divisions",
		},
		{
			name: "divisions do not cover best seven",
			exam: func() models.Exam { return secondaryExam(models.AvgStyleSevenBest, models.RankingAverageOnly) },
			divisions: []models.ExamDivision{
				{Division: models.DivisionI, LowestPoints: 7, HighestPoints: 17, DivisionPoints: 1},
				{Division: models.DivisionII, LowestPoints: 18, HighestPoints: 30, DivisionPoints: 2},
			},
			subjects: testSubjects("ENG"),
			field:    "divisions",
		},
		{
			name:      "duplicate subject",
			exam:      func() models.Exam { return secondaryExam(models.AvgStyleAuto, models.RankingAverageOnly) },
			divisions: testDivisions(),
			subjects:  testSubjects("ENG", "ENG"),
			field:     "subjects",
		},
		{
			name: "unknown pass grade",
			exam: func() models.Exam {
				e := secondaryExam(models.AvgStyleAuto, models.RankingAverageOnly)
				e.PassGrade = "E"
				return e
			},
			divisions: testDivisions(),
			subjects:  testSubjects("ENG"),
			field:     "pass_grade",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExamConfig(tt.exam(), testGrades(), tt.divisions, tt.subjects)
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
