package models

import "time"

// ExamLevel identifies the national examination an exam belongs to.
type ExamLevel string

const (
	LevelSTNA  ExamLevel = "STNA"
	LevelSFNA  ExamLevel = "SFNA"
	LevelPSLE  ExamLevel = "PSLE"
	LevelFTNA  ExamLevel = "FTNA"
	LevelCSEE  ExamLevel = "CSEE"
	LevelACSEE ExamLevel = "ACSEE"
)

// Valid reports whether the level is one of the known examinations.
func (l ExamLevel) Valid() bool {
	switch l {
	case LevelSTNA, LevelSFNA, LevelPSLE, LevelFTNA, LevelCSEE, LevelACSEE:
		return true
	default:
		return false
	}
}

// IsSecondary reports whether the level computes GPA and divisions.
func (l ExamLevel) IsSecondary() bool {
	switch l {
	case LevelFTNA, LevelCSEE, LevelACSEE:
		return true
	default:
		return false
	}
}

// AvgStyle selects which subjects count toward a student's overall metric.
type AvgStyle string

const (
	AvgStyleAuto      AvgStyle = "AUTO"
	AvgStyleSevenBest AvgStyle = "SEVEN_BEST"
	AvgStyleEightBest AvgStyle = "EIGHT_BEST"
)

// Valid reports whether the style is known.
func (s AvgStyle) Valid() bool {
	return s == AvgStyleAuto || s == AvgStyleSevenBest || s == AvgStyleEightBest
}

// BestOf returns the number of subjects selected by best-N styles, 0 for AUTO.
func (s AvgStyle) BestOf() int {
	switch s {
	case AvgStyleSevenBest:
		return 7
	case AvgStyleEightBest:
		return 8
	default:
		return 0
	}
}

// RankingStyle orders students, schools and subjects.
type RankingStyle string

const (
	RankingAverageOnly      RankingStyle = "AVERAGE_ONLY"
	RankingGPAThenAverage   RankingStyle = "GPA_THEN_AVERAGE"
	RankingAverageThenGPA   RankingStyle = "AVERAGE_THEN_GPA"
	RankingTotalOnly        RankingStyle = "TOTAL_ONLY"
	RankingTotalThenAverage RankingStyle = "TOTAL_THEN_AVERAGE"
)

// Valid reports whether the style is known.
func (s RankingStyle) Valid() bool {
	switch s {
	case RankingAverageOnly, RankingGPAThenAverage, RankingAverageThenGPA, RankingTotalOnly, RankingTotalThenAverage:
		return true
	default:
		return false
	}
}

// UsesGPA reports whether either sort key of the style is GPA.
func (s RankingStyle) UsesGPA() bool {
	return s == RankingGPAThenAverage || s == RankingAverageThenGPA
}

// Exam is the top level configuration record for one examination sitting.
type Exam struct {
	ID                  string       `db:"id" json:"id"`
	Name                string       `db:"name" json:"name"`
	Level               ExamLevel    `db:"level" json:"level"`
	Year                int          `db:"year" json:"year"`
	AvgStyle            AvgStyle     `db:"avg_style" json:"avg_style"`
	RankingStyle        RankingStyle `db:"ranking_style" json:"ranking_style"`
	SubjectRankingStyle RankingStyle `db:"subject_ranking_style" json:"subject_ranking_style"`
	PassGrade           string       `db:"pass_grade" json:"pass_grade"`
	ResultsProcessed    bool         `db:"results_processed" json:"results_processed"`
	ProcessedAt         *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// ExamGrade is one grade band: an inclusive whole-mark range and its points.
type ExamGrade struct {
	ID           string `db:"id" json:"id"`
	ExamID       string `db:"exam_id" json:"exam_id"`
	Grade        string `db:"grade" json:"grade"`
	LowestMarks  int    `db:"lowest_marks" json:"lowest_marks"`
	HighestMarks int    `db:"highest_marks" json:"highest_marks"`
	GradePoints  int    `db:"grade_points" json:"grade_points"`
}

// Division tags. INC and ABS are assigned outside the configured bands.
const (
	DivisionI          = "I"
	DivisionII         = "II"
	DivisionIII        = "III"
	DivisionIV         = "IV"
	DivisionZero       = "0"
	DivisionIncomplete = "INC"
	DivisionAbsent     = "ABS"
)

// GradeAbsent is the sentinel grade recorded for an absent candidate.
const GradeAbsent = "S"

// ExamDivision is one division band over summed subject points.
type ExamDivision struct {
	ID             string `db:"id" json:"id"`
	ExamID         string `db:"exam_id" json:"exam_id"`
	Division       string `db:"division" json:"division"`
	LowestPoints   int    `db:"lowest_points" json:"lowest_points"`
	HighestPoints  int    `db:"highest_points" json:"highest_points"`
	DivisionPoints int    `db:"division_points" json:"division_points"`
}

// ExamSubject is a subject offered in an exam.
type ExamSubject struct {
	ID             string `db:"id" json:"id"`
	ExamID         string `db:"exam_id" json:"exam_id"`
	Code           string `db:"code" json:"code"`
	Name           string `db:"name" json:"name"`
	ShortName      string `db:"short_name" json:"short_name"`
	HasPractical   bool   `db:"has_practical" json:"has_practical"`
	ExcludeFromGPA bool   `db:"exclude_from_gpa" json:"exclude_from_gpa"`
	IsPrimary      bool   `db:"is_primary" json:"is_primary"`
	IsOLevel       bool   `db:"is_olevel" json:"is_olevel"`
	IsALevel       bool   `db:"is_alevel" json:"is_alevel"`
}
