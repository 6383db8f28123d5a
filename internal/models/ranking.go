package models

// RankScope names the population a position was computed over.
type RankScope string

const (
	ScopeNational RankScope = "national"
	ScopeRegion   RankScope = "region"
	ScopeCouncil  RankScope = "council"
	ScopeWard     RankScope = "ward"
	ScopeSchool   RankScope = "school"
)

// Valid reports whether the scope is known.
func (s RankScope) Valid() bool {
	switch s {
	case ScopeNational, ScopeRegion, ScopeCouncil, ScopeWard, ScopeSchool:
		return true
	default:
		return false
	}
}

// RankEntity is the kind of ranked entity.
type RankEntity string

const (
	EntityStudent RankEntity = "student"
	EntitySchool  RankEntity = "school"
)

// RankingPosition is an entity's position within one scope. Position and
// Total are both 0 when the entity could not be ranked. SubjectCode is set
// for subject rankings.
type RankingPosition struct {
	ExamID      string     `db:"exam_id" json:"exam_id"`
	EntityType  RankEntity `db:"entity_type" json:"entity_type"`
	EntityID    string     `db:"entity_id" json:"entity_id"`
	Scope       RankScope  `db:"scope" json:"scope"`
	ScopeID     string     `db:"scope_id" json:"scope_id"`
	SubjectCode string     `db:"subject_code" json:"subject_code,omitempty"`
	Position    int        `db:"position" json:"position"`
	Total       int        `db:"total" json:"total"`
}

// SchoolRankingRow is a school's position in a scope joined with its summary.
type SchoolRankingRow struct {
	SchoolID        string   `db:"school_id" json:"school_id"`
	SchoolName      string   `db:"school_name" json:"school_name"`
	RegistrationNo  string   `db:"registration_no" json:"registration_no"`
	Position        int      `db:"position" json:"position"`
	Total           int      `db:"total" json:"total"`
	TotalStudents   int      `db:"total_students" json:"total_students"`
	Average         *float64 `db:"average" json:"average,omitempty"`
	GPA             *float64 `db:"gpa" json:"gpa,omitempty"`
	DivisionSummary Counts   `db:"division_summary" json:"division_summary"`
	GradesSummary   Counts   `db:"grades_summary" json:"grades_summary"`
}

// SubjectRankingRow is a school's position in a subject ranking.
type SubjectRankingRow struct {
	SchoolID       string   `db:"school_id" json:"school_id"`
	SchoolName     string   `db:"school_name" json:"school_name"`
	RegistrationNo string   `db:"registration_no" json:"registration_no"`
	Position       int      `db:"position" json:"position"`
	Total          int      `db:"total" json:"total"`
	StudentCount   int      `db:"student_count" json:"student_count"`
	Average        float64  `db:"average" json:"average"`
	GPA            *float64 `db:"gpa" json:"gpa,omitempty"`
	PassRate       float64  `db:"pass_rate" json:"pass_rate"`
}

// RankingFilter selects one ranked population.
type RankingFilter struct {
	ExamID      string
	Scope       RankScope
	ScopeID     string
	SubjectCode string
	Limit       int
	Offset      int
}
