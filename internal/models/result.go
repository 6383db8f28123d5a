package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StudentResult is the persisted outcome of scoring one candidate. GPA,
// Points and Division are only set for secondary exams; Grade only for
// primary exams.
type StudentResult struct {
	ExamID          string             `db:"exam_id" json:"exam_id"`
	StudentID       string             `db:"student_id" json:"student_id"`
	SchoolID        string             `db:"school_id" json:"school_id"`
	Sex             string             `db:"sex" json:"sex"`
	Level           ExamLevel          `db:"level" json:"level"`
	CountedSubjects int                `db:"counted_subjects" json:"counted_subjects"`
	Total           *float64           `db:"total" json:"total,omitempty"`
	Average         *float64           `db:"average" json:"average,omitempty"`
	Grade           *string            `db:"grade" json:"grade,omitempty"`
	GPA             *float64           `db:"gpa" json:"gpa,omitempty"`
	Points          *int               `db:"points" json:"points,omitempty"`
	Division        *string            `db:"division" json:"division,omitempty"`
	Subjects        SubjectResultItems `db:"subjects" json:"subjects"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// SubjectResultItem is one graded subject inside a StudentResult.
type SubjectResultItem struct {
	SubjectCode string   `json:"subject_code"`
	Marks       *float64 `json:"marks,omitempty"`
	Grade       string   `json:"grade,omitempty"`
	GradePoints *int     `json:"grade_points,omitempty"`
	Absent      bool     `json:"absent,omitempty"`
	Counted     bool     `json:"counted"`
}

// SubjectResultItems is stored as JSONB.
type SubjectResultItems []SubjectResultItem

// Value marshals the items to JSON for persistence.
func (s SubjectResultItems) Value() (driver.Value, error) {
	if s == nil {
		s = SubjectResultItems{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal subject results: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the items.
func (s *SubjectResultItems) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("scan subject results: %w", err)
	}
	if len(data) == 0 {
		*s = SubjectResultItems{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal subject results: %w", err)
	}
	return nil
}

// Counts is a tally keyed by division or grade, stored as JSONB.
type Counts map[string]int

// Value marshals counts to JSON for persistence.
func (c Counts) Value() (driver.Value, error) {
	if c == nil {
		c = Counts{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal counts: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the counts.
func (c *Counts) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("scan counts: %w", err)
	}
	if len(data) == 0 {
		*c = Counts{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal counts: %w", err)
	}
	return nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// LocationSummary is the persisted roll-up of a school or location node.
// The *Sum and *Count columns keep roll-ups recomputable as population means.
type LocationSummary struct {
	ExamID          string       `db:"exam_id" json:"exam_id"`
	LocationType    LocationType `db:"location_type" json:"location_type"`
	LocationID      string       `db:"location_id" json:"location_id"`
	ParentID        *string      `db:"parent_id" json:"parent_id,omitempty"`
	Name            string       `db:"name" json:"name"`
	TotalSchools    int          `db:"total_schools" json:"total_schools"`
	TotalStudents   int          `db:"total_students" json:"total_students"`
	RankedStudents  int          `db:"ranked_students" json:"ranked_students"`
	AverageSum      float64      `db:"average_sum" json:"-"`
	TotalSum        float64      `db:"total_sum" json:"-"`
	GPASum          float64      `db:"gpa_sum" json:"-"`
	GPACount        int          `db:"gpa_count" json:"-"`
	Average         *float64     `db:"average" json:"average,omitempty"`
	GPA             *float64     `db:"gpa" json:"gpa,omitempty"`
	DivisionSummary Counts       `db:"division_summary" json:"division_summary"`
	GradesSummary   Counts       `db:"grades_summary" json:"grades_summary"`
}

// SubjectSummary is the persisted per-subject aggregate for a location node.
type SubjectSummary struct {
	ExamID       string       `db:"exam_id" json:"exam_id"`
	LocationType LocationType `db:"location_type" json:"location_type"`
	LocationID   string       `db:"location_id" json:"location_id"`
	SubjectCode  string       `db:"subject_code" json:"subject_code"`
	Registered   int          `db:"registered" json:"registered"`
	Sat          int          `db:"sat" json:"sat"`
	Absent       int          `db:"absent" json:"absent"`
	StudentCount int          `db:"student_count" json:"student_count"`
	Passed       int          `db:"passed" json:"passed"`
	MarksSum     float64      `db:"marks_sum" json:"-"`
	PointsSum    int          `db:"points_sum" json:"-"`
	Average      float64      `db:"average" json:"average"`
	GPA          *float64     `db:"gpa" json:"gpa,omitempty"`
	PassRate     float64      `db:"pass_rate" json:"pass_rate"`
	GradeCounts  Counts       `db:"grade_counts" json:"grade_counts"`
}
