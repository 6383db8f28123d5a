package models

import "time"

// Sex values recorded on candidate registrations.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Student represents a candidate registered to sit an exam at a school.
type Student struct {
	ID          string    `db:"id" json:"id"`
	ExamID      string    `db:"exam_id" json:"exam_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CandidateNo string    `db:"candidate_no" json:"candidate_no"`
	FullName    string    `db:"full_name" json:"full_name"`
	Sex         string    `db:"sex" json:"sex"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StudentMark is one uploaded subject mark. Marks is nil when the mark has
// not been captured; Absent marks the candidate as not having sat the paper.
type StudentMark struct {
	ExamID      string   `db:"exam_id" json:"exam_id"`
	StudentID   string   `db:"student_id" json:"student_id"`
	SchoolID    string   `db:"school_id" json:"school_id"`
	Sex         string   `db:"sex" json:"sex"`
	SubjectCode string   `db:"subject_code" json:"subject_code"`
	Marks       *float64 `db:"marks" json:"marks,omitempty"`
	Absent      bool     `db:"absent" json:"absent"`
}
