package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingStatus captures the processing run lifecycle.
type ProcessingStatus string

const (
	ProcessingStatusQueued     ProcessingStatus = "QUEUED"
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusFinished   ProcessingStatus = "FINISHED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// Terminal reports whether the run has completed either way.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusFinished || s == ProcessingStatusFailed
}

// ProcessingRun is one queued or executed results processing of an exam.
type ProcessingRun struct {
	ID           string              `db:"id" json:"id"`
	ExamID       string              `db:"exam_id" json:"exam_id"`
	Params       ProcessingRunParams `db:"params" json:"params"`
	Status       ProcessingStatus    `db:"status" json:"status"`
	Progress     int                 `db:"progress" json:"progress"`
	SchoolCount  int                 `db:"school_count" json:"school_count"`
	StudentCount int                 `db:"student_count" json:"student_count"`
	CreatedBy    string              `db:"created_by" json:"created_by"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	StartedAt    *time.Time          `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string             `db:"error_message" json:"error_message,omitempty"`
}

// ProcessingRunParams stores run options persisted as JSONB.
type ProcessingRunParams struct {
	IncludeAbsent bool `json:"includeAbsent"`
}

// Value marshals params to JSON for persistence.
func (p ProcessingRunParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal processing run params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ProcessingRunParams) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("scan processing run params: %w", err)
	}
	if len(data) == 0 {
		*p = ProcessingRunParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal processing run params: %w", err)
	}
	return nil
}
