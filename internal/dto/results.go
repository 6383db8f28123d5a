package dto

import (
	"time"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// ProcessRequest captures POST /exams/:id/process payload.
type ProcessRequest struct {
	IncludeAbsent *bool `json:"include_absent,omitempty"`
}

// ProcessingRunResponse exposes processing run state.
type ProcessingRunResponse struct {
	ID           string                  `json:"id"`
	ExamID       string                  `json:"exam_id"`
	Status       models.ProcessingStatus `json:"status"`
	Progress     int                     `json:"progress"`
	SchoolCount  int                     `json:"school_count"`
	StudentCount int                     `json:"student_count"`
	CreatedAt    time.Time               `json:"created_at"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
	Error        *string                 `json:"error,omitempty"`
}

// NewProcessingRunResponse maps a stored run to its API shape.
func NewProcessingRunResponse(run *models.ProcessingRun) *ProcessingRunResponse {
	resp := &ProcessingRunResponse{
		ID:           run.ID,
		ExamID:       run.ExamID,
		Status:       run.Status,
		Progress:     run.Progress,
		SchoolCount:  run.SchoolCount,
		StudentCount: run.StudentCount,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
	if run.ErrorMessage != nil && *run.ErrorMessage != "" {
		resp.Error = run.ErrorMessage
	}
	return resp
}

// StudentResultView is a candidate's processed result with positions.
type StudentResultView struct {
	CandidateNo string                   `json:"candidate_no"`
	FullName    string                   `json:"full_name"`
	Result      models.StudentResult     `json:"result"`
	Positions   []models.RankingPosition `json:"positions"`
}

// SchoolAnalysis is the per-school dashboard.
type SchoolAnalysis struct {
	School    models.School            `json:"school"`
	Summary   models.LocationSummary   `json:"summary"`
	Subjects  []models.SubjectSummary  `json:"subjects"`
	Positions []models.RankingPosition `json:"positions"`
}

// RankingQuery binds ranking query parameters.
type RankingQuery struct {
	Scope   models.RankScope `form:"scope" validate:"required,oneof=national region council ward"`
	ScopeID string           `form:"scope_id"`
	Limit   int              `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset  int              `form:"offset" validate:"omitempty,min=0"`
}

// SchoolRankingData lists schools ranked within a scope.
type SchoolRankingData struct {
	ExamID  string                    `json:"exam_id"`
	Scope   models.RankScope          `json:"scope"`
	ScopeID string                    `json:"scope_id"`
	Style   models.RankingStyle       `json:"ranking_style"`
	Schools []models.SchoolRankingRow `json:"schools"`
}

// SubjectRankingData lists schools ranked on one subject within a scope.
type SubjectRankingData struct {
	ExamID      string                     `json:"exam_id"`
	SubjectCode string                     `json:"subject_code"`
	Scope       models.RankScope           `json:"scope"`
	ScopeID     string                     `json:"scope_id"`
	Style       models.RankingStyle        `json:"ranking_style"`
	Schools     []models.SubjectRankingRow `json:"schools"`
}

// RegionSummary is a region's roll-up with its councils.
type RegionSummary struct {
	Region   models.LocationSummary   `json:"region"`
	Subjects []models.SubjectSummary  `json:"subjects"`
	Councils []models.LocationSummary `json:"councils"`
}

// LocationNode is one level of the location hierarchy.
type LocationNode struct {
	Type          models.LocationType `json:"type"`
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	TotalSchools  int                 `json:"total_schools"`
	TotalStudents int                 `json:"total_students"`
	Average       *float64            `json:"average,omitempty"`
	GPA           *float64            `json:"gpa,omitempty"`
	Children      []*LocationNode     `json:"children,omitempty"`
}

// ExportRequest captures POST /exams/:id/exports payload.
type ExportRequest struct {
	Kind        string           `json:"kind" validate:"required,oneof=school_ranking subject_ranking"`
	Format      string           `json:"format" validate:"required,oneof=csv pdf"`
	Scope       models.RankScope `json:"scope" validate:"required,oneof=national region council ward"`
	ScopeID     string           `json:"scope_id"`
	SubjectCode string           `json:"subject_code" validate:"required_if=Kind subject_ranking"`
}

// Export kinds and formats.
const (
	ExportKindSchoolRanking  = "school_ranking"
	ExportKindSubjectRanking = "subject_ranking"
	ExportFormatCSV          = "csv"
	ExportFormatPDF          = "pdf"
)

// ExportResponse points at a generated export.
type ExportResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}
