package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-results-api/internal/models"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
)

const runColumns = `id, exam_id, params, status, progress, school_count, student_count, created_by, created_at, started_at, finished_at, error_message`

// ProcessingRunRepository persists processing run metadata.
type ProcessingRunRepository struct {
	db *sqlx.DB
}

// NewProcessingRunRepository constructs the repository.
func NewProcessingRunRepository(db *sqlx.DB) *ProcessingRunRepository {
	return &ProcessingRunRepository{db: db}
}

// Create inserts a new run with generated defaults.
func (r *ProcessingRunRepository) Create(ctx context.Context, run *models.ProcessingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ProcessingStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO processing_runs (id, exam_id, params, status, progress, school_count, student_count, created_by, created_at, started_at, finished_at, error_message)
VALUES (:id, :exam_id, :params, :status, :progress, :school_count, :student_count, :created_by, :created_at, :started_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create processing run: %w", err)
	}
	return nil
}

// GetByID returns a run by its identifier or ErrNotFound.
func (r *ProcessingRunRepository) GetByID(ctx context.Context, id string) (*models.ProcessingRun, error) {
	query := `SELECT ` + runColumns + ` FROM processing_runs WHERE id = $1`
	var run models.ProcessingRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "processing run not found")
		}
		return nil, fmt.Errorf("get processing run: %w", err)
	}
	return &run, nil
}

// FindActive returns the exam's queued or running run, or nil.
func (r *ProcessingRunRepository) FindActive(ctx context.Context, examID string) (*models.ProcessingRun, error) {
	query := `SELECT ` + runColumns + ` FROM processing_runs
WHERE exam_id = $1 AND status IN ('QUEUED', 'PROCESSING') ORDER BY created_at DESC LIMIT 1`
	var run models.ProcessingRun
	if err := r.db.GetContext(ctx, &run, query, examID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active processing run: %w", err)
	}
	return &run, nil
}

// UpdateProcessingRunParams defines the mutable fields.
type UpdateProcessingRunParams struct {
	Status       *models.ProcessingStatus
	Progress     *int
	SchoolCount  *int
	StudentCount *int
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
}

// Update persists the provided changes for a run.
func (r *ProcessingRunRepository) Update(ctx context.Context, id string, params UpdateProcessingRunParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.SchoolCount != nil {
		add("school_count", *params.SchoolCount)
	}
	if params.StudentCount != nil {
		add("student_count", *params.StudentCount)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}

	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE processing_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update processing run: %w", err)
	}
	return nil
}

// ListQueued fetches queued runs for cold start recovery.
func (r *ProcessingRunRepository) ListQueued(ctx context.Context, limit int) ([]models.ProcessingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM processing_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var runs []models.ProcessingRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued processing runs: %w", err)
	}
	return runs, nil
}

// FailStale marks runs left in PROCESSING by a previous process as failed.
func (r *ProcessingRunRepository) FailStale(ctx context.Context, message string) (int64, error) {
	const query = `UPDATE processing_runs SET status = 'FAILED', error_message = $1, finished_at = $2 WHERE status = 'PROCESSING'`
	res, err := r.db.ExecContext(ctx, query, message, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("fail stale processing runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
