package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/grading"
	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/repository"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/jobs"
)

type markReader interface {
	ListSchools(ctx context.Context, examID string) ([]models.School, error)
	ListMarks(ctx context.Context, examID string) ([]models.StudentMark, error)
}

// ProcessingWorker executes processing runs taken from the queue.
type ProcessingWorker struct {
	exams   examReader
	marks   markReader
	runs    processingRunStore
	results resultWriter
	cache   cacheInvalidator
	metrics *MetricsService
	workers int
	logger  *zap.Logger
}

// NewProcessingWorker constructs a worker. workers bounds the per-school
// fan-out within one run.
func NewProcessingWorker(exams examReader, marks markReader, runs processingRunStore, results resultWriter, cache cacheInvalidator, metrics *MetricsService, workers int, logger *zap.Logger) *ProcessingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &ProcessingWorker{
		exams:   exams,
		marks:   marks,
		runs:    runs,
		results: results,
		cache:   cache,
		metrics: metrics,
		workers: workers,
		logger:  logger,
	}
}

// LoadConfig reads and validates the exam's configuration.
func LoadConfig(ctx context.Context, exams examReader, examID string) (*grading.ExamConfig, error) {
	exam, err := exams.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	grades, err := exams.ListGrades(ctx, examID)
	if err != nil {
		return nil, err
	}
	divisions, err := exams.ListDivisions(ctx, examID)
	if err != nil {
		return nil, err
	}
	subjects, err := exams.ListSubjects(ctx, examID)
	if err != nil {
		return nil, err
	}
	return grading.NewExamConfig(*exam, grades, divisions, subjects)
}

// Handle processes a queue job. Data and configuration faults fail the run
// immediately; infrastructure errors are retried by the queue.
func (w *ProcessingWorker) Handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	run, err := w.runs.GetByID(ctx, job.ID)
	if err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code == appErrors.ErrNotFound.Code {
			return jobs.Permanent(err)
		}
		return err
	}
	if run.Status.Terminal() {
		w.logger.Warn("skipping terminal processing run", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
		return nil
	}
	logger := w.logger.With(zap.String("run_id", run.ID), zap.String("exam_id", run.ExamID), zap.Int("attempt", job.Attempt))

	processing := models.ProcessingStatusProcessing
	progress := 5
	startedAt := start.UTC()
	if err := w.runs.Update(ctx, run.ID, repository.UpdateProcessingRunParams{
		Status:    &processing,
		Progress:  &progress,
		StartedAt: &startedAt,
	}); err != nil {
		return err
	}

	cfg, err := LoadConfig(ctx, w.exams, run.ExamID)
	if err != nil {
		return classify(err)
	}

	schools, err := w.marks.ListSchools(ctx, run.ExamID)
	if err != nil {
		return err
	}
	marks, err := w.marks.ListMarks(ctx, run.ExamID)
	if err != nil {
		return err
	}
	w.progress(ctx, run.ID, 25)

	outcome, err := grading.NewProcessor(w.workers, run.Params.IncludeAbsent).Run(ctx, cfg, buildInputs(schools, marks))
	if err != nil {
		return classify(err)
	}
	w.progress(ctx, run.ID, 75)

	if err := w.results.Replace(ctx, run.ExamID, toResultSet(run.ExamID, outcome)); err != nil {
		return err
	}
	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, examCachePattern(run.ExamID)); err != nil {
			logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}

	finished := models.ProcessingStatusFinished
	progress = 100
	schoolCount := len(outcome.Schools)
	studentCount := outcome.StudentCount()
	now := time.Now().UTC()
	clear := ""
	if err := w.runs.Update(ctx, run.ID, repository.UpdateProcessingRunParams{
		Status:       &finished,
		Progress:     &progress,
		SchoolCount:  &schoolCount,
		StudentCount: &studentCount,
		FinishedAt:   &now,
		ErrorMessage: &clear,
	}); err != nil {
		logger.Warn("failed to mark processing run finished", zap.Error(err))
		return err
	}

	w.metrics.ObserveProcessingRun(finished, studentCount, time.Since(start))
	logger.Info("processing run finished",
		zap.Int("schools", schoolCount),
		zap.Int("students", studentCount),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// OnExhausted marks a run failed once the queue gives up on it.
func (w *ProcessingWorker) OnExhausted(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ProcessingStatusFailed
	progress := 100
	now := time.Now().UTC()
	msg := failureMessage(cause)
	if err := w.runs.Update(ctx, job.ID, repository.UpdateProcessingRunParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark processing run failed", zap.String("run_id", job.ID), zap.Error(err))
	}
	w.metrics.ObserveProcessingRun(failed, 0, time.Since(job.Enqueued))
	w.logger.Error("processing run failed", zap.String("run_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
}

func (w *ProcessingWorker) progress(ctx context.Context, runID string, value int) {
	if err := w.runs.Update(ctx, runID, repository.UpdateProcessingRunParams{Progress: &value}); err != nil {
		w.logger.Debug("progress update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// classify turns configuration and mark data faults into permanent API
// errors; anything else is returned for retry.
func classify(err error) error {
	var cfgErr *grading.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return jobs.Permanent(appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, appErrors.ErrConfiguration.Message),
			map[string]string{"field": cfgErr.Field, "reason": cfgErr.Reason},
		))
	case errors.Is(err, grading.ErrUnknownSubject), errors.Is(err, grading.ErrDuplicateMark):
		return jobs.Permanent(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark data"))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code == appErrors.ErrNotFound.Code {
			return jobs.Permanent(err)
		}
		return err
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "processing failed"
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		if typed.Err != nil {
			return fmt.Sprintf("%s: %v", typed.Code, typed.Err)
		}
		return fmt.Sprintf("%s: %s", typed.Code, typed.Message)
	}
	return err.Error()
}
