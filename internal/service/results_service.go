package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/dto"
	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/repository"
	"github.com/noah-isme/exam-results-api/pkg/cache"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/jobs"
)

// JobTypeProcessResults is the queue job type of a processing run.
const JobTypeProcessResults = "process_results"

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListGrades(ctx context.Context, examID string) ([]models.ExamGrade, error)
	ListDivisions(ctx context.Context, examID string) ([]models.ExamDivision, error)
	ListSubjects(ctx context.Context, examID string) ([]models.ExamSubject, error)
}

type processingRunStore interface {
	Create(ctx context.Context, run *models.ProcessingRun) error
	GetByID(ctx context.Context, id string) (*models.ProcessingRun, error)
	FindActive(ctx context.Context, examID string) (*models.ProcessingRun, error)
	Update(ctx context.Context, id string, params repository.UpdateProcessingRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ProcessingRun, error)
	FailStale(ctx context.Context, message string) (int64, error)
}

type resultWriter interface {
	Replace(ctx context.Context, examID string, set repository.ResultSet) error
	Clear(ctx context.Context, examID string) error
}

type runDispatcher interface {
	Enqueue(job jobs.Job) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// examCachePattern matches every cached read of an exam.
func examCachePattern(examID string) string {
	return cache.Key("exam", examID) + ":*"
}

// ResultsServiceConfig holds processing defaults.
type ResultsServiceConfig struct {
	IncludeAbsent bool
}

// ResultsService orchestrates the processing run lifecycle of exams.
type ResultsService struct {
	exams   examReader
	runs    processingRunStore
	results resultWriter
	queue   runDispatcher
	cache   cacheInvalidator
	logger  *zap.Logger
	cfg     ResultsServiceConfig
}

// NewResultsService constructs the results service.
func NewResultsService(exams examReader, runs processingRunStore, results resultWriter, queue runDispatcher, cache cacheInvalidator, logger *zap.Logger, cfg ResultsServiceConfig) *ResultsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsService{
		exams:   exams,
		runs:    runs,
		results: results,
		queue:   queue,
		cache:   cache,
		logger:  logger,
		cfg:     cfg,
	}
}

// Process queues a processing run for the exam. Only one run per exam may be
// queued or running at a time.
func (s *ResultsService) Process(ctx context.Context, examID string, req dto.ProcessRequest, actorID string) (*dto.ProcessingRunResponse, error) {
	if _, err := s.exams.FindByID(ctx, examID); err != nil {
		return nil, wrapRepoError(err, "failed to load exam")
	}
	active, err := s.runs.FindActive(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active runs")
	}
	if active != nil {
		return nil, appErrors.WithDetails(appErrors.ErrProcessingActive, map[string]string{"run_id": active.ID})
	}

	includeAbsent := s.cfg.IncludeAbsent
	if req.IncludeAbsent != nil {
		includeAbsent = *req.IncludeAbsent
	}
	run := &models.ProcessingRun{
		ExamID:    examID,
		Params:    models.ProcessingRunParams{IncludeAbsent: includeAbsent},
		Status:    models.ProcessingStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create processing run")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Key: examID, Type: JobTypeProcessResults}); err != nil {
		s.markFailed(ctx, run.ID, "failed to enqueue processing run")
		if errors.Is(err, jobs.ErrDuplicate) {
			return nil, appErrors.ErrProcessingActive
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue processing run")
	}

	s.logger.Info("processing run queued",
		zap.String("run_id", run.ID),
		zap.String("exam_id", examID),
		zap.Bool("include_absent", includeAbsent),
		zap.String("actor_id", actorID),
	)
	return dto.NewProcessingRunResponse(run), nil
}

// Unprocess discards the exam's stored results so marks can be corrected.
func (s *ResultsService) Unprocess(ctx context.Context, examID string, actorID string) error {
	if _, err := s.exams.FindByID(ctx, examID); err != nil {
		return wrapRepoError(err, "failed to load exam")
	}
	active, err := s.runs.FindActive(ctx, examID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active runs")
	}
	if active != nil {
		return appErrors.WithDetails(appErrors.ErrProcessingActive, map[string]string{"run_id": active.ID})
	}
	if err := s.results.Clear(ctx, examID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear results")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, examCachePattern(examID)); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("exam_id", examID), zap.Error(err))
		}
	}
	s.logger.Info("exam results cleared", zap.String("exam_id", examID), zap.String("actor_id", actorID))
	return nil
}

// GetRun returns the state of a processing run.
func (s *ResultsService) GetRun(ctx context.Context, id string) (*dto.ProcessingRunResponse, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError(err, "failed to load processing run")
	}
	return dto.NewProcessingRunResponse(run), nil
}

// RecoverPendingJobs fails runs interrupted mid-flight and replays queued
// runs after a process restart.
func (s *ResultsService) RecoverPendingJobs(ctx context.Context) {
	if n, err := s.runs.FailStale(ctx, "interrupted by restart"); err != nil {
		s.logger.Warn("failed to fail stale processing runs", zap.Error(err))
	} else if n > 0 {
		s.logger.Warn("stale processing runs failed", zap.Int64("count", n))
	}

	pending, err := s.runs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued processing runs", zap.Error(err))
		return
	}
	for _, run := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Key: run.ExamID, Type: JobTypeProcessResults}); err != nil {
			s.logger.Warn("failed to requeue processing run", zap.String("run_id", run.ID), zap.Error(err))
			s.markFailed(ctx, run.ID, fmt.Sprintf("requeue failed: %v", err))
		}
	}
}

func (s *ResultsService) markFailed(ctx context.Context, runID, message string) {
	status := models.ProcessingStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.runs.Update(ctx, runID, repository.UpdateProcessingRunParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark processing run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// wrapRepoError passes typed errors through and wraps the rest as internal.
func wrapRepoError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
