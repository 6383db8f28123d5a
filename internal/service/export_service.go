package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/dto"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/export"
	"github.com/noah-isme/exam-results-api/pkg/storage"
)

type rankingSource interface {
	SchoolRanking(ctx context.Context, examID string, query dto.RankingQuery) (*dto.SchoolRankingData, bool, error)
	SubjectRanking(ctx context.Context, examID, subjectCode string, query dto.RankingQuery) (*dto.SubjectRankingData, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, int64, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File        *os.File
	Size        int64
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService renders ranking tables to files and hands out signed links.
type ExportService struct {
	rankings  rankingSource
	storage   fileStorage
	renderers map[string]export.Renderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(rankings rankingSource, store fileStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		rankings: rankings,
		storage:  store,
		renderers: map[string]export.Renderer{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create renders the requested ranking and returns a signed download link.
func (s *ExportService) Create(ctx context.Context, examID string, req dto.ExportRequest, actorID string) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	dataset, err := s.buildDataset(ctx, examID, req)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	filename := buildFilename(examID, req, renderer.Extension())
	relPath, err := s.storage.Save(filepath.Join(id, filename), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated",
		zap.String("export_id", id),
		zap.String("exam_id", examID),
		zap.String("kind", req.Kind),
		zap.String("format", req.Format),
		zap.Int("rows", len(dataset.Rows)),
		zap.String("actor_id", actorID),
	)
	return &dto.ExportResponse{
		ID:        id,
		URL:       fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		Filename:  filename,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, size, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	filename := filepath.Base(relPath)
	return &ExportDownload{
		File:        file,
		Size:        size,
		Filename:    filename,
		ContentType: s.contentType(filename),
		ExpiresAt:   expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes export files older than the result TTL.
func (s *ExportService) Cleanup() {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
}

func (s *ExportService) contentType(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if r, ok := s.renderers[ext]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

func (s *ExportService) buildDataset(ctx context.Context, examID string, req dto.ExportRequest) (export.Dataset, error) {
	query := dto.RankingQuery{Scope: req.Scope, ScopeID: req.ScopeID}
	switch req.Kind {
	case dto.ExportKindSchoolRanking:
		data, _, err := s.rankings.SchoolRanking(ctx, examID, query)
		if err != nil {
			return export.Dataset{}, err
		}
		return schoolRankingDataset(data), nil
	case dto.ExportKindSubjectRanking:
		data, _, err := s.rankings.SubjectRanking(ctx, examID, req.SubjectCode, query)
		if err != nil {
			return export.Dataset{}, err
		}
		return subjectRankingDataset(data), nil
	default:
		return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind")
	}
}

func schoolRankingDataset(data *dto.SchoolRankingData) export.Dataset {
	headers := []string{"Position", "Reg. No", "School", "Students", "Average", "GPA", "Div I", "Div II", "Div III", "Div IV", "Div 0"}
	rows := make([]map[string]string, 0, len(data.Schools))
	for _, row := range data.Schools {
		rows = append(rows, map[string]string{
			"Position": formatPosition(row.Position, row.Total),
			"Reg. No":  row.RegistrationNo,
			"School":   row.SchoolName,
			"Students": fmt.Sprintf("%d", row.TotalStudents),
			"Average":  formatMetric(row.Average),
			"GPA":      formatMetric(row.GPA),
			"Div I":    fmt.Sprintf("%d", row.DivisionSummary["I"]),
			"Div II":   fmt.Sprintf("%d", row.DivisionSummary["II"]),
			"Div III":  fmt.Sprintf("%d", row.DivisionSummary["III"]),
			"Div IV":   fmt.Sprintf("%d", row.DivisionSummary["IV"]),
			"Div 0":    fmt.Sprintf("%d", row.DivisionSummary["0"]),
		})
	}
	return export.Dataset{
		Title:    "School Ranking",
		Subtitle: fmt.Sprintf("%s %s, ranked by %s", data.Scope, data.ScopeID, data.Style),
		Headers:  headers,
		Rows:     rows,
	}
}

func subjectRankingDataset(data *dto.SubjectRankingData) export.Dataset {
	headers := []string{"Position", "Reg. No", "School", "Students", "Average", "GPA", "Pass Rate (%)"}
	rows := make([]map[string]string, 0, len(data.Schools))
	for _, row := range data.Schools {
		avg := row.Average
		rows = append(rows, map[string]string{
			"Position":      formatPosition(row.Position, row.Total),
			"Reg. No":       row.RegistrationNo,
			"School":        row.SchoolName,
			"Students":      fmt.Sprintf("%d", row.StudentCount),
			"Average":       formatMetric(&avg),
			"GPA":           formatMetric(row.GPA),
			"Pass Rate (%)": fmt.Sprintf("%.2f", row.PassRate),
		})
	}
	return export.Dataset{
		Title:    fmt.Sprintf("Subject Ranking %s", data.SubjectCode),
		Subtitle: fmt.Sprintf("%s %s, ranked by %s", data.Scope, data.ScopeID, data.Style),
		Headers:  headers,
		Rows:     rows,
	}
}

func formatPosition(position, total int) string {
	if position == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", position, total)
}

func formatMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func buildFilename(examID string, req dto.ExportRequest, ext string) string {
	parts := []string{req.Kind, examID, string(req.Scope)}
	if req.ScopeID != "" && req.ScopeID != string(req.Scope) {
		parts = append(parts, req.ScopeID)
	}
	if req.SubjectCode != "" {
		parts = append(parts, req.SubjectCode)
	}
	parts = append(parts, time.Now().UTC().Format("20060102_150405"))
	return sanitizeFilename(strings.Join(parts, "_")) + "." + ext
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
