package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/dto"
	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/pkg/cache"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
)

// ResultReader describes the stored results required by AnalyticsService.
type ResultReader interface {
	GetStudentResult(ctx context.Context, examID, studentID string) (*models.StudentResult, error)
	ListPositions(ctx context.Context, examID string, entity models.RankEntity, entityID string) ([]models.RankingPosition, error)
	GetLocationSummary(ctx context.Context, examID string, locationType models.LocationType, locationID string) (*models.LocationSummary, error)
	ListChildSummaries(ctx context.Context, examID string, childType models.LocationType, parentID string) ([]models.LocationSummary, error)
	ListLocationSummaries(ctx context.Context, examID string) ([]models.LocationSummary, error)
	ListSubjectSummaries(ctx context.Context, examID string, locationType models.LocationType, locationID string) ([]models.SubjectSummary, error)
	ListSchoolRanking(ctx context.Context, filter models.RankingFilter) ([]models.SchoolRankingRow, error)
	ListSubjectRanking(ctx context.Context, filter models.RankingFilter) ([]models.SubjectRankingRow, error)
}

type candidateReader interface {
	FindStudent(ctx context.Context, examID, studentID string) (*models.Student, error)
	FindSchool(ctx context.Context, id string) (*models.School, error)
}

type examFinder interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// AnalyticsService provides read-optimised access to processed results with
// cache integration. Every read fails with RESULTS_NOT_PROCESSED until the
// exam has been processed.
type AnalyticsService struct {
	exams      examFinder
	results    ResultReader
	candidates candidateReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(exams examFinder, results ResultReader, candidates candidateReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnalyticsService{
		exams:      exams,
		results:    results,
		candidates: candidates,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// StudentResult returns a candidate's result and positions. The boolean
// indicates whether data originated from cache.
func (s *AnalyticsService) StudentResult(ctx context.Context, examID, studentID string) (*dto.StudentResultView, bool, error) {
	if _, err := s.processedExam(ctx, examID); err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "student", studentID)
	return cachedRead(ctx, s, key, "student_result", func(ctx context.Context) (*dto.StudentResultView, error) {
		student, err := s.candidates.FindStudent(ctx, examID, studentID)
		if err != nil {
			return nil, err
		}
		result, err := s.results.GetStudentResult(ctx, examID, studentID)
		if err != nil {
			return nil, err
		}
		positions, err := s.results.ListPositions(ctx, examID, models.EntityStudent, studentID)
		if err != nil {
			return nil, err
		}
		return &dto.StudentResultView{
			CandidateNo: student.CandidateNo,
			FullName:    student.FullName,
			Result:      *result,
			Positions:   positions,
		}, nil
	})
}

// SchoolAnalysis returns a school's summary, subject aggregates and positions.
func (s *AnalyticsService) SchoolAnalysis(ctx context.Context, examID, schoolID string) (*dto.SchoolAnalysis, bool, error) {
	if _, err := s.processedExam(ctx, examID); err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "school", schoolID)
	return cachedRead(ctx, s, key, "school_analysis", func(ctx context.Context) (*dto.SchoolAnalysis, error) {
		school, err := s.candidates.FindSchool(ctx, schoolID)
		if err != nil {
			return nil, err
		}
		summary, err := s.results.GetLocationSummary(ctx, examID, models.LocationSchool, schoolID)
		if err != nil {
			return nil, err
		}
		subjects, err := s.results.ListSubjectSummaries(ctx, examID, models.LocationSchool, schoolID)
		if err != nil {
			return nil, err
		}
		positions, err := s.results.ListPositions(ctx, examID, models.EntitySchool, schoolID)
		if err != nil {
			return nil, err
		}
		return &dto.SchoolAnalysis{School: *school, Summary: *summary, Subjects: subjects, Positions: positions}, nil
	})
}

// SchoolRanking returns schools ranked within a scope.
func (s *AnalyticsService) SchoolRanking(ctx context.Context, examID string, query dto.RankingQuery) (*dto.SchoolRankingData, bool, error) {
	exam, err := s.processedExam(ctx, examID)
	if err != nil {
		return nil, false, err
	}
	filter, err := s.rankingFilter(examID, "", query)
	if err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "ranking", "schools", string(filter.Scope), filter.ScopeID, fmt.Sprintf("%d-%d", filter.Limit, filter.Offset))
	return cachedRead(ctx, s, key, "school_ranking", func(ctx context.Context) (*dto.SchoolRankingData, error) {
		rows, err := s.results.ListSchoolRanking(ctx, filter)
		if err != nil {
			return nil, err
		}
		return &dto.SchoolRankingData{ExamID: examID, Scope: filter.Scope, ScopeID: filter.ScopeID, Style: exam.RankingStyle, Schools: rows}, nil
	})
}

// SubjectRanking returns schools ranked on one subject within a scope.
func (s *AnalyticsService) SubjectRanking(ctx context.Context, examID, subjectCode string, query dto.RankingQuery) (*dto.SubjectRankingData, bool, error) {
	exam, err := s.processedExam(ctx, examID)
	if err != nil {
		return nil, false, err
	}
	if subjectCode == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "subject code is required")
	}
	filter, err := s.rankingFilter(examID, subjectCode, query)
	if err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "ranking", "subject", subjectCode, string(filter.Scope), filter.ScopeID, fmt.Sprintf("%d-%d", filter.Limit, filter.Offset))
	return cachedRead(ctx, s, key, "subject_ranking", func(ctx context.Context) (*dto.SubjectRankingData, error) {
		rows, err := s.results.ListSubjectRanking(ctx, filter)
		if err != nil {
			return nil, err
		}
		return &dto.SubjectRankingData{
			ExamID:      examID,
			SubjectCode: subjectCode,
			Scope:       filter.Scope,
			ScopeID:     filter.ScopeID,
			Style:       exam.SubjectRankingStyle,
			Schools:     rows,
		}, nil
	})
}

// RegionSummary returns a region's roll-up with its councils.
func (s *AnalyticsService) RegionSummary(ctx context.Context, examID, regionID string) (*dto.RegionSummary, bool, error) {
	if _, err := s.processedExam(ctx, examID); err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "region", regionID)
	return cachedRead(ctx, s, key, "region_summary", func(ctx context.Context) (*dto.RegionSummary, error) {
		region, err := s.results.GetLocationSummary(ctx, examID, models.LocationRegion, regionID)
		if err != nil {
			return nil, err
		}
		subjects, err := s.results.ListSubjectSummaries(ctx, examID, models.LocationRegion, regionID)
		if err != nil {
			return nil, err
		}
		councils, err := s.results.ListChildSummaries(ctx, examID, models.LocationCouncil, regionID)
		if err != nil {
			return nil, err
		}
		return &dto.RegionSummary{Region: *region, Subjects: subjects, Councils: councils}, nil
	})
}

// Locations returns the national to ward hierarchy of the exam.
func (s *AnalyticsService) Locations(ctx context.Context, examID string) (*dto.LocationNode, bool, error) {
	if _, err := s.processedExam(ctx, examID); err != nil {
		return nil, false, err
	}
	key := cache.Key("exam", examID, "locations")
	return cachedRead(ctx, s, key, "locations", func(ctx context.Context) (*dto.LocationNode, error) {
		summaries, err := s.results.ListLocationSummaries(ctx, examID)
		if err != nil {
			return nil, err
		}
		return buildLocationTree(summaries), nil
	})
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) processedExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return nil, wrapRepoError(err, "failed to load exam")
	}
	if !exam.ResultsProcessed {
		return nil, appErrors.ErrResultsNotProcessed
	}
	return exam, nil
}

func (s *AnalyticsService) rankingFilter(examID, subjectCode string, query dto.RankingQuery) (models.RankingFilter, error) {
	if query.Scope == "" {
		query.Scope = models.ScopeNational
	}
	if err := s.validator.Struct(query); err != nil {
		return models.RankingFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ranking query")
	}
	if query.Scope == models.ScopeNational {
		query.ScopeID = models.NationalID
	}
	if query.ScopeID == "" {
		return models.RankingFilter{}, appErrors.Clone(appErrors.ErrValidation, "scope_id is required for this scope")
	}
	return models.RankingFilter{
		ExamID:      examID,
		Scope:       query.Scope,
		ScopeID:     query.ScopeID,
		SubjectCode: subjectCode,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}, nil
}

// cachedRead serves key through the analytics cache, timing and wrapping loads.
func cachedRead[T any](ctx context.Context, s *AnalyticsService, key, label string, load func(context.Context) (T, error)) (T, bool, error) {
	return remember(ctx, s.cache, key, func(ctx context.Context) (T, error) {
		start := time.Now()
		value, err := load(ctx)
		if err != nil {
			return value, wrapRepoError(err, "failed to load "+label)
		}
		s.metrics.ObserveDBQuery(label, time.Since(start))
		return value, nil
	})
}

func buildLocationTree(summaries []models.LocationSummary) *dto.LocationNode {
	nodes := make(map[string]*dto.LocationNode, len(summaries))
	var root *dto.LocationNode
	for _, summary := range summaries {
		nodes[nodeKey(summary.LocationType, summary.LocationID)] = &dto.LocationNode{
			Type:          summary.LocationType,
			ID:            summary.LocationID,
			Name:          summary.Name,
			TotalSchools:  summary.TotalSchools,
			TotalStudents: summary.TotalStudents,
			Average:       summary.Average,
			GPA:           summary.GPA,
		}
	}
	// summaries arrive ordered by name, so children keep that order.
	for _, summary := range summaries {
		node := nodes[nodeKey(summary.LocationType, summary.LocationID)]
		if summary.LocationType == models.LocationNational {
			root = node
			continue
		}
		if summary.ParentID == nil {
			continue
		}
		if parent, ok := nodes[nodeKey(parentType(summary.LocationType), *summary.ParentID)]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	if root == nil {
		root = &dto.LocationNode{Type: models.LocationNational, ID: models.NationalID, Name: "National"}
	}
	return root
}

func nodeKey(t models.LocationType, id string) string {
	return string(t) + "/" + id
}

func parentType(t models.LocationType) models.LocationType {
	switch t {
	case models.LocationRegion:
		return models.LocationNational
	case models.LocationCouncil:
		return models.LocationRegion
	case models.LocationWard:
		return models.LocationCouncil
	default:
		return models.LocationWard
	}
}
