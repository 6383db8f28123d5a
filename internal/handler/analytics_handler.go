package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-results-api/internal/dto"
	"github.com/noah-isme/exam-results-api/internal/middleware"
	"github.com/noah-isme/exam-results-api/internal/models"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/response"
)

type analyticsService interface {
	StudentResult(ctx context.Context, examID, studentID string) (*dto.StudentResultView, bool, error)
	SchoolAnalysis(ctx context.Context, examID, schoolID string) (*dto.SchoolAnalysis, bool, error)
	SchoolRanking(ctx context.Context, examID string, query dto.RankingQuery) (*dto.SchoolRankingData, bool, error)
	SubjectRanking(ctx context.Context, examID, subjectCode string, query dto.RankingQuery) (*dto.SubjectRankingData, bool, error)
	RegionSummary(ctx context.Context, examID, regionID string) (*dto.RegionSummary, bool, error)
	Locations(ctx context.Context, examID string) (*dto.LocationNode, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes read endpoints over processed results.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// StudentResult godoc
// @Summary Candidate result with positions
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/students/{studentId}/result [get]
func (h *AnalyticsHandler) StudentResult(c *gin.Context) {
	start := time.Now()
	view, hit, err := h.analytics.StudentResult(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	respond(c, start, view, hit, err)
}

// SchoolAnalysis godoc
// @Summary School summary, subject aggregates and positions
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Param schoolId path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/schools/{schoolId}/analysis [get]
func (h *AnalyticsHandler) SchoolAnalysis(c *gin.Context) {
	start := time.Now()
	analysis, hit, err := h.analytics.SchoolAnalysis(c.Request.Context(), c.Param("id"), c.Param("schoolId"))
	respond(c, start, analysis, hit, err)
}

// SchoolRanking godoc
// @Summary Schools ranked within a scope
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Param scope query string false "national, region, council or ward"
// @Param scope_id query string false "Scope location ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/rankings/schools [get]
func (h *AnalyticsHandler) SchoolRanking(c *gin.Context) {
	query, ok := bindRankingQuery(c)
	if !ok {
		return
	}
	start := time.Now()
	data, hit, err := h.analytics.SchoolRanking(c.Request.Context(), c.Param("id"), query)
	respond(c, start, data, hit, err)
}

// SubjectRanking godoc
// @Summary Schools ranked on one subject within a scope
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Param code path string true "Subject code"
// @Param scope query string false "national, region, council or ward"
// @Param scope_id query string false "Scope location ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/rankings/subjects/{code} [get]
func (h *AnalyticsHandler) SubjectRanking(c *gin.Context) {
	query, ok := bindRankingQuery(c)
	if !ok {
		return
	}
	start := time.Now()
	data, hit, err := h.analytics.SubjectRanking(c.Request.Context(), c.Param("id"), c.Param("code"), query)
	respond(c, start, data, hit, err)
}

// RegionSummary godoc
// @Summary Region roll-up with councils
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Param regionId path string true "Region ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/regions/{regionId}/summary [get]
func (h *AnalyticsHandler) RegionSummary(c *gin.Context) {
	start := time.Now()
	summary, hit, err := h.analytics.RegionSummary(c.Request.Context(), c.Param("id"), c.Param("regionId"))
	respond(c, start, summary, hit, err)
}

// Locations godoc
// @Summary National location hierarchy with summaries
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/locations [get]
func (h *AnalyticsHandler) Locations(c *gin.Context) {
	start := time.Now()
	tree, hit, err := h.analytics.Locations(c.Request.Context(), c.Param("id"))
	respond(c, start, tree, hit, err)
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	start := time.Now()
	respond(c, start, h.analytics.SystemMetrics(), false, nil)
}

func bindRankingQuery(c *gin.Context) (dto.RankingQuery, bool) {
	var query dto.RankingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ranking query"))
		return query, false
	}
	return query, true
}

func respond(c *gin.Context, start time.Time, data interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if _, ok := meta["processing_time_ms"]; !ok {
		meta["processing_time_ms"] = time.Since(start).Milliseconds()
	}
	response.JSON(c, http.StatusOK, data, nil, meta)
}
