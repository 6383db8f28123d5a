package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-results-api/internal/dto"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/response"
)

type resultsService interface {
	Process(ctx context.Context, examID string, req dto.ProcessRequest, actorID string) (*dto.ProcessingRunResponse, error)
	Unprocess(ctx context.Context, examID string, actorID string) error
	GetRun(ctx context.Context, id string) (*dto.ProcessingRunResponse, error)
}

// ResultsHandler exposes the processing run lifecycle.
type ResultsHandler struct {
	service resultsService
}

// NewResultsHandler constructs the handler.
func NewResultsHandler(service resultsService) *ResultsHandler {
	return &ResultsHandler{service: service}
}

// Process godoc
// @Summary Queue results processing for an exam
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.ProcessRequest false "Processing options"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/process [post]
func (h *ResultsHandler) Process(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid processing payload"))
		return
	}
	run, err := h.service.Process(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// Unprocess godoc
// @Summary Discard processed results of an exam
// @Tags Results
// @Param id path string true "Exam ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/unprocess [post]
func (h *ResultsHandler) Unprocess(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Unprocess(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RunStatus godoc
// @Summary Processing run status
// @Tags Results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /processing-runs/{id} [get]
func (h *ResultsHandler) RunStatus(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
