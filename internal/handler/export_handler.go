package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-results-api/internal/dto"
	"github.com/noah-isme/exam-results-api/internal/service"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/response"
)

type exportService interface {
	Create(ctx context.Context, examID string, req dto.ExportRequest, actorID string) (*dto.ExportResponse, error)
	ResolveDownload(token string) (*service.ExportDownload, error)
}

// ExportHandler generates ranking exports and serves their downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Create godoc
// @Summary Export a ranking as CSV or PDF
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /exams/{id}/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export payload"))
		return
	}
	resp, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Download godoc
// @Summary Download a generated export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.Size, result.ContentType, result.File, nil)
}
