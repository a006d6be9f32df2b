package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 10 << 20
)

type AdminHandler struct {
	BaseHandler
	catalog services.ImportExportService
}

func NewAdminHandler(catalog services.ImportExportService, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: NewBaseHandler(logger),
		catalog:     catalog,
	}
}

// ExportResults streams completed sessions as an Excel workbook
// @Summary Export results
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param kind query string false "test or practice"
// @Param from query string false "RFC3339 lower bound of the start time"
// @Param to query string false "RFC3339 upper bound of the start time"
// @Router /admin/results/export [get]
func (h *AdminHandler) ExportResults(c *gin.Context) {
	filters, ok := h.parseSessionFilters(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting results", "kind", c.Query("kind"))
	data, err := h.catalog.ExportResults(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("results_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ImportQuestions loads questions from an uploaded JSON or XLSX file
// @Router /admin/questions/import [post]
func (h *AdminHandler) ImportQuestions(c *gin.Context) {
	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	summary, err := h.catalog.ImportQuestions(c.Request.Context(), bytes.NewReader(data), filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ValidateRubric checks a rubric file without storing it
// @Router /admin/rubrics/validate [post]
func (h *AdminHandler) ValidateRubric(c *gin.Context) {
	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	rubric, err := h.catalog.ValidateRubric(bytes.NewReader(data), filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Rubric is valid", Data: rubric})
}

// ApplyRubric stores a rubric and attaches it to every task of the category
// @Param category query string true "civil or criminal"
// @Param max_score query string false "new max score of the category's tasks"
// @Router /admin/rubrics/apply [post]
func (h *AdminHandler) ApplyRubric(c *gin.Context) {
	req := &services.ApplyRubricRequest{Category: models.Category(c.Query("category"))}
	if v := c.Query("max_score"); v != "" {
		maxScore, err := decimal.NewFromString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid max_score", Details: err.Error()})
			return
		}
		req.MaxScore = &maxScore
	}

	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.catalog.ApplyRubric(c.Request.Context(), bytes.NewReader(data), filename, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readUpload accepts a multipart "file" field.
func (h *AdminHandler) readUpload(c *gin.Context) ([]byte, string, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "File is required", Details: err.Error()})
		return nil, "", false
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "File is too large"})
		return nil, "", false
	}

	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to open upload", err)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to read upload", err)
		return nil, "", false
	}
	return data, filepath.Base(header.Filename), true
}

func (h *AdminHandler) parseSessionFilters(c *gin.Context) (repositories.SessionFilters, bool) {
	var filters repositories.SessionFilters
	if v := c.Query("kind"); v != "" {
		kind := models.ExamKind(v)
		if kind != models.ExamKindTest && kind != models.ExamKindPractice {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid kind", Details: v})
			return filters, false
		}
		filters.Kind = &kind
	}
	for param, dest := range map[string]**time.Time{"from": &filters.DateFrom, "to": &filters.DateTo} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid " + param, Details: err.Error()})
			return filters, false
		}
		*dest = &t
	}
	return filters, true
}
