package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/akademia-dev/college-api/internal/service"
	"github.com/akademia-dev/college-api/pkg/response"
)

// ReportHandler serves rendered roster and transcript documents.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CourseRoster godoc
// @Summary Download the roster of a course as CSV
// @Tags Reports
// @Produce text/csv
// @Param id path int true "Course ID"
// @Success 200 {file} file
// @Router /reports/courses/{id}/roster [get]
func (h *ReportHandler) CourseRoster(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.CourseRoster(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, report)
}

// StudentTranscript godoc
// @Summary Download the transcript of a student as PDF
// @Tags Reports
// @Produce application/pdf
// @Param id path int true "Student ID"
// @Success 200 {file} file
// @Router /reports/students/{id}/transcript [get]
func (h *ReportHandler) StudentTranscript(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.StudentTranscript(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, report)
}

func (h *ReportHandler) serve(c *gin.Context, report *service.Report) {
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	c.Data(200, report.ContentType, report.Payload)
}
