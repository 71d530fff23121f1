package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	reportapp "github.com/inzighted/report-service/internal/application/report"
	"github.com/inzighted/report-service/internal/domain/report"
	"github.com/inzighted/report-service/internal/infrastructure/auth"
)

// ReportService is the slice of the orchestrator the handlers use.
type ReportService interface {
	GenerateForViewer(ctx context.Context, req reportapp.ViewerRequest) (*report.Artifact, error)
	GenerateStudentSelf(ctx context.Context, req reportapp.SelfRequest) (*report.Artifact, error)
	GenerateTeacherSelf(ctx context.Context, req reportapp.SelfRequest) (*report.Artifact, error)
	GenerateBulkZip(ctx context.Context, req reportapp.BulkRequest) (string, error)
	TriggerGenerate(ctx context.Context, req reportapp.TriggerRequest) (*report.Artifact, error)
	StreamCached(ctx context.Context, key string, w http.ResponseWriter) error
}

var _ ReportService = (*reportapp.Service)(nil)

// ReportHandler serves the report generation endpoints.
type ReportHandler struct {
	BaseHandler
	service ReportService
}

// NewReportHandler creates the report endpoints handler.
func NewReportHandler(service ReportService, production bool, defaultOrigin string) *ReportHandler {
	return &ReportHandler{
		BaseHandler: BaseHandler{Production: production, DefaultOrigin: defaultOrigin},
		service:     service,
	}
}

type viewerQuery struct {
	StudentID  string `form:"studentId" binding:"required,max=100"`
	TestID     string `form:"testId" binding:"required,max=100,testid"`
	ClassID    string `form:"classId" binding:"omitempty,max=100"`
	EducatorID string `form:"educatorId" binding:"omitempty,max=100"`
}

// GeneratePDF handles GET /generate-pdf: an educator downloading one
// student's report.
func (h *ReportHandler) GeneratePDF(c *gin.Context) {
	var q viewerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_FAILED",
			"studentId and testId are required and must be valid", err)
		return
	}

	artifact, err := h.service.GenerateForViewer(c.Request.Context(), reportapp.ViewerRequest{
		StudentID:  q.StudentID,
		TestID:     q.TestID,
		ClassID:    q.ClassID,
		EducatorID: q.EducatorID,
		Origin:     h.requestOrigin(c),
		Token:      h.bearerToken(c),
	})
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	h.sendArtifact(c, artifact)
}

type selfQuery struct {
	TestID     string `form:"testId" binding:"required,max=100,testid"`
	ClassID    string `form:"classId" binding:"omitempty,max=100"`
	EducatorID string `form:"educatorId" binding:"omitempty,max=100"`
}

// GenerateStudentPDF handles GET /generate-student-pdf: a student
// downloading their own report.
func (h *ReportHandler) GenerateStudentPDF(c *gin.Context) {
	h.generateSelf(c, h.service.GenerateStudentSelf)
}

// GenerateTeacherPDF handles GET /generate-teacher-pdf: a teacher
// downloading their class report.
func (h *ReportHandler) GenerateTeacherPDF(c *gin.Context) {
	h.generateSelf(c, h.service.GenerateTeacherSelf)
}

func (h *ReportHandler) generateSelf(c *gin.Context, generate func(context.Context, reportapp.SelfRequest) (*report.Artifact, error)) {
	var q selfQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_FAILED",
			"testId is required and must be valid", err)
		return
	}

	token := h.bearerToken(c)
	claims, err := auth.DecodeClaims(token)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED",
			"A valid bearer token is required", err)
		return
	}

	artifact, err := generate(c.Request.Context(), reportapp.SelfRequest{
		TestID:     q.TestID,
		ClassID:    q.ClassID,
		EducatorID: q.EducatorID,
		Origin:     h.requestOrigin(c),
		Token:      token,
		Claims:     claims,
	})
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	h.sendArtifact(c, artifact)
}

type bulkBody struct {
	StudentIDs []string `json:"studentIds" binding:"required,min=1,max=500,dive,required,max=100"`
	TestID     string   `json:"testId" binding:"required,max=100,testid"`
	ClassID    string   `json:"classId" binding:"omitempty,max=100"`
	EducatorID string   `json:"educatorId" binding:"omitempty,max=100"`
}

// GenerateBulkPDF handles POST /generate-bulk-pdf: one zip of reports
// across many students.
func (h *ReportHandler) GenerateBulkPDF(c *gin.Context) {
	var body bulkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_FAILED",
			"studentIds and testId are required and must be valid", err)
		return
	}

	zipPath, err := h.service.GenerateBulkZip(c.Request.Context(), reportapp.BulkRequest{
		StudentIDs: body.StudentIDs,
		TestID:     body.TestID,
		ClassID:    body.ClassID,
		EducatorID: body.EducatorID,
		Origin:     h.requestOrigin(c),
		Token:      h.bearerToken(c),
	})
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}

	normalized, _ := report.NormalizeTestID(body.TestID)
	downloadName := "reports_" + strings.ReplaceAll(report.DisplayTestID(normalized), " ", "_") + ".zip"
	c.FileAttachment(zipPath, downloadName)
}

type triggerBody struct {
	StudentID string `json:"student_id" binding:"required,max=100"`
	TestNum   string `json:"test_num" binding:"required,max=100,testid"`
	ClassID   string `json:"class_id" binding:"omitempty,max=100"`
}

// TriggerGeneratePDF handles POST /internal/trigger-generate-pdf: the
// tenant backend warming the cache for one student report.
func (h *ReportHandler) TriggerGeneratePDF(c *gin.Context) {
	var body triggerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_FAILED",
			"student_id and test_num are required and must be valid", err)
		return
	}

	artifact, err := h.service.TriggerGenerate(c.Request.Context(), reportapp.TriggerRequest{
		StudentID: body.StudentID,
		TestNum:   body.TestNum,
		ClassID:   body.ClassID,
		Origin:    h.requestOrigin(c),
		Token:     h.bearerToken(c),
	})
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "report generated",
		"cached":  artifact.FromS3,
		"key":     artifact.S3Key,
	})
}

// sendArtifact streams a cache hit straight from the store, or sends
// the freshly rendered buffer with download headers.
func (h *ReportHandler) sendArtifact(c *gin.Context, artifact *report.Artifact) {
	if artifact.FromS3 {
		if err := h.service.StreamCached(c.Request.Context(), artifact.S3Key, c.Writer); err != nil {
			h.respondError(c, http.StatusInternalServerError, "STORAGE_FAILED",
				"Failed to stream cached report", err)
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", artifact.Buffer)
}
