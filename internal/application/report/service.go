package report

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	reportdom "github.com/inzighted/report-service/internal/domain/report"
	"github.com/inzighted/report-service/internal/domain/shared"
)

// uploadTimeout bounds the background cache upload, which outlives the
// request that spawned it.
const uploadTimeout = 2 * time.Minute

// Options tunes the orchestrator.
type Options struct {
	// TempDir receives rendered PDFs and bulk zips.
	TempDir string
	// CleanupDelay is how long a temp file survives after its response,
	// long enough for any in-flight streaming to finish reading it.
	CleanupDelay time.Duration
	// ScheduleCleanup enables delayed temp-file deletion. Off outside
	// production so local debugging can inspect the artifacts.
	ScheduleCleanup bool
	// BulkConcurrency caps concurrent renders within one bulk job.
	BulkConcurrency int
}

// Service composes the tenant resolver, object store, and render
// session into the report generation flows.
type Service struct {
	store    ObjectStore
	renderer Renderer
	tenants  TenantResolver
	insights InsightsClient
	logger   *zap.Logger
	opts     Options
}

// NewService wires the orchestrator. insights may be nil when the
// internal trigger flow is not served.
func NewService(store ObjectStore, renderer Renderer, tenants TenantResolver, insights InsightsClient, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.BulkConcurrency < 1 {
		opts.BulkConcurrency = 1
	}
	return &Service{
		store:    store,
		renderer: renderer,
		tenants:  tenants,
		insights: insights,
		logger:   logger,
		opts:     opts,
	}
}

// singleJob is one report generation, shared by every flow.
type singleJob struct {
	subjectID  string
	testID     string // normalized
	reportType reportdom.Type
	page       string // frontend route
	classID    string
	educatorID string
	origin     string
	token      string
}

// GenerateForViewer renders a student's report for a privileged viewer.
func (s *Service) GenerateForViewer(ctx context.Context, req ViewerRequest) (*reportdom.Artifact, error) {
	testID, err := reportdom.NormalizeTestID(req.TestID)
	if err != nil {
		return nil, err
	}
	return s.generateSingle(ctx, singleJob{
		subjectID:  req.StudentID,
		testID:     testID,
		reportType: reportdom.TypeStudent,
		page:       "report",
		classID:    req.ClassID,
		educatorID: req.EducatorID,
		origin:     req.Origin,
		token:      req.Token,
	})
}

// GenerateStudentSelf renders the report of the student identified by
// the request's own claims.
func (s *Service) GenerateStudentSelf(ctx context.Context, req SelfRequest) (*reportdom.Artifact, error) {
	return s.generateSelf(ctx, req, reportdom.TypeStudent, "student-report")
}

// GenerateTeacherSelf renders the class report of the teacher
// identified by the request's own claims.
func (s *Service) GenerateTeacherSelf(ctx context.Context, req SelfRequest) (*reportdom.Artifact, error) {
	return s.generateSelf(ctx, req, reportdom.TypeTeacher, "teacher-report")
}

func (s *Service) generateSelf(ctx context.Context, req SelfRequest, reportType reportdom.Type, page string) (*reportdom.Artifact, error) {
	subjectID := req.Claims.PrimaryID()
	if subjectID == "" {
		return nil, shared.ErrUnauthorized
	}
	testID, err := reportdom.NormalizeTestID(req.TestID)
	if err != nil {
		return nil, err
	}
	return s.generateSingle(ctx, singleJob{
		subjectID:  subjectID,
		testID:     testID,
		reportType: reportType,
		page:       page,
		classID:    req.ClassID,
		educatorID: req.EducatorID,
		origin:     req.Origin,
		token:      req.Token,
	})
}

// TriggerGenerate warms the cache for one student report. It first
// verifies the backend has insights data for the student, so the
// trigger fails loudly instead of caching an empty report page.
func (s *Service) TriggerGenerate(ctx context.Context, req TriggerRequest) (*reportdom.Artifact, error) {
	testID, err := reportdom.NormalizeTestID(req.TestNum)
	if err != nil {
		return nil, err
	}

	if s.insights != nil {
		urls, _ := s.tenants.Resolve(req.Origin)
		if _, err := s.insights.FetchStudentInsights(ctx, urls.Backend, req.Token, req.StudentID, testID); err != nil {
			return nil, fmt.Errorf("insights lookup for student %s failed: %w", req.StudentID, err)
		}
	}

	return s.generateSingle(ctx, singleJob{
		subjectID:  req.StudentID,
		testID:     testID,
		reportType: reportdom.TypeStudent,
		page:       "report",
		classID:    req.ClassID,
		origin:     req.Origin,
		token:      req.Token,
	})
}

// StreamCached pipes a cached report straight from the object store
// into the response.
func (s *Service) StreamCached(ctx context.Context, key string, w http.ResponseWriter) error {
	return s.store.StreamTo(ctx, key, w)
}

// generateSingle is the shared algorithm: cache check, render, temp
// file, background upload.
func (s *Service) generateSingle(ctx context.Context, job singleJob) (*reportdom.Artifact, error) {
	urls, match := s.tenants.Resolve(job.origin)
	s.logger.Debug("tenant resolved",
		zap.String("origin", job.origin),
		zap.String("match", string(match)),
		zap.String("frontend", urls.Frontend))

	var key string
	if job.classID != "" {
		key = reportdom.CacheKey(job.classID, job.testID, job.reportType, job.subjectID)
		if s.store.Exists(ctx, key) {
			s.logger.Info("report cache hit", zap.String("key", key))
			return reportdom.NewCachedArtifact(key), nil
		}
	}

	reportURL := buildReportURL(urls.Frontend, job)
	tag := string(job.reportType) + "_" + job.subjectID

	pdf, err := s.renderer.RenderPDF(ctx, reportURL, job.token, tag)
	if err != nil {
		return nil, err
	}

	filename := reportdom.Filename(job.reportType, job.subjectID, job.testID)
	path := s.writeTemp(pdf, filename)

	artifact := reportdom.NewRenderedArtifact(path, filename, pdf)

	if key != "" {
		artifact.S3Key = key
		metadata := uploadMetadata(job)
		go func(key string, data []byte, metadata map[string]string) {
			ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
			defer cancel()
			s.store.Upload(ctx, key, data, metadata)
		}(key, pdf, metadata)
	}

	s.scheduleCleanup(path)
	return artifact, nil
}

// uploadMetadata is the report identity attached to a cached object as
// S3 user metadata.
func uploadMetadata(job singleJob) map[string]string {
	m := map[string]string{
		"report-type": string(job.reportType),
		"subject-id":  job.subjectID,
		"test-id":     job.testID,
	}
	if job.classID != "" {
		m["class-id"] = job.classID
	}
	return m
}

// buildReportURL embeds the report identity as query parameters on the
// tenant frontend's report route. Spaces are encoded as %20, the form
// the report pages expect, rather than url.Values' "+".
func buildReportURL(frontend string, job singleJob) string {
	q := url.Values{}
	if job.reportType == reportdom.TypeTeacher {
		q.Set("teacherId", job.subjectID)
	} else {
		q.Set("studentId", job.subjectID)
	}
	q.Set("testId", reportdom.DisplayTestID(job.testID))
	if job.educatorID != "" {
		q.Set("educatorId", job.educatorID)
	}

	encoded := strings.ReplaceAll(q.Encode(), "+", "%20")
	return strings.TrimSuffix(frontend, "/") + "/" + job.page + "?" + encoded
}

// writeTemp persists a rendered PDF under a unique name. Failure is not
// fatal: the buffer is the deliverable, the file only backs streaming
// and debugging.
func (s *Service) writeTemp(data []byte, filename string) string {
	name := strings.TrimSuffix(filename, ".pdf") + "_" + uuid.NewString() + ".pdf"
	path := filepath.Join(s.opts.TempDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Warn("failed to write temp PDF", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// scheduleCleanup deletes a temp file after the configured delay.
func (s *Service) scheduleCleanup(path string) {
	if !s.opts.ScheduleCleanup || path == "" {
		return
	}
	time.AfterFunc(s.opts.CleanupDelay, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("temp file cleanup failed",
				zap.String("path", path), zap.Error(err))
		}
	})
}
