package report

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	reportdom "github.com/inzighted/report-service/internal/domain/report"
)

// GenerateBulkZip renders one report per student and assembles them
// into a zip on disk, returning its path. Per-student failures are
// logged and skipped; the job completes with a partial archive rather
// than failing entirely. Renders run through a worker pool bounded by
// Options.BulkConcurrency because every concurrent render is a live
// browser tab.
func (s *Service) GenerateBulkZip(ctx context.Context, req BulkRequest) (string, error) {
	testID, err := reportdom.NormalizeTestID(req.TestID)
	if err != nil {
		return "", err
	}

	artifacts := make([]*reportdom.Artifact, len(req.StudentIDs))
	failures := make([]error, len(req.StudentIDs))

	sem := make(chan struct{}, s.opts.BulkConcurrency)
	var wg sync.WaitGroup
	for i, studentID := range req.StudentIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, studentID string) {
			defer wg.Done()
			defer func() { <-sem }()

			artifacts[i], failures[i] = s.generateSingle(ctx, singleJob{
				subjectID:  studentID,
				testID:     testID,
				reportType: reportdom.TypeStudent,
				page:       "report",
				classID:    req.ClassID,
				educatorID: req.EducatorID,
				origin:     req.Origin,
				token:      req.Token,
			})
		}(i, studentID)
	}
	wg.Wait()

	zipPath := filepath.Join(s.opts.TempDir, "reports_"+uuid.NewString()+".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create bulk archive: %w", err)
	}

	zw := zip.NewWriter(f)
	added := 0
	for i, artifact := range artifacts {
		studentID := req.StudentIDs[i]
		if failures[i] != nil {
			s.logger.Warn("bulk report failed, skipping student",
				zap.String("student_id", studentID), zap.Error(failures[i]))
			continue
		}

		data := artifact.Buffer
		if artifact.FromS3 {
			data, err = s.store.Fetch(ctx, artifact.S3Key)
			if err != nil {
				s.logger.Warn("failed to fetch cached report for bulk archive, skipping student",
					zap.String("student_id", studentID),
					zap.String("key", artifact.S3Key), zap.Error(err))
				continue
			}
		}

		// Derive the entry name from the report identity, not the
		// artifact: cache keys abbreviate filenames, and a student's
		// entry must read the same whether their PDF was cached or
		// rendered fresh.
		entry, err := zw.Create(reportdom.Filename(reportdom.TypeStudent, studentID, testID))
		if err != nil {
			s.logger.Warn("failed to add report to bulk archive, skipping student",
				zap.String("student_id", studentID), zap.Error(err))
			continue
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			f.Close()
			os.Remove(zipPath)
			return "", fmt.Errorf("failed to write bulk archive: %w", err)
		}
		added++
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(zipPath)
		return "", fmt.Errorf("failed to finalize bulk archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("failed to flush bulk archive: %w", err)
	}

	s.logger.Info("bulk archive assembled",
		zap.String("path", zipPath),
		zap.Int("requested", len(req.StudentIDs)),
		zap.Int("included", added))

	s.scheduleCleanup(zipPath)
	return zipPath, nil
}
