package report

import "github.com/inzighted/report-service/internal/infrastructure/auth"

// ViewerRequest is an educator requesting a student's report.
type ViewerRequest struct {
	StudentID  string
	TestID     string // raw, normalized by the service
	ClassID    string // optional; enables the cache
	EducatorID string
	Origin     string
	Token      string
}

// SelfRequest is a student or teacher requesting their own report. The
// subject id comes from the pre-decoded claims, never from parameters.
type SelfRequest struct {
	TestID     string
	ClassID    string
	EducatorID string
	Origin     string
	Token      string
	Claims     auth.Claims
}

// BulkRequest asks for one zip of reports across many students.
type BulkRequest struct {
	StudentIDs []string
	TestID     string
	ClassID    string
	EducatorID string
	Origin     string
	Token      string
}

// TriggerRequest is a server-side cache warm for one student report,
// issued by the tenant backend through the internal endpoint.
type TriggerRequest struct {
	StudentID string
	TestNum   string
	ClassID   string
	Origin    string
	Token     string
}
