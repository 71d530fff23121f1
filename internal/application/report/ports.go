// Package report orchestrates report generation: cache lookup, tenant
// resolution, headless rendering, temp-file lifecycle, and best-effort
// cache uploads.
package report

import (
	"context"
	"net/http"

	"github.com/inzighted/report-service/internal/infrastructure/insights"
	"github.com/inzighted/report-service/internal/infrastructure/tenant"
)

// ObjectStore is the report cache. Implementations must fail open:
// Exists returns false on any error and Upload swallows failures, so
// the cache can never break a request.
type ObjectStore interface {
	Exists(ctx context.Context, key string) bool
	Upload(ctx context.Context, key string, data []byte, metadata map[string]string) string
	Fetch(ctx context.Context, key string) ([]byte, error)
	StreamTo(ctx context.Context, key string, w http.ResponseWriter) error
}

// Renderer turns a report page into PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, reportURL, token, tag string) ([]byte, error)
}

// TenantResolver maps a request origin to its tenant's URL pair.
type TenantResolver interface {
	Resolve(origin string) (tenant.URLs, tenant.Match)
}

// InsightsClient checks report data availability on the tenant backend.
// Optional; only the internal trigger flow uses it.
type InsightsClient interface {
	FetchStudentInsights(ctx context.Context, backendURL, token, studentID, testNum string) (*insights.StudentInsights, error)
}
