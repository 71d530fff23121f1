// Package tenant maps a request origin to the frontend/backend URL pair
// of the customer deployment it belongs to.
package tenant

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// URLs is the resolved frontend/backend pair for one tenant. It is
// immutable for the lifetime of a request.
type URLs struct {
	Frontend string
	Backend  string
}

// Match describes how an origin was resolved. The default fallback is a
// deliberate fail-open: an unrecognized origin still gets a working
// tenant, and callers can observe (and tests can assert) that the
// degraded path was taken.
type Match string

const (
	MatchLocal   Match = "local"
	MatchKeyword Match = "keyword"
	MatchExact   Match = "exact"
	MatchDefault Match = "default"
)

// KeywordTenant routes any origin containing Keyword (case-insensitive)
// to the given tenant, e.g. every "*.tamilnadu.*" host to the TamilNadu
// deployment.
type KeywordTenant struct {
	Keyword string
	URLs    URLs
}

// Resolver resolves request origins to tenant URLs. It never fails:
// unknown origins degrade to the default tenant.
type Resolver struct {
	exact    map[string]URLs
	keywords []KeywordTenant
	fallback URLs
	logger   *zap.Logger
}

// localOrigin matches developer origins: localhost, loopback, or a bare
// IPv4 host, each with an explicit port.
var localOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\d{1,3}(?:\.\d{1,3}){3}):\d+$`)

// NewResolver creates a resolver over the configured tenant table.
func NewResolver(exact map[string]URLs, keywords []KeywordTenant, fallback URLs, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exact == nil {
		exact = map[string]URLs{}
	}
	return &Resolver{
		exact:    exact,
		keywords: keywords,
		fallback: fallback,
		logger:   logger,
	}
}

// Resolve returns the tenant URLs for an origin together with the kind
// of match that produced them.
//
// Local-development origins keep their own frontend (so a locally served
// frontend can be rendered against a real backend) paired with the
// default backend.
func (r *Resolver) Resolve(origin string) (URLs, Match) {
	origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")

	if localOrigin.MatchString(origin) {
		return URLs{Frontend: origin, Backend: r.fallback.Backend}, MatchLocal
	}

	lower := strings.ToLower(origin)
	for _, kw := range r.keywords {
		if kw.Keyword != "" && strings.Contains(lower, strings.ToLower(kw.Keyword)) {
			return kw.URLs, MatchKeyword
		}
	}

	if urls, ok := r.exact[origin]; ok {
		return urls, MatchExact
	}

	r.logger.Debug("origin not recognized, using default tenant",
		zap.String("origin", origin))
	return r.fallback, MatchDefault
}
