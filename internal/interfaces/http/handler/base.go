// Package handler holds the thin HTTP adapters over the report
// orchestrator: parameter validation, token and origin extraction, and
// response shaping. No generation logic lives here.
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inzighted/report-service/internal/domain/report"
	"github.com/inzighted/report-service/internal/domain/shared"
	"github.com/inzighted/report-service/internal/infrastructure/logger"
	"github.com/inzighted/report-service/internal/infrastructure/render"
	"github.com/inzighted/report-service/internal/interfaces/http/dto"
)

// BaseHandler carries the cross-cutting handler state.
type BaseHandler struct {
	Production    bool
	DefaultOrigin string
}

// bearerToken extracts the token from the Authorization header, or ""
// when absent. Most endpoints treat the token as optional and let the
// rendered page fail authentication instead.
func (h BaseHandler) bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// requestOrigin finds the tenant origin: the Origin header, the
// Referer's origin, or the configured default.
func (h BaseHandler) requestOrigin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	if referer := c.GetHeader("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return h.DefaultOrigin
}

// respondError sends the error envelope, attaching internal detail
// only outside production.
func (h BaseHandler) respondError(c *gin.Context, status int, code, message string, cause error) {
	resp := dto.NewErrorResponse(code, message)
	if cause != nil {
		logger.FromGin(c).Error(message, zap.String("code", code), zap.Error(cause))
		if !h.Production {
			resp = resp.WithDetails(cause.Error())
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

// respondGenerationError maps orchestrator failures to HTTP statuses.
func (h BaseHandler) respondGenerationError(c *gin.Context, err error) {
	var renderErr *render.RenderError
	switch {
	case errors.Is(err, report.ErrInvalidTestID):
		h.respondError(c, http.StatusBadRequest, "INVALID_TEST_ID",
			"testId must be 'overall' or contain a test number", err)
	case errors.Is(err, shared.ErrUnauthorized):
		h.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED",
			"A valid bearer token is required", err)
	case errors.As(err, &renderErr):
		h.respondError(c, http.StatusInternalServerError, renderErr.Code,
			"Failed to generate report", err)
	default:
		h.respondError(c, http.StatusInternalServerError, "GENERATION_FAILED",
			"Failed to generate report", err)
	}
}
