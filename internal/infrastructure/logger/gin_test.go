package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.Use(GinMiddleware(zap.New(core)))
	return r, logs
}

func TestGinMiddleware_LogsByStatus(t *testing.T) {
	r, logs := newObservedRouter(t)
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, level := range map[string]zapcore.Level{
		"/ok":      zapcore.InfoLevel,
		"/missing": zapcore.WarnLevel,
		"/boom":    zapcore.ErrorLevel,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)

		entries := logs.TakeAll()
		require.Len(t, entries, 1, path)
		assert.Equal(t, level, entries[0].Level, path)
		assert.Equal(t, "request completed", entries[0].Message)
	}
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	r, logs := newObservedRouter(t)
	r.GET("/panic", func(c *gin.Context) { panic("render blew up") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEmpty(t, logs.FilterMessage("panic recovered").All())
}

func TestFromGin_NopOutsideRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, FromGin(c))
}

func TestFromGin_ReturnsScopedLogger(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	l := zap.NewNop().With(zap.String("request_id", "abc"))
	c.Set(ginLoggerKey, l)
	assert.Same(t, l, FromGin(c))
}
