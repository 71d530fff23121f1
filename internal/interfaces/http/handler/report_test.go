package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	reportapp "github.com/inzighted/report-service/internal/application/report"
	"github.com/inzighted/report-service/internal/domain/report"
	"github.com/inzighted/report-service/internal/infrastructure/config"
	"github.com/inzighted/report-service/internal/infrastructure/tenant"
	"github.com/inzighted/report-service/internal/interfaces/http/handler"
	"github.com/inzighted/report-service/internal/interfaces/http/router"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) Exists(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStore) Upload(_ context.Context, key string, data []byte, _ map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.objects[key] = data
	return key
}

func (f *fakeStore) Fetch(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], nil
}

func (f *fakeStore) StreamTo(_ context.Context, key string, w http.ResponseWriter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.KeyFilename(key)+`"`)
	_, err := w.Write(f.objects[key])
	return err
}

type fakeRenderer struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeRenderer) RenderPDF(_ context.Context, reportURL, _, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, reportURL)
	return []byte("%PDF-1.4 test"), nil
}

func (f *fakeRenderer) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

type fakeTenants struct{}

func (fakeTenants) Resolve(string) (tenant.URLs, tenant.Match) {
	return tenant.URLs{
		Frontend: "https://app.example.com",
		Backend:  "https://api.example.com",
	}, tenant.MatchDefault
}

type testEnv struct {
	router   *gin.Engine
	store    *fakeStore
	renderer *fakeRenderer
}

func newTestEnv(t *testing.T, production bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	renderer := &fakeRenderer{}
	svc := reportapp.NewService(store, renderer, fakeTenants{}, nil, nil,
		reportapp.Options{TempDir: t.TempDir()})

	env := "development"
	if production {
		env = "production"
	}
	cfg := &config.Config{
		App: config.AppConfig{Name: "report-pdf-service", Env: env, Version: "test"},
		HTTP: config.HTTPConfig{
			MaxBodySize: 1 << 20,
		},
		Internal: config.InternalConfig{AuthToken: "internal-secret"},
	}

	r := router.New(router.Deps{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Reports: handler.NewReportHandler(svc, production, "https://app.example.com"),
		Health:  handler.NewHealthHandler(env, cfg.App.Name, cfg.App.Version),
	})
	return &testEnv{router: r, store: store, renderer: renderer}
}

func bearerFor(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "development", body["environment"])
	assert.Equal(t, "report-pdf-service", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestGeneratePDF_EndToEnd(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/generate-pdf?studentId=S1&testId=3", nil)
	req.Header.Set("Authorization", bearerFor(t, jwt.MapClaims{"user_id": "U1"}))
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="student_S1_Test_3.pdf"`)
	assert.NotEmpty(t, w.Body.Bytes())

	assert.Contains(t, env.renderer.lastURL(), "studentId=S1")
	assert.Contains(t, env.renderer.lastURL(), "testId=Test%203")
}

func TestGeneratePDF_Validation(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{
		"/generate-pdf",
		"/generate-pdf?studentId=S1",
		"/generate-pdf?testId=3",
		"/generate-pdf?studentId=S1&testId=nodigits",
	} {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "VALIDATION_FAILED", path)
	}
}

func TestGeneratePDF_CacheHitStreamsFromStore(t *testing.T) {
	env := newTestEnv(t, false)
	key := report.CacheKey("c1", "3", report.TypeStudent, "S1")
	env.store.objects[key] = []byte("%PDF cached")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/generate-pdf?studentId=S1&testId=3&classId=c1", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF cached", w.Body.String())
	assert.Empty(t, env.renderer.urls, "cache hit must not render")
}

func TestGenerateStudentPDF_RequiresToken(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/generate-student-pdf?testId=3", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestGenerateStudentPDF_SubjectFromToken(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/generate-student-pdf?testId=7", nil)
	req.Header.Set("Authorization", bearerFor(t, jwt.MapClaims{"student_id": "S9"}))
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "student_S9_Test_7.pdf")
	assert.Contains(t, env.renderer.lastURL(), "/student-report?")
}

func TestGenerateTeacherPDF_OverallCollapse(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/generate-teacher-pdf?testId=overall&classId=c1", nil)
	req.Header.Set("Authorization", bearerFor(t, jwt.MapClaims{"teacher_id": "T2"}))
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "teacher_T2_Overall.pdf")
	assert.Contains(t, env.renderer.lastURL(), "/teacher-report?")
}

func TestGenerateBulkPDF(t *testing.T) {
	env := newTestEnv(t, false)

	payload, _ := json.Marshal(map[string]any{
		"studentIds": []string{"S1", "S2"},
		"testId":     "3",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-bulk-pdf", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reports_Test_3.zip")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestGenerateBulkPDF_Validation(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-bulk-pdf",
		bytes.NewReader([]byte(`{"studentIds":[],"testId":"3"}`)))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerGeneratePDF_RequiresInternalToken(t *testing.T) {
	env := newTestEnv(t, false)

	payload := []byte(`{"student_id":"S1","test_num":"3"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/trigger-generate-pdf", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/trigger-generate-pdf", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", "internal-secret")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "report generated", body["message"])
}

func TestErrorDetails_SuppressedInProduction(t *testing.T) {
	dev := newTestEnv(t, false)
	w := httptest.NewRecorder()
	dev.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/generate-pdf?studentId=S1", nil))
	assert.Contains(t, w.Body.String(), "details")

	prod := newTestEnv(t, true)
	w = httptest.NewRecorder()
	prod.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/generate-pdf?studentId=S1", nil))
	assert.NotContains(t, w.Body.String(), "details")
}
