package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStudentInsights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/educator/students/insights/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "S42", body["student_id"])
		assert.Equal(t, "3", body["test_num"])

		json.NewEncoder(w).Encode(map[string]any{
			"userName":    "Asha",
			"institution": "Model School",
			"overview":    map[string]any{"score": 87},
			"swot":        map[string]any{"strengths": []string{"algebra"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	got, err := c.FetchStudentInsights(context.Background(), srv.URL, "tok-1", "S42", "3")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.UserName)
	assert.Equal(t, "Model School", got.Institution)
	assert.NotEmpty(t, got.Overview)
	assert.NotEmpty(t, got.SWOT)
}

func TestFetchStudentInsights_TrailingSlashBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/educator/students/insights/", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	_, err := c.FetchStudentInsights(context.Background(), srv.URL+"/", "", "S1", "0")
	require.NoError(t, err)
}

func TestFetchStudentInsights_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such student", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	_, err := c.FetchStudentInsights(context.Background(), srv.URL, "tok", "S404", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such student")
}
