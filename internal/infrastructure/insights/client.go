// Package insights calls the tenant backend's student insights API.
// The internal trigger endpoint uses it to verify a student's report
// data exists before warming the PDF cache.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// StudentInsights is the subset of the backend's insights payload the
// service cares about.
type StudentInsights struct {
	UserName    string          `json:"userName"`
	Institution string          `json:"institution"`
	Overview    json.RawMessage `json:"overview"`
	SWOT        json.RawMessage `json:"swot"`
}

// Client talks to a tenant backend. The backend URL varies per request
// because it comes from tenant resolution, so it is a call argument
// rather than client state.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds an insights client. A nil httpClient gets a default
// with a request timeout.
func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, logger: logger}
}

// FetchStudentInsights fetches a student's insights for one test from
// the given tenant backend, authenticating with the caller's token.
func (c *Client) FetchStudentInsights(ctx context.Context, backendURL, token, studentID, testNum string) (*StudentInsights, error) {
	endpoint := strings.TrimSuffix(backendURL, "/") + "/educator/students/insights/"

	body, err := json.Marshal(map[string]string{
		"student_id": studentID,
		"test_num":   testNum,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode insights request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build insights request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("insights request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("insights request rejected",
			zap.String("endpoint", endpoint),
			zap.String("student_id", studentID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("insights request returned %d: %s", resp.StatusCode, string(snippet))
	}

	var out StudentInsights
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode insights response: %w", err)
	}
	return &out, nil
}
