package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// client wraps http.Client with JSON helpers.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

type studentInfo struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

type submitRequest struct {
	StudentInfo  studentInfo        `json:"student_info"`
	AssignmentID string             `json:"assignment_id"`
	Metrics      map[string]float64 `json:"metrics"`
	Contributor  string             `json:"contributor,omitempty"`
}

// Entry is one ranked leaderboard row as served by the API.
type Entry struct {
	Rank    int                `json:"rank"`
	Student studentInfo        `json:"student_info"`
	Score   *float64           `json:"score"`
	Metrics map[string]float64 `json:"metrics"`
}

type leaderboardResponse struct {
	AssignmentID string  `json:"assignment_id"`
	Leaderboard  []Entry `json:"leaderboard"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends a request and decodes a 2xx JSON body into out. Non-2xx replies
// are returned as *StatusError.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Status: resp.StatusCode}
		var ae apiError
		if json.Unmarshal(data, &ae) == nil {
			se.Code, se.Message = ae.Code, ae.Message
		}
		return se
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *client) submit(ctx context.Context, req submitRequest) error {
	return c.do(ctx, http.MethodPost, "/api/submit", req, nil)
}

func (c *client) leaderboard(ctx context.Context, assignmentID string) ([]Entry, error) {
	var out leaderboardResponse
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/"+url.PathEscape(assignmentID), nil, &out); err != nil {
		return nil, err
	}
	return out.Leaderboard, nil
}

// StatusError is a non-2xx API reply.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}
