// Package client talks to the EduPulse HTTP API and keeps the role & dashboard state a
// front end renders from.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/weekly"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Fields holds per-field validation messages, if any.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			keys = append(keys, k+": "+v)
		}
		return fmt.Sprintf("api: %d %s", e.StatusCode, strings.Join(keys, "; "))
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	apiErr, ok := errors.Cause(err).(*APIError)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// Me is the role lookup of the authenticated user.
type Me struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type (
	Client struct {
		baseURL string
		http    *http.Client

		mu    sync.RWMutex
		token string
	}

	Option func(*Client)
)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

// decodeAPIError reads {"error": "..."} or a {"field": "message"} map.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(b) == 0 {
		return apiErr
	}
	var fields map[string]string
	if err := json.Unmarshal(b, &fields); err != nil {
		apiErr.Message = strings.TrimSpace(string(b))
		return apiErr
	}
	if msg, ok := fields["error"]; ok && len(fields) == 1 {
		apiErr.Message = msg
	} else {
		apiErr.Fields = fields
	}
	return apiErr
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", in, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &me)
	return me, err
}

func (c *Client) Dashboard(ctx context.Context) (health.Dashboard, error) {
	var d health.Dashboard
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &d)
	return d, err
}

func (c *Client) Trends(ctx context.Context, limit int) (health.History, error) {
	path := "/api/history/trends"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var h health.History
	err := c.do(ctx, http.MethodGet, path, nil, &h)
	return h, err
}

// Week returns the snapshot of the week starting on weekStart, or the current one when empty.
func (c *Client) Week(ctx context.Context, weekStart string) (weekly.CurrentWeek, error) {
	path := "/api/weekly"
	if weekStart != "" {
		path += "?week_start=" + url.QueryEscape(weekStart)
	}
	var cw weekly.CurrentWeek
	err := c.do(ctx, http.MethodGet, path, nil, &cw)
	return cw, err
}

func (c *Client) SaveWeek(ctx context.Context, req weekly.SaveWeek) (weekly.CurrentWeek, error) {
	var cw weekly.CurrentWeek
	err := c.do(ctx, http.MethodPost, "/api/weekly", req, &cw)
	return cw, err
}

func (c *Client) Rollup(ctx context.Context, date string) (weekly.CurrentWeek, error) {
	var cw weekly.CurrentWeek
	err := c.do(ctx, http.MethodPost, "/api/weekly/rollup", weekly.RollupRequest{Date: date}, &cw)
	return cw, err
}

func (c *Client) RecordMetric(ctx context.Context, nm metric.NewMetric) (health.MetricRow, error) {
	var row health.MetricRow
	err := c.do(ctx, http.MethodPost, "/api/metrics", nm, &row)
	return row, err
}

func (c *Client) LatestMetrics(ctx context.Context) ([]health.MetricRow, error) {
	var resp struct {
		Items []health.MetricRow `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/api/metrics/latest", nil, &resp)
	return resp.Items, err
}
