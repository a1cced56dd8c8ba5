// Package apiclient wraps the tracking backend's REST API in typed,
// context-aware calls. Transport failures on the health path are converted
// into structured status results so callers can render them instead of
// branching on error types.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
)

// API is the surface consumed by the dashboard and the resilience monitor.
// Client talks HTTP; MockClient serves synthetic data.
type API interface {
	ListEnvironments(ctx context.Context) ([]Environment, error)
	ListCameras(ctx context.Context, environmentID string) ([]Camera, error)
	GetDetections(ctx context.Context, cameraID string, limit int) ([]Detection, error)
	GetTrackingResults(ctx context.Context, sceneID string) (TrackingResults, error)
	GetTrackingStatistics(ctx context.Context, sceneID string) (TrackingStatistics, error)
	GetSpatialMapping(ctx context.Context, cameraID string) (SpatialMapping, error)
	GetTrajectoryAnalysis(ctx context.Context, globalID string) (TrajectoryAnalysis, error)
	Health(ctx context.Context) HealthStatus
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://backend:8000/api/v1". timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// getJSON performs one GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) ListEnvironments(ctx context.Context) ([]Environment, error) {
	var out []Environment
	err := c.getJSON(ctx, "/environments", nil, &out)
	return out, err
}

func (c *Client) ListCameras(ctx context.Context, environmentID string) ([]Camera, error) {
	query := url.Values{}
	if environmentID != "" {
		query.Set("environment_id", environmentID)
	}
	var out []Camera
	err := c.getJSON(ctx, "/cameras", query, &out)
	return out, err
}

func (c *Client) GetDetections(ctx context.Context, cameraID string, limit int) ([]Detection, error) {
	query := url.Values{}
	if cameraID != "" {
		query.Set("camera_id", cameraID)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	var out []Detection
	err := c.getJSON(ctx, "/detections", query, &out)
	return out, err
}

func (c *Client) GetTrackingResults(ctx context.Context, sceneID string) (TrackingResults, error) {
	var out TrackingResults
	err := c.getJSON(ctx, "/tracking/"+url.PathEscape(sceneID)+"/results", nil, &out)
	return out, err
}

func (c *Client) GetTrackingStatistics(ctx context.Context, sceneID string) (TrackingStatistics, error) {
	var out TrackingStatistics
	err := c.getJSON(ctx, "/tracking/"+url.PathEscape(sceneID)+"/statistics", nil, &out)
	return out, err
}

func (c *Client) GetSpatialMapping(ctx context.Context, cameraID string) (SpatialMapping, error) {
	var out SpatialMapping
	err := c.getJSON(ctx, "/spatial/"+url.PathEscape(cameraID), nil, &out)
	return out, err
}

func (c *Client) GetTrajectoryAnalysis(ctx context.Context, globalID string) (TrajectoryAnalysis, error) {
	var out TrajectoryAnalysis
	err := c.getJSON(ctx, "/trajectories/"+url.PathEscape(globalID), nil, &out)
	return out, err
}

// Health probes the backend. Failures are folded into the returned status so
// the dashboard can always render a health row.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()

	var body struct {
		Status string `json:"status"`
	}
	err := c.getJSON(ctx, "/health", nil, &body)
	status := HealthStatus{
		Latency:   time.Since(start),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		logger.Warn("APIClient", "health check failed: %v", err)
		status.Status = "unreachable"
		status.Error = err.Error()
		return status
	}

	status.Status = body.Status
	status.Healthy = body.Status == "ok" || body.Status == "healthy"
	return status
}
