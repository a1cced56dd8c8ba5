package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestListCameras(t *testing.T) {
	srv := apiServer(t, map[string]any{
		"/cameras": []Camera{
			{ID: "c09", Name: "Entrance", SourceWidth: 1920, SourceHeight: 1080, Active: true},
		},
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	cameras, err := c.ListCameras(context.Background(), "env-1")
	require.NoError(t, err)
	require.Len(t, cameras, 1)
	assert.Equal(t, "c09", cameras[0].ID)
}

func TestGetTrackingStatistics(t *testing.T) {
	srv := apiServer(t, map[string]any{
		"/tracking/warehouse/statistics": TrackingStatistics{
			SceneID:           "warehouse",
			TotalDetections:   12,
			UniquePersons:     4,
			AverageConfidence: 0.81,
		},
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	stats, err := c.GetTrackingStatistics(context.Background(), "warehouse")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.UniquePersons)
	assert.InDelta(t, 0.81, stats.AverageConfidence, 1e-9)
}

func TestNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.ListEnvironments(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHealthConvertsFailures(t *testing.T) {
	srv := apiServer(t, map[string]any{
		"/health": map[string]string{"status": "ok"},
	})

	c := NewClient(srv.URL, time.Second)
	status := c.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Status)

	// unreachable backend yields a structured status, not an error
	srv.Close()
	status = c.Health(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "unreachable", status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, time.Minute)
	_, err := c.ListEnvironments(ctx)
	require.Error(t, err)
}

func TestMockClientDeterminism(t *testing.T) {
	a := NewMockClient("warehouse")
	b := NewMockClient("warehouse")
	ctx := context.Background()

	camsA, err := a.ListCameras(ctx, "")
	require.NoError(t, err)
	camsB, _ := b.ListCameras(ctx, "")
	assert.Equal(t, camsA, camsB)

	frameA := a.GenerateFrame(7)
	frameB := b.GenerateFrame(7)
	assert.Equal(t, frameA, frameB, "the same index reproduces the same frame")
	assert.NotEqual(t, frameA, a.GenerateFrame(8))
}

func TestMockFrameShape(t *testing.T) {
	m := NewMockClient("warehouse")
	frame := m.GenerateFrame(0)

	assert.Equal(t, "warehouse", frame.SceneID)
	require.Len(t, frame.Cameras, 2)
	for _, cam := range frame.Cameras {
		require.Len(t, cam.Tracks, 3)
		for _, track := range cam.Tracks {
			assert.NotEmpty(t, track.GlobalID)
			assert.NotNil(t, track.MapCoords)
			assert.Less(t, track.BBoxXYXY[0], track.BBoxXYXY[2])
			assert.Less(t, track.BBoxXYXY[1], track.BBoxXYXY[3])
		}
	}
}

func TestMockDetectionsLimit(t *testing.T) {
	m := NewMockClient("warehouse")
	dets, err := m.GetDetections(context.Background(), "", 3)
	require.NoError(t, err)
	assert.Len(t, dets, 3)

	only, err := m.GetDetections(context.Background(), "c12", 0)
	require.NoError(t, err)
	for _, d := range only {
		assert.Equal(t, "c12", d.CameraID)
	}
}
