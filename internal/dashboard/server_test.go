package dashboard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajisai-dev/multicam-monitor/internal/apiclient"
	"github.com/ajisai-dev/multicam-monitor/internal/resilience"
	"github.com/ajisai-dev/multicam-monitor/internal/trackproc"
	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	processor := trackproc.NewProcessor(trackproc.Options{
		TrajectoriesEnabled: true,
		MaxTrajectoryPoints: 10,
	}, nil)
	monitor := resilience.NewMonitor(5, nil)
	wsStatus := func() (types.ConnectionStatus, types.ConnectionQuality, time.Duration) {
		return types.StatusConnected, types.QualityExcellent, 12 * time.Millisecond
	}
	return NewServer(Config{StatusInterval: 10 * time.Millisecond},
		processor, monitor, apiclient.NewMockClient("warehouse"), nil, wsStatus)
}

func testResult() trackproc.Result {
	return trackproc.Result{
		FrameIndex:    7,
		SceneID:       "warehouse",
		TotalPersons:  2,
		UniquePersons: 1,
		Cameras: map[string]trackproc.ProcessedCamera{
			"c09": {CameraID: "c09", Tracks: []trackproc.ProcessedTrack{
				{TrackID: 1, GlobalID: "person_001", CameraID: "c09", Confidence: 0.9,
					Label: "person_0 90%", Color: "#FF3838",
					BBox: geom.BoundingBox{X1: 10, Y1: 10, X2: 40, Y2: 60}},
			}},
		},
	}
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster("test")

	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	assert.Equal(t, 2, b.ClientCount())

	b.Publish([]byte("one"))
	assert.Equal(t, []byte("one"), <-ch1)
	assert.Equal(t, []byte("one"), <-ch2)

	b.Unsubscribe(id1)
	_, open := <-ch1
	assert.False(t, open, "unsubscribed channel is closed")
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroadcasterDropsWhenSlow(t *testing.T) {
	b := NewBroadcaster("test")
	_, ch := b.Subscribe()

	// channel buffer is 2; the third publish must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow client")
	}
	assert.Len(t, ch, 2)
}

func TestFrameStoreReplacesBuffer(t *testing.T) {
	fs := NewFrameStore()

	fs.Put("c09", []byte("old"))
	fs.Put("c09", []byte("new"))
	fs.Put("c12", []byte("x"))

	got, ok := fs.Get("c09")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, []string{"c09", "c12"}, fs.Cameras())

	fs.Drop("c09")
	_, ok = fs.Get("c09")
	assert.False(t, ok)
}

func TestRenderOverlayProducesValidJPEG(t *testing.T) {
	src := encodeTestJPEG(t, 160, 120)

	out, err := renderOverlay(src, trackproc.ProcessedCamera{
		CameraID: "c09",
		Tracks: []trackproc.ProcessedTrack{
			{Label: "person_0 90%", Color: "#FF3838",
				BBox: geom.BoundingBox{X1: 10, Y1: 20, X2: 80, Y2: 100}},
		},
	})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 120), img.Bounds())

	// box edge pixels took the track color (subject to JPEG loss)
	r, _, _, _ := img.At(40, 20).RGBA()
	assert.Greater(t, int(r>>8), 150, "top edge should be predominantly red")
}

func TestRenderOverlayScalesToDisplaySize(t *testing.T) {
	src := encodeTestJPEG(t, 320, 240)

	out, err := renderOverlay(src, trackproc.ProcessedCamera{
		CameraID:    "c09",
		DisplaySize: geom.Size{Width: 160, Height: 120},
	})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 120), img.Bounds())
}

func TestRenderOverlayRejectsGarbage(t *testing.T) {
	_, err := renderOverlay([]byte("not a jpeg"), trackproc.ProcessedCamera{})
	require.Error(t, err)
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xFF, G: 0x38, B: 0x38, A: 255}, parseHexColor("#FF3838"))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, parseHexColor("nonsense"))
}

func TestHandleStatus(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, types.StatusConnected, status.WSStatus)
	assert.True(t, status.API.Healthy, "mock backend reports healthy")
	assert.InDelta(t, 12, status.HeartbeatRTTMs, 1e-9)
}

func TestHandleTracking(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracking", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no data published yet")

	s.PublishTracking(testResult())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracking", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Result     trackproc.Result     `json:"result"`
		Statistics trackproc.Statistics `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(7), body.Result.FrameIndex)
	assert.Equal(t, 1, body.Statistics.TotalDetections)
}

func TestHandleTrajectories(t *testing.T) {
	s := testServer(t)
	s.processor.Trajectories().Update("person_001", trackproc.TrajectoryUpdate{
		Position: geom.Point{X: 5, Y: 5}, CameraID: "c09",
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trajectories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trajectories map[string]trackproc.Trajectory `json:"trajectories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Trajectories, "person_001")
	assert.Len(t, body.Trajectories["person_001"].Points, 1)
}

func TestHandleResilience(t *testing.T) {
	s := testServer(t)
	s.monitor.Evaluate(resilience.Inputs{
		WSStatus: types.StatusConnected, WSQuality: types.QualityExcellent, APIHealthy: true,
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resilience", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap resilience.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.InDelta(t, 100, snap.Overall, 1e-9)
}

func TestHandleCameras(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cameras []apiclient.Camera
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cameras))
	assert.Len(t, cameras, 2)
}

func TestHandleIndex(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Multi-Camera Monitor")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackingStreamDeliversPublishedResults(t *testing.T) {
	s := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tracking/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// wait for the subscription before publishing
	require.Eventually(t, func() bool { return s.tracking.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	s.PublishTracking(testResult())

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	lines := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(strings.TrimSpace(line), "data: ")
				return
			}
		}
	}()

	select {
	case payload := <-lines:
		var result trackproc.Result
		require.NoError(t, json.Unmarshal([]byte(payload), &result))
		assert.Equal(t, uint64(7), result.FrameIndex)
	case <-deadline:
		t.Fatal("no SSE event received")
	}
}

func TestPublishFrameStoresOverlay(t *testing.T) {
	s := testServer(t)

	s.PublishFrame("c09", encodeTestJPEG(t, 160, 120), testResult().Cameras["c09"])

	stored, ok := s.frames.Get("c09")
	require.True(t, ok)
	_, err := jpeg.Decode(bytes.NewReader(stored))
	assert.NoError(t, err)

	// undecodable input leaves the previous frame in place
	s.PublishFrame("c09", []byte("garbage"), trackproc.ProcessedCamera{})
	still, ok := s.frames.Get("c09")
	require.True(t, ok)
	assert.Equal(t, stored, still)
}
