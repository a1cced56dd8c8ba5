package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/frameproto"
	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// MockClient serves deterministic synthetic data so the dashboard can run
// without a backend. The same inputs always produce the same outputs.
type MockClient struct {
	sceneID   string
	cameras   []Camera
	frameJPEG []byte
}

// NewMockClient creates a mock backend with a fixed two-camera environment.
func NewMockClient(sceneID string) *MockClient {
	if sceneID == "" {
		sceneID = "mock-scene"
	}
	registered := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	return &MockClient{
		sceneID:   sceneID,
		frameJPEG: placeholderJPEG(),
		cameras: []Camera{
			{
				ID: "c09", EnvironmentID: "env-mock", Name: "Entrance",
				StreamURL: "rtsp://mock/c09", SourceWidth: 1920, SourceHeight: 1080,
				Active: true, RegisteredAt: registered,
			},
			{
				ID: "c12", EnvironmentID: "env-mock", Name: "Aisle",
				StreamURL: "rtsp://mock/c12", SourceWidth: 1280, SourceHeight: 720,
				Active: true, RegisteredAt: registered,
			},
		},
	}
}

func (m *MockClient) ListEnvironments(context.Context) ([]Environment, error) {
	return []Environment{
		{ID: "env-mock", Name: "Mock Warehouse", CameraCount: len(m.cameras)},
	}, nil
}

func (m *MockClient) ListCameras(_ context.Context, environmentID string) ([]Camera, error) {
	if environmentID != "" && environmentID != "env-mock" {
		return nil, nil
	}
	out := make([]Camera, len(m.cameras))
	copy(out, m.cameras)
	return out, nil
}

func (m *MockClient) GetDetections(_ context.Context, cameraID string, limit int) ([]Detection, error) {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	var out []Detection
	for _, cam := range m.cameras {
		if cameraID != "" && cam.ID != cameraID {
			continue
		}
		for i := 0; i < 5; i++ {
			out = append(out, Detection{
				ID:         fmt.Sprintf("det-%s-%d", cam.ID, i),
				CameraID:   cam.ID,
				TrackID:    i + 1,
				GlobalID:   fmt.Sprintf("person_%03d", i%3+1),
				BBoxXYXY:   mockBBox(uint64(i), cam.ID),
				Confidence: 0.6 + 0.08*float64(i),
				DetectedAt: base.Add(time.Duration(i) * time.Second),
			})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockClient) GetTrackingResults(ctx context.Context, sceneID string) (TrackingResults, error) {
	detections, _ := m.GetDetections(ctx, "", 0)
	return TrackingResults{
		SceneID:       sceneID,
		FrameCount:    1200,
		UniquePersons: 3,
		Detections:    detections,
	}, nil
}

func (m *MockClient) GetTrackingStatistics(_ context.Context, sceneID string) (TrackingStatistics, error) {
	return TrackingStatistics{
		SceneID:           sceneID,
		TotalDetections:   10,
		UniquePersons:     3,
		AverageConfidence: 0.76,
		DetectionsByCamera: map[string]int{
			"c09": 5,
			"c12": 5,
		},
	}, nil
}

func (m *MockClient) GetSpatialMapping(_ context.Context, cameraID string) (SpatialMapping, error) {
	return SpatialMapping{
		CameraID:   cameraID,
		Homography: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		MapExtent:  geom.Size{Width: 50, Height: 30},
	}, nil
}

func (m *MockClient) GetTrajectoryAnalysis(_ context.Context, globalID string) (TrajectoryAnalysis, error) {
	return TrajectoryAnalysis{
		GlobalID:       globalID,
		PointCount:     48,
		TotalDistance:  23.5,
		AverageSpeed:   1.2,
		CamerasVisited: []string{"c09", "c12"},
	}, nil
}

func (m *MockClient) Health(context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Status:    "ok",
		Latency:   3 * time.Millisecond,
		CheckedAt: time.Now().UTC(),
	}
}

// GenerateFrame produces the synthetic binary frame for the given index.
// People orbit fixed centers so consecutive frames animate smoothly and any
// index reproduces the same frame.
func (m *MockClient) GenerateFrame(index uint64) frameproto.Frame {
	ts := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC).
		Add(time.Duration(index) * 100 * time.Millisecond)

	frame := frameproto.Frame{
		FrameIndex:   index,
		SceneID:      m.sceneID,
		TimestampUTC: ts.Format(time.RFC3339),
	}
	for _, cam := range m.cameras {
		camFrame := frameproto.CameraFrame{
			CameraID:    cam.ID,
			ImageSource: cam.StreamURL,
			JPEG:        m.frameJPEG,
		}
		for i := 0; i < 3; i++ {
			bbox := mockBBox(index+uint64(i)*17, cam.ID)
			coords := [2]float64{bbox[0] / 40, bbox[1] / 40}
			camFrame.Tracks = append(camFrame.Tracks, types.TrackedPerson{
				TrackID:    i + 1,
				GlobalID:   fmt.Sprintf("person_%03d", i+1),
				BBoxXYXY:   bbox,
				Confidence: 0.65 + 0.1*float64(i),
				MapCoords:  &coords,
			})
		}
		frame.Cameras = append(frame.Cameras, camFrame)
	}
	return frame
}

// placeholderJPEG renders the flat backdrop embedded in every mock frame.
// Overlays are drawn downstream, so a plain image is enough.
func placeholderJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	bg := color.RGBA{R: 24, G: 28, B: 34, A: 255}
	for y := 0; y < 1080; y++ {
		for x := 0; x < 1920; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return nil
	}
	return buf.Bytes()
}

// mockBBox places a person-sized box on a circular path derived from the
// frame index and camera ID.
func mockBBox(index uint64, cameraID string) [4]float64 {
	var seed float64
	for _, r := range cameraID {
		seed += float64(r)
	}
	angle := float64(index)/30*2*math.Pi + seed
	cx := 960 + 400*math.Cos(angle)
	cy := 540 + 200*math.Sin(angle)
	return [4]float64{cx - 60, cy - 180, cx + 60, cy + 180}
}
