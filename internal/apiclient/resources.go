package apiclient

import (
	"time"

	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
)

// Environment is a monitored site containing cameras.
type Environment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CameraCount int    `json:"camera_count"`
}

// Camera is one registered video source.
type Camera struct {
	ID            string    `json:"id"`
	EnvironmentID string    `json:"environment_id"`
	Name          string    `json:"name"`
	StreamURL     string    `json:"stream_url"`
	SourceWidth   int       `json:"source_width"`
	SourceHeight  int       `json:"source_height"`
	Active        bool      `json:"active"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// Detection is one stored person detection.
type Detection struct {
	ID         string     `json:"id"`
	CameraID   string     `json:"camera_id"`
	TrackID    int        `json:"track_id"`
	GlobalID   string     `json:"global_id,omitempty"`
	BBoxXYXY   [4]float64 `json:"bbox_xyxy"`
	Confidence float64    `json:"confidence"`
	DetectedAt time.Time  `json:"detected_at"`
}

// TrackingResults summarizes one processed scene.
type TrackingResults struct {
	SceneID       string      `json:"scene_id"`
	FrameCount    uint64      `json:"frame_count"`
	UniquePersons int         `json:"unique_persons"`
	Detections    []Detection `json:"detections"`
}

// TrackingStatistics is the backend's aggregate over a scene.
type TrackingStatistics struct {
	SceneID            string             `json:"scene_id"`
	TotalDetections    int                `json:"total_detections"`
	UniquePersons      int                `json:"unique_persons"`
	AverageConfidence  float64            `json:"average_confidence"`
	DetectionsByCamera map[string]int     `json:"detections_by_camera"`
	DwellSeconds       map[string]float64 `json:"dwell_seconds,omitempty"`
}

// SpatialMapping describes a camera's image-to-floorplan calibration.
type SpatialMapping struct {
	CameraID   string       `json:"camera_id"`
	Homography [9]float64   `json:"homography"`
	MapOrigin  geom.Point   `json:"map_origin"`
	MapExtent  geom.Size    `json:"map_extent"`
	Landmarks  []geom.Point `json:"landmarks,omitempty"`
}

// TrajectoryAnalysis is the backend's movement summary for one identity.
type TrajectoryAnalysis struct {
	GlobalID       string       `json:"global_id"`
	PointCount     int          `json:"point_count"`
	TotalDistance  float64      `json:"total_distance"`
	AverageSpeed   float64      `json:"average_speed"`
	CamerasVisited []string     `json:"cameras_visited"`
	Path           []geom.Point `json:"path,omitempty"`
}

// HealthStatus is the structured result of a health probe. Transport
// failures populate Error instead of surfacing as a Go error.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ns"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}
