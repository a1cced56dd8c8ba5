// Package types holds the wire-level data model shared by the WebSocket
// client, the tracking processor and the dashboard server.
package types

import (
	"encoding/json"
	"time"
)

// Message type strings carried in the envelope.
const (
	MessageFrameData      = "frame_data"
	MessageTrackingUpdate = "tracking_update"
	MessageSystemStatus   = "system_status"
	MessageHealthCheck    = "health_check"
	MessageHeartbeat      = "heartbeat"
	// MessageBinary is synthetic: assigned to opaque binary frames so they
	// flow through the same dispatch path as JSON messages.
	MessageBinary = "binary"
)

// Envelope is the JSON wrapper around every WebSocket message.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
}

// TrackedPerson is a single detection in one camera for one frame. Instances
// are immutable per message; the next frame's payload supersedes them.
type TrackedPerson struct {
	TrackID    int         `json:"track_id"`
	GlobalID   string      `json:"global_id,omitempty"`
	BBoxXYXY   [4]float64  `json:"bbox_xyxy"`
	Confidence float64     `json:"confidence"`
	ClassID    int         `json:"class_id"`
	MapCoords  *[2]float64 `json:"map_coords,omitempty"`
}

// CameraTrackingData is the per-camera container inside a frame payload.
type CameraTrackingData struct {
	ImageSource      string          `json:"image_source"`
	FrameImageBase64 string          `json:"frame_image_base64,omitempty"`
	Tracks           []TrackedPerson `json:"tracks"`
}

// FramePayload is the body of a frame_data message.
type FramePayload struct {
	FrameIndex   uint64                        `json:"frame_index"`
	SceneID      string                        `json:"scene_id"`
	TimestampUTC string                        `json:"timestamp_utc"`
	Cameras      map[string]CameraTrackingData `json:"cameras"`
}

// ConnectionStatus is the lifecycle state of a channel (REST or WebSocket).
// It is never persisted; it is rebuilt on every health check.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// ConnectionQuality classifies measured heartbeat round-trip latency.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityPoor      ConnectionQuality = "poor"
	QualityCritical  ConnectionQuality = "critical"
)
