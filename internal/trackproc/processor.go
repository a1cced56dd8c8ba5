// Package trackproc converts raw per-frame tracking payloads into
// display-ready per-camera structures and maintains cross-frame trajectory
// history keyed by global person identity.
package trackproc

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Options controls payload processing behavior.
type Options struct {
	// ConfidenceThreshold filters out tracks below it. Zero allows all.
	ConfidenceThreshold float64
	// PerPersonColors assigns a palette color per identity. When disabled
	// every track uses FallbackColor.
	PerPersonColors bool
	// FallbackColor is used when per-person coloring is disabled. Empty
	// defaults to defaultColor.
	FallbackColor string
	// DisplayScaling rescales boxes to the camera's display size. When
	// disabled raw source coordinates pass through unchanged.
	DisplayScaling bool
	// TrajectoriesEnabled feeds the trajectory processor on every payload.
	TrajectoriesEnabled bool
	// MaxTrajectoryPoints bounds per-person history (FIFO eviction).
	MaxTrajectoryPoints int
	// SourceSizes maps camera IDs to their native resolution. Cameras not
	// listed use DefaultSourceSize.
	SourceSizes map[string]geom.Size
	// DefaultSourceSize is the assumed camera resolution when none is
	// configured. Zero value defaults to 1920x1080.
	DefaultSourceSize geom.Size
}

// ProcessedTrack is a single display-ready track.
type ProcessedTrack struct {
	TrackID    int              `json:"track_id"`
	GlobalID   string           `json:"global_id,omitempty"`
	CameraID   string           `json:"camera_id"`
	Label      string           `json:"label"`
	Color      string           `json:"color"`
	Confidence float64          `json:"confidence"`
	ClassID    int              `json:"class_id"`
	BBox       geom.BoundingBox `json:"bbox"`
	Center     geom.Point       `json:"center"`
	MapCoords  *geom.Point      `json:"map_coords,omitempty"`
}

// ProcessedCamera holds the display-ready tracks for one camera.
type ProcessedCamera struct {
	CameraID    string           `json:"camera_id"`
	ImageSource string           `json:"image_source"`
	DisplaySize geom.Size        `json:"display_size"`
	Tracks      []ProcessedTrack `json:"tracks"`
}

// Result is the outcome of processing one frame payload. Skipped cameras are
// reported rather than failing the whole payload: one misconfigured camera
// must not block the others.
type Result struct {
	FrameIndex     uint64                     `json:"frame_index"`
	SceneID        string                     `json:"scene_id"`
	Cameras        map[string]ProcessedCamera `json:"cameras"`
	TotalPersons   int                        `json:"total_persons"`
	UniquePersons  int                        `json:"unique_persons"`
	SkippedCameras []string                   `json:"skipped_cameras,omitempty"`
}

// Processor converts frame payloads and feeds trajectory history. Safe for
// use from a single goroutine per instance; the trajectory store has its own
// lock.
type Processor struct {
	mu           sync.Mutex
	opts         Options
	trajectories *TrajectoryProcessor
	metrics      *metrics.Metrics
}

// NewProcessor creates a Processor with the given options. metrics may be
// nil when counters are not wanted (tests).
func NewProcessor(opts Options, m *metrics.Metrics) *Processor {
	if opts.DefaultSourceSize == (geom.Size{}) {
		opts.DefaultSourceSize = geom.Size{Width: 1920, Height: 1080}
	}
	if opts.FallbackColor == "" {
		opts.FallbackColor = defaultColor
	}
	if opts.MaxTrajectoryPoints <= 0 {
		opts.MaxTrajectoryPoints = 100
	}
	return &Processor{
		opts:         opts,
		trajectories: NewTrajectoryProcessor(opts.MaxTrajectoryPoints, opts.TrajectoriesEnabled),
		metrics:      m,
	}
}

// Trajectories exposes the trajectory store.
func (p *Processor) Trajectories() *TrajectoryProcessor {
	return p.trajectories
}

// ProcessPayload converts a frame payload into display-ready data. Cameras
// with no configured display size are skipped with a warning. TotalPersons
// counts every surviving track (duplicates across cameras included);
// UniquePersons counts distinct global IDs, excluding tracks that carry no
// global identity.
func (p *Processor) ProcessPayload(payload types.FramePayload, displaySizes map[string]geom.Size) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := Result{
		FrameIndex: payload.FrameIndex,
		SceneID:    payload.SceneID,
		Cameras:    make(map[string]ProcessedCamera, len(payload.Cameras)),
	}
	uniqueIDs := make(map[string]struct{})
	now := time.Now()

	for _, cameraID := range sortedCameraIDs(payload.Cameras) {
		data := payload.Cameras[cameraID]

		displaySize, ok := displaySizes[cameraID]
		if !ok {
			logger.Warn("TrackProc", "no display size configured for camera %s, skipping", cameraID)
			result.SkippedCameras = append(result.SkippedCameras, cameraID)
			if p.metrics != nil {
				p.metrics.CamerasSkipped.Add(1)
			}
			continue
		}

		cam := ProcessedCamera{
			CameraID:    cameraID,
			ImageSource: data.ImageSource,
			DisplaySize: displaySize,
		}

		sourceSize := p.sourceSizeFor(cameraID)
		for _, track := range data.Tracks {
			if p.opts.ConfidenceThreshold > 0 && track.Confidence < p.opts.ConfidenceThreshold {
				continue
			}

			pt, err := p.processTrack(cameraID, track, sourceSize, displaySize)
			if err != nil {
				logger.Warn("TrackProc", "camera %s track %d: %v", cameraID, track.TrackID, err)
				continue
			}
			cam.Tracks = append(cam.Tracks, pt)

			result.TotalPersons++
			if track.GlobalID != "" {
				uniqueIDs[track.GlobalID] = struct{}{}
				p.trajectories.Update(track.GlobalID, TrajectoryUpdate{
					Position:    pt.Center,
					MapPosition: pt.MapCoords,
					CameraID:    cameraID,
					Confidence:  track.Confidence,
					Timestamp:   now,
				})
			}
			if p.metrics != nil {
				p.metrics.TracksProcessed.Add(1)
			}
		}

		result.Cameras[cameraID] = cam
	}

	result.UniquePersons = len(uniqueIDs)
	if p.metrics != nil {
		p.metrics.PayloadsProcessed.Add(1)
	}
	return result
}

func (p *Processor) processTrack(cameraID string, track types.TrackedPerson,
	sourceSize, displaySize geom.Size) (ProcessedTrack, error) {

	box := geom.ArrayToBoundingBox(track.BBoxXYXY)
	if !geom.ValidBoundingBox(box) {
		return ProcessedTrack{}, fmt.Errorf("bounding box has non-finite coordinates")
	}

	center := box.Center()
	if p.opts.DisplayScaling {
		scaled, err := geom.TransformBoundingBox(box, sourceSize, displaySize, false)
		if err != nil {
			return ProcessedTrack{}, fmt.Errorf("scale bounding box: %w", err)
		}
		box = scaled
		center, err = geom.TransformPoint(center, sourceSize, displaySize, false)
		if err != nil {
			return ProcessedTrack{}, fmt.Errorf("scale center: %w", err)
		}
	}

	pt := ProcessedTrack{
		TrackID:    track.TrackID,
		GlobalID:   track.GlobalID,
		CameraID:   cameraID,
		Label:      trackLabel(track),
		Color:      p.trackColor(cameraID, track),
		Confidence: track.Confidence,
		ClassID:    track.ClassID,
		BBox:       box,
		Center:     center,
	}
	if track.MapCoords != nil {
		mp := geom.ArrayToPoint(*track.MapCoords)
		pt.MapCoords = &mp
	}
	return pt, nil
}

func (p *Processor) sourceSizeFor(cameraID string) geom.Size {
	if s, ok := p.opts.SourceSizes[cameraID]; ok {
		return s
	}
	return p.opts.DefaultSourceSize
}

// FindPersonAcrossCameras returns every processed track matching the global
// ID, in sorted camera order.
func FindPersonAcrossCameras(result Result, globalID string) []ProcessedTrack {
	var matches []ProcessedTrack
	for _, cameraID := range sortedKeys(result.Cameras) {
		for _, track := range result.Cameras[cameraID].Tracks {
			if track.GlobalID == globalID {
				matches = append(matches, track)
			}
		}
	}
	return matches
}

func sortedCameraIDs(cameras map[string]types.CameraTrackingData) []string {
	ids := make([]string, 0, len(cameras))
	for id := range cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(cameras map[string]ProcessedCamera) []string {
	ids := make([]string, 0, len(cameras))
	for id := range cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
