// Package dashboard serves the browser-facing monitor: JSON state endpoints,
// SSE streams for live updates and an MJPEG stream of the latest frames with
// tracking overlays.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/apiclient"
	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/internal/resilience"
	"github.com/ajisai-dev/multicam-monitor/internal/trackproc"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Config controls the server's streaming cadence.
type Config struct {
	StatusInterval time.Duration // SSE status push period
	SSEKeepalive   time.Duration // comment interval on idle event streams
	MJPEGFallback  time.Duration // blank-frame interval when a camera is idle
	HealthTimeout  time.Duration // budget for backend health probes
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		StatusInterval: time.Second,
		SSEKeepalive:   30 * time.Second,
		MJPEGFallback:  5 * time.Second,
		HealthTimeout:  2 * time.Second,
	}
}

// WSStatusFunc reports the WebSocket client's current state.
type WSStatusFunc func() (types.ConnectionStatus, types.ConnectionQuality, time.Duration)

// Status is the aggregate surfaced at /api/status.
type Status struct {
	WSStatus       types.ConnectionStatus  `json:"websocket_status"`
	WSQuality      types.ConnectionQuality `json:"websocket_quality"`
	HeartbeatRTTMs float64                 `json:"heartbeat_rtt_ms"`
	API            apiclient.HealthStatus  `json:"api"`
	Resilience     resilience.Snapshot     `json:"resilience"`
	Cameras        []string                `json:"cameras"`
	Timestamp      float64                 `json:"timestamp"`
}

// Server ties the processing pipeline to HTTP. Publish methods are called by
// the ingest loop; handlers read the latest published state.
type Server struct {
	cfg       Config
	processor *trackproc.Processor
	monitor   *resilience.Monitor
	api       apiclient.API
	metrics   *metrics.Metrics
	wsStatus  WSStatusFunc
	frames    *FrameStore

	tracking *Broadcaster
	status   *Broadcaster

	mu           sync.Mutex
	frameStreams map[string]*Broadcaster
	latestResult trackproc.Result
	hasResult    bool
}

// NewServer wires the dashboard. metrics may be nil (tests).
func NewServer(cfg Config, processor *trackproc.Processor, monitor *resilience.Monitor,
	api apiclient.API, m *metrics.Metrics, wsStatus WSStatusFunc) *Server {

	def := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.SSEKeepalive <= 0 {
		cfg.SSEKeepalive = def.SSEKeepalive
	}
	if cfg.MJPEGFallback <= 0 {
		cfg.MJPEGFallback = def.MJPEGFallback
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = def.HealthTimeout
	}
	if wsStatus == nil {
		wsStatus = func() (types.ConnectionStatus, types.ConnectionQuality, time.Duration) {
			return types.StatusDisconnected, types.QualityCritical, 0
		}
	}

	return &Server{
		cfg:          cfg,
		processor:    processor,
		monitor:      monitor,
		api:          api,
		metrics:      m,
		wsStatus:     wsStatus,
		frames:       NewFrameStore(),
		tracking:     NewBroadcaster("TrackingBroadcast"),
		status:       NewBroadcaster("StatusBroadcast"),
		frameStreams: make(map[string]*Broadcaster),
	}
}

// Handler returns the HTTP handler for all dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/tracking", s.handleTracking)
	mux.HandleFunc("/api/tracking/stream", s.handleTrackingStream)
	mux.HandleFunc("/api/trajectories", s.handleTrajectories)
	mux.HandleFunc("/api/resilience", s.handleResilience)
	mux.HandleFunc("/api/cameras", s.handleCameras)

	return mux
}

// Stop closes every broadcaster, disconnecting stream clients.
func (s *Server) Stop() {
	s.tracking.Stop()
	s.status.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.frameStreams {
		b.Stop()
	}
}

// PublishTracking records a processed frame and pushes it to tracking-stream
// subscribers.
func (s *Server) PublishTracking(result trackproc.Result) {
	s.mu.Lock()
	s.latestResult = result
	s.hasResult = true
	s.mu.Unlock()

	data, err := json.Marshal(result)
	if err != nil {
		logger.Error("Dashboard", "marshal tracking result: %v", err)
		return
	}
	s.tracking.Publish(data)
}

// PublishFrame renders the overlay for one camera frame, stores it and fans
// it out to that camera's MJPEG subscribers. A frame that fails to decode is
// dropped; the previous frame stays current.
func (s *Server) PublishFrame(cameraID string, jpegData []byte, cam trackproc.ProcessedCamera) {
	rendered, err := renderOverlay(jpegData, cam)
	if err != nil {
		logger.Warn("Dashboard", "camera %s: %v", cameraID, err)
		if s.metrics != nil {
			s.metrics.FramesDropped.Add(1)
		}
		return
	}

	s.frames.Put(cameraID, rendered)
	if s.metrics != nil {
		s.metrics.FramesDecoded.Add(1)
	}
	s.frameStream(cameraID).Publish(rendered)
}

// PublishStatus pushes a status snapshot to status-stream subscribers.
func (s *Server) PublishStatus(status Status) {
	data, err := json.Marshal(status)
	if err != nil {
		logger.Error("Dashboard", "marshal status: %v", err)
		return
	}
	s.status.Publish(data)
}

// frameStream returns the per-camera MJPEG broadcaster, creating it on first
// use.
func (s *Server) frameStream(cameraID string) *Broadcaster {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.frameStreams[cameraID]
	if !ok {
		b = NewBroadcaster("FrameBroadcast/" + cameraID)
		s.frameStreams[cameraID] = b
	}
	return b
}

// BuildStatus assembles the aggregate status, probing backend health within
// the configured timeout.
func (s *Server) BuildStatus(ctx context.Context) Status {
	wsStatus, wsQuality, rtt := s.wsStatus()

	var health apiclient.HealthStatus
	if s.api != nil {
		hctx, cancel := context.WithTimeout(ctx, s.cfg.HealthTimeout)
		health = s.api.Health(hctx)
		cancel()
	}

	var snap resilience.Snapshot
	if s.monitor != nil {
		snap = s.monitor.Latest()
	}

	return Status{
		WSStatus:       wsStatus,
		WSQuality:      wsQuality,
		HeartbeatRTTMs: float64(rtt) / float64(time.Millisecond),
		API:            health,
		Resilience:     snap,
		Cameras:        s.frames.Cameras(),
		Timestamp:      float64(time.Now().Unix()),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.BuildStatus(r.Context()))
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result, ok := s.latestResult, s.hasResult
	s.mu.Unlock()

	if !ok {
		writeJSONWithStatus(w, map[string]any{"error": "no tracking data yet"}, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"result":     result,
		"statistics": trackproc.GetTrackingStatistics(result),
	})
}

func (s *Server) handleTrajectories(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		writeJSON(w, map[string]any{"trajectories": map[string]any{}})
		return
	}
	writeJSON(w, map[string]any{
		"trajectories": s.processor.Trajectories().All(),
	})
}

func (s *Server) handleResilience(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSONWithStatus(w, map[string]any{"error": "resilience monitor disabled"}, http.StatusNotFound)
		return
	}
	writeJSON(w, s.monitor.Latest())
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		writeJSON(w, []apiclient.Camera{})
		return
	}
	cameras, err := s.api.ListCameras(r.Context(), r.URL.Query().Get("environment_id"))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadGateway)
		return
	}
	writeJSON(w, cameras)
}

// handleStatusStream pushes the aggregate status as SSE on a fixed cadence.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setSSEHeaders(w)
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.BuildStatus(r.Context())); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// handleTrackingStream relays published tracking results as SSE with
// keepalive comments while idle.
func (s *Server) handleTrackingStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, events := s.tracking.Subscribe()
	defer s.tracking.Unsubscribe(id)

	setSSEHeaders(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				logger.Debug("Dashboard", "SSE client disconnected: %v", err)
				return
			}
			flusher.Flush()
		case <-time.After(s.cfg.SSEKeepalive):
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleStream serves MJPEG for one camera, selected with ?camera=ID. With
// no parameter the first camera that has a frame is used.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	cameraID := r.URL.Query().Get("camera")
	if cameraID == "" {
		if cams := s.frames.Cameras(); len(cams) > 0 {
			cameraID = cams[0]
		}
	}
	if cameraID == "" {
		http.Error(w, "no camera frames available", http.StatusNotFound)
		return
	}

	id, frameCh := s.frameStream(cameraID).Subscribe()
	defer s.frameStream(cameraID).Unsubscribe(id)
	s.streamMJPEG(w, r, cameraID, frameCh)
}

func (s *Server) streamMJPEG(w http.ResponseWriter, r *http.Request, cameraID string, frameCh <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	blank, err := blankJPEG()
	if err != nil {
		http.Error(w, "Failed to render frame", http.StatusInternalServerError)
		return
	}
	// start from the stored frame so clients see something immediately
	if stored, ok := s.frames.Get(cameraID); ok {
		if err := writeMJPEGPart(w, stored); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		var jpegData []byte
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frameCh:
			if !ok {
				return
			}
			jpegData = data
			if jpegData == nil {
				jpegData = blank
			}
		case <-time.After(s.cfg.MJPEGFallback):
			// idle camera, keep the connection alive
			jpegData = blank
		}

		if err := writeMJPEGPart(w, jpegData); err != nil {
			logger.Debug("Dashboard", "MJPEG client disconnected: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeMJPEGPart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
