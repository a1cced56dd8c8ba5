// Command monitor runs the multi-camera tracking dashboard: it ingests
// tracking frames from the backend over WebSocket (or from the built-in mock
// generator), processes them into display-ready state and serves the browser
// dashboard plus Prometheus metrics.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/apiclient"
	"github.com/ajisai-dev/multicam-monitor/internal/config"
	"github.com/ajisai-dev/multicam-monitor/internal/dashboard"
	"github.com/ajisai-dev/multicam-monitor/internal/frameproto"
	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/internal/resilience"
	"github.com/ajisai-dev/multicam-monitor/internal/trackproc"
	"github.com/ajisai-dev/multicam-monitor/internal/wsclient"
	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

const (
	evaluateInterval = 5 * time.Second
	mockFramePeriod  = 100 * time.Millisecond
)

type app struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	processor *trackproc.Processor
	monitor   *resilience.Monitor
	api       apiclient.API
	ws        *wsclient.Client
	dash      *dashboard.Server

	mu           sync.Mutex
	recentErrors int
}

func main() {
	cfg := config.Load()

	dashboardAddr := flag.String("dashboard-addr", cfg.DashboardAddr, "dashboard listen address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "metrics listen address")
	mock := flag.Bool("mock", cfg.MockMode, "serve synthetic data instead of connecting to a backend")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (debug|info|warn|error|silent)")
	flag.Parse()

	cfg.DashboardAddr = *dashboardAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.MockMode = *mock
	cfg.LogLevel = *logLevel

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	logger.Init(level, os.Stdout, cfg.LogColor)

	if err := cfg.Validate(); err != nil {
		logger.Error("Main", "invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Main", "%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	a := &app{
		cfg:     cfg,
		metrics: m,
		processor: trackproc.NewProcessor(trackproc.Options{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			PerPersonColors:     cfg.PerPersonColors,
			DisplayScaling:      cfg.DisplayScaling,
			TrajectoriesEnabled: cfg.TrajectoriesEnabled,
			MaxTrajectoryPoints: cfg.MaxTrajectoryPoints,
		}, m),
		monitor: resilience.NewMonitor(5, m),
	}

	if cfg.MockMode {
		logger.Info("Main", "mock mode: serving synthetic data")
		a.api = apiclient.NewMockClient("mock-scene")
		if len(cfg.DisplaySizes) == 0 {
			// the mock environment's two cameras
			cfg.DisplaySizes = map[string]geom.Size{
				"c09": {Width: 960, Height: 540},
				"c12": {Width: 640, Height: 360},
			}
		}
	} else {
		a.api = apiclient.NewClient(cfg.APIBaseURL, 10*time.Second)
		a.ws = wsclient.New(wsclient.Options{
			URL:                  cfg.WSURL,
			HeartbeatInterval:    cfg.HeartbeatInterval,
			ReconnectBase:        cfg.ReconnectBase,
			ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
			ReconnectMaxAttempts: cfg.ReconnectMaxAttempts,
		}, m)
	}

	a.dash = dashboard.NewServer(dashboard.DefaultConfig(),
		a.processor, a.monitor, a.api, m, a.wsStatus)

	if a.ws != nil {
		a.ws.OnMessage(types.MessageFrameData, a.handleJSONFrame)
		a.ws.OnMessage(types.MessageTrackingUpdate, a.handleJSONFrame)
		a.ws.OnMessage(types.MessageBinary, a.handleBinaryFrame)
		a.ws.Start()
		defer a.ws.Stop()
	}

	httpServer := &http.Server{
		Addr:    cfg.DashboardAddr,
		Handler: a.dash.Handler(),
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("Main", "dashboard listening on %s", cfg.DashboardAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("dashboard server: %w", err)
		}
	}()
	go func() {
		logger.Info("Main", "metrics listening on %s", cfg.MetricsAddr)
		if err := m.StartServer(cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go a.evaluateLoop(ctx)
	if cfg.MockMode {
		go a.mockLoop(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("Main", "shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.dash.Stop()
	return httpServer.Shutdown(shutdownCtx)
}

func (a *app) wsStatus() (types.ConnectionStatus, types.ConnectionQuality, time.Duration) {
	if a.ws == nil {
		// mock mode has no transport to degrade
		return types.StatusConnected, types.QualityExcellent, 0
	}
	status, quality := a.ws.Status()
	return status, quality, a.ws.LastRTT()
}

// handleJSONFrame processes a frame delivered as a JSON envelope.
func (a *app) handleJSONFrame(msg wsclient.Message) {
	var payload types.FramePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logger.Warn("Main", "malformed %s payload: %v", msg.Type, err)
		a.noteError()
		return
	}
	a.ingest(payload, nil)
}

// handleBinaryFrame decodes the compact binary format and feeds it through
// the same pipeline as JSON frames.
func (a *app) handleBinaryFrame(msg wsclient.Message) {
	frame, err := frameproto.Decode(msg.Binary)
	if err != nil {
		logger.Warn("Main", "binary frame: %v", err)
		a.metrics.FramesDropped.Add(1)
		a.noteError()
		return
	}

	jpegs := make(map[string][]byte, len(frame.Cameras))
	for _, cam := range frame.Cameras {
		if len(cam.JPEG) > 0 {
			jpegs[cam.CameraID] = cam.JPEG
		}
	}
	a.ingest(frame.Payload(), jpegs)
}

// ingest runs one payload through the processor and publishes the outcome.
// jpegs carries per-camera images for cameras that sent one.
func (a *app) ingest(payload types.FramePayload, jpegs map[string][]byte) {
	result := a.processor.ProcessPayload(payload, a.cfg.DisplaySizes)
	a.dash.PublishTracking(result)

	for cameraID, cam := range result.Cameras {
		img := jpegs[cameraID]
		if img == nil {
			if data := payload.Cameras[cameraID].FrameImageBase64; data != "" {
				decoded, err := decodeBase64Image(data)
				if err != nil {
					logger.Warn("Main", "camera %s inline image: %v", cameraID, err)
					continue
				}
				img = decoded
			}
		}
		if img != nil {
			a.dash.PublishFrame(cameraID, img, cam)
		}
	}
}

// decodeBase64Image accepts raw base64 or a data URL.
func decodeBase64Image(data string) ([]byte, error) {
	if idx := strings.Index(data, ","); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	return base64.StdEncoding.DecodeString(data)
}

func (a *app) noteError() {
	a.mu.Lock()
	a.recentErrors++
	a.mu.Unlock()
}

// takeRecentErrors returns and resets the error count for one evaluation
// window.
func (a *app) takeRecentErrors() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.recentErrors
	a.recentErrors = 0
	return n
}

// evaluateLoop periodically scores system health and pushes the status to
// dashboard subscribers.
func (a *app) evaluateLoop(ctx context.Context) {
	ticker := time.NewTicker(evaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, quality, _ := a.wsStatus()
		health := a.api.Health(ctx)

		a.monitor.Evaluate(resilience.Inputs{
			WSStatus:       status,
			WSQuality:      quality,
			FramesReceived: a.metrics.FramesReceived.Load(),
			FramesDropped:  a.metrics.FramesDropped.Load(),
			APIHealthy:     health.Healthy,
			RecentErrors:   a.takeRecentErrors(),
		})

		a.dash.PublishStatus(a.dash.BuildStatus(ctx))
	}
}

// mockLoop feeds the pipeline from the synthetic generator, round-tripping
// each frame through the binary codec so the wire path stays exercised.
func (a *app) mockLoop(ctx context.Context) {
	mock, ok := a.api.(*apiclient.MockClient)
	if !ok {
		return
	}

	ticker := time.NewTicker(mockFramePeriod)
	defer ticker.Stop()

	var index uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		encoded, err := frameproto.Encode(mock.GenerateFrame(index))
		if err != nil {
			logger.Error("Main", "encode mock frame: %v", err)
			return
		}
		a.metrics.FramesReceived.Add(1)
		a.handleBinaryFrame(wsclient.Message{
			Envelope: types.Envelope{Type: types.MessageBinary, Timestamp: time.Now().UTC()},
			Binary:   encoded,
		})
		index++
	}
}
