// Package resilience condenses connection, frame and API health signals into
// per-component scores and one weighted overall score with a short trend.
// It only reports; it never intervenes in the components it observes.
package resilience

import (
	"sync"
	"time"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Component names used as keys in a snapshot.
const (
	ComponentWebSocket = "websocket"
	ComponentFrames    = "frames"
	ComponentAPI       = "api"
	ComponentErrors    = "errors"
)

// Component weights in the overall score. They sum to 1.
const (
	weightWebSocket = 0.35
	weightFrames    = 0.30
	weightAPI       = 0.20
	weightErrors    = 0.15
)

// Trend values comparing the latest overall score to one window back.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDegrading = "degrading"
)

// trendThreshold is the score movement below which the trend reads stable.
const trendThreshold = 5.0

// historyCap bounds the retained overall-score history.
const historyCap = 60

// Inputs is one evaluation's worth of observed signals. Frame counters are
// cumulative; the monitor differentiates them between evaluations.
type Inputs struct {
	WSStatus       types.ConnectionStatus
	WSQuality      types.ConnectionQuality
	FramesReceived uint64
	FramesDropped  uint64
	APIHealthy     bool
	RecentErrors   int
}

// Snapshot is the result of one evaluation.
type Snapshot struct {
	Overall    float64            `json:"overall"`
	Components map[string]float64 `json:"components"`
	Trend      string             `json:"trend"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Monitor evaluates inputs into scores and keeps the history the trend is
// derived from.
type Monitor struct {
	mu      sync.Mutex
	metrics *metrics.Metrics
	window  int

	lastReceived uint64
	lastDropped  uint64
	history      []float64
	latest       Snapshot
}

// NewMonitor creates a monitor whose trend compares scores window
// evaluations apart. metrics may be nil (tests).
func NewMonitor(window int, m *metrics.Metrics) *Monitor {
	if window <= 0 {
		window = 5
	}
	return &Monitor{metrics: m, window: window}
}

// Evaluate scores the given inputs, records the result in the history and
// returns the snapshot.
func (m *Monitor) Evaluate(in Inputs) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	components := map[string]float64{
		ComponentWebSocket: scoreWebSocket(in.WSStatus, in.WSQuality),
		ComponentFrames:    m.scoreFramesLocked(in.FramesReceived, in.FramesDropped),
		ComponentAPI:       scoreAPI(in.APIHealthy),
		ComponentErrors:    scoreErrors(in.RecentErrors),
	}

	overall := weightWebSocket*components[ComponentWebSocket] +
		weightFrames*components[ComponentFrames] +
		weightAPI*components[ComponentAPI] +
		weightErrors*components[ComponentErrors]

	m.history = append(m.history, overall)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}

	snap := Snapshot{
		Overall:    overall,
		Components: components,
		Trend:      m.trendLocked(),
		Timestamp:  time.Now().UTC(),
	}
	m.latest = snap

	if m.metrics != nil {
		m.metrics.ResilienceScore.Store(uint64(overall + 0.5))
	}
	if overall < 50 {
		logger.Warn("Resilience", "overall score %.1f (%s)", overall, snap.Trend)
	} else {
		logger.Debug("Resilience", "overall score %.1f (%s)", overall, snap.Trend)
	}
	return snap
}

// Latest returns the most recent snapshot. The zero snapshot is returned
// before the first evaluation.
func (m *Monitor) Latest() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func scoreWebSocket(status types.ConnectionStatus, quality types.ConnectionQuality) float64 {
	switch status {
	case types.StatusConnected:
		switch quality {
		case types.QualityExcellent:
			return 100
		case types.QualityGood:
			return 85
		case types.QualityPoor:
			return 60
		default:
			return 35
		}
	case types.StatusConnecting:
		return 50
	case types.StatusDisconnected:
		return 20
	default:
		return 0
	}
}

// scoreFramesLocked scores the drop rate over the interval since the last
// evaluation. An idle interval scores neutral. Callers hold m.mu.
func (m *Monitor) scoreFramesLocked(received, dropped uint64) float64 {
	dRecv := received - m.lastReceived
	dDrop := dropped - m.lastDropped
	m.lastReceived = received
	m.lastDropped = dropped

	if dRecv == 0 {
		return 100
	}
	rate := float64(dDrop) / float64(dRecv)
	if rate > 1 {
		rate = 1
	}
	return 100 * (1 - rate)
}

func scoreAPI(healthy bool) float64 {
	if healthy {
		return 100
	}
	return 0
}

// scoreErrors deducts ten points per recent error, floored at zero.
func scoreErrors(recent int) float64 {
	score := 100 - 10*float64(recent)
	if score < 0 {
		return 0
	}
	return score
}

// trendLocked compares the newest score against the score one window back.
// Callers hold m.mu.
func (m *Monitor) trendLocked() string {
	n := len(m.history)
	if n <= m.window {
		return TrendStable
	}
	diff := m.history[n-1] - m.history[n-1-m.window]
	switch {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDegrading
	default:
		return TrendStable
	}
}
