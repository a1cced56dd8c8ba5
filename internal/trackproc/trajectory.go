package trackproc

import (
	"math"
	"sync"
	"time"

	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
)

// TrajectoryPoint is one observation in a person's history.
type TrajectoryPoint struct {
	Position    geom.Point  `json:"position"`
	MapPosition *geom.Point `json:"map_position,omitempty"`
	CameraID    string      `json:"camera_id"`
	Confidence  float64     `json:"confidence"`
	Timestamp   time.Time   `json:"timestamp"`
}

// TrajectoryUpdate carries the fields appended on each observation.
type TrajectoryUpdate struct {
	Position    geom.Point
	MapPosition *geom.Point
	CameraID    string
	Confidence  float64
	Timestamp   time.Time
}

// Trajectory is the bounded, time-ordered history for one global ID.
// TotalDistance and AverageSpeed are maintained incrementally as points are
// appended and evicted.
type Trajectory struct {
	GlobalID      string            `json:"global_id"`
	Points        []TrajectoryPoint `json:"points"`
	TotalDistance float64           `json:"total_distance"`
	AverageSpeed  float64           `json:"average_speed"`
}

// TrajectoryProcessor owns per-person trajectories. All mutation goes
// through its lock; eviction is FIFO so recent continuity is preserved.
type TrajectoryProcessor struct {
	mu        sync.Mutex
	maxPoints int
	enabled   bool
	people    map[string]*Trajectory
}

// NewTrajectoryProcessor creates a store capped at maxPoints per person.
// When disabled, updates are no-ops.
func NewTrajectoryProcessor(maxPoints int, enabled bool) *TrajectoryProcessor {
	return &TrajectoryProcessor{
		maxPoints: maxPoints,
		enabled:   enabled,
		people:    make(map[string]*Trajectory),
	}
}

// Update appends an observation for the given global ID, evicting the oldest
// point once the cap is exceeded and recomputing the derived distance and
// speed incrementally.
func (tp *TrajectoryProcessor) Update(globalID string, u TrajectoryUpdate) {
	if !tp.enabled || globalID == "" {
		return
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()

	traj, ok := tp.people[globalID]
	if !ok {
		traj = &Trajectory{GlobalID: globalID}
		tp.people[globalID] = traj
	}

	point := TrajectoryPoint{
		Position:    u.Position,
		MapPosition: u.MapPosition,
		CameraID:    u.CameraID,
		Confidence:  u.Confidence,
		Timestamp:   u.Timestamp,
	}

	if n := len(traj.Points); n > 0 {
		traj.TotalDistance += distance(traj.Points[n-1].Position, point.Position)
	}
	traj.Points = append(traj.Points, point)

	// FIFO eviction: drop the oldest point and the segment it anchored.
	for len(traj.Points) > tp.maxPoints {
		traj.TotalDistance -= distance(traj.Points[0].Position, traj.Points[1].Position)
		if traj.TotalDistance < 0 {
			traj.TotalDistance = 0
		}
		traj.Points = traj.Points[1:]
	}

	traj.AverageSpeed = 0
	if len(traj.Points) > 1 {
		elapsed := traj.Points[len(traj.Points)-1].Timestamp.Sub(traj.Points[0].Timestamp).Seconds()
		if elapsed > 0 {
			traj.AverageSpeed = traj.TotalDistance / elapsed
		}
	}
}

// Get returns a copy of one person's trajectory.
func (tp *TrajectoryProcessor) Get(globalID string) (Trajectory, bool) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	traj, ok := tp.people[globalID]
	if !ok {
		return Trajectory{}, false
	}
	return copyTrajectory(traj), true
}

// All returns copies of every trajectory keyed by global ID.
func (tp *TrajectoryProcessor) All() map[string]Trajectory {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	out := make(map[string]Trajectory, len(tp.people))
	for id, traj := range tp.people {
		out[id] = copyTrajectory(traj)
	}
	return out
}

// Clear removes one person's history.
func (tp *TrajectoryProcessor) Clear(globalID string) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	delete(tp.people, globalID)
}

// ClearAll removes every trajectory.
func (tp *TrajectoryProcessor) ClearAll() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.people = make(map[string]*Trajectory)
}

func copyTrajectory(traj *Trajectory) Trajectory {
	points := make([]TrajectoryPoint, len(traj.Points))
	copy(points, traj.Points)
	return Trajectory{
		GlobalID:      traj.GlobalID,
		Points:        points,
		TotalDistance: traj.TotalDistance,
		AverageSpeed:  traj.AverageSpeed,
	}
}

func distance(a, b geom.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
