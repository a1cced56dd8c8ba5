package trackproc

import (
	"gonum.org/v1/gonum/stat"
)

// CameraStatistics summarizes one camera's processed tracks.
type CameraStatistics struct {
	Detections        int     `json:"detections"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Statistics aggregates a processed frame across cameras.
type Statistics struct {
	TotalDetections   int                         `json:"total_detections"`
	UniquePersons     int                         `json:"unique_persons"`
	AverageConfidence float64                     `json:"average_confidence"`
	PerCamera         map[string]CameraStatistics `json:"per_camera"`
}

// GetTrackingStatistics reduces an already-processed result into detection
// counts and confidence means. Input sizes are bounded by the number of
// on-screen tracks, so a plain mean is sufficient.
func GetTrackingStatistics(result Result) Statistics {
	stats := Statistics{
		UniquePersons: result.UniquePersons,
		PerCamera:     make(map[string]CameraStatistics, len(result.Cameras)),
	}

	var all []float64
	for cameraID, cam := range result.Cameras {
		confidences := make([]float64, 0, len(cam.Tracks))
		for _, track := range cam.Tracks {
			confidences = append(confidences, track.Confidence)
		}
		all = append(all, confidences...)

		cs := CameraStatistics{Detections: len(cam.Tracks)}
		if len(confidences) > 0 {
			cs.AverageConfidence = stat.Mean(confidences, nil)
		}
		stats.PerCamera[cameraID] = cs
		stats.TotalDetections += len(cam.Tracks)
	}

	if len(all) > 0 {
		stats.AverageConfidence = stat.Mean(all, nil)
	}
	return stats
}
