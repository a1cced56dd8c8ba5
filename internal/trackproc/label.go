package trackproc

import (
	"fmt"
	"hash/fnv"

	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// defaultColor is used whenever per-person coloring is disabled.
const defaultColor = "#00FF00"

// palette holds visually distinct display colors assigned per identity.
var palette = []string{
	"#FF3838", "#FF701F", "#FFB21D", "#CFD231", "#48F90A",
	"#1A9334", "#00D4BB", "#00C2FF", "#344593", "#6473FF",
	"#0018EC", "#8438FF", "#520085", "#FF95C8", "#FF37C7",
	"#FF9D97", "#2C99A8", "#3DDB86", "#CB38FF", "#92CC17",
}

// shortIDLen is how many leading characters of a global ID appear in labels.
const shortIDLen = 8

// trackLabel builds the human-readable label for a track. Priority order:
// shortened global ID with confidence percent, global ID alone, track ID
// with confidence percent, bare track ID.
func trackLabel(track types.TrackedPerson) string {
	if track.GlobalID != "" {
		if track.Confidence > 0 {
			return fmt.Sprintf("%s %.0f%%", shortGlobalID(track.GlobalID), track.Confidence*100)
		}
		return track.GlobalID
	}
	if track.Confidence > 0 {
		return fmt.Sprintf("Track %d %.0f%%", track.TrackID, track.Confidence*100)
	}
	return fmt.Sprintf("Track %d", track.TrackID)
}

func shortGlobalID(globalID string) string {
	if len(globalID) <= shortIDLen {
		return globalID
	}
	return globalID[:shortIDLen]
}

// trackColor picks the display color for a track. Identities hash into the
// palette so a person keeps one color across cameras and frames; tracks
// without a global ID fall back to a per-camera-local key.
func (p *Processor) trackColor(cameraID string, track types.TrackedPerson) string {
	if !p.opts.PerPersonColors {
		return p.opts.FallbackColor
	}

	key := track.GlobalID
	if key == "" {
		key = fmt.Sprintf("%s/%d", cameraID, track.TrackID)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return palette[h.Sum32()%uint32(len(palette))]
}
