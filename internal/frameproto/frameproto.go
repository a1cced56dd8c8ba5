// Package frameproto encodes and decodes the compact binary frame format
// used for high-rate frame delivery over the WebSocket. The layout is
// little-endian throughout and declared through named field-width constants;
// decoding advances through a bounds-checked cursor so truncated or corrupt
// input fails with a positioned error instead of a panic.
package frameproto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Field widths, in bytes.
const (
	fieldFrameIndex = 8
	fieldLength     = 4 // all length prefixes and counts
	fieldTrackID    = 4
	fieldCoord      = 4 // one float32 coordinate
	fieldConfidence = 4
	fieldClassID    = 2
	fieldFlags      = 1
	headerReserved  = 12

	// headerSize is the fixed prefix before the variable-length sections.
	headerSize = fieldFrameIndex + 3*fieldLength + headerReserved

	// trackBaseSize is a track record without the optional map coordinates.
	trackBaseSize = fieldTrackID + 4*fieldCoord + fieldConfidence + fieldClassID + fieldFlags

	// flagHasMapCoords gates the trailing 2×float32 map position.
	flagHasMapCoords = 0x01
)

// maxSectionLen rejects length prefixes that cannot be legitimate, keeping a
// corrupt frame from triggering a huge allocation.
const maxSectionLen = 64 << 20

// cameraMetadata is the JSON blob trailing each camera record. It carries
// the fields that have no fixed-width encoding.
type cameraMetadata struct {
	ImageSource string         `json:"image_source,omitempty"`
	GlobalIDs   map[string]int `json:"global_ids,omitempty"` // global ID -> track ID
}

// CameraFrame is one camera's slice of a decoded binary frame.
type CameraFrame struct {
	CameraID    string
	JPEG        []byte
	ImageSource string
	Tracks      []types.TrackedPerson
}

// Frame is a fully decoded binary frame.
type Frame struct {
	FrameIndex   uint64
	SceneID      string
	TimestampUTC string
	Cameras      []CameraFrame
}

// cursor reads fixed-width fields from a buffer, tracking its offset and
// refusing to read past the end.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) need(n int, what string) error {
	if n < 0 || c.off+n > len(c.buf) {
		return fmt.Errorf("truncated frame: need %d bytes for %s at offset %d, have %d",
			n, what, c.off, len(c.buf)-c.off)
	}
	return nil
}

func (c *cursor) uint64(what string) (uint64, error) {
	if err := c.need(fieldFrameIndex, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.off:])
	c.off += fieldFrameIndex
	return v, nil
}

func (c *cursor) uint32(what string) (uint32, error) {
	if err := c.need(fieldLength, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += fieldLength
	return v, nil
}

func (c *cursor) uint16(what string) (uint16, error) {
	if err := c.need(fieldClassID, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += fieldClassID
	return v, nil
}

func (c *cursor) byte(what string) (byte, error) {
	if err := c.need(fieldFlags, what); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off += fieldFlags
	return v, nil
}

func (c *cursor) float32(what string) (float64, error) {
	v, err := c.uint32(what)
	if err != nil {
		return 0, err
	}
	return float64(math.Float32frombits(v)), nil
}

// bytes returns a section of the given length. The slice is copied so the
// decoded frame does not pin the network buffer.
func (c *cursor) bytes(n int, what string) ([]byte, error) {
	if n > maxSectionLen {
		return nil, fmt.Errorf("corrupt frame: %s length %d exceeds limit at offset %d", what, n, c.off)
	}
	if err := c.need(n, what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

func (c *cursor) prefixed(what string) ([]byte, error) {
	n, err := c.uint32(what + " length")
	if err != nil {
		return nil, err
	}
	return c.bytes(int(n), what)
}

// Decode parses a complete binary frame.
func Decode(data []byte) (Frame, error) {
	cur := &cursor{buf: data}

	frameIndex, err := cur.uint64("frame index")
	if err != nil {
		return Frame{}, err
	}
	sceneLen, err := cur.uint32("scene id length")
	if err != nil {
		return Frame{}, err
	}
	tsLen, err := cur.uint32("timestamp length")
	if err != nil {
		return Frame{}, err
	}
	cameraCount, err := cur.uint32("camera count")
	if err != nil {
		return Frame{}, err
	}
	if _, err := cur.bytes(headerReserved, "reserved header bytes"); err != nil {
		return Frame{}, err
	}

	sceneID, err := cur.bytes(int(sceneLen), "scene id")
	if err != nil {
		return Frame{}, err
	}
	timestamp, err := cur.bytes(int(tsLen), "timestamp")
	if err != nil {
		return Frame{}, err
	}

	frame := Frame{
		FrameIndex:   frameIndex,
		SceneID:      string(sceneID),
		TimestampUTC: string(timestamp),
		Cameras:      make([]CameraFrame, 0, cameraCount),
	}

	for i := uint32(0); i < cameraCount; i++ {
		cam, err := decodeCamera(cur)
		if err != nil {
			return Frame{}, fmt.Errorf("camera %d/%d: %w", i+1, cameraCount, err)
		}
		frame.Cameras = append(frame.Cameras, cam)
	}

	if cur.off != len(data) {
		return Frame{}, fmt.Errorf("corrupt frame: %d trailing bytes after offset %d", len(data)-cur.off, cur.off)
	}
	return frame, nil
}

func decodeCamera(cur *cursor) (CameraFrame, error) {
	idBytes, err := cur.prefixed("camera id")
	if err != nil {
		return CameraFrame{}, err
	}
	jpeg, err := cur.prefixed("jpeg")
	if err != nil {
		return CameraFrame{}, err
	}
	trackCount, err := cur.uint32("track count")
	if err != nil {
		return CameraFrame{}, err
	}

	cam := CameraFrame{
		CameraID: string(idBytes),
		JPEG:     jpeg,
		Tracks:   make([]types.TrackedPerson, 0, trackCount),
	}

	for i := uint32(0); i < trackCount; i++ {
		track, err := decodeTrack(cur)
		if err != nil {
			return CameraFrame{}, fmt.Errorf("track %d/%d: %w", i+1, trackCount, err)
		}
		cam.Tracks = append(cam.Tracks, track)
	}

	metaBytes, err := cur.prefixed("camera metadata")
	if err != nil {
		return CameraFrame{}, err
	}
	if len(metaBytes) > 0 {
		var meta cameraMetadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return CameraFrame{}, fmt.Errorf("camera metadata: %w", err)
		}
		cam.ImageSource = meta.ImageSource
		applyGlobalIDs(cam.Tracks, meta.GlobalIDs)
	}
	return cam, nil
}

func decodeTrack(cur *cursor) (types.TrackedPerson, error) {
	var track types.TrackedPerson

	trackID, err := cur.uint32("track id")
	if err != nil {
		return track, err
	}
	track.TrackID = int(trackID)

	for i := range track.BBoxXYXY {
		v, err := cur.float32("bbox coordinate")
		if err != nil {
			return track, err
		}
		track.BBoxXYXY[i] = v
	}

	conf, err := cur.float32("confidence")
	if err != nil {
		return track, err
	}
	track.Confidence = conf

	classID, err := cur.uint16("class id")
	if err != nil {
		return track, err
	}
	track.ClassID = int(classID)

	flags, err := cur.byte("flags")
	if err != nil {
		return track, err
	}
	if flags&flagHasMapCoords != 0 {
		var coords [2]float64
		for i := range coords {
			v, err := cur.float32("map coordinate")
			if err != nil {
				return track, err
			}
			coords[i] = v
		}
		track.MapCoords = &coords
	}
	return track, nil
}

// applyGlobalIDs attaches cross-camera identities from the metadata blob to
// the fixed-width track records they belong to.
func applyGlobalIDs(tracks []types.TrackedPerson, ids map[string]int) {
	if len(ids) == 0 {
		return
	}
	byTrackID := make(map[int]string, len(ids))
	for globalID, trackID := range ids {
		byTrackID[trackID] = globalID
	}
	for i := range tracks {
		if globalID, ok := byTrackID[tracks[i].TrackID]; ok {
			tracks[i].GlobalID = globalID
		}
	}
}

// Payload converts a decoded frame to the JSON-path payload shape so both
// transports feed the processor identically.
func (f Frame) Payload() types.FramePayload {
	payload := types.FramePayload{
		FrameIndex:   f.FrameIndex,
		SceneID:      f.SceneID,
		TimestampUTC: f.TimestampUTC,
		Cameras:      make(map[string]types.CameraTrackingData, len(f.Cameras)),
	}
	for _, cam := range f.Cameras {
		payload.Cameras[cam.CameraID] = types.CameraTrackingData{
			ImageSource: cam.ImageSource,
			Tracks:      cam.Tracks,
		}
	}
	return payload
}
