package frameproto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Encode serializes a frame into the binary wire format. The mock data
// generator and the codec tests are its main consumers.
func Encode(frame Frame) ([]byte, error) {
	buf := make([]byte, 0, headerSize+estimateSize(frame))

	buf = binary.LittleEndian.AppendUint64(buf, frame.FrameIndex)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frame.SceneID)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frame.TimestampUTC)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frame.Cameras)))
	buf = append(buf, make([]byte, headerReserved)...)

	buf = append(buf, frame.SceneID...)
	buf = append(buf, frame.TimestampUTC...)

	for _, cam := range frame.Cameras {
		var err error
		buf, err = encodeCamera(buf, cam)
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", cam.CameraID, err)
		}
	}
	return buf, nil
}

func encodeCamera(buf []byte, cam CameraFrame) ([]byte, error) {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cam.CameraID)))
	buf = append(buf, cam.CameraID...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cam.JPEG)))
	buf = append(buf, cam.JPEG...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cam.Tracks)))

	meta := cameraMetadata{ImageSource: cam.ImageSource}
	for _, track := range cam.Tracks {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(track.TrackID))
		for _, v := range track.BBoxXYXY {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		}
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(track.Confidence)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(track.ClassID))

		var flags byte
		if track.MapCoords != nil {
			flags |= flagHasMapCoords
		}
		buf = append(buf, flags)
		if track.MapCoords != nil {
			for _, v := range track.MapCoords {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
			}
		}

		if track.GlobalID != "" {
			if meta.GlobalIDs == nil {
				meta.GlobalIDs = make(map[string]int)
			}
			meta.GlobalIDs[track.GlobalID] = track.TrackID
		}
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(metaBytes)))
	buf = append(buf, metaBytes...)
	return buf, nil
}

func estimateSize(frame Frame) int {
	n := len(frame.SceneID) + len(frame.TimestampUTC)
	for _, cam := range frame.Cameras {
		n += 3*fieldLength + len(cam.CameraID) + len(cam.JPEG)
		n += len(cam.Tracks) * (trackBaseSize + 2*fieldCoord)
		n += 128 // metadata blob headroom
	}
	return n
}
