package frameproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

func testFrame() Frame {
	coords := [2]float64{12.5, -3.25}
	return Frame{
		FrameIndex:   42,
		SceneID:      "warehouse",
		TimestampUTC: "2026-08-23T10:00:00Z",
		Cameras: []CameraFrame{
			{
				CameraID:    "c09",
				JPEG:        []byte{0xFF, 0xD8, 0xFF, 0xD9},
				ImageSource: "rtsp://c09",
				Tracks: []types.TrackedPerson{
					{
						TrackID:    1,
						GlobalID:   "person_001",
						BBoxXYXY:   [4]float64{100, 100, 300, 500},
						Confidence: 0.875,
						ClassID:    0,
						MapCoords:  &coords,
					},
					{
						TrackID:    2,
						BBoxXYXY:   [4]float64{10, 20, 30, 40},
						Confidence: 0.5,
						ClassID:    0,
					},
				},
			},
			{
				CameraID: "c12",
				JPEG:     []byte{0xFF, 0xD8},
				Tracks: []types.TrackedPerson{
					{TrackID: 7, GlobalID: "person_001", BBoxXYXY: [4]float64{1, 2, 3, 4}, Confidence: 0.25},
				},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	in := testFrame()

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, in.FrameIndex, out.FrameIndex)
	assert.Equal(t, in.SceneID, out.SceneID)
	assert.Equal(t, in.TimestampUTC, out.TimestampUTC)
	require.Len(t, out.Cameras, 2)

	// cursor advanced correctly into the second camera record
	assert.Equal(t, "c12", out.Cameras[1].CameraID)
	assert.Equal(t, in.Cameras[1].JPEG, out.Cameras[1].JPEG)

	c09 := out.Cameras[0]
	assert.Equal(t, "rtsp://c09", c09.ImageSource)
	require.Len(t, c09.Tracks, 2)

	first := c09.Tracks[0]
	assert.Equal(t, 1, first.TrackID)
	assert.Equal(t, "person_001", first.GlobalID)
	assert.Equal(t, [4]float64{100, 100, 300, 500}, first.BBoxXYXY)
	assert.InDelta(t, 0.875, first.Confidence, 1e-6)
	require.NotNil(t, first.MapCoords)
	assert.InDelta(t, 12.5, first.MapCoords[0], 1e-6)
	assert.InDelta(t, -3.25, first.MapCoords[1], 1e-6)

	// flag byte cleared: no map coordinates decoded
	second := c09.Tracks[1]
	assert.Empty(t, second.GlobalID)
	assert.Nil(t, second.MapCoords)
}

func TestDecodeTruncatedInput(t *testing.T) {
	data, err := Encode(testFrame())
	require.NoError(t, err)

	// every proper prefix must fail cleanly, never panic
	for cut := 0; cut < len(data); cut += 7 {
		_, err := Decode(data[:cut])
		assert.Error(t, err, "prefix of %d bytes", cut)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data, err := Encode(testFrame())
	require.NoError(t, err)

	_, err = Decode(append(data, 0x00))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestDecodeRejectsHugeSectionLength(t *testing.T) {
	frame := Frame{SceneID: "s", TimestampUTC: "t"}
	data, err := Encode(frame)
	require.NoError(t, err)

	// overwrite the scene-id length with an absurd value
	data[8] = 0xFF
	data[9] = 0xFF
	data[10] = 0xFF
	data[11] = 0x7F

	_, err = Decode(data)
	require.Error(t, err)
}

func TestPayloadConversion(t *testing.T) {
	payload := testFrame().Payload()

	assert.Equal(t, uint64(42), payload.FrameIndex)
	assert.Equal(t, "warehouse", payload.SceneID)
	require.Contains(t, payload.Cameras, "c09")
	require.Contains(t, payload.Cameras, "c12")
	assert.Equal(t, "rtsp://c09", payload.Cameras["c09"].ImageSource)
	assert.Len(t, payload.Cameras["c09"].Tracks, 2)
}
