package dashboard

import (
	"sort"
	"sync"
	"time"
)

// storedFrame is one camera's most recent rendered frame.
type storedFrame struct {
	jpeg       []byte
	receivedAt time.Time
}

// FrameStore keeps exactly one frame per camera. Storing a frame replaces
// the previous buffer so memory stays bounded by the camera count regardless
// of frame rate.
type FrameStore struct {
	mu     sync.Mutex
	frames map[string]storedFrame
}

func NewFrameStore() *FrameStore {
	return &FrameStore{frames: make(map[string]storedFrame)}
}

// Put replaces the stored frame for a camera.
func (fs *FrameStore) Put(cameraID string, jpeg []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames[cameraID] = storedFrame{jpeg: jpeg, receivedAt: time.Now()}
}

// Get returns the latest frame for a camera.
func (fs *FrameStore) Get(cameraID string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.frames[cameraID]
	return f.jpeg, ok
}

// Cameras returns the camera IDs with a stored frame, sorted.
func (fs *FrameStore) Cameras() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids := make([]string, 0, len(fs.frames))
	for id := range fs.frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Age returns how old a camera's stored frame is.
func (fs *FrameStore) Age(cameraID string) (time.Duration, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.frames[cameraID]
	if !ok {
		return 0, false
	}
	return time.Since(f.receivedAt), true
}

// Drop removes a camera's frame, releasing the buffer.
func (fs *FrameStore) Drop(cameraID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.frames, cameraID)
}
