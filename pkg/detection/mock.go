package detection

import "sync"

// Mock is a scripted Detector for tests.
type Mock struct {
	mu         sync.Mutex
	Detections []Detection
	Err        error
	calls      int
}

// Detect returns the scripted detections.
func (m *Mock) Detect(jpeg []byte) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Detections, nil
}

// Calls returns how many times Detect ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Close() error { return nil }

var _ Detector = (*Mock)(nil)
