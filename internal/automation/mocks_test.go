package automation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// gesture is one call recorded by mockActuator.
type gesture struct {
	Kind   string // tap, swipe, type, screenshot
	Device string
	X, Y   int
	Dir    SwipeDirection
	Length int
	Text   string
}

// mockActuator records every gesture. failTap maps a 0-based tap index to
// the error that tap returns.
type mockActuator struct {
	mu       sync.Mutex
	calls    []gesture
	taps     int
	failTap  map[int]error
	swipeErr error
	typeErr  error
	shotErr  error
	image    []byte
	onSwipe  func() // runs during Swipe, outside the lock
}

func newMockActuator() *mockActuator {
	return &mockActuator{image: []byte("jpeg")}
}

func (m *mockActuator) Tap(_ context.Context, id string, x, y int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.taps
	m.taps++
	m.calls = append(m.calls, gesture{Kind: "tap", Device: id, X: x, Y: y})
	if err, ok := m.failTap[n]; ok {
		return err
	}
	return nil
}

func (m *mockActuator) Swipe(_ context.Context, id string, x, y int, dir SwipeDirection, length int) error {
	m.mu.Lock()
	m.calls = append(m.calls, gesture{Kind: "swipe", Device: id, X: x, Y: y, Dir: dir, Length: length})
	err := m.swipeErr
	hook := m.onSwipe
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (m *mockActuator) TypeText(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, gesture{Kind: "type", Device: id, Text: text})
	return m.typeErr
}

func (m *mockActuator) Screenshot(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, gesture{Kind: "screenshot", Device: id})
	if m.shotErr != nil {
		return nil, m.shotErr
	}
	return m.image, nil
}

func (m *mockActuator) getCalls() []gesture {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]gesture, len(m.calls))
	copy(cpy, m.calls)
	return cpy
}

func (m *mockActuator) kinds() []string {
	var out []string
	for _, c := range m.getCalls() {
		out = append(out, c.Kind)
	}
	return out
}

// mockClassifier returns a fixed analysis or error.
type mockClassifier struct {
	mu        sync.Mutex
	analysis  Analysis
	err       error
	calls     int
	platforms []device.Platform
}

func (m *mockClassifier) Classify(_ context.Context, _ []byte, p device.Platform) (Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.platforms = append(m.platforms, p)
	return m.analysis, m.err
}

// mockConfigStore keeps the config in memory and records running writes.
type mockConfigStore struct {
	mu       sync.Mutex
	cfg      *Config
	loadErr  error
	running  []RunFlag
	triggErr error
}

func newMockConfigStore(cfg *Config) *mockConfigStore {
	return &mockConfigStore{cfg: cfg}
}

func (m *mockConfigStore) LoadConfig(_ context.Context) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.cfg.DeepCopy(), nil
}

func (m *mockConfigStore) SaveConfig(_ context.Context, cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.DeepCopy()
	return nil
}

func (m *mockConfigStore) SetRunning(_ context.Context, flag RunFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = append(m.running, flag)
	m.cfg.Running = flag
	return nil
}

func (m *mockConfigStore) TriggersForDevice(_ context.Context, id string) ([]Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.triggErr != nil {
		return nil, m.triggErr
	}
	var out []Trigger
	for i := range m.cfg.Triggers {
		if m.cfg.Triggers[i].AppliesTo(id) {
			out = append(out, *m.cfg.Triggers[i].DeepCopy())
		}
	}
	return out, nil
}

func (m *mockConfigStore) runningFlag() RunFlag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Running
}

// mockDeviceStore serves devices from a map.
type mockDeviceStore struct {
	mu      sync.RWMutex
	devices map[string]device.Device
	getErr  error
}

func newMockDeviceStore(devs ...device.Device) *mockDeviceStore {
	m := &mockDeviceStore{devices: make(map[string]device.Device)}
	for _, d := range devs {
		m.devices[d.ID] = d
	}
	return m
}

func (m *mockDeviceStore) GetDevice(_ context.Context, id string) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockDeviceStore) ListDevices(_ context.Context) ([]device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fixedRandom always draws v.
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

// seqRandom draws from vals in order, repeating the last one.
type seqRandom struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (s *seqRandom) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[len(s.vals)-1]
	if s.i < len(s.vals) {
		v = s.vals[s.i]
	}
	s.i++
	return v
}

// sleepRecorder is a Sleeper that returns immediately and records waits.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) getWaits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

var errTapFailed = errors.New("imouse: tap rejected")

func pt(x, y float64) *device.Point {
	return &device.Point{XNorm: x, YNorm: y}
}

func probability(p float64) *float64 { return &p }

// calibratedDevice has a 1000x2000 touch screen and every TikTok and
// Instagram button calibrated, so pixel positions are easy to read.
func calibratedDevice(id, label string) device.Device {
	return device.Device{
		ID:           id,
		Label:        label,
		Width:        500,
		Height:       1000,
		ScreenWidth:  1000,
		ScreenHeight: 2000,
		Coords: device.Coords{
			TikTok: &device.TikTokCoords{
				LikeButton:         pt(0.9, 0.5),
				CommentButton:      pt(0.9, 0.6),
				SaveButton:         pt(0.9, 0.7),
				CommentInputField:  pt(0.5, 0.9),
				CommentSendButton:  pt(0.9, 0.9),
				CommentCloseButton: pt(0.9, 0.1),
			},
			Instagram: &device.InstagramCoords{
				LikeButton:        pt(0.8, 0.5),
				CommentButton:     pt(0.8, 0.6),
				ShareButton:       pt(0.8, 0.8),
				CommentInputField: pt(0.5, 0.95),
				CommentSendButton: pt(0.85, 0.95),
				CommentBackButton: pt(0.05, 0.05),
			},
		},
	}
}

// uncalibratedDevice has no coordinates at all.
func uncalibratedDevice(id, label string) device.Device {
	return device.Device{ID: id, Label: label, Width: 390, Height: 844}
}
