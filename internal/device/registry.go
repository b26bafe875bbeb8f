package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups by
// the automation loop, which reads a device on every cycle.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by write-through updates.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	loaded  bool
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}
	r.loaded = true

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	loaded := r.loaded
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	if loaded {
		return nil, ErrDeviceNotFound
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices sorted by label.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Label != devices[j].Label {
			return devices[i].Label < devices[j].Label
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

// SaveDevice validates and persists a device, then updates the cache.
func (r *Registry) SaveDevice(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("device saved", "id", device.ID, "label", device.Label)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetLabel renames a device.
func (r *Registry) SetLabel(ctx context.Context, id, label string) (*Device, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidDevice)
	}
	d, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Label = label
	if err := r.SaveDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetCoordinate calibrates one named button of one platform on a device.
// Every other coordinate, on this and other platforms, is left as is.
func (r *Registry) SetCoordinate(ctx context.Context, id string, platform Platform, name string, pt Point) (*Device, error) {
	d, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Coords.Set(platform, name, pt); err != nil {
		return nil, err
	}
	if err := r.SaveDevice(ctx, d); err != nil {
		return nil, err
	}

	r.logger.Info("device coordinate calibrated",
		"id", id, "platform", platform, "coordinate", name,
		"x_norm", pt.XNorm, "y_norm", pt.YNorm)
	return d, nil
}

// SetCoordinateFromPixels normalizes a pixel position against the device's
// effective screen size (clamping to the screen) and stores it like
// SetCoordinate.
func (r *Registry) SetCoordinateFromPixels(ctx context.Context, id string, platform Platform, name string, x, y float64) (*Device, error) {
	d, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	w, h := d.EffectiveSize()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDimensions, id)
	}
	return r.SetCoordinate(ctx, id, platform, name, Normalize(x, y, w, h))
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats summarises the registry for the health endpoint.
type Stats struct {
	TotalDevices int              `json:"total_devices"`
	Calibrated   map[Platform]int `json:"calibrated"`
}

// GetStats counts devices and, per platform, how many have a like
// coordinate and could therefore be automated.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		Calibrated:   make(map[Platform]int, 2),
	}
	for _, d := range r.cache {
		for _, p := range AllPlatforms() {
			if d.HasLike(p) {
				stats.Calibrated[p]++
			}
		}
	}
	return stats
}
