package automation

import (
	"context"

	"github.com/nerrad567/otg-controller/internal/device"
)

// SwipeDirection is the direction a swipe gesture travels.
type SwipeDirection string

// Swipe directions understood by the actuation bridge.
const (
	SwipeUp    SwipeDirection = "up"
	SwipeDown  SwipeDirection = "down"
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
)

// Actuator drives a device's touch screen. Coordinates are pixels in the
// device's effective screen space. Implementations report failure through
// the returned error and must not panic.
type Actuator interface {
	Tap(ctx context.Context, deviceID string, x, y int) error
	Swipe(ctx context.Context, deviceID string, x, y int, dir SwipeDirection, length int) error
	TypeText(ctx context.Context, deviceID, text string) error
	// Screenshot returns the encoded image (JPEG or PNG) of the current screen.
	Screenshot(ctx context.Context, deviceID string) ([]byte, error)
}

// Classifier describes what a screenshot shows.
type Classifier interface {
	Classify(ctx context.Context, image []byte, platform device.Platform) (Analysis, error)
}

// ConfigStore is the persistence the engine and cycle executor need.
type ConfigStore interface {
	// LoadConfig returns the automation record, including its triggers.
	LoadConfig(ctx context.Context) (*Config, error)

	// SaveConfig replaces the automation record and its triggers.
	SaveConfig(ctx context.Context, cfg *Config) error

	// SetRunning persists only the running flag.
	SetRunning(ctx context.Context, flag RunFlag) error

	// TriggersForDevice returns the triggers whose scope includes deviceID.
	TriggersForDevice(ctx context.Context, deviceID string) ([]Trigger, error)
}

// DeviceStore resolves devices. *device.Registry satisfies it.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListDevices(ctx context.Context) ([]device.Device, error)
}

// Logger defines the logging interface used across the automation package.
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
