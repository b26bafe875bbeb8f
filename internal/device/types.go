package device

import "time"

// Platform identifies the app whose UI the coordinates were calibrated for.
type Platform string

// Supported platforms.
const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// AllPlatforms returns every supported platform.
func AllPlatforms() []Platform {
	return []Platform{PlatformTikTok, PlatformInstagram}
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformTikTok || p == PlatformInstagram
}

// Device is a phone reachable through the iMouseXP bridge.
//
// Width/Height are the logical display size reported by the bridge.
// ScreenWidth/ScreenHeight are the physical touch resolution when known
// and take precedence for gesture coordinates.
type Device struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	ScreenWidth  int       `json:"screen_width,omitempty"`
	ScreenHeight int       `json:"screen_height,omitempty"`
	Group        string    `json:"group,omitempty"`
	State        string    `json:"state,omitempty"`
	Coords       Coords    `json:"coords"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EffectiveSize returns the dimensions gestures should be computed against:
// the touch resolution when both values are known, else the logical size.
func (d *Device) EffectiveSize() (width, height int) {
	if d.ScreenWidth > 0 && d.ScreenHeight > 0 {
		return d.ScreenWidth, d.ScreenHeight
	}
	return d.Width, d.Height
}

// PlatformCoords returns the calibrated coordinates for p, or nil when the
// device was never calibrated for it.
func (d *Device) PlatformCoords(p Platform) PlatformCoords {
	return d.Coords.For(p)
}

// HasLike reports whether the device can be automated on p. A like
// coordinate is the minimum calibration the engine accepts.
func (d *Device) HasLike(p Platform) bool {
	pc := d.Coords.For(p)
	return pc != nil && pc.Like() != nil
}

// DeepCopy creates a copy that shares no pointers with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Coords = d.Coords.DeepCopy()
	return &cp
}
