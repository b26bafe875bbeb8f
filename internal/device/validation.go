package device

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxLabelLength = 100
	maxIDLength    = 128
)

// ValidateDevice checks a device before it is persisted.
// Returns an error wrapping ErrInvalidDevice or ErrCoordinateRange.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if len(d.ID) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidDevice, maxIDLength)
	}
	if strings.TrimSpace(d.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidDevice)
	}
	if len(d.Label) > maxLabelLength {
		return fmt.Errorf("%w: label exceeds %d characters", ErrInvalidDevice, maxLabelLength)
	}
	if d.Width < 0 || d.Height < 0 || d.ScreenWidth < 0 || d.ScreenHeight < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", ErrInvalidDevice)
	}
	return validateCoords(d.Coords)
}

func validateCoords(c Coords) error {
	for _, p := range AllPlatforms() {
		pc := c.For(p)
		if pc == nil {
			continue
		}
		points := []*Point{pc.Like(), pc.Comment(), pc.Bookmark(), pc.CommentInput(), pc.CommentSend(), pc.CommentClose()}
		for _, pt := range points {
			if pt != nil && !pt.Valid() {
				return fmt.Errorf("%w: %s (%g, %g)", ErrCoordinateRange, p, pt.XNorm, pt.YNorm)
			}
		}
	}
	return nil
}
