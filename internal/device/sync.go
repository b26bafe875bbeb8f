package device

import (
	"context"
	"errors"
	"fmt"
)

// StateOffline marks a stored device that the bridge no longer reports.
const StateOffline = "offline"

// Discovered is a device as reported by the actuation bridge's device list.
type Discovered struct {
	ID           string
	Name         string
	Width        int
	Height       int
	ScreenWidth  int
	ScreenHeight int
	Group        string
	State        string
}

// MergeResult reports what a discovery merge changed.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Offline int `json:"offline"`
}

// Merge folds a discovery snapshot into the registry.
//
// Known devices keep their label and every calibrated coordinate; only the
// bridge-owned fields (dimensions, group, state) are refreshed. New devices
// are stored uncalibrated, labelled with the bridge's name or "Device <id>".
// Stored devices missing from the snapshot are kept and marked offline, so
// a phone that briefly drops off USB doesn't lose its calibration.
func (r *Registry) Merge(ctx context.Context, found []Discovered) (MergeResult, error) {
	var res MergeResult
	seen := make(map[string]struct{}, len(found))

	for _, f := range found {
		if f.ID == "" {
			continue
		}
		seen[f.ID] = struct{}{}

		d, err := r.GetDevice(ctx, f.ID)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, ErrDeviceNotFound):
			label := f.Name
			if label == "" {
				label = "Device " + f.ID
			}
			d = &Device{ID: f.ID, Label: label}
			res.Added++
		default:
			return res, fmt.Errorf("looking up %s: %w", f.ID, err)
		}

		d.Width, d.Height = f.Width, f.Height
		d.ScreenWidth, d.ScreenHeight = f.ScreenWidth, f.ScreenHeight
		d.Group, d.State = f.Group, f.State

		if err := r.SaveDevice(ctx, d); err != nil {
			return res, fmt.Errorf("saving %s: %w", f.ID, err)
		}
	}

	existing, err := r.ListDevices(ctx)
	if err != nil {
		return res, fmt.Errorf("listing devices: %w", err)
	}
	for i := range existing {
		d := &existing[i]
		if _, ok := seen[d.ID]; ok || d.State == StateOffline {
			continue
		}
		d.State = StateOffline
		if err := r.SaveDevice(ctx, d); err != nil {
			return res, fmt.Errorf("marking %s offline: %w", d.ID, err)
		}
		res.Offline++
	}

	r.logger.Info("device discovery merged",
		"added", res.Added, "updated", res.Updated, "offline", res.Offline)
	return res, nil
}
