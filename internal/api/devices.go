package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/otg-controller/internal/audit"
	"github.com/nerrad567/otg-controller/internal/device"
)

// Bridge call timeouts.
const (
	syncTimeout       = 15 * time.Second
	screenshotTimeout = 20 * time.Second
)

// coordinateRequest is the body of PUT /devices/{id}/coords. Exactly one of
// the normalized pair (x_norm, y_norm) or the pixel pair (x, y) is given.
type coordinateRequest struct {
	Platform device.Platform `json:"platform"`
	Name     string          `json:"name"`
	XNorm    *float64        `json:"x_norm"`
	YNorm    *float64        `json:"y_norm"`
	X        *float64        `json:"x"`
	Y        *float64        `json:"y"`
}

// handleListDevices returns all devices.
//
// Query parameters:
//   - platform: only devices with a like coordinate for this platform
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	platform, ok := checkPlatform(r.URL.Query().Get("platform"))
	if !ok {
		writeBadRequest(w, "platform must be tiktok or instagram")
		return
	}

	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	if platform != "" {
		filtered := devices[:0]
		for i := range devices {
			if devices[i].HasLike(platform) {
				filtered = append(filtered, devices[i])
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice renames a device. Only the label is operator-owned;
// dimensions and state come from discovery.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.devices.SetLabel(r.Context(), chi.URLParam(r, "id"), req.Label)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionUpdate, audit.EntityDevice, d.ID, map[string]any{"label": d.Label})
	writeJSON(w, http.StatusOK, d)
}

// handleSetCoordinate calibrates one button position on a device.
func (s *Server) handleSetCoordinate(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !req.Platform.Valid() {
		writeBadRequest(w, "platform must be tiktok or instagram")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var (
		d   *device.Device
		err error
	)
	switch {
	case req.XNorm != nil && req.YNorm != nil:
		d, err = s.devices.SetCoordinate(ctx, id, req.Platform, req.Name,
			device.Point{XNorm: *req.XNorm, YNorm: *req.YNorm})
	case req.X != nil && req.Y != nil:
		d, err = s.devices.SetCoordinateFromPixels(ctx, id, req.Platform, req.Name, *req.X, *req.Y)
	default:
		writeBadRequest(w, "either x_norm and y_norm or x and y are required")
		return
	}
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionCalibrate, audit.EntityDevice, id, map[string]any{
		"platform": req.Platform,
		"name":     req.Name,
	})
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device and its calibration.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityDevice, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleScreenshot captures the device's screen and returns it as a data
// URL, for checking calibration against what the phone shows.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.screens == nil {
		writeUnavailable(w, "screen capture")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.devices.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), screenshotTimeout)
	defer cancel()

	image, err := s.screens.Screenshot(ctx, id)
	if err != nil {
		s.logger.Warn("screenshot failed", "device", id, "error", err)
		writeBridgeError(w, "screenshot", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"data_url":  imageDataURL(image),
		"bytes":     len(image),
	})
}

// imageDataURL encodes image as a data URL, assuming JPEG when the content
// type cannot be sniffed.
func imageDataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// handleSyncDevices pulls the bridge's device list and merges it into the
// registry.
func (s *Server) handleSyncDevices(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeUnavailable(w, "device discovery")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	found, err := s.discovery.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("device discovery failed", "error", err)
		writeBridgeError(w, "device discovery", err)
		return
	}

	res, err := s.devices.Merge(ctx, found)
	if err != nil {
		s.logger.Error("merging discovered devices", "error", err)
		writeInternalError(w, "failed to merge devices")
		return
	}

	if s.metrics != nil {
		s.recordDeviceCounts(ctx)
	}
	s.recordAudit(r, audit.ActionSync, audit.EntityDevice, "", map[string]any{
		"added":   res.Added,
		"updated": res.Updated,
		"offline": res.Offline,
	})
	writeJSON(w, http.StatusOK, res)
}

// recordDeviceCounts writes the post-sync online/offline split.
func (s *Server) recordDeviceCounts(ctx context.Context) {
	all, err := s.devices.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("counting devices for metrics", "error", err)
		return
	}
	offline := 0
	for i := range all {
		if all[i].State == device.StateOffline {
			offline++
		}
	}
	s.metrics.WriteDeviceCount(len(all)-offline, offline)
}

// writeDeviceError maps device registry errors to HTTP responses.
func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case isValidationError(err):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error("device update failed", "error", err)
		writeInternalError(w, "failed to update device")
	}
}

// isValidationError checks if an error is a device validation error.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidPlatform) ||
		errors.Is(err, device.ErrUnknownCoordinate) ||
		errors.Is(err, device.ErrCoordinateRange) ||
		errors.Is(err, device.ErrNoDimensions)
}
