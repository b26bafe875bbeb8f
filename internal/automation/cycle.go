package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// Scroll gesture geometry, as fractions of the effective screen size.
const (
	scrollStartX = 0.5
	scrollStartY = 0.7
	scrollLength = 0.5
)

// defaultJitter is used when no jitter range is configured.
const defaultJitter = 1.0

// CycleConfig is the per-run configuration a cycle reads. The engine builds
// it once at Start so a running loop is unaffected by later settings edits.
type CycleConfig struct {
	Platform        device.Platform
	PostInterval    time.Duration
	ScrollDelay     time.Duration
	ViewingTime     *ViewingTime
	JitterMin       float64
	JitterMax       float64
	SkipProbability float64
}

// jitter applies the configured multiplier range to base. A zero range
// leaves base unchanged.
func (c CycleConfig) jitter(t *TimingPolicy, base time.Duration) time.Duration {
	lo, hi := c.JitterMin, c.JitterMax
	if lo <= 0 && hi <= 0 {
		lo, hi = defaultJitter, defaultJitter
	}
	return t.Jitter(base, lo, hi)
}

// CycleExecutor runs one full pass over one device: skip check, scroll,
// capture, classify, match, dwell, act.
type CycleExecutor struct {
	devices    DeviceStore
	store      ConfigStore
	actuator   Actuator
	classifier Classifier
	actions    *ActionExecutor
	timing     *TimingPolicy
	sleep      Sleeper
	now        func() time.Time
	logger     Logger
}

// NewCycleExecutor wires a cycle executor. sleep, now and logger may be nil.
func NewCycleExecutor(devices DeviceStore, store ConfigStore, actuator Actuator, classifier Classifier, actions *ActionExecutor, timing *TimingPolicy, sleep Sleeper, now func() time.Time, logger Logger) *CycleExecutor {
	if sleep == nil {
		sleep = Sleep
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &CycleExecutor{
		devices:    devices,
		store:      store,
		actuator:   actuator,
		classifier: classifier,
		actions:    actions,
		timing:     timing,
		sleep:      sleep,
		now:        now,
		logger:     logger,
	}
}

// Execute runs one cycle for deviceID. It never returns an error or
// panics; every failure is captured in the result's Error field.
func (c *CycleExecutor) Execute(ctx context.Context, deviceID string, cfg CycleConfig) (result CycleResult) {
	result = CycleResult{
		ID:          GenerateID(),
		DeviceID:    deviceID,
		DeviceLabel: deviceID,
		StartedAt:   c.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("cycle panic: %v", r)
			c.logger.Error("cycle panicked", "device", deviceID, "panic", r)
		}
		result.CompletedAt = c.now()
	}()

	c.run(ctx, deviceID, cfg, &result)
	return result
}

func (c *CycleExecutor) fail(res *CycleResult, format string, args ...any) {
	res.Error = fmt.Sprintf(format, args...)
	c.logger.Error("cycle failed", "device", res.DeviceID, "error", res.Error)
}

func (c *CycleExecutor) run(ctx context.Context, deviceID string, cfg CycleConfig, res *CycleResult) { //nolint:gocognit,gocyclo // linear step sequence
	// 1. Resolve the device
	dev, err := c.devices.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			c.fail(res, "device not found: %s", deviceID)
		} else {
			c.fail(res, "loading device %s: %v", deviceID, err)
		}
		return
	}
	res.DeviceLabel = dev.Label

	// 2. Humanization skip
	if c.timing.ShouldSkip(cfg.SkipProbability) {
		res.SkippedByHumanization = true
		res.Success = true
		c.logger.Info("cycle skipped for humanization", "device", deviceID)
		return
	}

	// 3. Scroll to the next post
	w, h := dev.EffectiveSize()
	x := int(math.Round(float64(w) * scrollStartX))
	y := int(math.Round(float64(h) * scrollStartY))
	length := int(math.Round(float64(h) * scrollLength))
	if err := c.actuator.Swipe(ctx, deviceID, x, y, SwipeUp, length); err != nil {
		c.fail(res, "scroll failed: %v", err)
		return
	}
	res.Scrolled = true

	// 4. Let the video load
	delay := cfg.jitter(c.timing, cfg.ScrollDelay)
	c.logger.Debug("waiting for post to load", "device", deviceID, "delay_ms", delay.Milliseconds())
	if err := c.sleep(ctx, delay); err != nil {
		c.fail(res, "cancelled: %v", err)
		return
	}

	// 5. Capture
	image, err := c.actuator.Screenshot(ctx, deviceID)
	if err != nil {
		c.fail(res, "screenshot failed: %v", err)
		return
	}

	// 6. Classify; failure here only disables matching
	analysis, err := c.classifier.Classify(ctx, image, cfg.Platform)
	if err != nil {
		res.Error = fmt.Sprintf("vision analysis failed: %v", err)
		c.logger.Warn("classification failed", "device", deviceID, "error", err)
		res.Success = true
		return
	}
	res.Analyzed = true
	res.Analysis = &analysis
	res.SearchText = analysis.SearchText()
	c.logger.Info("post analyzed",
		"device", deviceID,
		"caption", analysis.Caption,
		"topics", strings.Join(analysis.Topics, ", "),
	)

	// 7. Match and dwell
	triggers, err := c.store.TriggersForDevice(ctx, deviceID)
	if err != nil {
		c.logger.Warn("loading triggers failed", "device", deviceID, "error", err)
		triggers = nil
	}
	matches := FindAllMatching(triggers, res.SearchText, deviceID)
	res.MatchCount = len(matches)

	res.ViewingPause = c.timing.ViewingTime(len(matches) > 0, cfg.ViewingTime)
	if res.ViewingPause > 0 {
		c.logger.Debug("viewing post", "device", deviceID, "pause_ms", res.ViewingPause.Milliseconds(), "relevant", len(matches) > 0)
		if err := c.sleep(ctx, res.ViewingPause); err != nil {
			c.fail(res, "cancelled: %v", err)
			return
		}
	}

	// 8. Select and act
	if chosen, ok := SelectWeighted(matches, c.timing.Random()); ok {
		res.MatchedTrigger = chosen.DeepCopy()
		c.logger.Info("trigger matched",
			"device", deviceID,
			"action", chosen.Action,
			"keywords", strings.Join(chosen.Keywords, ", "),
			"candidates", len(matches),
		)

		if !c.timing.ShouldExecute(chosen.Weight()) {
			res.SkippedByProbability = true
			c.logger.Info("action skipped by probability", "device", deviceID, "probability", chosen.Weight())
		} else {
			res.Action = chosen.Action
			actErr := c.actions.Execute(ctx, dev, cfg.Platform, chosen.Action, &chosen)
			succeeded := actErr == nil
			res.ActionSuccess = &succeeded
			if actErr != nil {
				res.ActionError = actErr.Error()
				c.logger.Warn("action failed", "device", deviceID, "action", chosen.Action, "error", actErr)
			}
		}
	} else {
		c.logger.Debug("no trigger matched", "device", deviceID)
	}

	// 9. Done
	res.Success = true
}
