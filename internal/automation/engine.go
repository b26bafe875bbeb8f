package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// maxRecentErrors bounds the error list exposed through Stats.
const maxRecentErrors = 10

// persistTimeout bounds the write of the running flag when a loop exits.
const persistTimeout = 5 * time.Second

// Humanization holds the process-wide randomisation settings.
type Humanization struct {
	// JitterMin and JitterMax bound the multiplier applied to the
	// post-interval and scroll delays.
	JitterMin float64
	JitterMax float64

	// SkipProbability is the chance a device's cycle is skipped outright.
	SkipProbability float64
}

// EngineDeps are the collaborators an Engine needs. Store, Devices,
// Actuator and Classifier are required; everything else has a default.
type EngineDeps struct {
	Store        ConfigStore
	Devices      DeviceStore
	Actuator     Actuator
	Classifier   Classifier
	Humanization Humanization
	Pacing       *ActionPacing
	Random       RandomSource
	Sleep        Sleeper
	Now          func() time.Time
	Logger       Logger
}

// target is a device the loop will visit.
type target struct {
	id    string
	label string
}

// Engine owns the automation state machine and the round-robin loop over
// the selected devices.
//
// Start, Stop and EmergencyStop return their outcome as data and never
// panic. The loop is the only writer of the cycle statistics; readers get
// copies through Stats.
//
// Thread Safety: All methods are safe for concurrent use.
type Engine struct {
	store        ConfigStore
	devices      DeviceStore
	cycle        *CycleExecutor
	timing       *TimingPolicy
	sleep        Sleeper
	humanization Humanization
	now          func() time.Time
	logger       Logger

	// runCtx outlives individual runs; Close cancels it.
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// startMu serialises Start so two callers can't both pass the idle check.
	startMu sync.Mutex

	mu            sync.RWMutex
	status        Status
	gen           uint64
	stopCh        chan struct{}
	stopClosed    bool
	cycleCount    int
	recentErrors  []string
	startedAt     *time.Time
	currentDevice string
	lastResult    *CycleResult

	cbMu       sync.RWMutex
	onCycle    []func(CycleResult)
	onStatus   []func(Status)
	closedOnce sync.Once
}

// NewEngine creates an idle engine.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	pacing := DefaultActionPacing()
	if deps.Pacing != nil {
		pacing = *deps.Pacing
	}

	timing := NewTimingPolicy(deps.Random)
	actions := NewActionExecutor(deps.Actuator, timing, sleep, pacing, logger)
	cycle := NewCycleExecutor(deps.Devices, deps.Store, deps.Actuator, deps.Classifier, actions, timing, sleep, now, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:        deps.Store,
		devices:      deps.Devices,
		cycle:        cycle,
		timing:       timing,
		sleep:        sleep,
		humanization: deps.Humanization,
		now:          now,
		logger:       logger,
		runCtx:       ctx,
		cancel:       cancel,
		status:       StatusIdle,
	}
}

// OnCycleComplete registers fn to receive every CycleResult as it is
// produced. Callbacks run synchronously on the loop; a panicking callback
// is logged and does not affect the loop or other callbacks.
func (e *Engine) OnCycleComplete(fn func(CycleResult)) {
	if fn == nil {
		return
	}
	e.cbMu.Lock()
	e.onCycle = append(e.onCycle, fn)
	e.cbMu.Unlock()
}

// OnStatusChange registers fn to receive every status transition.
func (e *Engine) OnStatusChange(fn func(Status)) {
	if fn == nil {
		return
	}
	e.cbMu.Lock()
	e.onStatus = append(e.onStatus, fn)
	e.cbMu.Unlock()
}

// Start validates the automation config and launches the loop.
//
// Parameters:
//   - ctx: Context for the validation reads (not the loop itself)
//
// Returns:
//   - StartResult: Success with any warnings, or Error/Err set to one of
//     ErrAlreadyRunning, ErrStopping, ErrNoDevicesSelected,
//     ErrNoEligibleDevices, or a wrapped load failure
func (e *Engine) Start(ctx context.Context) StartResult {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.runCtx.Err() != nil {
		return startFailure(ErrEngineClosed)
	}

	e.mu.RLock()
	status := e.status
	e.mu.RUnlock()
	switch status {
	case StatusRunning:
		return startFailure(ErrAlreadyRunning)
	case StatusStopping:
		return startFailure(ErrStopping)
	}

	cfg, err := e.store.LoadConfig(ctx)
	if err != nil {
		return startFailure(fmt.Errorf("loading automation config: %w", err))
	}
	if len(cfg.DeviceIDs) == 0 {
		return startFailure(ErrNoDevicesSelected)
	}

	devices, err := e.devices.ListDevices(ctx)
	if err != nil {
		return startFailure(fmt.Errorf("loading devices: %w", err))
	}
	byID := make(map[string]*device.Device, len(devices))
	for i := range devices {
		byID[devices[i].ID] = &devices[i]
	}

	var warnings []string
	targets := make([]target, 0, len(cfg.DeviceIDs))
	for _, id := range cfg.DeviceIDs {
		dev, ok := byID[id]
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("device %s not found, skipping", id))
		case !dev.HasLike(cfg.Platform):
			warnings = append(warnings, fmt.Sprintf("device %s missing %s like coordinates, skipping", dev.Label, cfg.Platform))
		default:
			targets = append(targets, target{id: dev.ID, label: dev.Label})
		}
	}
	if len(targets) == 0 {
		return startFailure(fmt.Errorf("%w for %s automation", ErrNoEligibleDevices, cfg.Platform))
	}
	if len(cfg.Triggers) == 0 {
		warnings = append(warnings, "no triggers configured, automation will only scroll")
	}

	cycleCfg := CycleConfig{
		Platform:        cfg.Platform,
		PostInterval:    seconds(cfg.PostIntervalSeconds),
		ScrollDelay:     seconds(cfg.ScrollDelaySeconds),
		ViewingTime:     cfg.ViewingTime,
		JitterMin:       e.humanization.JitterMin,
		JitterMax:       e.humanization.JitterMax,
		SkipProbability: e.humanization.SkipProbability,
	}

	started := e.now()
	stopCh := make(chan struct{})
	e.mu.Lock()
	e.status = StatusRunning
	e.gen++
	gen := e.gen
	e.stopCh = stopCh
	e.stopClosed = false
	e.cycleCount = 0
	e.recentErrors = nil
	e.startedAt = &started
	e.currentDevice = ""
	e.lastResult = nil
	e.mu.Unlock()

	if err := e.store.SetRunning(ctx, RunRunning); err != nil {
		e.logger.Warn("failed to persist running flag", "error", err)
	}

	e.logger.Info("automation started",
		"name", cfg.Name,
		"platform", cfg.Platform,
		"devices", len(targets),
		"triggers", len(cfg.Triggers),
		"warnings", len(warnings),
	)
	for _, w := range warnings {
		e.logger.Warn(w)
	}
	e.emitStatus(StatusRunning)

	e.wg.Add(1)
	go e.loop(gen, stopCh, targets, cycleCfg)

	return StartResult{Success: true, Warnings: warnings}
}

func startFailure(err error) StartResult {
	return StartResult{Success: false, Error: err.Error(), Err: err}
}

// Stop asks the loop to exit once its current device finishes. It returns
// immediately; the status stays stopping until the loop has exited.
func (e *Engine) Stop(ctx context.Context) Result {
	e.mu.Lock()
	switch e.status {
	case StatusIdle:
		e.mu.Unlock()
		return Result{Error: ErrNotRunning.Error(), Err: ErrNotRunning}
	case StatusStopping:
		e.mu.Unlock()
		return Result{Error: ErrAlreadyStopping.Error(), Err: ErrAlreadyStopping}
	}
	e.status = StatusStopping
	e.signalStopLocked()
	e.mu.Unlock()

	if err := e.store.SetRunning(ctx, RunStopped); err != nil {
		e.logger.Warn("failed to persist stopped flag", "error", err)
	}
	e.logger.Info("automation stopping, waiting for current cycle to finish")
	e.emitStatus(StatusStopping)

	return Result{Success: true}
}

// EmergencyStop forces the engine idle at once. A gesture already sent to
// a device is not recalled; the abandoned loop exits at its next check
// point without touching the state of any later run.
func (e *Engine) EmergencyStop(ctx context.Context) {
	e.mu.Lock()
	wasIdle := e.status == StatusIdle
	e.status = StatusIdle
	e.currentDevice = ""
	e.signalStopLocked()
	e.mu.Unlock()

	if err := e.store.SetRunning(ctx, RunStopped); err != nil {
		e.logger.Warn("failed to persist stopped flag", "error", err)
	}
	if !wasIdle {
		e.logger.Warn("automation emergency stop")
		e.emitStatus(StatusIdle)
	}
}

// signalStopLocked wakes the loop out of its inter-device delay.
// Callers hold e.mu.
func (e *Engine) signalStopLocked() {
	if e.stopCh != nil && !e.stopClosed {
		close(e.stopCh)
		e.stopClosed = true
	}
}

// IsRunning reports whether the status is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status == StatusRunning
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{
		Status:        e.status,
		CycleCount:    e.cycleCount,
		CurrentDevice: e.currentDevice,
		RecentErrors:  append([]string{}, e.recentErrors...),
	}
	if e.startedAt != nil {
		started := *e.startedAt
		uptime := int64(e.now().Sub(started) / time.Second)
		s.StartedAt = &started
		s.UptimeSeconds = &uptime
	}
	if e.lastResult != nil {
		last := *e.lastResult
		s.LastResult = &last
	}
	return s
}

// Close stops any running loop and waits for it to exit. The engine
// cannot be started again afterwards.
func (e *Engine) Close() {
	e.closedOnce.Do(func() {
		e.startMu.Lock()
		defer e.startMu.Unlock()

		e.mu.Lock()
		if e.status == StatusRunning {
			e.status = StatusStopping
		}
		e.signalStopLocked()
		e.mu.Unlock()

		e.cancel()
		e.wg.Wait()
	})
}

// ─── Loop ───────────────────────────────────────────────────────────

// active reports whether run gen is still the current, running run.
func (e *Engine) active(gen uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gen == gen && e.status == StatusRunning
}

func (e *Engine) loop(gen uint64, stopCh <-chan struct{}, targets []target, cfg CycleConfig) {
	defer e.wg.Done()
	defer e.finish(gen)
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("automation loop crashed: %v", r)
			e.logger.Error(msg)
			e.appendError(gen, msg)
		}
	}()

	ctx := e.runCtx
	for e.active(gen) {
		for _, t := range targets {
			if !e.active(gen) {
				return
			}
			e.setCurrent(gen, t.label)

			res := e.cycle.Execute(ctx, t.id, cfg)
			e.record(gen, res)
			e.notify(res)

			if !e.active(gen) {
				return
			}
			delay := cfg.jitter(e.timing, cfg.PostInterval)
			e.logger.Debug("waiting before next cycle", "delay_ms", delay.Milliseconds())
			if !e.pause(ctx, stopCh, delay) {
				return
			}
		}
	}
}

// pause waits for d. It returns false when the run context ends; a stop
// signal only cuts the wait short.
func (e *Engine) pause(ctx context.Context, stopCh <-chan struct{}, d time.Duration) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	_ = e.sleep(waitCtx, d) //nolint:errcheck // Interrupted waits are expected
	return ctx.Err() == nil
}

func (e *Engine) setCurrent(gen uint64, label string) {
	e.mu.Lock()
	if e.gen == gen && e.status == StatusRunning {
		e.currentDevice = label
	}
	e.mu.Unlock()
}

// record folds a cycle result into the stats of run gen.
func (e *Engine) record(gen uint64, res CycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	e.cycleCount++
	last := res
	e.lastResult = &last
	if res.Error != "" {
		e.appendErrorLocked(res.DeviceLabel + ": " + res.Error)
	}
}

func (e *Engine) appendError(gen uint64, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen {
		e.appendErrorLocked(msg)
	}
}

func (e *Engine) appendErrorLocked(msg string) {
	e.recentErrors = append(e.recentErrors, msg)
	if n := len(e.recentErrors); n > maxRecentErrors {
		e.recentErrors = append([]string(nil), e.recentErrors[n-maxRecentErrors:]...)
	}
}

// notify hands res to every cycle callback, isolating their panics.
func (e *Engine) notify(res CycleResult) {
	e.cbMu.RLock()
	fns := append([]func(CycleResult){}, e.onCycle...)
	e.cbMu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("cycle callback panicked", "panic", r)
				}
			}()
			fn(res)
		}()
	}
}

func (e *Engine) emitStatus(s Status) {
	e.cbMu.RLock()
	fns := append([]func(Status){}, e.onStatus...)
	e.cbMu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("status callback panicked", "panic", r)
				}
			}()
			fn(s)
		}()
	}
}

// finish returns the engine to idle after run gen's loop exits. A run
// abandoned by EmergencyStop and superseded by a newer Start leaves the
// newer run alone.
func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	wasIdle := e.status == StatusIdle
	e.status = StatusIdle
	e.currentDevice = ""
	e.signalStopLocked()
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.runCtx), persistTimeout)
	defer cancel()
	if err := e.store.SetRunning(ctx, RunStopped); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("failed to persist stopped flag", "error", err)
	}

	e.logger.Info("automation loop exited")
	if !wasIdle {
		e.emitStatus(StatusIdle)
	}
}
