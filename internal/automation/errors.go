package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if res := engine.Start(ctx); errors.Is(res.Err, automation.ErrNoDevicesSelected) {
//	    // prompt the operator to pick devices
//	}
var (
	// ErrAlreadyRunning is returned by Start while the loop is running.
	ErrAlreadyRunning = errors.New("automation: engine is already running")

	// ErrStopping is returned by Start while a stop is still in progress.
	ErrStopping = errors.New("automation: engine is currently stopping, please wait")

	// ErrEngineClosed is returned by Start after Close.
	ErrEngineClosed = errors.New("automation: engine is shut down")

	// ErrNotRunning is returned by Stop when the engine is idle.
	ErrNotRunning = errors.New("automation: engine is not running")

	// ErrAlreadyStopping is returned by Stop when a stop is in progress.
	ErrAlreadyStopping = errors.New("automation: engine is already stopping")

	// ErrNoDevicesSelected is returned by Start when the config selects no devices.
	ErrNoDevicesSelected = errors.New("automation: no devices selected")

	// ErrNoEligibleDevices is returned by Start when no selected device has
	// a like coordinate for the configured platform.
	ErrNoEligibleDevices = errors.New("automation: no valid devices available")

	// ErrCoordinatesNotConfigured is returned when an action needs a button
	// the device was never calibrated for.
	ErrCoordinatesNotConfigured = errors.New("automation: coordinates not configured")

	// ErrNoCommentTemplates is returned by COMMENT when the trigger has no text to type.
	ErrNoCommentTemplates = errors.New("automation: no comment templates configured")

	// ErrUnknownAction is returned for an action kind the executor doesn't know.
	ErrUnknownAction = errors.New("automation: unknown action type")

	// ErrInvalidTrigger is returned when trigger validation fails.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrTriggerNotFound is returned when a trigger ID does not exist.
	ErrTriggerNotFound = errors.New("automation: trigger not found")

	// ErrConfigNotFound is returned by a Repository before the first save.
	ErrConfigNotFound = errors.New("automation: config not found")

	// ErrInvalidConfig is returned when automation settings fail validation.
	ErrInvalidConfig = errors.New("automation: invalid config")
)
