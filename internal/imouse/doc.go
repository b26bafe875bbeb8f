// Package imouse drives phones through the iMouseXP hardware bridge.
//
// iMouseXP exposes a single JSON endpoint at {base_url}:{port}/api. Every
// command is a POST of {"fun": "/mouse/click", "data": {...}} and every
// reply carries a status (200, or 0 on older builds, means success), an
// optional message and a command-specific data object.
//
// # Purpose
//
// The Client implements automation.Actuator (tap, swipe, type, screenshot)
// and lists the devices the bridge can see for discovery sync.
//
// # Usage
//
//	client := imouse.New(cfg.IMouse)
//	client.SetLogger(log.Component("imouse"))
//
//	if err := client.Tap(ctx, "FA:01", 540, 1200); err != nil {
//	    return err
//	}
//	found, err := client.ListDevices(ctx)
//
// # Retries
//
// Transport failures, HTTP 5xx and HTTP 429 are retried up to MaxRetries
// times with a linear back-off. A command the bridge rejects (non-success
// status in a 200 reply) is returned at once.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package imouse
