package telemetry

import "errors"

// Sentinel errors returned to the MQTT client's handler wrapper, which logs them.
var (
	// ErrInvalidTopic is returned for a message outside the command topics.
	ErrInvalidTopic = errors.New("telemetry: not a command topic")

	// ErrInvalidPayload is returned when a command body is not valid JSON.
	ErrInvalidPayload = errors.New("telemetry: invalid command payload")

	// ErrUnknownCommand is returned for a command name the engine does not have.
	ErrUnknownCommand = errors.New("telemetry: unknown command")
)
