package imouse

import "errors"

// Sentinel errors for iMouseXP operations.
//
//	if errors.Is(err, imouse.ErrRequestFailed) {
//	    // bridge unreachable after retries
//	}
var (
	// ErrRequestFailed indicates the bridge could not be reached or kept
	// failing after every retry.
	ErrRequestFailed = errors.New("imouse: request failed")

	// ErrCommandRejected indicates the bridge answered but refused the command.
	ErrCommandRejected = errors.New("imouse: command rejected")

	// ErrBadResponse indicates a reply that could not be decoded.
	ErrBadResponse = errors.New("imouse: malformed response")

	// ErrNoImage indicates a screenshot reply without image data.
	ErrNoImage = errors.New("imouse: no screenshot data returned")
)
