// ABOUTME: Error taxonomy for the capture pipeline
// ABOUTME: Sentinel errors for sink, session and network failures
package capture

import "errors"

var (
	// ErrNotConfigured is returned by Process before Configure.
	ErrNotConfigured = errors.New("capture: output not configured")

	// ErrConfigureFailed wraps sink configuration failures.
	ErrConfigureFailed = errors.New("capture: output configuration failed")

	// ErrProcessFailed wraps per-buffer sink processing failures. These are
	// contained at the sink boundary and never abort the pipeline.
	ErrProcessFailed = errors.New("capture: output processing failed")

	// ErrInvalidState is returned by session operations invoked from a
	// state that does not permit them. The state is left unchanged.
	ErrInvalidState = errors.New("capture: invalid state transition")

	// ErrConnectionFailed marks per-connection network failures. A failed
	// connection is dropped without affecting the session.
	ErrConnectionFailed = errors.New("capture: network connection failed")

	// ErrDeviceDisconnected is surfaced to session error observers when
	// the capture device goes away. Retryable via a fresh Start.
	ErrDeviceDisconnected = errors.New("capture: device disconnected")
)
