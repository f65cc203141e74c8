package gateway

import "errors"

// Sentinel errors for gateway operations.
var (
	// ErrListenerRunning indicates Start was called on a running listener.
	ErrListenerRunning = errors.New("listener is already running")

	// ErrNilSubmitter indicates a handler was created without a submitter.
	ErrNilSubmitter = errors.New("submitter is required")
)

// Admission rejection reasons recorded in metrics.
const (
	ReasonRateLimited   = "rate_limited"
	ReasonQueueFull     = "queue_full"
	ReasonSubmitTimeout = "submit_timeout"
	ReasonShuttingDown  = "shutting_down"
	ReasonBodyTooLarge  = "body_too_large"
)
