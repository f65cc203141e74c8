package outbound

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrCircuitOpen is the cause of a ConnectionFailed error returned while
// the upstream's circuit breaker rejects calls.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

// ErrorKind classifies an outbound failure.
type ErrorKind int

// Outbound failure kinds.
const (
	// UpstreamProtocolError means the upstream replied with something
	// that is not a valid HTTP response.
	UpstreamProtocolError ErrorKind = iota

	// Timeout means no complete response arrived in time.
	Timeout

	// ConnectionFailed means the upstream could not be reached.
	ConnectionFailed
)

// String returns the kind as used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case ConnectionFailed:
		return "connection_failed"
	default:
		return "protocol_error"
	}
}

// Status returns the response status a failure of this kind maps to.
func (k ErrorKind) Status() int {
	if k == Timeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// TransportError is a failed outbound call.
type TransportError struct {
	Kind     ErrorKind
	Upstream string
	Cause    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("outbound %s to %s: %v", e.Kind, e.Upstream, e.Cause)
	}
	return fmt.Sprintf("outbound %s to %s", e.Kind, e.Upstream)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TransportError of the same kind.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.Kind == e.Kind
}

// StatusFor returns the status an outbound error maps to: 504 for
// timeouts and 502 for everything else.
func StatusFor(err error) int {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Kind.Status()
	}
	return classify(err).Status()
}

// classify determines the kind of a raw transport error.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectionFailed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectionFailed
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectionFailed
	}

	return UpstreamProtocolError
}

func newTransportError(upstream string, err error) *TransportError {
	return &TransportError{Kind: classify(err), Upstream: upstream, Cause: err}
}
