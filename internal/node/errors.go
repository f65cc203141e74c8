package node

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned when submitting to a master that has not
// been started or has been shut down.
var ErrNotRunning = errors.New("master node is not running")

// WorkerFault describes a panic recovered while a worker handled a request.
type WorkerFault struct {
	Worker    string
	RequestID string
	Value     any
	Stack     []byte
}

// Error implements the error interface.
func (f *WorkerFault) Error() string {
	return fmt.Sprintf("worker %s: panic while handling request %s: %v", f.Worker, f.RequestID, f.Value)
}

// Unwrap returns the panic value when it is an error.
func (f *WorkerFault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}
