package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/courseswap/internal/ir"
)

// ErrStopped is returned by Runner.Submit once the runner has stopped.
var ErrStopped = errors.New("engine runner stopped")

// IsRejection reports whether err is an ordinary domain rejection, as
// opposed to a storage failure or a broken invariant.
func IsRejection(err error) bool {
	kind := ir.KindOf(err)
	return kind != "" && kind != ir.KindInvariantViolation
}

// PanicError wraps a panic recovered while the Runner executed a command.
type PanicError struct {
	Op    string
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}
