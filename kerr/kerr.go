// Package kerr implements the three error taxa from the runtime's error
// handling design: programmer errors (fatal, name the offending
// class/trait/message), diagnostics (logged and swallowed, the system
// proceeds), and network errors (close one connection, the system
// continues). Wrapping is done with github.com/pkg/errors, as the teacher
// does throughout its cmn package, so a Cause() chain survives the
// boundary between a handler closure and the dispatch loop that calls it.
package kerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ProgrammerError is unrecoverable: registration gaps, duplicate
// registration, a dispatch table slot with no handler while the system is
// not already panicked, or a send to an unknown recipient/trait.
type ProgrammerError struct {
	cause error
}

func (e *ProgrammerError) Error() string { return e.cause.Error() }
func (e *ProgrammerError) Unwrap() error  { return e.cause }

// Programmer builds a ProgrammerError naming the entities involved.
func Programmer(format string, args ...any) *ProgrammerError {
	return &ProgrammerError{cause: errors.Errorf(format, args...)}
}

// Diagnostic is not an error at the system level: the delivery in question
// is dropped and the caller (ActorSystem) proceeds. Diagnostic values are
// returned so call sites can log them through klog with consistent
// formatting; they are never propagated as Go errors past the component
// that produced them.
type Diagnostic struct {
	cause error
}

func (d *Diagnostic) Error() string { return d.cause.Error() }

func Diag(format string, args ...any) *Diagnostic {
	return &Diagnostic{cause: errors.Errorf(format, args...)}
}

// NetworkError closes exactly one connection; it never panics or aborts a
// turn. Would-block is represented separately and is not a NetworkError.
type NetworkError struct {
	Machine int
	cause   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("connection to machine %d: %s", e.Machine, e.cause.Error())
}
func (e *NetworkError) Unwrap() error { return e.cause }

func Network(machine int, cause error) *NetworkError {
	return &NetworkError{Machine: machine, cause: errors.WithStack(cause)}
}

// Wrap carries github.com/pkg/errors' stack-trace annotation into any of
// the above, used when a lower layer (chunky, treg) returns a bare error
// that a component needs to attribute to itself before logging it.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
