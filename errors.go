package nbody

import (
	"errors"
	"fmt"
)

// Severity tells the driver loop how to react to a failed operation.
type Severity int

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = iota

	// SeveritySkipFrame drops the current frame and continues with the
	// next iteration. The output sequence has a gap at that index.
	SeveritySkipFrame
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeveritySkipFrame:
		return "skip-frame"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Sentinel errors shared by the backends.
var (
	// ErrTimeout is returned when a device submission or a staging map does
	// not complete within its configured timeout.
	ErrTimeout = errors.New("nbody: operation timed out")

	// ErrNoBodies is returned when a backend is created with an empty body set.
	ErrNoBodies = errors.New("nbody: no bodies to simulate")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("nbody: invalid configuration")
)

// Error is the single error type returned by simulation and render steps.
type Error struct {
	// Op names the failed operation, e.g. "step", "render", "extract".
	Op string

	// Frame is the 1-based iteration the failure belongs to, or 0 when the
	// failure happened outside the frame loop.
	Frame int

	Severity Severity
	Err      error
}

// Fatal wraps err as a fatal *Error for op.
func Fatal(op string, err error) *Error {
	return &Error{Op: op, Severity: SeverityFatal, Err: err}
}

// SkipFrame wraps err as a recoverable *Error for op.
func SkipFrame(op string, err error) *Error {
	return &Error{Op: op, Severity: SeveritySkipFrame, Err: err}
}

func (e *Error) Error() string {
	if e.Frame > 0 {
		return fmt.Sprintf("nbody: %s (frame %d, %s): %v", e.Op, e.Frame, e.Severity, e.Err)
	}
	return fmt.Sprintf("nbody: %s (%s): %v", e.Op, e.Severity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithFrame returns a copy of e attributed to frame.
func (e *Error) WithFrame(frame int) *Error {
	c := *e
	c.Frame = frame
	return &c
}

// IsFatal reports whether err must abort the run. A nil error is not fatal.
// Errors that are not an *Error are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return true
}
