package dom

import "fmt"

// ValidationError rejects a whole operation batch. Index is the offending
// operation, or -1 when the batch as a whole is malformed.
type ValidationError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("operation %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "invalid operation batch: " + msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

// ApplyError signals that a batch which passed validation could not be
// applied to the working copy.
type ApplyError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("apply operation %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
