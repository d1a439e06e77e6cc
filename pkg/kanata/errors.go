package kanata

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrHeader is matched by errors for a missing or unsupported header.
	ErrHeader = errors.New("bad trace header")

	// ErrMalformedEvent is matched by errors for lines that do not decode.
	ErrMalformedEvent = errors.New("malformed event")
)

// HeaderError reports that the first line of a trace is not Header.
type HeaderError struct {
	// Got is the first line without its line terminator. Missing is true
	// when the trace has no lines at all.
	Got     string
	Missing bool
}

func (e *HeaderError) Error() string {
	if e.Missing {
		return "missing trace header"
	}
	return fmt.Sprintf("bad trace header %q, want %q", e.Got, Header)
}

func (e *HeaderError) Unwrap() error { return ErrHeader }

// MalformedEventError reports a line that could not be decoded.
type MalformedEventError struct {
	// Line is the 1-based line number, with the header on line 1. It is
	// zero when the error comes from Decode on its own.
	Line   int
	Text   string
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	msg := "malformed event"
	if e.Line > 0 {
		msg += " on line " + strconv.Itoa(e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", msg, e.Text)
}

func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}

func (e *MalformedEventError) Unwrap() error { return e.Err }
