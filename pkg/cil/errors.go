package cil

import (
	"fmt"

	"tlog.app/go/tlog"
)

// BugError reports a broken structural invariant. These indicate a
// caller error; engines surface them as errors at their boundary and
// panic only when recovery is impossible mid-traversal.
type BugError struct {
	Loc Location
	Msg string
}

func (e *BugError) Error() string {
	if e.Loc.File != "" {
		return fmt.Sprintf("%s:%d: bug: %s", e.Loc.File, e.Loc.Line, e.Msg)
	}
	return "bug: " + e.Msg
}

// Bug constructs a BugError.
func Bug(loc Location, format string, args ...any) *BugError {
	return &BugError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// UnimpError reports a case the core does not handle.
type UnimpError struct {
	Loc Location
	Msg string
}

func (e *UnimpError) Error() string {
	if e.Loc.File != "" {
		return fmt.Sprintf("%s:%d: unimplemented: %s", e.Loc.File, e.Loc.Line, e.Msg)
	}
	return "unimplemented: " + e.Msg
}

// Unimp constructs an UnimpError.
func Unimp(loc Location, format string, args ...any) *UnimpError {
	return &UnimpError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// SizeOfError reports that the layout engine cannot compute a size:
// incomplete composites, arrays of unknown length, functions, void.
type SizeOfError struct {
	T   Type
	Msg string
}

func (e *SizeOfError) Error() string {
	return fmt.Sprintf("sizeof(%s): %s", TypeName(e.T), e.Msg)
}

// SizeOfErr constructs a SizeOfError.
func SizeOfErr(t Type, format string, args ...any) *SizeOfError {
	return &SizeOfError{T: t, Msg: fmt.Sprintf(format, args...)}
}

// Warnf is the warning sink. Warnings are non-fatal: processing continues
// after the sink returns. Replace it to capture warnings in tests or to
// route them elsewhere.
var Warnf = func(format string, args ...any) {
	tlog.Printw("warning: " + fmt.Sprintf(format, args...))
}
