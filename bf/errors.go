package bf

import (
	"errors"
	"fmt"
)

var (
	ErrUnmatchedLoopStart = errors.New("unmatched '['")
	ErrUnmatchedLoopEnd   = errors.New("unmatched ']'")
	ErrIO                 = errors.New("i/o failure")
	ErrInputExhausted     = errors.New("input exhausted")
	ErrInvalidTapeSize    = errors.New("invalid tape size")
	ErrInvalidOp          = errors.New("invalid instruction")
)

// SyntaxError is returned by Resolve when the brackets of a program do not
// pair up. Index is the position of the offending bracket in the instruction
// stream, not in the source text.
type SyntaxError struct {
	Err   error
	Index int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at instruction %d", e.Err, e.Index)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// RunError describes why a run stopped early.
type RunError struct {
	Err   error // one of ErrIO, ErrInputExhausted or a context error
	Cause error // error reported by the byte source or sink, if any
	PC    int
	Op    Op
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%v at instruction %d (%s)", e.Err, e.PC, e.Op)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RunError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}
