package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/facebookgo/stack"
)

// MaxCauseDepth bounds the walk of an error's cause chain, so that a chain
// looping on itself doesn't hang the reporter.
const MaxCauseDepth = 32

// DeveloperMessage is the message of the exception reported when no error is
// given.
const DeveloperMessage = "Report requested by developer"

// Exception is an error carrying the stack of the place it was created or
// recovered at.
type Exception struct {
	// Kind labels the exception in stack traces.
	Kind    string
	Message string
	Cause   error
	Frames  stack.Stack
}

// NewException returns an exception with the stack of its caller.
func NewException(msg string) *Exception {
	return &Exception{
		Kind:    "exception",
		Message: msg,
		Frames:  stack.Callers(1),
	}
}

// WrapException returns an exception caused by err, with the stack of its
// caller.
func WrapException(err error, msg string) *Exception {
	return &Exception{
		Kind:    "exception",
		Message: msg,
		Cause:   err,
		Frames:  stack.Callers(1),
	}
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

// StackTrace returns the frames of the exception.
func (e *Exception) StackTrace() stack.Stack {
	return e.Frames
}

type stackTracer interface {
	StackTrace() stack.Stack
}

// FromPanic converts a value recovered from a panic into an error. It is meant
// to be called from the deferred function doing the recovery, so that the
// captured frames are the ones of the panicking goroutine.
func FromPanic(v interface{}) error {
	if v == nil {
		return nil
	}

	frames := panicFrames(stack.Callers(1))

	err, ok := v.(error)
	if !ok {
		return &Exception{
			Kind:    "panic",
			Message: fmt.Sprint(v),
			Frames:  frames,
		}
	}

	if st, ok := err.(stackTracer); ok && len(st.StackTrace()) != 0 {
		return err
	}

	return &Exception{
		Kind:    fmt.Sprintf("%T", err),
		Message: err.Error(),
		Cause:   errors.Unwrap(err),
		Frames:  frames,
	}
}

// panicFrames drops the frames of the recovery machinery, i.e everything up to
// the runtime's panic function.
func panicFrames(frames stack.Stack) stack.Stack {
	for i, f := range frames {
		if strings.HasSuffix(f.Name, "gopanic") {
			return frames[i+1:]
		}
	}
	return frames
}

// FormatTrace renders the message of err followed by one section per error of
// its cause chain, outermost first.
func FormatTrace(err error) string {
	if err == nil {
		return ""
	}

	var buf strings.Builder
	buf.WriteString(err.Error())
	buf.WriteByte('\n')

	cause := err
	for depth := 0; cause != nil; depth++ {
		if depth == MaxCauseDepth {
			buf.WriteString("... cause chain truncated\n")
			break
		}

		if depth != 0 {
			buf.WriteString("Caused by: ")
		}
		writeSection(&buf, cause)
		cause = errors.Unwrap(cause)
	}

	return buf.String()
}

func writeSection(buf *strings.Builder, err error) {
	buf.WriteString(kindOf(err))
	buf.WriteString(": ")
	buf.WriteString(err.Error())
	buf.WriteByte('\n')

	st, ok := err.(stackTracer)
	if !ok {
		return
	}
	for _, f := range st.StackTrace() {
		fmt.Fprintf(buf, "\tat %s (%s:%d)\n", f.Name, f.File, f.Line)
	}
}

func kindOf(err error) string {
	if e, ok := err.(*Exception); ok && len(e.Kind) != 0 {
		return e.Kind
	}
	return fmt.Sprintf("%T", err)
}
