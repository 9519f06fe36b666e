package crash

import (
	"strings"

	bugsnag "github.com/bugsnag/bugsnag-go/errors"
	"github.com/bugsnag/panicwrap"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/facebookgo/stack"
	"github.com/samber/lo"
)

// Supervise runs the program again as a child process and watches its
// standard error. If the child dies of a panic no boundary recovered, a
// report is saved for it.
//
// Supervise only returns in the child. The supervisor terminates with the
// status of the child.
func (r *Reporter) Supervise() error {
	status, err := panicwrap.BasicWrap(r.handlePanicOutput)
	if err != nil {
		return wrap(err, "starting supervisor")
	}

	if status >= 0 {
		r.terminator.Terminate(status)
	}
	return nil
}

func (r *Reporter) handlePanicOutput(output string) {
	err := ParsePanic(output)
	r.log.Error("child process panicked", "err", err)
	r.HandleNotificationException(err)
}

// ParsePanic converts the output of the runtime for an unrecovered panic into
// an error carrying the stack of the panicking goroutine.
func ParsePanic(output string) error {
	perr, err := bugsnag.ParsePanic(output)
	if err != nil {
		line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
		return &report.Exception{
			Kind:    "panic",
			Message: strings.TrimPrefix(line, "panic: "),
		}
	}

	return &report.Exception{
		Kind:    perr.TypeName(),
		Message: perr.Error(),
		Frames: lo.Map(perr.StackFrames(), func(f bugsnag.StackFrame, _ int) stack.Frame {
			return stack.Frame{
				File: f.File,
				Line: f.LineNumber,
				Name: strings.TrimPrefix(f.Package+"."+f.Name, "."),
			}
		}),
	}
}
