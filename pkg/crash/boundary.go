// Package crash turns the panics of a program into saved crash reports.
//
// A Boundary is the handler of last resort of the goroutines it guards: a
// guarded goroutine that panics has its panic recovered and dispatched to the
// boundary's current handler. A Reporter installed on a boundary saves a
// report for each such panic, tells the user about it, and then either
// terminates the process or lets the previous handler deal with the panic.
package crash

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/elwinar/crashlog/pkg/report"
)

// Handler handles the panics that reach a boundary. The thread is the name of
// the guarded goroutine the panic happened on.
type Handler interface {
	Uncaught(thread string, err error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(thread string, err error)

func (f HandlerFunc) Uncaught(thread string, err error) {
	f(thread, err)
}

// DefaultHandler prints the panic on the standard error and terminates the
// process with the status of an unrecovered panic.
var DefaultHandler Handler = &printHandler{
	w:          os.Stderr,
	terminator: ProcessTerminator{},
}

type printHandler struct {
	w          io.Writer
	terminator Terminator
}

func (h *printHandler) Uncaught(thread string, err error) {
	fmt.Fprintf(h.w, "panic: %s [recovered in %s]\n\n%s", err, thread, report.FormatTrace(err))
	h.terminator.Terminate(2)
}

// Boundary holds the handler of last resort of the goroutines it guards.
type Boundary struct {
	lock    sync.RWMutex
	current Handler
}

// NewBoundary returns a boundary whose handler is fallback, or DefaultHandler
// if fallback is nil.
func NewBoundary(fallback Handler) *Boundary {
	if fallback == nil {
		fallback = DefaultHandler
	}
	return &Boundary{current: fallback}
}

// Install makes h the current handler and returns the previous one.
func (b *Boundary) Install(h Handler) Handler {
	b.lock.Lock()
	defer b.lock.Unlock()

	prev := b.current
	b.current = h
	return prev
}

// Restore makes prev, as returned by Install, the current handler again.
func (b *Boundary) Restore(prev Handler) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.current = prev
}

func (b *Boundary) Current() Handler {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.current
}

// Guard recovers a panic and dispatches it to the current handler. It must be
// deferred directly:
//
//	defer boundary.Guard("worker")
func (b *Boundary) Guard(thread string) {
	v := recover()
	if v == nil {
		return
	}
	b.Current().Uncaught(thread, report.FromPanic(v))
}

// Go runs fn on a new goroutine guarded by the boundary.
func (b *Boundary) Go(thread string, fn func()) {
	go func() {
		defer b.Guard(thread)
		fn()
	}()
}

// Run runs fn on the calling goroutine, guarded by the boundary.
func (b *Boundary) Run(thread string, fn func()) {
	defer b.Guard(thread)
	fn()
}
