package crash

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/elwinar/crashlog/pkg/report"
)

type call struct {
	thread string
	err    error
}

type recordingHandler struct {
	lock  sync.Mutex
	calls []call
	done  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, 8)}
}

func (h *recordingHandler) Uncaught(thread string, err error) {
	h.lock.Lock()
	h.calls = append(h.calls, call{thread: thread, err: err})
	h.lock.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) Calls() []call {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]call(nil), h.calls...)
}

type recordingTerminator struct {
	lock  sync.Mutex
	codes []int
}

func (t *recordingTerminator) Terminate(code int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.codes = append(t.codes, code)
}

func (t *recordingTerminator) Codes() []int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]int(nil), t.codes...)
}

func TestBoundary_InstallRestore(t *testing.T) {
	fallback := newRecordingHandler()
	b := NewBoundary(fallback)

	if b.Current() != Handler(fallback) {
		t.Fatalf(`NewBoundary(): wanted the fallback as current handler`)
	}

	other := newRecordingHandler()
	prev := b.Install(other)
	if prev != Handler(fallback) {
		t.Errorf(`Install(): wanted the fallback as previous handler, got %#v`, prev)
	}
	if b.Current() != Handler(other) {
		t.Errorf(`Install(): wanted the installed handler as current handler`)
	}

	b.Restore(prev)
	if b.Current() != Handler(fallback) {
		t.Errorf(`Restore(): wanted the fallback as current handler`)
	}
}

func TestBoundary_DefaultHandler(t *testing.T) {
	b := NewBoundary(nil)
	if b.Current() != DefaultHandler {
		t.Errorf(`NewBoundary(nil): wanted the default handler`)
	}
}

func TestBoundary_Run(t *testing.T) {
	type testcase struct {
		fn      func()
		message string
		calls   int
	}

	for n, c := range map[string]testcase{
		"no panic": {
			fn:    func() {},
			calls: 0,
		},
		"panic with a value": {
			fn:      func() { panic("boom") },
			message: "boom",
			calls:   1,
		},
		"panic with an error": {
			fn:      func() { panic(errors.New("failure")) },
			message: "failure",
			calls:   1,
		},
		"runtime error": {
			fn: func() {
				var zero int
				_ = 1 / zero
			},
			message: "runtime error: integer divide by zero",
			calls:   1,
		},
	} {
		t.Run(n, func(t *testing.T) {
			h := newRecordingHandler()
			b := NewBoundary(h)

			b.Run("main", c.fn)

			calls := h.Calls()
			if len(calls) != c.calls {
				t.Fatalf(`Run(): wanted %d calls, got %d`, c.calls, len(calls))
			}
			if c.calls == 0 {
				return
			}

			if calls[0].thread != "main" {
				t.Errorf(`Run(): wanted thread "main", got %q`, calls[0].thread)
			}
			if calls[0].err.Error() != c.message {
				t.Errorf(`Run(): wanted message %q, got %q`, c.message, calls[0].err.Error())
			}

			trace := report.FormatTrace(calls[0].err)
			if !strings.Contains(trace, "TestBoundary_Run") {
				t.Errorf(`Run(): wanted the panicking function in the trace, got %q`, trace)
			}
		})
	}
}

func TestBoundary_Go(t *testing.T) {
	h := newRecordingHandler()
	b := NewBoundary(h)

	b.Go("worker", func() { panic("boom") })
	<-h.done

	calls := h.Calls()
	if len(calls) != 1 || calls[0].thread != "worker" {
		t.Errorf(`Go(): unexpected calls %#v`, calls)
	}
}

func TestPrintHandler(t *testing.T) {
	var buf bytes.Buffer
	term := &recordingTerminator{}
	h := &printHandler{w: &buf, terminator: term}

	h.Uncaught("main", report.NewException("boom"))

	if !strings.HasPrefix(buf.String(), "panic: boom [recovered in main]") {
		t.Errorf(`Uncaught(): unexpected output %q`, buf.String())
	}
	if codes := term.Codes(); len(codes) != 1 || codes[0] != 2 {
		t.Errorf(`Uncaught(): wanted exit status 2, got %v`, codes)
	}
}
