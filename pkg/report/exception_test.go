package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestFormatTrace_NoCause(t *testing.T) {
	trace := FormatTrace(NewException("NPE at X"))

	if !strings.HasPrefix(trace, "NPE at X\nexception: NPE at X\n\tat ") {
		t.Errorf(`FormatTrace(): unexpected header in %q`, trace)
	}
	if !strings.Contains(trace, "TestFormatTrace_NoCause") {
		t.Errorf(`FormatTrace(): missing caller frame in %q`, trace)
	}
	if strings.Contains(trace, "Caused by") {
		t.Errorf(`FormatTrace(): unexpected cause section in %q`, trace)
	}
}

func TestFormatTrace_Chain(t *testing.T) {
	c := NewException("C")
	b := WrapException(c, "B")
	a := WrapException(b, "A")

	trace := FormatTrace(a)

	var last int
	for _, section := range []string{
		"exception: A\n",
		"Caused by: exception: B\n",
		"Caused by: exception: C\n",
	} {
		i := strings.Index(trace, section)
		if i < last {
			t.Fatalf(`FormatTrace(): section %q missing or out of order in %q`, section, trace)
		}
		last = i
	}
	if n := strings.Count(trace, "Caused by: "); n != 2 {
		t.Errorf(`FormatTrace(): wanted 2 causes, got %d`, n)
	}
}

func TestFormatTrace_PlainErrors(t *testing.T) {
	err := fmt.Errorf("reading config: %w", io.ErrUnexpectedEOF)

	trace := FormatTrace(err)

	want := "reading config: unexpected EOF\n" +
		"*fmt.wrapError: reading config: unexpected EOF\n" +
		"Caused by: *errors.errorString: unexpected EOF\n"
	if trace != want {
		t.Errorf(`FormatTrace(): wanted %q, got %q`, want, trace)
	}
}

type loop struct{}

func (l *loop) Error() string { return "loop" }
func (l *loop) Unwrap() error { return l }

func TestFormatTrace_Cycle(t *testing.T) {
	trace := FormatTrace(&loop{})

	if n := strings.Count(trace, "*report.loop: loop\n"); n != MaxCauseDepth {
		t.Errorf(`FormatTrace(): wanted %d sections, got %d`, MaxCauseDepth, n)
	}
	if !strings.HasSuffix(trace, "... cause chain truncated\n") {
		t.Errorf(`FormatTrace(): missing truncation marker in %q`, trace)
	}
}

func recovered(fn func()) (err error) {
	defer func() {
		err = FromPanic(recover())
	}()
	fn()
	return nil
}

func TestFromPanic(t *testing.T) {
	err := recovered(func() { panic("boom") })

	var e *Exception
	if !errors.As(err, &e) {
		t.Fatalf(`FromPanic(): wanted an *Exception, got %T`, err)
	}
	if e.Kind != "panic" || e.Message != "boom" {
		t.Errorf(`FromPanic(): unexpected exception %q: %q`, e.Kind, e.Message)
	}

	var found bool
	for _, f := range e.Frames {
		if strings.Contains(f.Name, "TestFromPanic") {
			found = true
		}
		if strings.HasSuffix(f.Name, "gopanic") {
			t.Errorf(`FromPanic(): unexpected runtime frame %s`, f.Name)
		}
	}
	if !found {
		t.Errorf(`FromPanic(): missing panicking frame in %v`, e.Frames)
	}
}

func TestFromPanic_Error(t *testing.T) {
	err := recovered(func() { panic(fmt.Errorf("decoding: %w", io.EOF)) })

	if !errors.Is(err, io.EOF) {
		t.Errorf(`FromPanic(): lost the cause chain of %v`, err)
	}
	if !strings.HasPrefix(FormatTrace(err), "decoding: EOF\n*fmt.wrapError: decoding: EOF\n") {
		t.Errorf(`FromPanic(): unexpected trace %q`, FormatTrace(err))
	}
}

func TestFromPanic_Exception(t *testing.T) {
	want := NewException("kept")
	err := recovered(func() { panic(want) })

	if err != error(want) {
		t.Errorf(`FromPanic(): wanted the panicking exception back, got %v`, err)
	}
}

func TestFromPanic_Nil(t *testing.T) {
	if err := recovered(func() {}); err != nil {
		t.Errorf(`FromPanic(nil): unexpected error %v`, err)
	}
}
