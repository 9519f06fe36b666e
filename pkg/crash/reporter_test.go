package crash

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/notify"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/elwinar/crashlog/pkg/testingx"
	"github.com/google/go-cmp/cmp"
)

type fakePlatform struct{}

func (fakePlatform) Package() (report.Package, error) {
	return report.Package{Name: "example.com/demo", VersionName: "v1.0.0", VersionCode: "abc123"}, nil
}

func (fakePlatform) Build() (report.Build, error) {
	return report.Build{Model: "host", OSVersion: "6.1.0"}, nil
}

type fakeStorage struct{}

func (fakeStorage) Stat(string) (uint64, uint64, error) {
	return 1 << 30, 1 << 20, nil
}

type fakeSurface struct {
	lock      sync.Mutex
	toasts    chan string
	shown     []notify.Notification
	cancelled []int
}

func (s *fakeSurface) Toast(text string) { s.toasts <- text }

func (s *fakeSurface) Show(n notify.Notification) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.shown = append(s.shown, n)
	return nil
}

func (s *fakeSurface) Cancel(id int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cancelled = append(s.cancelled, id)
	return nil
}

func (s *fakeSurface) Shown() []notify.Notification {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]notify.Notification(nil), s.shown...)
}

type fakeSender struct {
	lock  sync.Mutex
	paths []string
}

func (s *fakeSender) Send(_ context.Context, path string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

type failingStore struct {
	store.Store
}

func (failingStore) Save(*report.Report) (string, error) {
	return "", errors.New("disk full")
}

type fixture struct {
	reporter   *Reporter
	dir        string
	surface    *fakeSurface
	sender     *fakeSender
	terminator *recordingTerminator
	slept      []time.Duration
}

func newFixture(t *testing.T, mode crashlog.Mode) *fixture {
	t.Helper()

	f := &fixture{
		dir:        filepath.Join(t.TempDir(), store.DirName),
		surface:    &fakeSurface{toasts: make(chan string, 8)},
		sender:     &fakeSender{},
		terminator: &recordingTerminator{},
	}
	f.reporter = New(Config{
		Dir:        f.dir,
		Mode:       mode,
		Platform:   fakePlatform{},
		Storage:    fakeStorage{},
		DataDir:    "/data",
		Memory:     report.SelectMemoryProbe(false),
		Surface:    f.surface,
		Sender:     f.sender,
		Terminator: f.terminator,
		now: func() time.Time {
			return time.Date(2024, 3, 1, 10, 20, 30, 0, time.Local)
		},
		sleep: func(d time.Duration) {
			f.slept = append(f.slept, d)
		},
	})
	return f
}

func (f *fixture) read(t *testing.T, path string) *report.Report {
	t.Helper()
	rep, err := report.Parse(testingx.Open(t, path))
	if err != nil {
		t.Fatalf(`parsing report %q: %s`, path, err)
	}
	return rep
}

func TestReporter_Uncaught(t *testing.T) {
	type testcase struct {
		mode      crashlog.Mode
		delegated bool
		codes     []int
		slept     []time.Duration
	}

	for n, c := range map[string]testcase{
		"silent": {
			mode:      crashlog.ModeSilent,
			delegated: true,
		},
		"toast": {
			mode:  crashlog.ModeToast,
			codes: []int{ExitCode},
			slept: []time.Duration{ToastGrace},
		},
		"notification": {
			mode:  crashlog.ModeNotification,
			codes: []int{ExitCode},
		},
	} {
		t.Run(n, func(t *testing.T) {
			f := newFixture(t, c.mode)
			fallback := newRecordingHandler()
			b := NewBoundary(fallback)
			f.reporter.Install(b)

			b.Run("main", func() { panic("NPE at X") })

			if b.Current() != Handler(fallback) {
				t.Errorf(`Uncaught(): wanted the previous handler restored`)
			}

			names := testingx.Names(t, f.dir)
			if diff := cmp.Diff([]string{"notif-2024-03-01-10-20-30.txt"}, names); diff != "" {
				t.Errorf(`Uncaught(): unexpected report directory`)
				t.Log(diff)
			}

			calls := fallback.Calls()
			if c.delegated != (len(calls) == 1) {
				t.Errorf(`Uncaught(): wanted delegated %t, got %d calls`, c.delegated, len(calls))
			}
			if diff := cmp.Diff(c.codes, f.terminator.Codes()); diff != "" {
				t.Errorf(`Uncaught(): unexpected terminations`)
				t.Log(diff)
			}
			if diff := cmp.Diff(c.slept, f.slept); diff != "" {
				t.Errorf(`Uncaught(): unexpected grace delay`)
				t.Log(diff)
			}
			if shown := f.surface.Shown(); len(shown) != 1 {
				t.Errorf(`Uncaught(): wanted one notification, got %d`, len(shown))
			}
		})
	}
}

func TestReporter_Uncaught_SaveFailure(t *testing.T) {
	f := newFixture(t, crashlog.ModeNotification)
	f.reporter.store = failingStore{Store: f.reporter.store}
	b := NewBoundary(newRecordingHandler())
	f.reporter.Install(b)

	b.Run("main", func() { panic("boom") })

	if diff := cmp.Diff([]int{ExitCode}, f.terminator.Codes()); diff != "" {
		t.Errorf(`Uncaught(): wanted termination despite the failure`)
		t.Log(diff)
	}
	if shown := f.surface.Shown(); len(shown) != 0 {
		t.Errorf(`Uncaught(): unexpected notification %#v`, shown)
	}
}

func TestReporter_Uncaught_PanickingStore(t *testing.T) {
	f := newFixture(t, crashlog.ModeToast)
	f.reporter.store = nil
	b := NewBoundary(newRecordingHandler())
	f.reporter.Install(b)

	b.Run("main", func() { panic("boom") })

	if diff := cmp.Diff([]int{ExitCode}, f.terminator.Codes()); diff != "" {
		t.Errorf(`Uncaught(): wanted termination despite the panic`)
		t.Log(diff)
	}
}

func TestReporter_InstallTwice(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)
	fallback := newRecordingHandler()
	b := NewBoundary(fallback)

	f.reporter.Install(b)
	f.reporter.Install(b)
	f.reporter.Disable()

	if b.Current() != Handler(fallback) {
		t.Errorf(`Disable(): wanted the first previous handler restored`)
	}
}

func TestReporter_Handle(t *testing.T) {
	type testcase struct {
		handle func(*Reporter, error) string
		name   string
		mode   string
		toast  bool
		shown  int
		sent   bool
	}

	for n, c := range map[string]testcase{
		"silent": {
			handle: (*Reporter).HandleSilentException,
			name:   "silent-2024-03-01-10-20-30.txt",
			mode:   "silent",
			sent:   true,
		},
		"toast": {
			handle: (*Reporter).HandleToastException,
			name:   "toast-2024-03-01-10-20-30.txt",
			mode:   "toast",
			toast:  true,
			sent:   true,
		},
		"default": {
			handle: (*Reporter).HandleException,
			name:   "toast-2024-03-01-10-20-30.txt",
			mode:   "toast",
			toast:  true,
			sent:   true,
		},
		"notification": {
			handle: (*Reporter).HandleNotificationException,
			name:   "notif-2024-03-01-10-20-30.txt",
			mode:   "notif",
			shown:  1,
		},
	} {
		t.Run(n, func(t *testing.T) {
			f := newFixture(t, crashlog.ModeSilent)

			path := c.handle(f.reporter, errors.New("NPE at X"))

			if path != filepath.Join(f.dir, c.name) {
				t.Errorf(`Handle(): wanted path %q, got %q`, filepath.Join(f.dir, c.name), path)
			}

			rep := f.read(t, path)
			if rep.Mode() != c.mode {
				t.Errorf(`Handle(): wanted mode %q, got %q`, c.mode, rep.Mode())
			}
			if trace := rep.Get(crashlog.KeyStackTrace); !strings.HasPrefix(trace, "NPE at X\n") || strings.Contains(trace, "Caused by: ") {
				t.Errorf(`Handle(): unexpected trace %q`, trace)
			}

			if c.toast {
				select {
				case text := <-f.surface.toasts:
					if text != notify.ToastText {
						t.Errorf(`Handle(): unexpected toast %q`, text)
					}
				case <-time.After(5 * time.Second):
					t.Errorf(`Handle(): no toast shown`)
				}
			}
			if shown := f.surface.Shown(); len(shown) != c.shown {
				t.Errorf(`Handle(): wanted %d notifications, got %d`, c.shown, len(shown))
			}

			var sent []string
			if c.sent {
				sent = []string{path}
			}
			if diff := cmp.Diff(sent, f.sender.paths); diff != "" {
				t.Errorf(`Handle(): unexpected sent reports`)
				t.Log(diff)
			}
		})
	}
}

func TestReporter_Handle_NilError(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)

	path := f.reporter.HandleSilentException(nil)

	trace := f.read(t, path).Get(crashlog.KeyStackTrace)
	if !strings.HasPrefix(trace, report.DeveloperMessage+"\n") {
		t.Errorf(`HandleSilentException(nil): unexpected trace %q`, trace)
	}
}

func TestReporter_Handle_CauseChain(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)

	c := errors.New("C")
	b := report.WrapException(c, "B")
	a := report.WrapException(b, "A")
	path := f.reporter.HandleSilentException(a)

	trace := f.read(t, path).Get(crashlog.KeyStackTrace)
	ia := strings.Index(trace, "exception: A\n")
	ib := strings.Index(trace, "Caused by: exception: B\n")
	ic := strings.Index(trace, "Caused by: *errors.errorString: C\n")
	if ia < 0 || ib < ia || ic < ib {
		t.Errorf(`HandleSilentException(): wanted sections A, B, C in order, got %q`, trace)
	}
}

func TestReporter_CustomData(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)
	f.reporter.AddCustomData("user", "alice")
	f.reporter.AddCustomData("screen", "home")
	f.reporter.AddCustomData("user", "bob")

	path := f.reporter.HandleSilentException(errors.New("boom"))

	want := "user = bob\nscreen = home\n"
	if got := f.read(t, path).Get(crashlog.KeyCustomData); got != want {
		t.Errorf(`HandleSilentException(): wanted custom data %q, got %q`, want, got)
	}
}

func TestReporter_InteractionMode(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)
	if m := f.reporter.InteractionMode(); m != crashlog.ModeSilent {
		t.Errorf(`InteractionMode(): wanted silent, got %s`, m)
	}

	f.reporter.SetInteractionMode(crashlog.ModeToast)
	if m := f.reporter.InteractionMode(); m != crashlog.ModeToast {
		t.Errorf(`InteractionMode(): wanted toast, got %s`, m)
	}
}

func TestReporter_Maintenance(t *testing.T) {
	f := newFixture(t, crashlog.ModeSilent)
	if err := f.reporter.PruneReports(); err != nil {
		t.Errorf(`PruneReports(): unexpected error on empty directory: %s`, err)
	}

	var names []string
	for day := 1; day <= 12; day++ {
		names = append(names, store.Name("silent", time.Date(2024, 3, day, 0, 0, 0, 0, time.Local)))
	}
	testingx.Touch(t, f.dir, names...)

	err := f.reporter.PruneReports()
	if err != nil {
		t.Fatalf(`PruneReports(): unexpected error: %s`, err)
	}
	if diff := cmp.Diff(names[2:], testingx.Names(t, f.dir)); diff != "" {
		t.Errorf(`PruneReports(): unexpected files left`)
		t.Log(diff)
	}

	err = f.reporter.DeletePendingReports()
	if err != nil {
		t.Fatalf(`DeletePendingReports(): unexpected error: %s`, err)
	}
	if names := testingx.Names(t, f.dir); len(names) != 0 {
		t.Errorf(`DeletePendingReports(): unexpected files left %q`, names)
	}

	if f.reporter.Dir() != f.dir {
		t.Errorf(`Dir(): wanted %q, got %q`, f.dir, f.reporter.Dir())
	}
}
