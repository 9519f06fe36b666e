package crash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/conf"
	"github.com/elwinar/crashlog/pkg/notify"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/inconshreveable/log15"
)

// ExitCode is the status the process exits with after a crash was reported
// with a toast or a notification.
const ExitCode = 10

// ToastGrace is the time left to the user to read the toast before the
// process exits.
const ToastGrace = 4 * time.Second

// Config of a Reporter. The zero value of every field is replaced by a
// default suitable for a program running on a terminal.
type Config struct {
	// Dir is the report directory. Defaults to store.DefaultDir for the
	// running program.
	Dir string
	// Mode is the initial interaction mode.
	Mode     crashlog.Mode
	Platform report.Platform
	Storage  report.Storage
	// DataDir is the path whose filesystem is reported on. Defaults to
	// DefaultDataDir.
	DataDir string
	Memory  report.MemoryProbe
	// Store overrides the file store of Dir.
	Store   store.Store
	Surface notify.Surface
	Sender  Sender
	// Viewer is the command shown in notifications to view a report.
	Viewer     string
	Icon       string
	Terminator Terminator
	Grace      time.Duration
	Custom     []crashlog.Pair
	Log        log15.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// Reporter saves crash reports and tells the user about them. Installed on a
// boundary, it handles the panics of the guarded goroutines.
type Reporter struct {
	mode int32

	lock     sync.Mutex
	custom   []crashlog.Pair
	builder  report.Builder
	boundary *Boundary
	prior    Handler

	memory     report.MemoryProbe
	store      store.Store
	notifier   *notify.Notifier
	sender     Sender
	terminator Terminator
	grace      time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
	log        log15.Logger
}

// New returns a reporter configured by cfg.
func New(cfg Config) *Reporter {
	if cfg.Log == nil {
		cfg.Log = log15.Root()
	}
	if len(cfg.Dir) == 0 {
		cfg.Dir = store.DefaultDir(filepath.Base(os.Args[0]))
	}
	if cfg.Platform == nil {
		cfg.Platform = report.HostPlatform{}
	}
	if cfg.Storage == nil {
		cfg.Storage = report.FSStorage{}
	}
	if len(cfg.DataDir) == 0 {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Memory == nil {
		cfg.Memory = report.SelectMemoryProbe(true)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = store.NewFileStore(cfg.Dir, store.WithClock(cfg.now))
	}
	if cfg.Surface == nil {
		cfg.Surface = notify.NewTerminal(os.Stderr, cfg.Store.Dir())
	}
	if cfg.Sender == nil {
		cfg.Sender = NopSender{}
	}
	if len(cfg.Viewer) == 0 {
		cfg.Viewer = fmt.Sprintf("crashlog -dir %q view", cfg.Store.Dir())
	}
	if cfg.Terminator == nil {
		cfg.Terminator = ProcessTerminator{}
	}
	if cfg.Grace == 0 {
		cfg.Grace = ToastGrace
	}
	if cfg.sleep == nil {
		cfg.sleep = time.Sleep
	}

	r := &Reporter{
		mode: int32(cfg.Mode),
		builder: report.Builder{
			Platform: cfg.Platform,
			Storage:  cfg.Storage,
			DataDir:  cfg.DataDir,
			Start:    cfg.now(),
			Now:      cfg.now,
			Log:      cfg.Log,
		},
		memory: cfg.Memory,
		store:  cfg.Store,
		notifier: &notify.Notifier{
			Surface: cfg.Surface,
			Viewer:  cfg.Viewer,
			Icon:    cfg.Icon,
			Log:     cfg.Log,
		},
		sender:     cfg.Sender,
		terminator: cfg.Terminator,
		grace:      cfg.Grace,
		now:        cfg.now,
		sleep:      cfg.sleep,
		log:        cfg.Log,
	}
	for _, p := range cfg.Custom {
		r.custom = conf.SetPair(r.custom, p.Key, p.Value)
	}
	return r
}

// Install the reporter as the handler of b. The start time and memory of the
// application are recorded at this point.
//
// Installing the reporter again on the same boundary keeps the handler it
// replaced the first time, so that the reporter never delegates to itself.
func (r *Reporter) Install(b *Boundary) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.builder.Start = r.now()
	r.builder.StartMem = nil
	if snap, ok := r.memory.Snapshot(); ok {
		r.builder.StartMem = &snap
	}

	prev := b.Install(r)
	if r.boundary == b {
		r.log.Warn("reporter installed twice, keeping the first previous handler")
		return
	}
	r.boundary = b
	r.prior = prev
}

// Disable gives the boundary back to the handler the reporter replaced.
func (r *Reporter) Disable() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.boundary == nil || r.prior == nil {
		return
	}
	r.boundary.Restore(r.prior)
}

// Uncaught reports a panic that reached the boundary.
//
// The report is saved with a notification whatever the interaction mode.
// Then, in silent mode the panic is handed to the previous handler; in the
// other modes the process is terminated with ExitCode, after a grace delay
// in toast mode.
func (r *Reporter) Uncaught(thread string, err error) {
	r.log.Error("uncaught panic", "thread", thread, "err", err)
	r.capture(err)

	mode := r.InteractionMode()
	if mode == crashlog.ModeToast {
		r.sleep(r.grace)
	}

	if mode == crashlog.ModeSilent {
		r.priorHandler().Uncaught(thread, err)
		return
	}

	r.terminator.Terminate(ExitCode)
}

// capture disables the reporter and saves the report. Nothing it does may
// panic out of it.
func (r *Reporter) capture(err error) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("reporting crash", "err", report.FromPanic(v))
		}
	}()

	r.Disable()
	r.HandleNotificationException(err)
}

func (r *Reporter) priorHandler() Handler {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.prior == nil {
		return DefaultHandler
	}
	return r.prior
}

// HandleException reports err with a toast. See HandleToastException.
func (r *Reporter) HandleException(err error) string {
	return r.HandleToastException(err)
}

// HandleSilentException saves a report for err without telling the user,
// and returns the path of the report file.
func (r *Reporter) HandleSilentException(err error) string {
	return r.handle(err, crashlog.ModeSilent)
}

// HandleToastException saves a report for err and shows a toast, and returns
// the path of the report file.
func (r *Reporter) HandleToastException(err error) string {
	return r.handle(err, crashlog.ModeToast)
}

// HandleNotificationException saves a report for err and shows a
// notification pointing to it, and returns the path of the report file.
func (r *Reporter) HandleNotificationException(err error) string {
	return r.handle(err, crashlog.ModeNotification)
}

// handle builds and saves a report for err, and tells the user about it
// according to mode. A nil err is reported as requested by the developer.
// The returned path is empty if the report couldn't be saved.
func (r *Reporter) handle(err error, mode crashlog.Mode) string {
	r.lock.Lock()
	builder := r.builder
	custom := append([]crashlog.Pair(nil), r.custom...)
	r.lock.Unlock()

	rep := builder.Build(err, mode, custom)

	path, serr := r.store.Save(rep)
	if serr != nil {
		r.log.Error("saving crash report", "mode", mode, "err", serr)
		path = ""
	} else {
		r.log.Info("crash report saved", "mode", mode, "path", path)
	}

	r.notifier.Notify(mode, rep, path)
	if mode == crashlog.ModeNotification || len(path) == 0 {
		return path
	}

	serr = r.sender.Send(context.Background(), path)
	if serr != nil {
		r.log.Warn("sending crash report", "path", path, "err", serr)
	}
	return path
}

// SetInteractionMode changes the mode used for the next crashes.
func (r *Reporter) SetInteractionMode(m crashlog.Mode) {
	atomic.StoreInt32(&r.mode, int32(m))
}

func (r *Reporter) InteractionMode() crashlog.Mode {
	return crashlog.Mode(atomic.LoadInt32(&r.mode))
}

// AddCustomData adds an entry to the custom data of the next reports. Adding
// a key again replaces its value.
func (r *Reporter) AddCustomData(key, value string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.custom = conf.SetPair(r.custom, key, value)
}

// DeletePendingReports deletes every saved report.
func (r *Reporter) DeletePendingReports() error {
	return r.store.DeleteAll()
}

// PruneReports deletes the oldest reports, keeping store.MaxLeftFiles of
// them.
func (r *Reporter) PruneReports() error {
	return r.store.Prune()
}

// Dir returns the report directory.
func (r *Reporter) Dir() string {
	return r.store.Dir()
}
