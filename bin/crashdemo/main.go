// crashdemo is a small program crashing on purpose, to try the reporter out.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/conf"
	"github.com/elwinar/crashlog/pkg/crash"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/inconshreveable/log15"
)

var Version = "N/C"

func main() {
	var cfg struct {
		dir       string
		mode      crashlog.Mode
		custom    []crashlog.Pair
		handled   bool
		supervise bool
		unguarded bool
		verbose   bool
	}

	fs := flag.NewFlagSet("crashdemo-"+Version, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage of crashdemo: crashdemo [options]")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.dir, "dir", filepath.Join(os.TempDir(), store.DirName), "path of the report directory")
	fs.Var(&cfg.mode, "mode", "interaction mode: silent, toast or notif")
	fs.Var(conf.PairsFlag(&cfg.custom), "custom", "custom data attached to the reports, as key=value;key=value")
	fs.BoolVar(&cfg.handled, "handled", false, "report a handled error instead of crashing")
	fs.BoolVar(&cfg.supervise, "supervise", false, "run under a supervisor reporting the panics no boundary recovers")
	fs.BoolVar(&cfg.unguarded, "unguarded", false, "crash on a goroutine no boundary guards")
	fs.BoolVar(&cfg.verbose, "verbose", false, "print debug logs")
	fs.String("conf", "", "configuration file to load")
	conf.Parse(fs, "conf")

	lvl := log15.LvlInfo
	if cfg.verbose {
		lvl = log15.LvlDebug
	}
	logger := log15.New("app", "crashdemo")
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))

	reporter := crash.New(crash.Config{
		Dir:    cfg.dir,
		Mode:   cfg.mode,
		Custom: cfg.custom,
		Log:    logger,
	})
	if cfg.supervise {
		err := reporter.Supervise()
		if err != nil {
			logger.Error("supervising", "err", err)
		}
	}

	boundary := crash.NewBoundary(nil)
	reporter.Install(boundary)
	reporter.AddCustomData("pid", fmt.Sprint(os.Getpid()))

	if cfg.handled {
		path := reporter.HandleSilentException(report.WrapException(errors.New("connection reset by peer"), "fetching configuration"))
		logger.Info("report saved", "path", path)
		return
	}

	done := make(chan struct{})
	worker := func() {
		logger.Info("dividing", "result", divide(1, 0))
		close(done)
	}
	if cfg.unguarded {
		go worker()
	} else {
		boundary.Go("worker", worker)
	}

	select {
	case <-done:
	case <-time.After(time.Minute):
	}
}

func divide(a, b int) int {
	return a / b
}
