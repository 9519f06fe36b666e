package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/conf"
	"github.com/elwinar/crashlog/pkg/crash"
	"github.com/elwinar/crashlog/pkg/notify"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/elwinar/crashlog/pkg/viewer"
	"github.com/fatih/color"
	"github.com/inconshreveable/log15"
)

var Version = "N/C"

func main() {
	var c cli
	args := c.configure()

	c.logger = log15.New()
	c.logger.SetHandler(log15.LvlFilterHandler(c.level(), log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
	c.out = os.Stdout
	c.store = store.NewFileStore(c.dir)
	c.notifier = &notify.Notifier{
		Surface: notify.NewTerminal(os.Stderr, c.dir),
		Log:     c.logger,
	}

	err := c.run(context.Background(), args)
	if errors.Is(err, errUsage) {
		c.fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		c.logger.Crit("running command", "err", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

type cli struct {
	dir          string
	verbose      bool
	printVersion bool

	fs       *flag.FlagSet
	logger   log15.Logger
	out      io.Writer
	store    store.Store
	notifier *notify.Notifier
}

// configure reads the global flags and returns the command line left.
func (c *cli) configure() []string {
	c.fs = flag.NewFlagSet("crashlog-"+Version, flag.ExitOnError)
	c.fs.Usage = func() {
		fmt.Fprintln(c.fs.Output(), "Usage of crashlog: crashlog [options] <command> [arguments]")
		fmt.Fprintln(c.fs.Output())
		fmt.Fprintln(c.fs.Output(), "Commands:")
		for _, cmd := range commands {
			fmt.Fprintf(c.fs.Output(), "  %-10s %s\n", cmd.name, cmd.help)
		}
		fmt.Fprintln(c.fs.Output())
		fmt.Fprintln(c.fs.Output(), "Options:")
		c.fs.PrintDefaults()
	}
	c.fs.StringVar(&c.dir, "dir", filepath.Join(os.TempDir(), store.DirName), "path of the report directory")
	c.fs.BoolVar(&c.verbose, "verbose", false, "print debug logs")
	c.fs.BoolVar(&c.printVersion, "version", false, "print the version of crashlog")
	c.fs.String("conf", "", "configuration file to load")
	conf.Parse(c.fs, "conf")

	if c.printVersion {
		fmt.Println("crashlog", Version)
		os.Exit(0)
	}
	return c.fs.Args()
}

func (c *cli) level() log15.Lvl {
	if c.verbose {
		return log15.LvlDebug
	}
	return log15.LvlInfo
}

type command struct {
	name string
	help string
	run  func(c *cli, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "list", help: "list the saved reports", run: (*cli).list},
		{name: "view", help: "display a report", run: (*cli).view},
		{name: "prune", help: "delete the oldest reports", run: (*cli).prune},
		{name: "clean", help: "delete every report", run: (*cli).clean},
		{name: "status", help: "print the pending crash notification", run: (*cli).status},
		{name: "dismiss", help: "dismiss the pending crash notification", run: (*cli).dismiss},
	}
}

// run the command named by the first argument.
func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(c, ctx, args[1:])
		}
	}
	return errUsage
}

// list prints one line per report, oldest first.
func (c *cli) list(_ context.Context, _ []string) error {
	names, err := c.store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		summary, err := c.summarize(name)
		if err != nil {
			c.logger.Warn("reading report", "name", name, "err", err)
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", summary.Name, modeColor(summary.Mode).Sprint(summary.Mode), summary.Message)
	}
	return w.Flush()
}

func (c *cli) summarize(name string) (crashlog.Summary, error) {
	f, err := c.store.Open(name)
	if err != nil {
		return crashlog.Summary{}, err
	}
	defer f.Close()

	rep, err := report.Parse(f)
	if err != nil {
		return crashlog.Summary{}, err
	}

	return report.Summarize(name, rep), nil
}

func modeColor(mode string) *color.Color {
	switch mode {
	case "notif":
		return color.New(color.FgRed)
	case "toast":
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}

// view displays a report. The report is given either as an argument, a file
// name in the report directory or a path, or as an URI.
func (c *cli) view(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	uri := fs.String("uri", "", "URI of the report to view")
	relaunch := fs.String("relaunch", "", "program to launch once the report is displayed")
	err := fs.Parse(args)
	if err != nil {
		return errUsage
	}

	var req viewer.Request
	switch {
	case fs.NArg() > 0:
		req.Path = fs.Arg(0)
		if store.IsReport(req.Path) && !strings.ContainsRune(req.Path, filepath.Separator) {
			req.Path = c.store.Path(req.Path)
		}
	default:
		req.URI = *uri
	}

	err = viewer.Render(c.out, viewer.Open(req, c.notifier.Cancel))
	if err != nil {
		return err
	}

	if len(*relaunch) == 0 {
		return nil
	}

	err = crash.Launch(ctx, *relaunch)
	if err != nil {
		c.logger.Warn("relaunching", "program", *relaunch, "err", err)
	}
	return nil
}

func (c *cli) prune(_ context.Context, _ []string) error {
	return c.store.Prune()
}

func (c *cli) clean(_ context.Context, _ []string) error {
	return c.store.DeleteAll()
}

func (c *cli) status(_ context.Context, _ []string) error {
	path, ok, err := notify.Pending(c.store.Dir(), notify.CrashID)
	if err != nil {
		return err
	}

	if !ok {
		fmt.Fprintln(c.out, "no pending notification")
		return nil
	}

	fmt.Fprintf(c.out, "pending notification for %s\n", path)
	return nil
}

func (c *cli) dismiss(_ context.Context, _ []string) error {
	c.notifier.Cancel()
	return nil
}
