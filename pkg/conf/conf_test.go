package conf

import (
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/elwinar/crashlog"
	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	type options struct {
		Dir     string
		Mode    crashlog.Mode
		Grace   time.Duration
		Verbose bool
		Custom  []crashlog.Pair
		Bind    string
	}

	var got options
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&got.Dir, "dir", "/tmp/CrashLog", "report directory")
	fs.Var(&got.Mode, "mode", "interaction mode")
	fs.DurationVar(&got.Grace, "grace", 4*time.Second, "toast grace window")
	fs.BoolVar(&got.Verbose, "verbose", false, "naked flag in the conf file")
	fs.Var(PairsFlag(&got.Custom), "custom", "custom data")
	fs.StringVar(&got.Bind, "bind", "localhost:1610", "value taken from default")
	fs.String("conf", "./testdata/crashlog.conf", "configuration file path")

	args := []string{
		"-custom", "from=cli;user=alice",
	}

	err := parse(fs, args, "conf")
	if err != nil {
		t.Fatalf(`parse(): unexpected error: %s`, err)
	}

	want := options{
		Dir:     "/var/lib/crashlog/from-conf",
		Mode:    crashlog.ModeToast,
		Grace:   2 * time.Second,
		Verbose: true,
		Custom: []crashlog.Pair{
			{Key: "from", Value: "cli"},
			{Key: "user", Value: "alice"},
		},
		Bind: "localhost:1610",
	}

	if !cmp.Equal(want, got) {
		t.Errorf(`parse(): unexpected result`)
		t.Log(cmp.Diff(want, got))
	}
}

func TestParse_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.conf")

	for n, c := range map[string]struct {
		args    []string
		wantErr bool
	}{
		"default path": {
			args:    nil,
			wantErr: false,
		},
		"explicit path": {
			args:    []string{"-conf", missing},
			wantErr: true,
		},
	} {
		t.Run(n, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.String("conf", missing, "configuration file path")

			err := parse(fs, c.args, "conf")
			if (err != nil) != c.wantErr {
				t.Errorf(`parse(%q): wanted error %t, got %v`, c.args, c.wantErr, err)
			}
		})
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("conf", "./testdata/crashlog.conf", "configuration file path")

	err := parse(fs, nil, "conf")
	if err == nil {
		t.Errorf(`parse(): expected an error for the unknown flags of the file`)
	}
}

func TestPairsFlag(t *testing.T) {
	var got []crashlog.Pair
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(PairsFlag(&got), "custom", "custom data")

	args := []string{
		"-custom", "user=alice",
		"-custom", "screen=home",
		"-custom", "build=42;user=bob",
		"-custom", "empty",
	}

	err := fs.Parse(args)
	if err != nil {
		t.Fatalf(`Parse(%q): unexpected error: %s`, args, err)
	}

	want := []crashlog.Pair{
		{Key: "user", Value: "bob"},
		{Key: "screen", Value: "home"},
		{Key: "build", Value: "42"},
		{Key: "empty", Value: ""},
	}
	if !cmp.Equal(want, got) {
		t.Errorf(`PairsFlag: unexpected result`)
		t.Log(cmp.Diff(want, got))
	}

	if s := PairsFlag(&got).String(); s != "user=bob;screen=home;build=42;empty=" {
		t.Errorf(`PairsFlag.String(): got %q`, s)
	}
}
