package crash

import (
	"context"
	"os"
	"os/exec"

	"github.com/elwinar/crashlog/pkg/report"
)

// DefaultDataDir returns the directory whose filesystem is reported on: the
// user's home directory, or the temporary directory if there is none.
func DefaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil || len(dir) == 0 {
		return os.TempDir()
	}
	return dir
}

// AvailableStorageBytes returns the space available on the filesystem of the
// default data directory.
func AvailableStorageBytes() (uint64, error) {
	_, available, err := report.FSStorage{}.Stat(DefaultDataDir())
	return available, err
}

// TotalStorageBytes returns the size of the filesystem of the default data
// directory.
func TotalStorageBytes() (uint64, error) {
	total, _, err := report.FSStorage{}.Stat(DefaultDataDir())
	return total, err
}

// AppVersionName returns the version of the running program, or "unknown".
func AppVersionName() string {
	pkg, err := report.HostPlatform{}.Package()
	if err != nil || len(pkg.VersionName) == 0 {
		return "unknown"
	}
	return pkg.VersionName
}

// AppVersionCode returns the revision the running program was built from, or
// "unknown".
func AppVersionCode() string {
	pkg, err := report.HostPlatform{}.Package()
	if err != nil || len(pkg.VersionCode) == 0 {
		return "unknown"
	}
	return pkg.VersionCode
}

// startProcess starts a detached process.
var startProcess = func(path string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Start()
	if err != nil {
		return err
	}
	return cmd.Process.Release()
}

// RestartApp launches the running program again, with the same arguments.
// It doesn't wait for the new process.
func RestartApp(ctx context.Context) error {
	path, err := os.Executable()
	if err != nil {
		return wrap(err, "locating executable")
	}

	return Launch(ctx, path, os.Args[1:]...)
}

// Launch starts the program at path with the given arguments, without waiting
// for it.
func Launch(ctx context.Context, path string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := startProcess(path, args)
	if err != nil {
		return wrap(err, "starting %s", path)
	}
	return nil
}
