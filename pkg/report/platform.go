package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
)

// Package describes the application being reported on.
type Package struct {
	Name        string
	VersionName string
	VersionCode string
}

// Build describes the host and the build of the application.
type Build struct {
	Model       string
	OSVersion   string
	Board       string
	Brand       string
	Device      string
	Display     string
	Fingerprint string
	Product     string
	Tags        string
	Time        string
	Type        string
}

// Platform provides the metadata of the application and the host.
type Platform interface {
	Package() (Package, error)
	Build() (Build, error)
}

// Storage provides statistics about the filesystem holding path.
type Storage interface {
	Stat(path string) (total, available uint64, err error)
}

// HostPlatform reads the metadata from the running program's build
// information and from the host system.
type HostPlatform struct{}

var (
	errNoBuildInfo = errors.New("build information unavailable")
	errUnavailable = errors.New("provider unavailable")
)

// Package returns the main module of the program.
func (HostPlatform) Package() (Package, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Package{}, errNoBuildInfo
	}

	p := Package{
		Name:        info.Main.Path,
		VersionName: info.Main.Version,
		VersionCode: setting(info, "vcs.revision"),
	}
	if len(p.Name) == 0 {
		p.Name = info.Path
	}
	return p, nil
}

// Build returns the host description. The fingerprint mimics the usual
// brand/product/device:release/revision layout.
func (HostPlatform) Build() (Build, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Build{}, wrap(err, "reading hostname")
	}

	b := Build{
		Model:   hostname,
		Brand:   runtime.GOOS,
		Device:  runtime.GOARCH,
		Display: runtime.Version(),
		Product: filepath.Base(os.Args[0]),
		Type:    "exe",
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		b.Tags = setting(info, "-tags")
		b.Time = setting(info, "vcs.time")
		if mode := setting(info, "-buildmode"); len(mode) != 0 {
			b.Type = mode
		}
		b.Fingerprint = setting(info, "vcs.revision")
	}

	err = uname(&b)
	if err != nil {
		return b, err
	}

	b.Fingerprint = fmt.Sprintf("%s/%s/%s:%s/%s", b.Brand, b.Product, b.Device, b.OSVersion, b.Fingerprint)
	return b, nil
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// FSStorage reads the filesystem statistics from the operating system.
type FSStorage struct{}
