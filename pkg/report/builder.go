package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/elwinar/crashlog"
	"github.com/inconshreveable/log15"
	"github.com/samber/lo"
)

// TimeLayout is the layout of the start and crash times in reports.
const TimeLayout = "2006/01/02 15-04-05"

// Builder assembles reports from the providers it holds.
type Builder struct {
	Platform Platform
	Storage  Storage
	// DataDir is the path whose filesystem is reported on.
	DataDir string
	// Start is the time the application started.
	Start time.Time
	// StartMem is the memory snapshot taken when the application started,
	// if any.
	StartMem *MemorySnapshot
	Now      func() time.Time
	Log      log15.Logger
}

// Build a report for err. A nil err is reported as an exception requested by
// the developer.
//
// The metadata are collected first, and the collection stops at the first
// provider failure: the entries collected until then are kept and the report
// is built anyway.
func (b *Builder) Build(err error, mode crashlog.Mode, custom []crashlog.Pair) *Report {
	rep := New()

	cerr := b.collect(rep)
	if cerr != nil {
		b.logger().Warn("collecting crash metadata", "err", cerr)
	}

	rep.Set(crashlog.KeyCustomData, CustomData(custom))

	if err == nil {
		err = NewException(DeveloperMessage)
	}
	rep.Set(crashlog.KeyStackTrace, FormatTrace(err))
	rep.Set(crashlog.KeyReportMode, mode.String())

	return rep
}

func (b *Builder) collect(rep *Report) error {
	if b.Platform == nil {
		return wrap(errUnavailable, "reading package info")
	}

	pkg, err := b.Platform.Package()
	if err != nil {
		return wrap(err, "reading package info")
	}
	rep.Set(crashlog.KeyVersionName, orDefault(pkg.VersionName, "not set"))
	rep.Set(crashlog.KeyPackageName, pkg.Name)

	build, err := b.Platform.Build()
	if err != nil {
		return wrap(err, "reading build info")
	}
	rep.Set(crashlog.KeyPhoneModel, build.Model)
	rep.Set(crashlog.KeyAndroidVersion, build.OSVersion)
	rep.Set(crashlog.KeyBoard, build.Board)
	rep.Set(crashlog.KeyBrand, build.Brand)
	rep.Set(crashlog.KeyDevice, build.Device)
	rep.Set(crashlog.KeyDisplay, build.Display)
	rep.Set(crashlog.KeyFingerprint, build.Fingerprint)
	rep.Set(crashlog.KeyModel, build.Model)
	rep.Set(crashlog.KeyProduct, build.Product)
	rep.Set(crashlog.KeyTags, build.Tags)
	rep.Set(crashlog.KeyTime, build.Time)
	rep.Set(crashlog.KeyType, build.Type)

	rep.Set(crashlog.KeyStartAppTime, b.Start.Format(TimeLayout))
	rep.Set(crashlog.KeyCrashAppTime, b.now().Format(TimeLayout))

	if b.Storage == nil {
		return wrap(errUnavailable, "reading storage statistics")
	}
	total, available, err := b.Storage.Stat(b.DataDir)
	if err != nil {
		return wrap(err, "reading storage statistics")
	}
	rep.Set(crashlog.KeyTotalMemSize, strconv.FormatUint(total, 10))
	rep.Set(crashlog.KeyAvailableMemSize, strconv.FormatUint(available, 10))
	rep.Set(crashlog.KeyVersionCode, orDefault(pkg.VersionCode, "unknown"))

	if b.StartMem != nil {
		rep.Set(crashlog.KeyStartMemSize, strconv.FormatUint(b.StartMem.HeapAlloc, 10))
	}

	return nil
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) logger() log15.Logger {
	if b.Log == nil {
		return log15.Root()
	}
	return b.Log
}

// CustomData flattens the pairs into one "key = value" line per pair.
func CustomData(pairs []crashlog.Pair) string {
	return strings.Join(lo.Map(pairs, func(p crashlog.Pair, _ int) string {
		return p.Key + " = " + p.Value + "\n"
	}), "")
}

func orDefault(v, def string) string {
	if len(v) == 0 {
		return def
	}
	return v
}
