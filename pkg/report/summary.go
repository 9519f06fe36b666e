package report

import (
	"strings"
	"time"

	"github.com/elwinar/crashlog"
)

// Summarize returns the summary of the report saved under name. The date is
// the crash time in RFC 3339 format when it can be parsed, so that summaries
// sort chronologically.
func Summarize(name string, rep *Report) crashlog.Summary {
	date := rep.Get(crashlog.KeyCrashAppTime)
	if t, err := time.ParseInLocation(TimeLayout, date, time.Local); err == nil {
		date = t.Format(time.RFC3339)
	}

	trace := rep.Get(crashlog.KeyStackTrace)
	message := trace
	if i := strings.IndexByte(trace, '\n'); i >= 0 {
		message = trace[:i]
	}

	mode := rep.Mode()
	if len(mode) == 0 {
		mode = "stack"
	}

	return crashlog.Summary{
		Name:        name,
		Mode:        mode,
		Date:        date,
		PackageName: rep.Get(crashlog.KeyPackageName),
		VersionName: rep.Get(crashlog.KeyVersionName),
		Model:       rep.Get(crashlog.KeyModel),
		Message:     message,
		Trace:       trace,
		CustomData:  rep.Get(crashlog.KeyCustomData),
	}
}
