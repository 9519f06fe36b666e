// Package report assembles crash reports: an ordered set of key-value pairs
// describing the application, the host, and the error that brought the
// program down.
package report

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/elwinar/crashlog"
)

// Report is an ordered mapping of keys to values. The order is the insertion
// order, and is the order in which the entries are written out.
type Report struct {
	keys   []string
	values map[string]string
}

// New returns an empty report.
func New() *Report {
	return &Report{
		values: make(map[string]string),
	}
}

// Set the value for key. An existing key keeps its position.
func (r *Report) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, or the empty string.
func (r *Report) Get(key string) string {
	return r.values[key]
}

// Lookup returns the value for key and whether it is set.
func (r *Report) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys of the report in order.
func (r *Report) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of entries.
func (r *Report) Len() int {
	return len(r.keys)
}

// Mode returns the interaction mode tag the report was built with.
func (r *Report) Mode() string {
	return r.values[crashlog.KeyReportMode]
}

// WriteTo writes the report as key=value lines. Neither keys nor values are
// escaped: a value containing a line that looks like an entry can't be read
// back faithfully.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, k := range r.keys {
		n, err := io.WriteString(w, k+"="+r.values[k]+"\n")
		written += int64(n)
		if err != nil {
			return written, wrap(err, "writing entry %q", k)
		}
	}
	return written, nil
}

// keyPattern matches the text before the first '=' of a line starting a new
// entry.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Parse reads back a report written by WriteTo. Lines that don't start with a
// bare key followed by '=' are continuation lines of the previous value.
func Parse(r io.Reader) (*Report, error) {
	rep := New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		key   string
		value strings.Builder
		open  bool
	)
	flush := func() {
		if open {
			rep.Set(key, value.String())
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if i := strings.IndexByte(line, '='); i > 0 && keyPattern.MatchString(line[:i]) {
			flush()
			key = line[:i]
			value.Reset()
			value.WriteString(line[i+1:])
			open = true
			continue
		}

		if !open {
			return nil, fmt.Errorf("unexpected line before the first entry: %q", line)
		}
		value.WriteByte('\n')
		value.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrap(err, "reading report")
	}
	flush()

	return rep, nil
}

// wrap an error using the provided message and arguments.
func wrap(err error, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
