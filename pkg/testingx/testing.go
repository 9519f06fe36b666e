// testingx contains testing helpers meant to simplify unit testing. Most of
// the helpers are simple wrapper for other libraries functions with a few
// tweaks meant to simplify the unit tests:
// - they don't return an error and instead fail the test,
// - relative filepath are prefixed by testdata/,
// - resources like file handles are closed during test cleanup;
package testingx

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// updateGolden indicates tests to update their golden files with the expected
// output. This flag is controlled by the -updategolden flag and will apply to
// every call to Golden, one is expected to use the -run flag to limit to
// specific tests.
var updateGolden bool

func init() {
	flag.BoolVar(&updateGolden, "updategolden", false, "update the golden files")
}

func testdata(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(`testdata`, path)
}

// Open the file at path and return the handle.
func Open(t *testing.T, path string) *os.File {
	t.Helper()
	path = testdata(path)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf(`opening file %q: %s`, path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// ReadFile returns the content of the file at path. See os.ReadFile.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	path = testdata(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf(`reading file %q: %s`, path, err)
	}
	return raw
}

// WriteFile set the content of the file at path. See os.WriteFile.
func WriteFile(t *testing.T, path string, raw []byte) {
	t.Helper()
	path = testdata(path)
	err := os.WriteFile(path, raw, 0644)
	if err != nil {
		t.Fatalf(`writing file %q: %s`, path, err)
	}
}

// Touch creates empty files with the given names in dir.
func Touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		WriteFile(t, filepath.Join(dir, name), nil)
	}
}

// Names returns the sorted names of the entries of dir.
func Names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf(`reading directory %q: %s`, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON parse the JSON raw string into dest. See json.Unmarshal.
func UnmarshalJSON(t *testing.T, raw []byte, dest interface{}) {
	t.Helper()
	err := json.Unmarshal(raw, dest)
	if err != nil {
		t.Fatalf(`unmarshaling %q: %s`, raw, err)
	}
}

// Golden returns the content of the file at path, eventually changing them to
// out beforehand if the -updategolden flag was set to true on the command
// line. See ReadFile and WriteFile.
func Golden(t *testing.T, path string, out []byte) []byte {
	t.Helper()
	if updateGolden {
		WriteFile(t, path, out)
	}
	return ReadFile(t, path)
}
