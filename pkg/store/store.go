// Package store persists crash reports as text files in a single directory
// and maintains the set of files it holds.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/elwinar/crashlog/pkg/report"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// MaxLeftFiles is the number of report files kept by Prune.
const MaxLeftFiles = 10

// DirName is the name of the report directory.
const DirName = "CrashLog"

// TimestampLayout is the layout of the timestamp in report file names.
const TimestampLayout = "2006-01-02-15-04-05"

// DefaultMode is the mode part of the file name of reports carrying no mode.
const DefaultMode = "stack"

var (
	// ErrNotFound is returned when opening a report that doesn't exist or
	// isn't a report file.
	ErrNotFound = errors.New(`not found`)

	namePattern = regexp.MustCompile(`^(silent|toast|stack|notif)-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}\.txt$`)
)

type Store interface {
	Save(rep *report.Report) (string, error)
	List() ([]string, error)
	Prune() error
	DeleteAll() error
	Open(name string) (*os.File, error)
	Path(name string) string
	Dir() string
}

type FileStore struct {
	dir  string
	max  int
	now  func() time.Time
	lock *sync.Mutex
}

// compile-time check that the FileStore actually implements the Store
// interface.
var _ Store = new(FileStore)

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock makes the store name its files using now instead of time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileStore returns a store keeping its files in dir. The directory is
// created when needed.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir:  dir,
		max:  MaxLeftFiles,
		now:  time.Now,
		lock: new(sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultDir returns the report directory of the given program: the
// program's directory in the user cache directory when there is one, the
// temporary directory otherwise.
func DefaultDir(program string) string {
	base, err := os.UserCacheDir()
	if err != nil || len(base) == 0 {
		return filepath.Join(os.TempDir(), DirName)
	}
	return filepath.Join(base, program, DirName)
}

// IsReport returns true if name follows the naming convention of report
// files.
func IsReport(name string) bool {
	return namePattern.MatchString(name)
}

// Name returns the file name for a report of the given mode saved at t.
func Name(mode string, t time.Time) string {
	if len(mode) == 0 {
		mode = DefaultMode
	}
	return fmt.Sprintf("%s-%s.txt", mode, t.Format(TimestampLayout))
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) init() error {
	err := os.MkdirAll(s.dir, os.ModeDir|0774)
	if err != nil {
		return wrap(err, `creating report directory`)
	}
	return nil
}

// Save writes the report into a new file and returns its path. A report saved
// in the same second and mode as an existing one is appended to its file.
func (s *FileStore) Save(rep *report.Report) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.init()
	if err != nil {
		return "", err
	}

	path := s.Path(Name(rep.Mode(), s.now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0664)
	if err != nil {
		return "", wrap(err, "creating report file")
	}

	_, err = rep.WriteTo(f)
	if err != nil {
		f.Close()
		return "", wrap(err, "writing report file")
	}

	err = f.Close()
	if err != nil {
		return "", wrap(err, "closing report file")
	}

	return path, nil
}

// List returns the names of the report files, sorted in ascending order.
// Files not following the naming convention are ignored.
func (s *FileStore) List() ([]string, error) {
	err := s.init()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, wrap(err, "listing report directory")
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), e.Type().IsRegular() && IsReport(e.Name())
	})
	sort.Strings(names)
	return names, nil
}

// Prune deletes the oldest reports, keeping only the MaxLeftFiles most recent
// ones. Given the naming convention, those are the greatest names.
func (s *FileStore) Prune() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	names, err := s.List()
	if err != nil {
		return err
	}

	if len(names) <= s.max {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return s.remove(names[s.max:])
}

// DeleteAll deletes every report.
func (s *FileStore) DeleteAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	names, err := s.List()
	if err != nil {
		return err
	}

	return s.remove(names)
}

func (s *FileStore) remove(names []string) error {
	var result error
	for _, name := range names {
		err := os.Remove(s.Path(name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, wrap(err, "removing %s", name))
		}
	}
	return result
}

// Open the report file with the given name.
func (s *FileStore) Open(name string) (*os.File, error) {
	if !IsReport(name) {
		return nil, ErrNotFound
	}

	f, err := os.Open(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// wrap an error using the provided message and arguments.
func wrap(err error, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
