package notify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Terminal is a Surface writing to a terminal. Since a terminal can't take a
// message back, the notification is also recorded as a marker file in a
// directory (usually the report directory), which is how other processes find
// and cancel it.
type Terminal struct {
	w    io.Writer
	dir  string
	lock sync.Mutex

	toast  *color.Color
	title  *color.Color
	action *color.Color
}

// NewTerminal returns a terminal surface writing on w and keeping its
// notification markers in dir.
func NewTerminal(w io.Writer, dir string) *Terminal {
	return &Terminal{
		w:      w,
		dir:    dir,
		toast:  color.New(color.FgBlack, color.BgYellow),
		title:  color.New(color.FgRed, color.Bold),
		action: color.New(color.FgCyan),
	}
}

// MarkerName returns the name of the marker file of a notification.
func MarkerName(id int) string {
	return fmt.Sprintf(".notification-%d", id)
}

func (t *Terminal) Toast(text string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.toast.Fprintf(t.w, " %s ", text)
	fmt.Fprintln(t.w)
}

// Show prints the notification and records it, replacing any notification
// with the same identifier.
func (t *Terminal) Show(n Notification) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	err := os.MkdirAll(t.dir, 0774)
	if err != nil {
		return wrap(err, "creating notification directory")
	}

	err = os.WriteFile(filepath.Join(t.dir, MarkerName(n.ID)), []byte(n.Path), 0664)
	if err != nil {
		return wrap(err, "recording notification")
	}

	t.title.Fprintf(t.w, "%s %s", n.Icon, n.Title)
	fmt.Fprintln(t.w)
	fmt.Fprintln(t.w, n.Body)
	t.action.Fprintf(t.w, "  %s", n.Action)
	fmt.Fprintln(t.w)
	return nil
}

// Cancel removes the notification record. Cancelling a notification that
// isn't there is a no-op.
func (t *Terminal) Cancel(id int) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	err := os.Remove(filepath.Join(t.dir, MarkerName(id)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrap(err, "removing notification")
	}
	return nil
}

// Pending returns the report path of the notification recorded in dir under
// the given identifier, if any.
func Pending(dir string, id int) (string, bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MarkerName(id)))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err, "reading notification")
	}
	return strings.TrimSpace(string(raw)), true, nil
}

// wrap an error using the provided message and arguments.
func wrap(err error, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
