// Package notify tells the user about crashes, either with a short-lived
// message (a toast) or with a notification pointing to the saved report.
package notify

import (
	"fmt"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/inconshreveable/log15"
)

// CrashID is the identifier of the crash notification. Using the same
// identifier for every crash makes a new notification replace the previous
// one.
const CrashID = 0x28a

// Texts of the toast and the notification.
const (
	ToastText = "Crash caught, saving a report"
	Title     = "Unexpected error"
	Body      = "Open the crash report to see what happened"
)

// DefaultIcon is the icon of notifications when none is configured.
const DefaultIcon = "⚠"

// Notification is a message kept on display until it is cancelled.
type Notification struct {
	ID    int
	Icon  string
	Title string
	Body  string
	// Action is the command to run to view the report.
	Action string
	// Path of the report the notification is about.
	Path string
}

// Surface displays toasts and notifications.
type Surface interface {
	Toast(text string)
	Show(n Notification) error
	Cancel(id int) error
}

// Notifier decides what to show the user for each interaction mode.
type Notifier struct {
	Surface Surface
	// Viewer is the command used to open a report, the report path is
	// appended to it.
	Viewer string
	Icon   string
	Log    log15.Logger
}

// Notify the user of a crash whose report has been saved at path.
//
// In toast mode, the toast is shown from its own goroutine and Notify doesn't
// wait for it. In notification mode, a notification with an action to view
// the report is shown. Nothing is shown in silent mode.
func (n *Notifier) Notify(mode crashlog.Mode, rep *report.Report, path string) {
	switch mode {
	case crashlog.ModeToast:
		go n.Surface.Toast(ToastText)

	case crashlog.ModeNotification:
		if len(path) == 0 {
			n.logger().Warn("no report file to notify about")
			return
		}

		err := n.Surface.Show(n.notification(path))
		if err != nil {
			n.logger().Error("showing notification", "path", path, "err", err)
		}
	}
}

func (n *Notifier) notification(path string) Notification {
	icon := n.Icon
	if len(icon) == 0 {
		icon = DefaultIcon
	}

	viewer := n.Viewer
	if len(viewer) == 0 {
		viewer = "crashlog view"
	}

	return Notification{
		ID:     CrashID,
		Icon:   icon,
		Title:  Title,
		Body:   Body,
		Action: fmt.Sprintf("%s %q", viewer, path),
		Path:   path,
	}
}

// Cancel the crash notification, if any.
func (n *Notifier) Cancel() {
	err := n.Surface.Cancel(CrashID)
	if err != nil {
		n.logger().Warn("cancelling notification", "err", err)
	}
}

func (n *Notifier) logger() log15.Logger {
	if n.Log == nil {
		return log15.Root()
	}
	return n.Log
}
