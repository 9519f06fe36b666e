package main

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/notify"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/elwinar/crashlog/pkg/viewer"
	"github.com/julienschmidt/httprouter"
)

var rootTemplate = template.Must(template.New("root").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Crash reports</title></head>
<body>
<h1>Crash reports</h1>
{{ if .Pending }}<p>Pending notification: <a href="/reports/{{ .Pending }}/_view">{{ .Pending }}</a></p>{{ end }}
<table>
<tr><th>Date</th><th>Mode</th><th>Package</th><th>Version</th><th>Message</th></tr>
{{ range .Results }}<tr>
<td><a href="/reports/{{ .Name }}">{{ .Date }}</a></td>
<td>{{ .Mode }}</td>
<td>{{ .PackageName }}</td>
<td>{{ .VersionName }}</td>
<td>{{ .Message }}</td>
</tr>{{ end }}
</table>
<p>{{ .Total }} reports</p>
</body>
</html>
`))

func (s *service) root(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	res, total, err := s.index.Search("*", "date", "desc", 50, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var pending string
	if n, ok := s.pending(); ok {
		pending = n.Name
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = rootTemplate.Execute(w, struct {
		Results []crashlog.Summary
		Total   uint64
		Pending string
	}{res, total, pending})
	if err != nil {
		s.logger.Error("rendering root page", "err", err)
	}
}

func (s *service) about(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	write(w, http.StatusOK, map[string]string{
		"built_at": BuiltAt,
		"commit":   Commit,
		"version":  Version,
		"dir":      s.store.Dir(),
	})
}

// searchReports handle the requests to search reports matching a number of
// parameters.
func (s *service) searchReports(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error

	q := r.FormValue("q")
	if len(q) == 0 {
		q = "*"
	}

	sort := r.FormValue("sort")
	if len(sort) == 0 {
		sort = "date"
	}
	switch sort {
	case "date", "name", "mode":
		break
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sort field '%s'", sort))
		return
	}

	order := r.FormValue("order")
	if len(order) == 0 {
		order = "desc"
	}
	switch order {
	case "asc", "desc":
		break
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sort order '%s'", order))
		return
	}

	rawSize := r.FormValue("size")
	if len(rawSize) == 0 {
		rawSize = "50"
	}
	size, err := strconv.Atoi(rawSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, wrap(err, "invalid size parameter"))
		return
	}

	rawFrom := r.FormValue("from")
	if len(rawFrom) == 0 {
		rawFrom = "0"
	}
	from, err := strconv.Atoi(rawFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, wrap(err, "invalid from parameter"))
		return
	}

	res, total, err := s.index.Search(q, sort, order, size, from)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	write(w, http.StatusOK, crashlog.SearchResult{Results: res, Total: total})
}

// getReport handles the requests to get the actual report file.
func (s *service) getReport(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	f, err := s.store.Open(p.ByName("name"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("unknown report"))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	serveReport(w, r, f)
}

// reportFile is the part of an open report file needed to serve it.
type reportFile interface {
	io.ReadSeeker
	Stat() (os.FileInfo, error)
}

func serveReport(w http.ResponseWriter, r *http.Request, f reportFile) {
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, wrap(err, "reading report information"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// getSummary handles the requests to get the indexed summary of a report.
func (s *service) getSummary(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	summary, err := s.index.Find(p.ByName("name"))
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("unknown report"))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	write(w, http.StatusOK, summary)
}

// viewReport handles the requests to display a report. Viewing a report
// dismisses the crash notification.
func (s *service) viewReport(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if !store.IsReport(name) {
		writeError(w, http.StatusNotFound, errors.New("unknown report"))
		return
	}

	write(w, http.StatusOK, viewer.Open(viewer.Request{Path: s.store.Path(name)}, s.notifier.Cancel))
}

// deleteReports handle the request to remove every report.
func (s *service) deleteReports(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	err := s.store.DeleteAll()
	if err != nil {
		s.logger.Error("deleting reports", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.requestScan()
	w.WriteHeader(http.StatusOK)
}

// pruneReports handle the request to remove the oldest reports.
func (s *service) pruneReports(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	err := s.store.Prune()
	if err != nil {
		s.logger.Error("pruning reports", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.pruned.Inc()
	s.requestScan()
	w.WriteHeader(http.StatusOK)
}

type pendingNotification struct {
	crashlog.Notification
	Name string
}

func (s *service) pending() (pendingNotification, bool) {
	path, ok, err := notify.Pending(s.store.Dir(), notify.CrashID)
	if err != nil {
		s.logger.Warn("reading pending notification", "err", err)
		return pendingNotification{}, false
	}
	if !ok {
		return pendingNotification{}, false
	}

	return pendingNotification{
		Notification: crashlog.Notification{ID: notify.CrashID, Path: path},
		Name:         filepath.Base(path),
	}, true
}

// getNotification handles the requests for the pending crash notification.
func (s *service) getNotification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n, ok := s.pending()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no pending notification"))
		return
	}

	write(w, http.StatusOK, n.Notification)
}

// dismissNotification handles the requests to cancel the crash notification.
func (s *service) dismissNotification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.notifier.Cancel()
	w.WriteHeader(http.StatusOK)
}
