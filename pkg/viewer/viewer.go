// Package viewer reads a saved report for display.
package viewer

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15"
)

// Unknown replaces the fields of a view that are empty or couldn't be read.
const Unknown = "unknow"

// Request references the report to view. Path is set when the request comes
// from the crash notification, URI when it comes from elsewhere.
type Request struct {
	Path string
	URI  string
}

// View is what is displayed of a report.
type View struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// Open reads the report referenced by req. When the request comes from the
// crash notification, cancel is called to dismiss it.
func Open(req Request, cancel func()) View {
	path := req.Path
	if len(path) != 0 {
		if cancel != nil {
			cancel()
		}
	} else {
		path = pathOf(req.URI)
	}

	var v View
	if len(path) != 0 {
		v.Path = path
		v.FileName = filepath.Base(path)

		content, err := readFile(path)
		if err != nil {
			log15.Root().Debug("reading report", "path", path, "err", err)
		}
		v.Content = content
	}

	v.Path = orUnknown(v.Path)
	v.FileName = orUnknown(v.FileName)
	v.Content = orUnknown(v.Content)
	return v
}

// pathOf returns the path part of uri. Anything without the file scheme is a
// plain path and is returned as is.
func pathOf(uri string) string {
	if !strings.HasPrefix(strings.ToLower(uri), "file:") {
		return uri
	}

	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Path
}

// readFile returns the lines of the file at path, each followed by a newline.
func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func orUnknown(s string) string {
	if len(s) == 0 {
		return Unknown
	}
	return s
}

// Render writes the view on w.
func Render(w io.Writer, v View) error {
	_, err := fmt.Fprintf(w, "LogPath:%s\n%s\n\n%s", v.Path, v.FileName, v.Content)
	return err
}
