//go:build !linux && !darwin && !freebsd

package report

import (
	"errors"
)

var errUnsupported = errors.New("unsupported on this platform")

func uname(b *Build) error {
	b.OSVersion = "unknown"
	b.Board = b.Device
	return nil
}

// Stat isn't supported on this platform.
func (FSStorage) Stat(path string) (total, available uint64, err error) {
	return 0, 0, wrap(errUnsupported, "reading filesystem statistics of %s", path)
}
