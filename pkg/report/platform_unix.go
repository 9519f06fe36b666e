//go:build linux || darwin || freebsd

package report

import (
	"golang.org/x/sys/unix"
)

func uname(b *Build) error {
	var u unix.Utsname
	err := unix.Uname(&u)
	if err != nil {
		return wrap(err, "reading system name")
	}

	b.OSVersion = unix.ByteSliceToString(u.Release[:])
	b.Board = unix.ByteSliceToString(u.Machine[:])
	return nil
}

// Stat returns the size of the filesystem holding path and the space
// available to unprivileged users, in bytes.
func (FSStorage) Stat(path string) (total, available uint64, err error) {
	var st unix.Statfs_t
	err = unix.Statfs(path, &st)
	if err != nil {
		return 0, 0, wrap(err, "reading filesystem statistics of %s", path)
	}

	return uint64(st.Blocks) * uint64(st.Bsize), uint64(st.Bavail) * uint64(st.Bsize), nil
}
