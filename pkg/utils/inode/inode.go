package inode

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Identity is the (device id, inode number) pair that uniquely identifies a
// file on disk. Two directory entries with equal Identity are hardlinks of
// the same underlying file. Comparing identities instead of path strings is
// what makes the "already hardlinked" check survive bind mounts and
// case-insensitive filesystems.
type Identity struct {
	Dev uint64
	Ino uint64
}

// FromFileInfo extracts the Identity from a FileInfo obtained through Lstat
// or DirEntry.Info. The second return value is false when the FileInfo does
// not carry a stat structure (synthetic FileInfos in tests, exotic
// filesystems).
func FromFileInfo(fi os.FileInfo) (Identity, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, false
	}
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}

// Of lstats path and returns its Identity. Symlinks are identified by the
// link entry itself, never by the file it points to.
func Of(path string) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Identity{}, errors.Wrapf(err, "failed to lstat %s", path)
	}
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}

// DeviceOf returns the device id path resides on. A path that does not
// exist yet is resolved through its nearest existing ancestor, so the
// filesystem a to-be-created directory would land on can still be
// determined.
func DeviceOf(path string) (uint64, error) {
	for {
		var st unix.Stat_t
		err := unix.Lstat(path, &st)
		if err == nil {
			return uint64(st.Dev), nil
		}
		if !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.ENOTDIR) {
			return 0, errors.Wrapf(err, "failed to lstat %s", path)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return 0, errors.Wrapf(err, "failed to lstat %s", path)
		}
		path = parent
	}
}

// IsCrossDevice reports whether err is the OS refusing a hardlink between
// two filesystems (EXDEV).
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
