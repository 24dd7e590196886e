//go:build linux

package local

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dabendan2/file-explorer/internal/storage"
)

// renameNoReplace renames atomically, failing if newAbs exists. Filesystems
// without RENAME_NOREPLACE fall back to a check-then-rename.
func renameNoReplace(oldAbs, newAbs string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldAbs, unix.AT_FDCWD, newAbs, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST), errors.Is(err, unix.ENOTEMPTY):
		return storage.ErrConflict
	case errors.Is(err, unix.ENOENT):
		return storage.ErrNotFound
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EINVAL), errors.Is(err, unix.EOPNOTSUPP):
		return renameChecked(oldAbs, newAbs)
	}
	return &os.LinkError{Op: "rename", Old: oldAbs, New: newAbs, Err: err}
}
