//go:build linux || darwin || freebsd

package local

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func diskUsage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Usage{
		TotalBytes: uint64(st.Blocks) * bsize,
		FreeBytes:  uint64(st.Bfree) * bsize,
		AvailBytes: uint64(st.Bavail) * bsize,
	}, nil
}
