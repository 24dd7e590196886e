//go:build !(linux || darwin || freebsd)

package local

import (
	"fmt"

	"github.com/dabendan2/file-explorer/internal/storage"
)

func diskUsage(path string) (Usage, error) {
	return Usage{}, fmt.Errorf("disk usage for %s: %w", path, storage.ErrUnsupported)
}
