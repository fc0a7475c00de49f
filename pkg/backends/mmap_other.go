//go:build !unix

package backends

import (
	"os"

	"github.com/pkg/errors"
)

var errMmapUnsupported = errors.New("memory-mapped sinks are not supported on this platform")

func mapWindow(*os.File, int64, int) ([]byte, error) {
	return nil, errMmapUnsupported
}

func unmapWindow([]byte) error {
	return errMmapUnsupported
}

func syncWindow([]byte) error {
	return errMmapUnsupported
}

func truncateFile(f *os.File, size int64) error {
	return f.Truncate(size)
}
