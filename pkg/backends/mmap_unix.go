//go:build unix

package backends

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapWindow(f *os.File, off int64, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), off, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmapWindow(data []byte) error {
	return unix.Munmap(data)
}

func syncWindow(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func truncateFile(f *os.File, size int64) error {
	return unix.Ftruncate(int(f.Fd()), size)
}
