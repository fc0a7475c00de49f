//go:build linux

package formatters

import "golang.org/x/sys/unix"

// getTID returns the kernel id of the OS thread running the caller
func getTID() int {
	return unix.Gettid()
}
