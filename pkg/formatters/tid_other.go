//go:build !linux

package formatters

// getTID falls back to the process ID where thread ids are not exposed
func getTID() int {
	return getPID()
}
