package formatters

import (
	"os"
	"path/filepath"
	"strings"
)

// getHostname returns the host name, or "unknown" when it cannot be resolved
func getHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// getPID returns the current process ID
func getPID() int {
	return os.Getpid()
}

// ShortFile trims a source path to its base name.
func ShortFile(file string) string {
	return filepath.Base(file)
}

// ShortFunc trims the package path from a fully qualified function name as
// reported by runtime.FuncForPC, e.g. "github.com/a/b/pkg.(*T).M" becomes
// "(*T).M".
func ShortFunc(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
