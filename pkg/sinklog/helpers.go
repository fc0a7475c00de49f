package sinklog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wayneeseguin/sinklog/internal/buffer"
)

// Environment variables that override the render buffer bounds
const (
	EnvBufferMin = "SINKLOG_BUFFER_MIN"
	EnvBufferMax = "SINKLOG_BUFFER_MAX"
)

// isTestMode detects if we're running under go test
func isTestMode() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}

	if exe, err := os.Executable(); err == nil {
		if strings.HasSuffix(filepath.Base(exe), ".test") {
			return true
		}
	}
	return false
}

// defaultErrorHandler is silent under go test and writes to stderr otherwise
func defaultErrorHandler() ErrorHandler {
	if isTestMode() {
		return SilentErrorHandler
	}
	return StderrErrorHandler
}

// envSize reads a positive integer from the environment or returns def.
func envSize(name string, def int) int {
	if value, exists := os.LookupEnv(name); exists {
		if size, err := strconv.Atoi(value); err == nil && size > 0 {
			return size
		}
	}
	return def
}

// defaultBufferLimits returns the render buffer bounds, honoring
// SINKLOG_BUFFER_MIN and SINKLOG_BUFFER_MAX.
func defaultBufferLimits() (min, max int) {
	min = envSize(EnvBufferMin, buffer.DefaultMinSize)
	max = envSize(EnvBufferMax, buffer.DefaultMaxSize)
	if min > max {
		min = max
	}
	return min, max
}
