package sinklog

import (
	"sync"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Names used by the default registry
const (
	DefaultHandlerName = "default"
	DefaultSinkName    = "stderr"
)

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, building it on first use. Its
// "default" handler routes Info..Fatal to stderr with DefaultPattern.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = newDefaultRegistry()
	}
	return defaultRegistry
}

// SetDefault replaces the process-wide registry and returns the previous one,
// which the caller is responsible for closing. Passing nil restores the
// built-in default on next use.
func SetDefault(r *Registry) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultRegistry
	defaultRegistry = r
	return prev
}

// DefaultHandler returns the "default" handler of the default registry
func DefaultHandler() *Handler {
	return Default().Handler(DefaultHandlerName)
}

func newDefaultRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		// NewRegistry without options does not fail
		panic(err)
	}

	sink, err := r.CreateSink(DefaultSinkName, backends.ConsoleConfig{Stream: backends.Stderr})
	if err != nil {
		r.reportError(OpCreateSink, DefaultHandlerName, nil, err)
		return r
	}
	tpl, err := r.Format(formatters.DefaultPattern)
	if err != nil {
		r.reportError(OpBind, DefaultHandlerName, sink, err)
		return r
	}
	r.Handler(DefaultHandlerName).Bind(types.LevelInfo, types.LevelFatal, tpl, sink)
	return r
}

// Log logs through the default handler with an explicit source location
func Log(level types.Level, file, fn string, line int, format string, args ...interface{}) {
	DefaultHandler().Log(level, file, fn, line, format, args...)
}

// Logf logs through the default handler
func Logf(level types.Level, format string, args ...interface{}) {
	DefaultHandler().logCaller(1, level, format, args)
}

// Print logs the operands through the default handler
func Print(level types.Level, args ...interface{}) {
	DefaultHandler().logCaller(1, level, "", args)
}

// Tracef logs at trace level through the default handler
func Tracef(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelTrace, format, args)
}

// Debugf logs at debug level through the default handler
func Debugf(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelDebug, format, args)
}

// Infof logs at info level through the default handler
func Infof(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelInfo, format, args)
}

// Warnf logs at warn level through the default handler
func Warnf(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelWarn, format, args)
}

// Errorf logs at error level through the default handler
func Errorf(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelError, format, args)
}

// Fatalf logs at fatal level through the default handler. It does not exit.
func Fatalf(format string, args ...interface{}) {
	DefaultHandler().logCaller(1, types.LevelFatal, format, args)
}
