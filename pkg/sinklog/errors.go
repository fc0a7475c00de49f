package sinklog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Operations reported in LogError
const (
	OpRender     = "render"
	OpEmit       = "emit"
	OpBind       = "bind"
	OpCreateSink = "create_sink"
	OpCloseSink  = "close_sink"
)

// Registry errors
var (
	ErrNilTemplate   = errors.New("template cannot be nil")
	ErrNilSink       = errors.New("sink cannot be nil")
	ErrDuplicateSink = errors.New("sink name already registered")
	ErrUnknownSink   = errors.New("unknown sink")
	ErrEmptyName     = errors.New("name cannot be empty")
)

// LogError describes a failure inside the engine. Logging calls never return
// errors; failures are handed to the registry's ErrorHandler instead.
type LogError struct {
	Operation string    // The operation that failed
	Handler   string    // Ident of the handler, if any
	Sink      string    // Target of the sink, if any
	Err       error     // The underlying error
	Timestamp time.Time // When the error occurred
}

// Error implements the error interface
func (e LogError) Error() string {
	var b strings.Builder
	b.WriteString(e.Operation)
	b.WriteString(" failed")
	if e.Handler != "" {
		fmt.Fprintf(&b, " (handler %s)", e.Handler)
	}
	if e.Sink != "" {
		fmt.Fprintf(&b, " (sink %s)", e.Sink)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e LogError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives engine failures. It is called with the handler lock
// held, so it must not log through the same handler.
type ErrorHandler func(err LogError)

// SilentErrorHandler discards all errors (used in tests)
var SilentErrorHandler ErrorHandler = func(err LogError) {}

// StderrErrorHandler writes errors to stderr
var StderrErrorHandler ErrorHandler = func(err LogError) {
	fmt.Fprintf(os.Stderr, "[sinklog] %s %s\n", err.Timestamp.Format(time.RFC3339), err.Error())
}
