package backends

import (
	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Sink is one output destination. A sink may be shared by several rules and
// handlers, so every implementation guards its own mutable state.
//
// Emit writes one rendered record. The record slice is only valid for the
// duration of the call. A failed Emit drops the record; the sink moves to a
// degraded state and the next Emit attempts recovery (reopen, reconnect).
type Sink interface {
	Emit(record []byte, level types.Level) (int, error)
	Close() error
	Describe() Info
}

// Flusher is implemented by sinks that can push pending bytes to stable
// storage or to the network.
type Flusher interface {
	Flush() error
}

// ColorSink is implemented by sinks that decide whether ANSI color
// directives should render for them.
type ColorSink interface {
	Colorize() bool
}

// Kind tags a sink implementation
type Kind string

// Sink kinds
const (
	KindConsole  Kind = "console"
	KindFile     Kind = "file"
	KindMmap     Kind = "mmap"
	KindSocket   Kind = "socket"
	KindSyslog   Kind = "syslog"
	KindCallback Kind = "callback"
	KindNATS     Kind = "nats"
)

// Info is the diagnostic description of a sink.
type Info struct {
	Kind      Kind             `json:"kind"`
	Target    string           `json:"target"`
	Connected bool             `json:"connected"`
	Stats     metrics.Snapshot `json:"stats"`
}

// Config is the construction parameters of one sink kind.
type Config interface {
	Kind() Kind
	Validate() error
}

// Errors shared by all sinks
var (
	ErrClosed        = errors.New("sink closed")
	ErrInvalidConfig = errors.New("invalid sink config")
)

// invalidf builds a validation error that matches ErrInvalidConfig.
func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// New constructs the sink described by cfg. Configs are passed by value.
func New(cfg Config) (Sink, error) {
	if cfg == nil {
		return nil, invalidf("nil config")
	}

	var (
		sink Sink
		err  error
	)
	switch c := cfg.(type) {
	case ConsoleConfig:
		sink, err = NewConsoleSink(c)
	case FileConfig:
		sink, err = NewFileSink(c)
	case MmapConfig:
		sink, err = NewMmapSink(c)
	case SocketConfig:
		sink, err = NewSocketSink(c)
	case SyslogConfig:
		sink, err = NewSyslogSink(c)
	case CallbackConfig:
		sink, err = NewCallbackSink(c)
	case NATSConfig:
		sink, err = NewNATSSink(c)
	default:
		return nil, invalidf("unsupported config type %T", cfg)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}
