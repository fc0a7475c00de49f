package backends

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Stream selects the standard stream of a console sink
type Stream int

// Console streams
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// ColorMode controls ANSI color output of a console sink
type ColorMode int

// Color modes
const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode accepts "auto", "always" and "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always", "true", "on":
		return ColorAlways, nil
	case "never", "false", "off":
		return ColorNever, nil
	}
	return ColorAuto, invalidf("unknown color mode %q", s)
}

// ConsoleConfig configures a stdout or stderr sink. Writer replaces the
// standard stream when set.
type ConsoleConfig struct {
	Stream Stream
	Color  ColorMode
	Writer io.Writer
}

// Kind implements Config
func (ConsoleConfig) Kind() Kind { return KindConsole }

// Validate implements Config
func (c ConsoleConfig) Validate() error {
	if c.Stream != Stdout && c.Stream != Stderr {
		return invalidf("console stream %d", c.Stream)
	}
	if c.Color < ColorAuto || c.Color > ColorNever {
		return invalidf("console color mode %d", c.Color)
	}
	return nil
}

// ConsoleSink writes records straight to a standard stream without
// buffering.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	name   string
	color  bool
	closed bool
	stats  *metrics.Collector
}

// NewConsoleSink creates a console sink.
func NewConsoleSink(cfg ConsoleConfig) (*ConsoleSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := cfg.Writer
	name := cfg.Stream.String()
	if w == nil {
		w = os.Stdout
		if cfg.Stream == Stderr {
			w = os.Stderr
		}
	}

	return &ConsoleSink{
		w:     w,
		name:  name,
		color: resolveColor(cfg.Color, w),
		stats: metrics.NewCollector(),
	}, nil
}

func resolveColor(mode ColorMode, w io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Emit implements Sink
func (s *ConsoleSink) Emit(record []byte, level types.Level) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
	}

	start := time.Now()
	n, err := s.w.Write(record)
	if err != nil {
		err = errors.Wrapf(err, "write %s", s.name)
		s.stats.TrackError(err)
		return n, err
	}
	s.stats.TrackWrite(level, n, time.Since(start))
	return n, nil
}

// Colorize implements ColorSink
func (s *ConsoleSink) Colorize() bool {
	return s.color
}

// Close marks the sink closed. The standard streams themselves stay open.
func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Describe implements Sink
func (s *ConsoleSink) Describe() Info {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	return Info{
		Kind:      KindConsole,
		Target:    s.name,
		Connected: !closed,
		Stats:     s.stats.Snapshot(),
	}
}
