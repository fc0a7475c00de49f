package backends

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// CallbackFunc receives every record of a callback sink. record is only valid
// during the call; param is the value given in CallbackConfig.
type CallbackFunc func(ident string, level types.Level, record []byte, param interface{}) error

// CallbackConfig configures a sink that hands records to user code
type CallbackConfig struct {
	Ident string
	Func  CallbackFunc
	Param interface{}
}

// Kind implements Config
func (CallbackConfig) Kind() Kind { return KindCallback }

// Validate implements Config
func (c CallbackConfig) Validate() error {
	if c.Func == nil {
		return invalidf("callback function cannot be nil")
	}
	return nil
}

// CallbackSink calls a function for every record. Calls are serialized.
type CallbackSink struct {
	mu     sync.Mutex
	cfg    CallbackConfig
	closed bool
	stats  *metrics.Collector
}

// NewCallbackSink creates a callback sink
func NewCallbackSink(cfg CallbackConfig) (*CallbackSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CallbackSink{
		cfg:   cfg,
		stats: metrics.NewCollector(),
	}, nil
}

// Emit implements Sink. A panicking callback is recovered and reported as an
// error.
func (s *CallbackSink) Emit(record []byte, level types.Level) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, errors.Errorf("callback %q panicked: %v", s.cfg.Ident, r)
		}
		if err != nil {
			s.stats.TrackError(err)
			return
		}
		s.stats.TrackWrite(level, n, time.Since(start))
	}()

	if err := s.cfg.Func(s.cfg.Ident, level, record, s.cfg.Param); err != nil {
		return 0, errors.Wrapf(err, "callback %q", s.cfg.Ident)
	}
	return len(record), nil
}

// Close implements Sink
func (s *CallbackSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Describe implements Sink
func (s *CallbackSink) Describe() Info {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	return Info{
		Kind:      KindCallback,
		Target:    "callback:" + s.cfg.Ident,
		Connected: !closed,
		Stats:     s.stats.Snapshot(),
	}
}

// zapLevels maps levels to zap levels. Fatal stays at error level so that a
// bridged record never terminates the process.
var zapLevels = [...]zapcore.Level{
	types.LevelTrace: zapcore.DebugLevel,
	types.LevelDebug: zapcore.DebugLevel,
	types.LevelInfo:  zapcore.InfoLevel,
	types.LevelWarn:  zapcore.WarnLevel,
	types.LevelError: zapcore.ErrorLevel,
	types.LevelFatal: zapcore.ErrorLevel,
}

// ZapCallback returns a CallbackFunc that forwards rendered records to a zap
// logger. The record, minus its line terminator, becomes the message.
func ZapCallback(logger *zap.Logger) CallbackFunc {
	return func(ident string, level types.Level, record []byte, _ interface{}) error {
		for len(record) > 0 && (record[len(record)-1] == '\n' || record[len(record)-1] == '\r') {
			record = record[:len(record)-1]
		}
		ce := logger.Check(zapLevels[level.Clamp()], string(record))
		if ce == nil {
			return nil
		}
		ce.Write(
			zap.String("ident", ident),
			zap.String("sinklog.level", level.Lower()),
		)
		return nil
	}
}
