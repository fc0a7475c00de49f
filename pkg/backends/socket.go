package backends

import (
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// SocketConfig configures a TCP or UDP sink
type SocketConfig struct {
	Network string
	Address string
	Port    int
}

// Kind implements Config
func (SocketConfig) Kind() Kind { return KindSocket }

// Validate implements Config
func (c SocketConfig) Validate() error {
	switch c.Network {
	case "tcp", "tcp4", "tcp6", "udp", "udp4", "udp6":
	default:
		return invalidf("unsupported socket network %q", c.Network)
	}
	if c.Address == "" {
		return invalidf("socket address cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return invalidf("socket port %d out of range", c.Port)
	}
	return nil
}

// Target returns host:port
func (c SocketConfig) Target() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// SocketSink sends every record over a TCP stream or as one UDP datagram.
// It connects on the first Emit and again after any hard failure.
type SocketSink struct {
	mu        sync.Mutex
	cfg       SocketConfig
	target    string
	conn      net.Conn
	connected bool
	closed    bool
	stats     *metrics.Collector
}

// NewSocketSink creates a socket sink. No connection is made until the first
// record.
func NewSocketSink(cfg SocketConfig) (*SocketSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SocketSink{
		cfg:    cfg,
		target: cfg.Target(),
		stats:  metrics.NewCollector(),
	}, nil
}

func (s *SocketSink) connect() error {
	conn, err := net.Dial(s.cfg.Network, s.target)
	if err != nil {
		return errors.Wrapf(err, "dial %s %s", s.cfg.Network, s.target)
	}
	if s.connected {
		s.stats.TrackReconnect()
	}
	s.conn = conn
	s.connected = true
	return nil
}

func (s *SocketSink) disconnect() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// temporary reports whether a send should simply be retried.
func temporary(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// writeFull writes p completely, retrying interrupted and short writes.
func writeFull(conn net.Conn, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := conn.Write(p[written:])
		written += n
		if err != nil {
			if temporary(err) {
				continue
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Emit implements Sink
func (s *SocketSink) Emit(record []byte, level types.Level) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
	}

	start := time.Now()
	if s.conn == nil {
		if err := s.connect(); err != nil {
			s.stats.TrackError(err)
			return 0, err
		}
	}

	n, err := writeFull(s.conn, record)
	if err != nil {
		s.disconnect()
		err = errors.Wrapf(err, "send to %s", s.target)
		s.stats.TrackError(err)
		return n, err
	}
	s.stats.TrackWrite(level, n, time.Since(start))
	return n, nil
}

// Close closes the connection
func (s *SocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return errors.Wrap(err, "close socket")
}

// Describe implements Sink
func (s *SocketSink) Describe() Info {
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()

	return Info{
		Kind:      KindSocket,
		Target:    s.cfg.Network + "://" + s.target,
		Connected: connected,
		Stats:     s.stats.Snapshot(),
	}
}
