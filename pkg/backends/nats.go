package backends

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// NATSConfig configures a sink publishing every record to a NATS subject
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
	Options []nats.Option
}

// Kind implements Config
func (NATSConfig) Kind() Kind { return KindNATS }

// Validate implements Config
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return invalidf("nats url cannot be empty")
	}
	if c.Subject == "" {
		return invalidf("nats subject cannot be empty")
	}
	if strings.ContainsAny(c.Subject, " \t\r\n") {
		return invalidf("nats subject %q contains whitespace", c.Subject)
	}
	return nil
}

// NATSSink publishes records to a subject. It connects on the first Emit
// and again after the connection is lost for good.
type NATSSink struct {
	mu        sync.Mutex
	cfg       NATSConfig
	conn      *nats.Conn
	connected bool
	closed    bool
	stats     *metrics.Collector
}

// NewNATSSink creates a NATS sink. No connection is made until the first
// record.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NATSSink{
		cfg:   cfg,
		stats: metrics.NewCollector(),
	}, nil
}

func (s *NATSSink) connect() error {
	opts := make([]nats.Option, 0, len(s.cfg.Options)+1)
	if s.cfg.Name != "" {
		opts = append(opts, nats.Name(s.cfg.Name))
	}
	opts = append(opts, s.cfg.Options...)

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return errors.Wrapf(err, "connect to nats %s", s.cfg.URL)
	}
	if s.connected {
		s.stats.TrackReconnect()
	}
	s.conn = nc
	s.connected = true
	return nil
}

func (s *NATSSink) disconnect() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Emit implements Sink. The client copies the payload into its own write
// buffer before Publish returns.
func (s *NATSSink) Emit(record []byte, level types.Level) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
	}

	start := time.Now()
	if s.conn != nil && s.conn.IsClosed() {
		s.conn = nil
	}
	if s.conn == nil {
		if err := s.connect(); err != nil {
			s.stats.TrackError(err)
			return 0, err
		}
	}

	if err := s.conn.Publish(s.cfg.Subject, record); err != nil {
		s.disconnect()
		err = errors.Wrapf(err, "publish to %s", s.cfg.Subject)
		s.stats.TrackError(err)
		return 0, err
	}
	s.stats.TrackWrite(level, len(record), time.Since(start))
	return len(record), nil
}

// Flush waits for the server to acknowledge everything published so far
func (s *NATSSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	return errors.Wrap(s.conn.Flush(), "flush nats")
}

// Close flushes and closes the connection
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	var err error
	if !s.conn.IsClosed() {
		err = s.conn.Flush()
	}
	s.disconnect()
	return errors.Wrap(err, "flush nats")
}

// Describe implements Sink
func (s *NATSSink) Describe() Info {
	s.mu.Lock()
	connected := s.conn != nil && s.conn.IsConnected()
	s.mu.Unlock()

	return Info{
		Kind:      KindNATS,
		Target:    strings.TrimSuffix(s.cfg.URL, "/") + "/" + s.cfg.Subject,
		Connected: connected,
		Stats:     s.stats.Snapshot(),
	}
}
