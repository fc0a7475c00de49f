package backends

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Facility is a syslog facility code
type Facility int

// Syslog facilities
const (
	FacilityKern Facility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityLPR
	FacilityNews
	FacilityUUCP
	FacilityCron
	FacilityAuthPriv
	FacilityFTP
	_
	_
	_
	_
	FacilityLocal0
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

var facilityNames = map[string]Facility{
	"kern":     FacilityKern,
	"user":     FacilityUser,
	"mail":     FacilityMail,
	"daemon":   FacilityDaemon,
	"auth":     FacilityAuth,
	"syslog":   FacilitySyslog,
	"lpr":      FacilityLPR,
	"news":     FacilityNews,
	"uucp":     FacilityUUCP,
	"cron":     FacilityCron,
	"authpriv": FacilityAuthPriv,
	"ftp":      FacilityFTP,
	"local0":   FacilityLocal0,
	"local1":   FacilityLocal1,
	"local2":   FacilityLocal2,
	"local3":   FacilityLocal3,
	"local4":   FacilityLocal4,
	"local5":   FacilityLocal5,
	"local6":   FacilityLocal6,
	"local7":   FacilityLocal7,
}

// ParseFacility accepts a facility name ("daemon", "local3") or its number.
func ParseFacility(s string) (Facility, error) {
	if f, ok := facilityNames[strings.ToLower(s)]; ok {
		return f, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Facility(n), nil
	}
	return FacilityUser, invalidf("unknown syslog facility %q", s)
}

// SyslogOption is a bit set of syslog sink options
type SyslogOption int

// Syslog options
const (
	// OptPID adds the process ID after the ident
	OptPID SyslogOption = 1 << iota
)

// Syslog severities
const (
	SeverityEmerg = iota
	SeverityAlert
	SeverityCrit
	SeverityErr
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

const maxPriority = 191

// severities maps levels to syslog severities
var severities = [...]int{
	types.LevelTrace: SeverityDebug,
	types.LevelDebug: SeverityDebug,
	types.LevelInfo:  SeverityInfo,
	types.LevelWarn:  SeverityWarning,
	types.LevelError: SeverityErr,
	types.LevelFatal: SeverityCrit,
}

// Priority computes the PRI value for level, clamped to [0, 191].
func Priority(facility Facility, level types.Level) int {
	pri := int(facility)*8 + severities[level.Clamp()]
	if pri < 0 {
		return 0
	}
	if pri > maxPriority {
		return maxPriority
	}
	return pri
}

// localSyslogPaths are probed in order when no address is configured
var localSyslogPaths = []string{"/dev/log", "/var/run/syslog", "/var/run/log"}

// SyslogConfig configures a syslog sink. An empty Address uses the local
// daemon socket. Ident defaults to the program name.
type SyslogConfig struct {
	Ident    string
	Options  SyslogOption
	Facility Facility
	Network  string
	Address  string
}

// Kind implements Config
func (SyslogConfig) Kind() Kind { return KindSyslog }

// Validate implements Config
func (c SyslogConfig) Validate() error {
	switch c.Network {
	case "", "unix", "unixgram", "tcp", "tcp4", "tcp6", "udp", "udp4", "udp6":
	default:
		return invalidf("unsupported syslog network %q", c.Network)
	}
	if c.Network != "" && c.Address == "" {
		return invalidf("syslog network %q requires an address", c.Network)
	}
	return nil
}

// SyslogSink formats records as "<PRI>ident[pid]: record" and sends them to
// a syslog daemon.
type SyslogSink struct {
	mu        sync.Mutex
	cfg       SyslogConfig
	ident     string
	pid       string
	network   string
	address   string
	conn      net.Conn
	framed    bool
	connected bool
	closed    bool
	msg       []byte
	stats     *metrics.Collector
}

// NewSyslogSink creates a syslog sink. No connection is made until the first
// record.
func NewSyslogSink(cfg SyslogConfig) (*SyslogSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ident := cfg.Ident
	if ident == "" {
		ident = filepath.Base(os.Args[0])
	}

	s := &SyslogSink{
		cfg:     cfg,
		ident:   ident,
		network: cfg.Network,
		address: cfg.Address,
		stats:   metrics.NewCollector(),
	}
	if s.network == "" && s.address != "" {
		s.network = "udp"
	}
	if cfg.Options&OptPID != 0 {
		s.pid = strconv.Itoa(os.Getpid())
	}
	return s, nil
}

func (s *SyslogSink) connect() error {
	if s.address != "" {
		conn, err := net.Dial(s.network, s.address)
		if err != nil {
			return errors.Wrapf(err, "dial syslog %s %s", s.network, s.address)
		}
		s.setConn(conn, s.network)
		return nil
	}

	for _, path := range localSyslogPaths {
		for _, network := range []string{"unixgram", "unix"} {
			conn, err := net.Dial(network, path)
			if err == nil {
				s.setConn(conn, network)
				return nil
			}
		}
	}
	return errors.New("no local syslog socket found")
}

// setConn installs a new connection. Stream transports get one message per
// line; datagram transports one message per packet.
func (s *SyslogSink) setConn(conn net.Conn, network string) {
	if s.connected {
		s.stats.TrackReconnect()
	}
	s.conn = conn
	s.connected = true
	s.framed = network == "unix" || strings.HasPrefix(network, "tcp")
}

func (s *SyslogSink) format(record []byte, level types.Level) []byte {
	for len(record) > 0 && (record[len(record)-1] == '\n' || record[len(record)-1] == '\r') {
		record = record[:len(record)-1]
	}

	m := s.msg[:0]
	m = append(m, '<')
	m = strconv.AppendInt(m, int64(Priority(s.cfg.Facility, level)), 10)
	m = append(m, '>')
	m = append(m, s.ident...)
	if s.pid != "" {
		m = append(m, '[')
		m = append(m, s.pid...)
		m = append(m, ']')
	}
	m = append(m, ": "...)
	m = append(m, record...)
	if s.framed {
		m = append(m, '\n')
	}
	s.msg = m
	return m
}

// Emit implements Sink
func (s *SyslogSink) Emit(record []byte, level types.Level) (int, error) {
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

	// Counts cover the record, not the <PRI>ident[pid] header
	if _, err := writeFull(s.conn, s.format(record, level)); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		err = errors.Wrap(err, "write syslog")
		s.stats.TrackError(err)
		return 0, err
	}
	s.stats.TrackWrite(level, len(record), time.Since(start))
	return len(record), nil
}

// Close closes the syslog connection
func (s *SyslogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return errors.Wrap(err, "close syslog")
}

// Describe implements Sink
func (s *SyslogSink) Describe() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := "syslog://local"
	if s.address != "" {
		target = "syslog://" + s.network + "/" + s.address
	}
	return Info{
		Kind:      KindSyslog,
		Target:    target,
		Connected: s.conn != nil,
		Stats:     s.stats.Snapshot(),
	}
}
