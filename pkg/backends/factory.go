package backends

import (
	"math"
	"net"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Constructor builds a sink from a parsed URI
type Constructor func(u *url.URL) (Sink, error)

// Factory maps URI schemes to sink constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory creates a factory with the built-in schemes registered:
// stdout, stderr, file, mmap, tcp, udp, syslog and nats.
func NewFactory() *Factory {
	f := &Factory{constructors: make(map[string]Constructor)}
	f.constructors["stdout"] = consoleFromURI(Stdout)
	f.constructors["stderr"] = consoleFromURI(Stderr)
	f.constructors["file"] = fileFromURI
	f.constructors["mmap"] = mmapFromURI
	f.constructors["tcp"] = socketFromURI
	f.constructors["udp"] = socketFromURI
	f.constructors["syslog"] = syslogFromURI
	f.constructors["nats"] = natsFromURI
	return f
}

// Register adds a constructor for scheme.
func (f *Factory) Register(scheme string, c Constructor) error {
	scheme = strings.ToLower(scheme)
	if scheme == "" {
		return errors.New("scheme cannot be empty")
	}
	if c == nil {
		return errors.Errorf("nil constructor for scheme %s", scheme)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.constructors[scheme]; exists {
		return errors.Errorf("sink for scheme %s already registered", scheme)
	}
	f.constructors[scheme] = c
	return nil
}

// Open parses uri and builds the sink its scheme names.
func (f *Factory) Open(uri string) (Sink, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse sink uri %q", uri)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return nil, errors.Errorf("sink uri %q has no scheme", uri)
	}

	f.mu.RLock()
	c, ok := f.constructors[scheme]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no sink registered for scheme %s", scheme)
	}

	sink, err := c(u)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s sink", scheme)
	}
	return sink, nil
}

// Schemes returns the registered schemes in sorted order
func (f *Factory) Schemes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	schemes := make([]string, 0, len(f.constructors))
	for s := range f.constructors {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// DefaultFactory is the global sink factory
var DefaultFactory = NewFactory()

// Open builds a sink from uri using the default factory
func Open(uri string) (Sink, error) {
	return DefaultFactory.Open(uri)
}

// ParseSize parses a byte count with an optional KB, MB or GB suffix
// (powers of 1024). A bare number is bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"G", 1 << 30},
		{"M", 1 << 20},
		{"K", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			multiplier = unit.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, invalidf("invalid size %q", s)
	}
	if n > math.MaxInt64/multiplier {
		return 0, invalidf("size %q overflows", s)
	}
	return n * multiplier, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidf("invalid %s %q", key, v)
	}
	return n, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalidf("invalid %s %q", key, v)
	}
	return b, nil
}

func querySize(q url.Values, key string) (int64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	return ParseSize(v)
}

// splitLogPath turns the path of a file or mmap URI into directory and base
// name. "file://logs/app" is relative, "file:///var/log/app" absolute.
func splitLogPath(u *url.URL) (dir, name string, err error) {
	p := u.Path
	if u.Host != "" {
		p = u.Host + p
	}
	if u.Opaque != "" {
		p = u.Opaque
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return "", "", invalidf("uri %q has no file name", u.String())
	}
	dir, name = filepath.Split(filepath.FromSlash(p))
	name = strings.TrimSuffix(name, ".log")
	return filepath.Clean(dir), name, nil
}

func consoleFromURI(stream Stream) Constructor {
	return func(u *url.URL) (Sink, error) {
		mode, err := ParseColorMode(u.Query().Get("color"))
		if err != nil {
			return nil, err
		}
		return New(ConsoleConfig{Stream: stream, Color: mode})
	}
}

func fileFromURI(u *url.URL) (Sink, error) {
	dir, name, err := splitLogPath(u)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	cfg := FileConfig{Dir: dir, Name: name}
	if cfg.SizeLimit, err = querySize(q, "size"); err != nil {
		return nil, err
	}
	if cfg.BackupCount, err = queryInt(q, "backups", 0); err != nil {
		return nil, err
	}
	if cfg.ProcessLock, err = queryBool(q, "lock"); err != nil {
		return nil, err
	}
	return New(cfg)
}

func mmapFromURI(u *url.URL) (Sink, error) {
	dir, name, err := splitLogPath(u)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	cfg := MmapConfig{Dir: dir, Name: name}
	if cfg.SizeLimit, err = querySize(q, "size"); err != nil {
		return nil, err
	}
	if cfg.BackupCount, err = queryInt(q, "backups", 0); err != nil {
		return nil, err
	}
	window, err := querySize(q, "window")
	if err != nil {
		return nil, err
	}
	cfg.WindowSize = int(window)
	return New(cfg)
}

func socketFromURI(u *url.URL) (Sink, error) {
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, invalidf("socket uri %q: %v", u.String(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, invalidf("socket port %q", portStr)
	}
	return New(SocketConfig{
		Network: strings.ToLower(u.Scheme),
		Address: host,
		Port:    port,
	})
}

func syslogFromURI(u *url.URL) (Sink, error) {
	q := u.Query()
	cfg := SyslogConfig{
		Ident:    q.Get("ident"),
		Facility: FacilityUser,
		Address:  u.Host,
		Network:  q.Get("network"),
	}
	if cfg.Address == "" && u.Path != "" && u.Path != "/" {
		// syslog:///dev/log names a local socket
		cfg.Address = u.Path
		if cfg.Network == "" {
			cfg.Network = "unixgram"
		}
	}
	if cfg.Address != "" && cfg.Network == "" {
		cfg.Network = "udp"
	}
	if f := q.Get("facility"); f != "" {
		facility, err := ParseFacility(f)
		if err != nil {
			return nil, err
		}
		cfg.Facility = facility
	}
	pid, err := queryBool(q, "pid")
	if err != nil {
		return nil, err
	}
	if pid {
		cfg.Options |= OptPID
	}
	return New(cfg)
}

func natsFromURI(u *url.URL) (Sink, error) {
	if u.Host == "" {
		return nil, invalidf("nats uri %q has no host", u.String())
	}
	return New(NATSConfig{
		URL:     "nats://" + u.Host,
		Subject: strings.Trim(u.Path, "/"),
		Name:    u.Query().Get("name"),
	})
}
