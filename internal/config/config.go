// Package config loads the TOML configuration of the sinklog command and
// turns it into a populated registry.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/pkg/sinklog"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Config is the top-level configuration file
type Config struct {
	BufferMin int                   `toml:"buffer_min,omitempty"`
	BufferMax int                   `toml:"buffer_max,omitempty"`
	Formats   map[string]string     `toml:"formats,omitempty"`
	Sinks     map[string]SinkConfig `toml:"sinks"`
	Handlers  []HandlerConfig       `toml:"handlers"`
}

// SinkConfig names a sink by URI, e.g. "file:///var/log/app?size=10MB&backups=5"
type SinkConfig struct {
	URI string `toml:"uri"`
}

// HandlerConfig lists the rules of one handler
type HandlerConfig struct {
	Ident string       `toml:"ident"`
	Rules []RuleConfig `toml:"rules"`
}

// RuleConfig binds a level range to a format and a sink.
// Levels accepts "info..fatal", "error", "..warn" or "*".
// Format is "@name" for a registered format, anything else is a pattern.
type RuleConfig struct {
	Levels string `toml:"levels"`
	Format string `toml:"format"`
	Sink   string `toml:"sink"`
}

// GetDefaultConfig routes Info and above of the default handler to stderr
func GetDefaultConfig() *Config {
	return &Config{
		Sinks: map[string]SinkConfig{
			sinklog.DefaultSinkName: {URI: "stderr://"},
		},
		Handlers: []HandlerConfig{{
			Ident: sinklog.DefaultHandlerName,
			Rules: []RuleConfig{{Levels: "info..fatal", Format: "@default", Sink: sinklog.DefaultSinkName}},
		}},
	}
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/sinklog/config.toml or its
// platform equivalent.
func GetDefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "getting user config directory")
	}
	return filepath.Join(dir, "sinklog", "config.toml"), nil
}

// LoadConfig reads path. A missing file yields the default configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return GetDefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return GetDefaultConfig(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	return Parse(data)
}

// Parse decodes and validates a TOML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal encodes the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	return data, nil
}

// Validate checks the cross references between handlers, formats and sinks.
// URIs and patterns are checked when the registry is built.
func (c *Config) Validate() error {
	if c.BufferMin < 0 || c.BufferMax < 0 {
		return errors.New("buffer sizes cannot be negative")
	}
	if c.BufferMin > 0 && c.BufferMax > 0 && c.BufferMin > c.BufferMax {
		return errors.Errorf("buffer_min %d exceeds buffer_max %d", c.BufferMin, c.BufferMax)
	}
	for name, sink := range c.Sinks {
		if sink.URI == "" {
			return errors.Errorf("sink %s: uri is required", name)
		}
	}

	seen := make(map[string]bool, len(c.Handlers))
	for i, h := range c.Handlers {
		if h.Ident == "" {
			return errors.Errorf("handler #%d: ident is required", i)
		}
		if seen[h.Ident] {
			return errors.Errorf("handler %s: defined twice", h.Ident)
		}
		seen[h.Ident] = true

		for j, rule := range h.Rules {
			if _, _, ok := types.ParseLevelRange(rule.Levels); !ok {
				return errors.Errorf("handler %s rule #%d: invalid levels %q", h.Ident, j, rule.Levels)
			}
			if rule.Format == "" {
				return errors.Errorf("handler %s rule #%d: format is required", h.Ident, j)
			}
			if _, ok := c.Sinks[rule.Sink]; !ok {
				return errors.Errorf("handler %s rule #%d: unknown sink %q", h.Ident, j, rule.Sink)
			}
		}
	}
	return nil
}

// Options returns the registry options implied by the configuration
func (c *Config) Options() []sinklog.Option {
	if c.BufferMin == 0 && c.BufferMax == 0 {
		return nil
	}
	min, max := c.BufferMin, c.BufferMax
	if min == 0 {
		min = max
	}
	if max == 0 {
		max = min
	}
	return []sinklog.Option{sinklog.WithBufferLimits(min, max)}
}

// NewRegistry creates a registry and populates it with Build. On failure
// the partially built registry is closed.
func (c *Config) NewRegistry(opts ...sinklog.Option) (*sinklog.Registry, error) {
	r, err := sinklog.NewRegistry(append(c.Options(), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := c.Build(r); err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	return r, nil
}

// Build registers the named formats, opens every sink and binds the rules
// of every handler. Sinks are opened in name order.
func (c *Config) Build(r *sinklog.Registry) error {
	for _, name := range sortedKeys(c.Formats) {
		if _, err := r.RegisterFormat(name, c.Formats[name]); err != nil {
			return errors.Wrapf(err, "format %s", name)
		}
	}

	for _, name := range sortedKeys(c.Sinks) {
		if _, err := r.OpenSink(name, c.Sinks[name].URI); err != nil {
			return err
		}
	}

	for _, hc := range c.Handlers {
		h := r.Handler(hc.Ident)
		for j, rule := range hc.Rules {
			begin, end, _ := types.ParseLevelRange(rule.Levels)
			tpl, err := r.Format(rule.Format)
			if err != nil {
				return errors.Wrapf(err, "handler %s rule #%d", hc.Ident, j)
			}
			sink, ok := r.Sink(rule.Sink)
			if !ok {
				return errors.Errorf("handler %s rule #%d: unknown sink %q", hc.Ident, j, rule.Sink)
			}
			h.Bind(begin, end, tpl, sink)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
