package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
	"github.com/wayneeseguin/sinklog/pkg/sinklog"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

const sample = `
buffer_min = 512
buffer_max = 8192

[formats]
short = "%v %m%n"

[sinks.app_file]
uri = "file://{dir}/app?size=1MB&backups=3"

[sinks.audit]
uri = "file://{dir}/audit"

[[handlers]]
ident = "app"

[[handlers.rules]]
levels = "info..fatal"
format = "@short"
sink = "app_file"

[[handlers.rules]]
levels = "error"
format = "[%c] %V %m%n"
sink = "audit"
`

func writeSample(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "sinklog.toml")
	doc := []byte(strings.ReplaceAll(sample, "{dir}", dir))
	require.NoError(t, os.WriteFile(path, doc, 0644))
	return path, dir
}

func TestLoadConfig(t *testing.T) {
	path, _ := writeSample(t)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.BufferMin)
	assert.Equal(t, 8192, cfg.BufferMax)
	assert.Equal(t, "%v %m%n", cfg.Formats["short"])
	assert.Len(t, cfg.Sinks, 2)
	require.Len(t, cfg.Handlers, 1)
	assert.Equal(t, "app", cfg.Handlers[0].Ident)
	assert.Len(t, cfg.Handlers[0].Rules, 2)
}

func TestLoadConfig_MissingFileGivesDefault(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not toml", `buffer_min = = 1`},
		{"unknown key", `colour = "blue"`},
		{"negative buffer", `buffer_min = -1`},
		{"min above max", "buffer_min = 10\nbuffer_max = 5"},
		{"sink without uri", "[sinks.x]\nuri = \"\""},
		{"handler without ident", "[[handlers]]\nident = \"\""},
		{"duplicate handler", "[[handlers]]\nident = \"a\"\n[[handlers]]\nident = \"a\""},
		{"bad levels", "[sinks.s]\nuri = \"stdout://\"\n[[handlers]]\nident = \"a\"\n[[handlers.rules]]\nlevels = \"loud\"\nformat = \"%m\"\nsink = \"s\""},
		{"missing format", "[sinks.s]\nuri = \"stdout://\"\n[[handlers]]\nident = \"a\"\n[[handlers.rules]]\nlevels = \"*\"\nsink = \"s\""},
		{"unknown sink", "[[handlers]]\nident = \"a\"\n[[handlers.rules]]\nlevels = \"*\"\nformat = \"%m\"\nsink = \"s\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestOptions(t *testing.T) {
	assert.Empty(t, (&Config{}).Options())
	assert.Len(t, (&Config{BufferMin: 128}).Options(), 1)

	r, err := sinklog.NewRegistry((&Config{BufferMax: 4096}).Options()...)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestNewRegistry_BuildsHandlers(t *testing.T) {
	path, dir := writeSample(t)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	r, err := cfg.NewRegistry(
		sinklog.WithFormatFactory(formatters.NewFactory()),
		sinklog.WithErrorHandler(sinklog.SilentErrorHandler),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"app_file", "audit"}, r.Sinks())
	h, ok := r.Lookup("app")
	require.True(t, ok)
	rules := h.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, types.LevelInfo, rules[0].Begin)
	assert.Equal(t, types.LevelFatal, rules[0].End)
	assert.Equal(t, "%v %m%n", rules[0].Template.Pattern())
	assert.Equal(t, types.LevelError, rules[1].Begin)
	assert.Equal(t, types.LevelError, rules[1].End)

	h.Warnf("careful")
	h.Errorf("broken")
	require.NoError(t, r.Close())

	app, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Equal(t, "warn careful\nerror broken\n", string(app))

	audit, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Equal(t, "[app] ERROR broken\n", string(audit))
}

func TestNewRegistry_BareFormatIsLiteral(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Sinks: map[string]SinkConfig{"s": {URI: "file://" + dir + "/out"}},
		Handlers: []HandlerConfig{{
			Ident: "a",
			Rules: []RuleConfig{{Levels: "*", Format: "simple", Sink: "s"}},
		}},
	}
	r, err := cfg.NewRegistry(sinklog.WithErrorHandler(sinklog.SilentErrorHandler))
	require.NoError(t, err)

	h, _ := r.Lookup("a")
	h.Infof("ignored")
	require.NoError(t, r.Close())

	data, err := os.ReadFile(filepath.Join(dir, "out.log"))
	require.NoError(t, err)
	assert.Equal(t, "simple", string(data))
}

func TestNewRegistry_UnknownFormatName(t *testing.T) {
	cfg := &Config{
		Sinks: map[string]SinkConfig{"s": {URI: "stdout://"}},
		Handlers: []HandlerConfig{{
			Ident: "a",
			Rules: []RuleConfig{{Levels: "*", Format: "@nope", Sink: "s"}},
		}},
	}
	_, err := cfg.NewRegistry(sinklog.WithErrorHandler(sinklog.SilentErrorHandler))
	assert.ErrorContains(t, err, "nope")
}

type closeRecorder struct {
	backends.Sink
	err    error
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.err
}

func TestNewRegistry_FailureClosesSinks(t *testing.T) {
	rec := &closeRecorder{err: errors.New("close failed")}
	factory := backends.NewFactory()
	require.NoError(t, factory.Register("mem", func(*url.URL) (backends.Sink, error) {
		return rec, nil
	}))

	cfg := &Config{
		Sinks: map[string]SinkConfig{"s": {URI: "mem://"}},
		Handlers: []HandlerConfig{{
			Ident: "a",
			Rules: []RuleConfig{{Levels: "*", Format: "%Q", Sink: "s"}},
		}},
	}
	_, err := cfg.NewRegistry(
		sinklog.WithSinkFactory(factory),
		sinklog.WithErrorHandler(sinklog.SilentErrorHandler),
	)
	require.Error(t, err)
	assert.Equal(t, 1, rec.closed)

	var perr *formatters.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.ErrorContains(t, err, "close failed")
}

func TestNewRegistry_BadURI(t *testing.T) {
	cfg := &Config{
		Sinks: map[string]SinkConfig{"s": {URI: "gopher://nowhere"}},
	}
	require.NoError(t, cfg.Validate())
	_, err := cfg.NewRegistry(sinklog.WithErrorHandler(sinklog.SilentErrorHandler))
	assert.Error(t, err)
}

func TestNewRegistry_BadPattern(t *testing.T) {
	cfg := &Config{
		Sinks: map[string]SinkConfig{"s": {URI: "stdout://"}},
		Handlers: []HandlerConfig{{
			Ident: "a",
			Rules: []RuleConfig{{Levels: "*", Format: "%Q", Sink: "s"}},
		}},
	}
	_, err := cfg.NewRegistry(sinklog.WithFormatFactory(formatters.NewFactory()))
	assert.Error(t, err)
}
