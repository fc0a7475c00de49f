package sinklog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

func TestNewRegistry_Options(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"buffer limits", WithBufferLimits(128, 1024), false},
		{"zero buffer", WithBufferLimits(0, 1024), true},
		{"min above max", WithBufferLimits(4096, 1024), true},
		{"nil sink factory", WithSinkFactory(nil), true},
		{"nil format factory", WithFormatFactory(nil), true},
		{"nil error handler", WithErrorHandler(nil), false},
		{"custom factories", WithSinkFactory(backends.NewFactory()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.opt)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			require.NoError(t, r.Close())
		})
	}
}

func TestRegistry_BufferLimitsReachHandlers(t *testing.T) {
	r, _ := newTestRegistry(t, WithBufferLimits(128, 1024))
	h := r.Handler("app")
	assert.Equal(t, 128, h.buf.Min())
	assert.Equal(t, 1024, h.buf.Max())
}

func TestRegistry_EnvBufferLimits(t *testing.T) {
	t.Setenv(EnvBufferMin, "64")
	t.Setenv(EnvBufferMax, "512")
	r, _ := newTestRegistry(t)
	h := r.Handler("app")
	assert.Equal(t, 64, h.buf.Min())
	assert.Equal(t, 512, h.buf.Max())
}

func TestRegistry_CompileSharesTemplates(t *testing.T) {
	r, _ := newTestRegistry(t, WithFormatFactory(formatters.NewFactory()))

	a, err := r.Compile("%V %m")
	require.NoError(t, err)
	b, err := r.Compile("%V %m")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = r.Compile("%Q")
	var perr *formatters.ParseError
	assert.ErrorAs(t, err, &perr)

	named, err := r.RegisterFormat("short", "%v: %m")
	require.NoError(t, err)
	resolved, err := r.Format("@short")
	require.NoError(t, err)
	assert.Same(t, named, resolved)

	byPattern, err := r.Format("%v: %m")
	require.NoError(t, err)
	assert.Equal(t, "%v: %m", byPattern.Pattern())
}

func TestRegistry_FormatsArePrivate(t *testing.T) {
	r1, _ := newTestRegistry(t)
	r2, _ := newTestRegistry(t)

	_, err := r1.RegisterFormat("audit", "AUDIT %m")
	require.NoError(t, err)
	_, err = r1.RegisterFormat("default", "HIJACK %m")
	require.NoError(t, err)

	_, err = r2.Format("@audit")
	assert.Error(t, err)
	tpl, err := r2.Format("@default")
	require.NoError(t, err)
	assert.Equal(t, formatters.DefaultPattern, tpl.Pattern())

	tpl, err = r1.Format("@default")
	require.NoError(t, err)
	assert.Equal(t, "HIJACK %m", tpl.Pattern())
}

func TestRegistry_FormatBareWordIsLiteral(t *testing.T) {
	r, _ := newTestRegistry(t)
	sink := newRecordingSink("mem")

	tpl, err := r.Format("message")
	require.NoError(t, err)
	assert.Equal(t, "message", tpl.Pattern())

	h := r.Handler("app")
	h.Bind(types.LevelTrace, types.LevelFatal, tpl, sink)
	h.Infof("hello")
	assert.Equal(t, []string{"message"}, sink.Records())
}

func TestRegistry_CreateSink(t *testing.T) {
	r, _ := newTestRegistry(t)
	var out bytes.Buffer

	sink, err := r.CreateSink("console", backends.ConsoleConfig{Writer: &out})
	require.NoError(t, err)
	require.NotNil(t, sink)

	found, ok := r.Sink("console")
	assert.True(t, ok)
	assert.Same(t, sink, found)

	_, err = r.CreateSink("console", backends.ConsoleConfig{Writer: &out})
	assert.ErrorIs(t, err, ErrDuplicateSink)

	_, err = r.CreateSink("", backends.ConsoleConfig{Writer: &out})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = r.CreateSink("broken", backends.SocketConfig{Network: "tcp"})
	assert.ErrorIs(t, err, backends.ErrInvalidConfig)
	_, ok = r.Sink("broken")
	assert.False(t, ok)

	assert.Equal(t, []string{"console"}, r.Sinks())
}

func TestRegistry_OpenSinkWritesFile(t *testing.T) {
	dir := t.TempDir()
	r, collector := newTestRegistry(t)

	sink, err := r.OpenSink("app", "file://"+dir+"/app?size=1MB&backups=2")
	require.NoError(t, err)

	h := r.Handler("app")
	h.Bind(types.LevelInfo, types.LevelFatal, mustCompile(t, r, "%V %m%n"), sink)
	h.Debugf("dropped")
	h.Infof("kept %d", 1)
	h.Errorf("kept %d", 2)

	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())
	assert.Empty(t, collector.Errors())

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Equal(t, "INFO kept 1\nERROR kept 2\n", string(data))

	_, err = r.OpenSink("bad", "gopher://example.com")
	assert.Error(t, err)
}

func TestRegistry_AddSink(t *testing.T) {
	r, _ := newTestRegistry(t)
	sink := newRecordingSink("rec")

	assert.ErrorIs(t, r.AddSink("nil", nil), ErrNilSink)
	require.NoError(t, r.AddSink("rec", sink))
	assert.ErrorIs(t, r.AddSink("rec", newRecordingSink("other")), ErrDuplicateSink)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, sink.Closed())
}

func TestRegistry_CloseSinkUnbindsEverywhere(t *testing.T) {
	r, _ := newTestRegistry(t)
	shared := newRecordingSink("shared")
	other := newRecordingSink("other")
	require.NoError(t, r.AddSink("shared", shared))
	require.NoError(t, r.AddSink("other", other))

	tpl := mustCompile(t, r, "%m")
	for _, ident := range []string{"a", "b"} {
		h := r.Handler(ident)
		h.Bind(types.LevelTrace, types.LevelFatal, tpl, shared)
		h.Bind(types.LevelError, types.LevelFatal, tpl, shared)
		h.Bind(types.LevelTrace, types.LevelFatal, tpl, other)
	}

	require.NoError(t, r.CloseSink("shared"))
	assert.Equal(t, 1, shared.Closed())
	for _, ident := range []string{"a", "b"} {
		rules := r.Handler(ident).Rules()
		require.Len(t, rules, 1)
		assert.Same(t, other, rules[0].Sink)
	}
	assert.Equal(t, []string{"other"}, r.Sinks())

	assert.ErrorIs(t, r.CloseSink("shared"), ErrUnknownSink)
}

func TestRegistry_Describe(t *testing.T) {
	r, _ := newTestRegistry(t)
	var out bytes.Buffer
	console, err := r.CreateSink("console", backends.ConsoleConfig{Writer: &out})
	require.NoError(t, err)
	require.NoError(t, r.AddSink("rec", newRecordingSink("memory")))

	h := r.Handler("app")
	h.Bind(types.LevelTrace, types.LevelFatal, mustCompile(t, r, "%m%n"), console)
	h.Warnf("one")
	h.Warnf("two")

	infos := r.Describe()
	require.Len(t, infos, 2)
	assert.Equal(t, "console", infos[0].Name)
	assert.Equal(t, backends.KindConsole, infos[0].Kind)
	assert.Equal(t, "stdout", infos[0].Target)
	assert.True(t, infos[0].Connected)
	assert.EqualValues(t, 2, infos[0].Stats.Records)
	assert.EqualValues(t, 8, infos[0].Stats.Bytes)
	assert.Equal(t, "rec", infos[1].Name)
	assert.Equal(t, "memory", infos[1].Target)
}

func TestRegistry_CloseCombinesErrors(t *testing.T) {
	r, err := NewRegistry(WithErrorHandler(SilentErrorHandler))
	require.NoError(t, err)

	a := newRecordingSink("a")
	a.fail = errors.New("a failed")
	b := newRecordingSink("b")
	c := newRecordingSink("c")
	c.fail = errors.New("c failed")
	for name, sink := range map[string]*recordingSink{"a": a, "b": b, "c": c} {
		require.NoError(t, r.AddSink(name, sink))
	}
	h := r.Handler("app")
	h.Bind(types.LevelTrace, types.LevelFatal, mustCompile(t, r, "%m"), b)

	err = r.Close()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "c failed")

	for _, sink := range []*recordingSink{a, b, c} {
		assert.Equal(t, 1, sink.Closed())
	}
	assert.Empty(t, h.Rules())
	assert.Empty(t, r.Sinks())
	assert.Empty(t, r.Handlers())

	assert.NoError(t, r.Close(), "second close has nothing left to close")
}

func TestRegistry_SetErrorHandler(t *testing.T) {
	r, first := newTestRegistry(t)
	second := &errorCollector{}
	r.SetErrorHandler(second.handle)

	r.Handler("app").Bind(types.LevelInfo, types.LevelFatal, nil, nil)
	assert.Empty(t, first.Errors())
	assert.Len(t, second.Errors(), 1)

	r.SetErrorHandler(nil)
	assert.NotPanics(t, func() {
		r.Handler("app").Bind(types.LevelInfo, types.LevelFatal, nil, nil)
	})
}
