package backends_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestConsoleSink_Emit(t *testing.T) {
	var buf bytes.Buffer
	sink, err := backends.NewConsoleSink(backends.ConsoleConfig{Stream: backends.Stderr, Writer: &buf})
	if err != nil {
		t.Fatalf("NewConsoleSink() error = %v", err)
	}

	n, err := sink.Emit([]byte("hello\n"), types.LevelInfo)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if n != 6 {
		t.Errorf("Emit() wrote %d bytes, want 6", n)
	}
	if buf.String() != "hello\n" {
		t.Errorf("buffer = %q", buf.String())
	}

	info := sink.Describe()
	if info.Kind != backends.KindConsole || info.Target != "stderr" || !info.Connected {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Stats.Records != 1 || info.Stats.Bytes != 6 {
		t.Errorf("stats = %+v", info.Stats)
	}
}

func TestConsoleSink_Colorize(t *testing.T) {
	tests := []struct {
		mode backends.ColorMode
		want bool
	}{
		{backends.ColorAlways, true},
		{backends.ColorNever, false},
		// A non-file writer is never a terminal
		{backends.ColorAuto, false},
	}
	for _, tt := range tests {
		sink, err := backends.NewConsoleSink(backends.ConsoleConfig{Color: tt.mode, Writer: &bytes.Buffer{}})
		if err != nil {
			t.Fatalf("NewConsoleSink() error = %v", err)
		}
		if got := sink.Colorize(); got != tt.want {
			t.Errorf("Colorize() with mode %d = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestConsoleSink_WriteFailure(t *testing.T) {
	sink, err := backends.NewConsoleSink(backends.ConsoleConfig{Writer: failingWriter{}})
	if err != nil {
		t.Fatalf("NewConsoleSink() error = %v", err)
	}

	if _, err := sink.Emit([]byte("x"), types.LevelError); err == nil {
		t.Fatal("expected write error")
	}
	stats := sink.Describe().Stats
	if stats.Errors != 1 || stats.LastError == "" {
		t.Errorf("error not tracked: %+v", stats)
	}
}

func TestConsoleSink_Closed(t *testing.T) {
	sink, _ := backends.NewConsoleSink(backends.ConsoleConfig{Writer: &bytes.Buffer{}})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := sink.Emit([]byte("x"), types.LevelInfo); !errors.Is(err, backends.ErrClosed) {
		t.Errorf("Emit() after Close error = %v, want ErrClosed", err)
	}
}

func TestConsoleConfig_Validate(t *testing.T) {
	if err := (backends.ConsoleConfig{Stream: 7}).Validate(); !errors.Is(err, backends.ErrInvalidConfig) {
		t.Errorf("invalid stream accepted: %v", err)
	}
	if err := (backends.ConsoleConfig{Color: 9}).Validate(); !errors.Is(err, backends.ErrInvalidConfig) {
		t.Errorf("invalid color accepted: %v", err)
	}
}

func TestParseColorMode(t *testing.T) {
	for in, want := range map[string]backends.ColorMode{
		"":       backends.ColorAuto,
		"auto":   backends.ColorAuto,
		"always": backends.ColorAlways,
		"never":  backends.ColorNever,
		"false":  backends.ColorNever,
	} {
		got, err := backends.ParseColorMode(in)
		if err != nil || got != want {
			t.Errorf("ParseColorMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := backends.ParseColorMode("rainbow"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
