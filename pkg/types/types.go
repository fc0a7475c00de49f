package types

import (
	"strconv"
	"strings"
)

// Level is the severity of a log record.
type Level int

// Log levels, lowest to highest severity.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// LevelMin and LevelMax bound every level the engine stores or dispatches.
const (
	LevelMin = LevelTrace
	LevelMax = LevelFatal
)

// ColorReset is the ANSI sequence that restores the default terminal color.
const ColorReset = "\x1b[0m"

var upperNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var lowerNames = [...]string{"trace", "debug", "info", "warn", "error", "fatal"}

var colors = [...]string{
	"\x1b[90m",   // trace: bright black
	"\x1b[36m",   // debug: cyan
	"\x1b[32m",   // info: green
	"\x1b[33m",   // warn: yellow
	"\x1b[31m",   // error: red
	"\x1b[1;31m", // fatal: bold red
}

// Clamp forces l into [LevelMin, LevelMax].
func (l Level) Clamp() Level {
	if l < LevelMin {
		return LevelMin
	}
	if l > LevelMax {
		return LevelMax
	}
	return l
}

// Valid reports whether l lies inside [LevelMin, LevelMax].
func (l Level) Valid() bool {
	return l >= LevelMin && l <= LevelMax
}

// Upper returns the upper-case token of the level (at most five bytes).
func (l Level) Upper() string {
	return upperNames[l.Clamp()]
}

// Lower returns the lower-case token of the level.
func (l Level) Lower() string {
	return lowerNames[l.Clamp()]
}

// Color returns the ANSI escape sequence used for the level.
func (l Level) Color() string {
	return colors[l.Clamp()]
}

// String implements fmt.Stringer.
func (l Level) String() string {
	if !l.Valid() {
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
	return upperNames[l]
}

// ParseLevel converts a level name (any case) or its numeric value into a Level.
func ParseLevel(s string) (Level, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range lowerNames {
		if n == name {
			return Level(i), true
		}
	}
	switch name {
	case "warning":
		return LevelWarn, true
	case "err":
		return LevelError, true
	}
	if n, err := strconv.Atoi(name); err == nil {
		return Level(n).Clamp(), true
	}
	return LevelMin, false
}

// ParseLevelRange parses "begin..end", a single level, or "*" into an inclusive range.
func ParseLevelRange(s string) (Level, Level, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return LevelMin, LevelMax, true
	}
	begin, end, found := strings.Cut(s, "..")
	if !found {
		l, ok := ParseLevel(s)
		return l, l, ok
	}
	lo, hi := LevelMin, LevelMax
	var ok bool
	if strings.TrimSpace(begin) != "" {
		if lo, ok = ParseLevel(begin); !ok {
			return LevelMin, LevelMax, false
		}
	}
	if strings.TrimSpace(end) != "" {
		if hi, ok = ParseLevel(end); !ok {
			return LevelMin, LevelMax, false
		}
	}
	return lo, hi, true
}
