package formatters

import (
	"github.com/lestrrat-go/strftime"
)

// Kind identifies what a Directive renders.
type Kind int

// Directive kinds. The set is closed: the compiler never produces anything else.
const (
	KindLiteral Kind = iota
	KindTime
	KindEnv
	KindIdent
	KindHostname
	KindFile
	KindFunc
	KindLine
	KindPid
	KindTidDec
	KindTidHex
	KindLevelUpper
	KindLevelLower
	KindMessage
	KindCR
	KindLF
	KindPercent
	KindMillis
	KindMicros
	KindColor
	KindColorReset
)

var kindNames = [...]string{
	KindLiteral:    "literal",
	KindTime:       "time",
	KindEnv:        "env",
	KindIdent:      "ident",
	KindHostname:   "hostname",
	KindFile:       "file",
	KindFunc:       "func",
	KindLine:       "line",
	KindPid:        "pid",
	KindTidDec:     "tid",
	KindTidHex:     "tid-hex",
	KindLevelUpper: "level",
	KindLevelLower: "level-lower",
	KindMessage:    "message",
	KindCR:         "cr",
	KindLF:         "lf",
	KindPercent:    "percent",
	KindMillis:     "ms",
	KindMicros:     "us",
	KindColor:      "color",
	KindColorReset: "color-reset",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// singleCharKinds maps the one-letter directives to their kind.
var singleCharKinds = map[byte]Kind{
	'c': KindIdent,
	'H': KindHostname,
	'F': KindFile,
	'U': KindFunc,
	'L': KindLine,
	'p': KindPid,
	't': KindTidDec,
	'T': KindTidHex,
	'V': KindLevelUpper,
	'v': KindLevelLower,
	'm': KindMessage,
	'r': KindCR,
	'n': KindLF,
	'%': KindPercent,
	'C': KindColor,
	'R': KindColorReset,
}

// Directive is one compiled field of a Template.
type Directive struct {
	Kind Kind

	// Text is the literal text for KindLiteral, the strftime sub-pattern for
	// KindTime and the variable name for KindEnv.
	Text string

	MinWidth   int
	MaxWidth   int
	LeftAdjust bool
	ZeroPad    bool

	// Reformat is set when the directive carried a print-format prefix; the
	// field is rendered into scratch space and then padded/clipped.
	Reformat bool

	timeFmt *strftime.Strftime
}
