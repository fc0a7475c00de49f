package formatters

import (
	"fmt"
	"strings"

	"github.com/lestrrat-go/strftime"
	"github.com/pkg/errors"
)

// DefaultTimePattern is used by %d when no sub-pattern is given.
const DefaultTimePattern = "%F %T"

// DefaultPattern is the pattern of the default handler.
const DefaultPattern = "%d.%ms %5V [%c] %m%n"

// Compile errors, available through errors.Is on a *ParseError.
var (
	ErrUnknownDirective = errors.New("unknown directive")
	ErrUnterminated     = errors.New("unterminated sub-pattern")
	ErrMissingParen     = errors.New("missing '(' after directive")
	ErrEmptyName        = errors.New("empty variable name")
	ErrDanglingPercent  = errors.New("dangling '%' at end of pattern")
	ErrTimePattern      = errors.New("invalid time pattern")
)

// ParseError reports why a pattern failed to compile and where.
type ParseError struct {
	Pattern  string // The whole pattern
	Offset   int    // Byte offset of the offending directive
	Fragment string // The offending substring
	Err      error  // One of the Err* sentinels, possibly wrapped
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("compile format %q: %v at offset %d: %q", e.Pattern, e.Err, e.Offset, e.Fragment)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Template is a compiled, immutable rendering plan. A Template is safe to
// share between any number of rules and goroutines.
type Template struct {
	pattern    string
	directives []Directive
}

// Pattern returns the source pattern.
func (t *Template) Pattern() string { return t.pattern }

// Directives returns a copy of the compiled directives.
func (t *Template) Directives() []Directive {
	out := make([]Directive, len(t.directives))
	copy(out, t.directives)
	return out
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Template {
	t, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Compile parses pattern into a Template.
//
// The grammar is a run of literal bytes or a directive introduced by '%'.
// A directive may carry a print-format prefix [-][0]<min>[.<max>] and is one
// of:
//
//	%d %d(<strftime>)  timestamp, "%F %T" when the sub-pattern is absent or empty
//	%E(<name>)         environment variable
//	%ms %us            milliseconds (3 digits) and microseconds (6 digits)
//	%c %H %F %U %L     ident, hostname, file, function, line
//	%p %t %T           pid, thread id in decimal and in hex
//	%V %v              level token upper and lower case
//	%m                 message
//	%r %n %%           CR, LF and a literal percent sign
//	%C %R              level color and color reset
//
// Nothing is resolved at compile time: only the shape of each directive is
// validated.
func Compile(pattern string) (*Template, error) {
	p := &parser{pattern: pattern}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return &Template{pattern: pattern, directives: p.directives}, nil
}

type parser struct {
	pattern    string
	pos        int
	directives []Directive
}

func (p *parser) fail(start int, err error) error {
	end := p.pos
	if end > len(p.pattern) {
		end = len(p.pattern)
	}
	if end <= start {
		end = start + 1
		if end > len(p.pattern) {
			end = len(p.pattern)
		}
	}
	return &ParseError{Pattern: p.pattern, Offset: start, Fragment: p.pattern[start:end], Err: err}
}

func (p *parser) parse() error {
	for p.pos < len(p.pattern) {
		if p.pattern[p.pos] != '%' {
			p.literal()
			continue
		}
		if err := p.directive(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) literal() {
	end := strings.IndexByte(p.pattern[p.pos:], '%')
	if end < 0 {
		end = len(p.pattern)
	} else {
		end += p.pos
	}
	p.directives = append(p.directives, Directive{Kind: KindLiteral, Text: p.pattern[p.pos:end]})
	p.pos = end
}

// number consumes a run of decimal digits.
func (p *parser) number() int {
	n := 0
	for p.pos < len(p.pattern) && p.pattern[p.pos] >= '0' && p.pattern[p.pos] <= '9' {
		n = n*10 + int(p.pattern[p.pos]-'0')
		p.pos++
	}
	return n
}

// enclosed consumes "(...)" and returns its content.
func (p *parser) enclosed(start int) (string, error) {
	end := strings.IndexByte(p.pattern[p.pos:], ')')
	if end < 0 {
		p.pos = len(p.pattern)
		return "", p.fail(start, ErrUnterminated)
	}
	content := p.pattern[p.pos+1 : p.pos+end]
	p.pos += end + 1
	return content, nil
}

func (p *parser) directive() error {
	start := p.pos
	p.pos++ // '%'

	var d Directive
	if p.pos < len(p.pattern) && p.pattern[p.pos] == '-' {
		d.LeftAdjust = true
		p.pos++
	}
	if p.pos < len(p.pattern) && p.pattern[p.pos] == '0' {
		d.ZeroPad = true
		p.pos++
	}
	d.MinWidth = p.number()
	if p.pos < len(p.pattern) && p.pattern[p.pos] == '.' {
		p.pos++
		d.MaxWidth = p.number()
	}
	d.Reformat = p.pos > start+1

	if p.pos >= len(p.pattern) {
		return p.fail(start, ErrDanglingPercent)
	}

	c := p.pattern[p.pos]
	p.pos++
	switch {
	case c == 'd':
		d.Kind = KindTime
		d.Text = DefaultTimePattern
		if p.pos < len(p.pattern) && p.pattern[p.pos] == '(' {
			sub, err := p.enclosed(start)
			if err != nil {
				return err
			}
			if sub != "" {
				d.Text = sub
			}
		}
		f, err := strftime.New(d.Text)
		if err != nil {
			return p.fail(start, errors.Wrap(ErrTimePattern, err.Error()))
		}
		d.timeFmt = f

	case c == 'E':
		d.Kind = KindEnv
		if p.pos >= len(p.pattern) || p.pattern[p.pos] != '(' {
			return p.fail(start, ErrMissingParen)
		}
		name, err := p.enclosed(start)
		if err != nil {
			return err
		}
		if name == "" {
			return p.fail(start, ErrEmptyName)
		}
		d.Text = name

	case c == 'm' && p.pos < len(p.pattern) && p.pattern[p.pos] == 's':
		d.Kind = KindMillis
		p.pos++

	case c == 'u' && p.pos < len(p.pattern) && p.pattern[p.pos] == 's':
		d.Kind = KindMicros
		p.pos++

	default:
		kind, ok := singleCharKinds[c]
		if !ok {
			return p.fail(start, ErrUnknownDirective)
		}
		d.Kind = kind
	}

	p.directives = append(p.directives, d)
	return nil
}
