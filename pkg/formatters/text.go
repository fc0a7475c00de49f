package formatters

import (
	"fmt"
	"os"

	"github.com/wayneeseguin/sinklog/internal/buffer"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Render walks the template and writes every directive into buf. It returns
// false when the record had to be truncated; the buffer still holds the
// shortened record, which is meant to be emitted.
func (t *Template) Render(buf *buffer.Buffer, ev *Event) bool {
	for i := range t.directives {
		d := &t.directives[i]
		if !d.Reformat {
			d.render(buf, ev)
			continue
		}
		scratch := ev.scratch
		scratch.Reset()
		d.render(scratch, ev)
		buf.AppendPadded(scratch.Bytes(), d.LeftAdjust, d.ZeroPad, d.MinWidth, d.MaxWidth)
	}
	return !buf.Truncated()
}

// RenderString renders the template for ev into a fresh buffer. It is meant
// for previews and tests; dispatch reuses the handler's buffer instead.
func (t *Template) RenderString(ev *Event) string {
	buf := buffer.NewBuffer(0, 0)
	t.Render(buf, ev)
	return buf.String()
}

func (d *Directive) render(buf *buffer.Buffer, ev *Event) {
	switch d.Kind {
	case KindLiteral:
		buf.AppendString(d.Text)
	case KindTime:
		buf.AppendString(ev.formattedTime(d))
	case KindMillis:
		buf.AppendDecimal(uint64(ev.Time.Nanosecond()/1e6), 3)
	case KindMicros:
		buf.AppendDecimal(uint64(ev.Time.Nanosecond()/1e3), 6)
	case KindEnv:
		renderEnv(buf, d.Text)
	case KindIdent:
		buf.AppendString(ev.Ident)
	case KindHostname:
		buf.AppendString(ev.host())
	case KindFile:
		buf.AppendString(ev.File)
	case KindFunc:
		buf.AppendString(ev.Func)
	case KindLine:
		line := ev.Line
		if line < 0 {
			line = 0
		}
		buf.AppendDecimal(uint64(line), 0)
	case KindPid:
		buf.AppendDecimal(uint64(ev.pid), 0)
	case KindTidDec:
		buf.AppendDecimal(uint64(ev.threadID()), 0)
	case KindTidHex:
		buf.AppendHex(uint32(ev.threadID()), 0)
	case KindLevelUpper:
		buf.AppendString(ev.Level.Upper())
	case KindLevelLower:
		buf.AppendString(ev.Level.Lower())
	case KindMessage:
		renderMessage(buf, ev)
	case KindCR:
		buf.AppendByte('\r')
	case KindLF:
		buf.AppendByte('\n')
	case KindPercent:
		buf.AppendByte('%')
	case KindColor:
		if ev.Color {
			buf.AppendString(ev.Level.Color())
		}
	case KindColorReset:
		if ev.Color {
			buf.AppendString(types.ColorReset)
		}
	}
}

// renderEnv never fails: an unset variable renders a visible placeholder.
func renderEnv(buf *buffer.Buffer, name string) {
	if v, ok := os.LookupEnv(name); ok {
		buf.AppendString(v)
		return
	}
	buf.AppendString("env(")
	buf.AppendString(name)
	buf.AppendString(")=(null)")
}

func renderMessage(buf *buffer.Buffer, ev *Event) {
	switch {
	case ev.Format != "":
		fmt.Fprintf(buf, ev.Format, ev.Args...)
	case len(ev.Args) > 0:
		fmt.Fprint(buf, ev.Args...)
	}
}
