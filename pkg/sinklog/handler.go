package sinklog

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/sinklog/internal/buffer"
	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Rule routes records whose level lies in [Begin, End] through Template to
// Sink.
type Rule struct {
	Begin    types.Level
	End      types.Level
	Template *formatters.Template
	Sink     backends.Sink
}

// Matches reports whether level falls inside the rule's range
func (r Rule) Matches(level types.Level) bool {
	return r.Begin <= level && level <= r.End
}

// Handler is a named logging entry point. All rendering for a handler is
// serialized by its mutex and shares one buffer.
type Handler struct {
	ident string
	reg   *Registry

	mu    sync.Mutex
	rules []*Rule
	buf   *buffer.Buffer
	ev    *formatters.Event
}

func newHandler(reg *Registry, ident string, bufMin, bufMax int) *Handler {
	return &Handler{
		ident: ident,
		reg:   reg,
		buf:   buffer.NewBuffer(bufMin, bufMax),
		ev:    formatters.NewEvent(ident, bufMax),
	}
}

// Ident returns the handler name
func (h *Handler) Ident() string {
	return h.ident
}

// Bind adds a rule. The range is clamped to the valid levels and swapped if
// begin > end. A nil template or sink is reported to the error handler and
// nil is returned.
func (h *Handler) Bind(begin, end types.Level, tpl *formatters.Template, sink backends.Sink) *Rule {
	switch {
	case tpl == nil:
		h.reg.reportError(OpBind, h.ident, sink, ErrNilTemplate)
		return nil
	case sink == nil:
		h.reg.reportError(OpBind, h.ident, nil, ErrNilSink)
		return nil
	}

	begin, end = begin.Clamp(), end.Clamp()
	if begin > end {
		begin, end = end, begin
	}
	rule := &Rule{Begin: begin, End: end, Template: tpl, Sink: sink}

	h.mu.Lock()
	h.rules = append(h.rules, rule)
	h.mu.Unlock()
	return rule
}

// Unbind removes the first rule that targets sink. Neither the sink nor the
// template is closed.
func (h *Handler) Unbind(sink backends.Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, r := range h.rules {
		if r.Sink == sink {
			h.rules = append(h.rules[:i:i], h.rules[i+1:]...)
			return true
		}
	}
	return false
}

// unbindAll removes every rule that targets sink.
func (h *Handler) unbindAll(sink backends.Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.rules[:0:0]
	for _, r := range h.rules {
		if r.Sink != sink {
			kept = append(kept, r)
		}
	}
	h.rules = kept
}

func (h *Handler) clear() {
	h.mu.Lock()
	h.rules = nil
	h.mu.Unlock()
}

// Rules returns a snapshot of the handler's rules in insertion order
func (h *Handler) Rules() []Rule {
	h.mu.Lock()
	defer h.mu.Unlock()

	rules := make([]Rule, len(h.rules))
	for i, r := range h.rules {
		rules[i] = *r
	}
	return rules
}

// Enabled reports whether any rule accepts level
func (h *Handler) Enabled(level types.Level) bool {
	level = level.Clamp()
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.rules {
		if r.Matches(level) {
			return true
		}
	}
	return false
}

// Log renders one record for every rule matching level and hands it to the
// rule's sink. file, fn and line are rendered by %F, %U and %L. Failures are
// reported to the registry's ErrorHandler; Log never panics because of a
// template or sink.
func (h *Handler) Log(level types.Level, file, fn string, line int, format string, args ...interface{}) {
	h.dispatch(level, file, fn, line, format, args)
}

// Logf logs at level with the caller's location
func (h *Handler) Logf(level types.Level, format string, args ...interface{}) {
	h.logCaller(1, level, format, args)
}

// Print logs the operands formatted as by fmt.Sprint
func (h *Handler) Print(level types.Level, args ...interface{}) {
	h.logCaller(1, level, "", args)
}

// Tracef logs at trace level
func (h *Handler) Tracef(format string, args ...interface{}) {
	h.logCaller(1, types.LevelTrace, format, args)
}

// Debugf logs at debug level
func (h *Handler) Debugf(format string, args ...interface{}) {
	h.logCaller(1, types.LevelDebug, format, args)
}

// Infof logs at info level
func (h *Handler) Infof(format string, args ...interface{}) {
	h.logCaller(1, types.LevelInfo, format, args)
}

// Warnf logs at warn level
func (h *Handler) Warnf(format string, args ...interface{}) {
	h.logCaller(1, types.LevelWarn, format, args)
}

// Errorf logs at error level
func (h *Handler) Errorf(format string, args ...interface{}) {
	h.logCaller(1, types.LevelError, format, args)
}

// Fatalf logs at fatal level. It does not exit.
func (h *Handler) Fatalf(format string, args ...interface{}) {
	h.logCaller(1, types.LevelFatal, format, args)
}

// logCaller captures the location skip frames above its caller.
func (h *Handler) logCaller(skip int, level types.Level, format string, args []interface{}) {
	if !h.Enabled(level) {
		return
	}

	var file, fn string
	var line int
	if pc, f, l, ok := runtime.Caller(skip + 1); ok {
		file = formatters.ShortFile(f)
		line = l
		if fnc := runtime.FuncForPC(pc); fnc != nil {
			fn = formatters.ShortFunc(fnc.Name())
		}
	}
	h.dispatch(level, file, fn, line, format, args)
}

func (h *Handler) dispatch(level types.Level, file, fn string, line int, format string, args []interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	level = level.Clamp()
	h.ev.Prepare(level, file, fn, line, format, args)
	defer h.ev.Release()

	for _, r := range h.rules {
		if r.Matches(level) {
			h.emit(r, level)
		}
	}
}

// emit renders and writes one record. A panic is fatal to this record only.
func (h *Handler) emit(r *Rule, level types.Level) {
	op := OpRender
	defer func() {
		if p := recover(); p != nil {
			h.reg.reportError(op, h.ident, r.Sink, errors.Errorf("panic: %v", p))
		}
	}()

	h.buf.Reset()
	h.ev.Color = colorize(r.Sink)
	r.Template.Render(h.buf, h.ev)

	op = OpEmit
	if _, err := r.Sink.Emit(h.buf.Bytes(), level); err != nil {
		h.reg.reportError(OpEmit, h.ident, r.Sink, err)
	}
}

// colorize reports whether color directives render for sink. Sinks that do
// not decide get no color.
func colorize(sink backends.Sink) bool {
	if cs, ok := sink.(backends.ColorSink); ok {
		return cs.Colorize()
	}
	return false
}
