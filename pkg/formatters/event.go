package formatters

import (
	"time"

	"github.com/wayneeseguin/sinklog/internal/buffer"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// Event is the per-call rendering context. A handler owns one Event and
// re-prepares it for every call; nothing in it outlives the call except the
// caches, which are keyed so they stay correct across calls.
type Event struct {
	Time  time.Time
	Level types.Level
	Ident string

	// Source location of the call
	File string
	Func string
	Line int

	// Message format and arguments, expanded by %m
	Format string
	Args   []interface{}

	// Color enables %C and %R. Dispatch sets it per sink.
	Color bool

	timeSec   int64
	timeValid bool
	timeCache map[string]string

	pid       int
	tid       int
	tidValid  bool
	hostname  string
	hostValid bool

	scratch *buffer.Buffer
}

// NewEvent creates an event for the handler ident. scratchMax bounds the
// space used by directives that carry a print-format prefix.
func NewEvent(ident string, scratchMax int) *Event {
	min := 64
	if scratchMax > 0 && scratchMax < min {
		min = scratchMax
	}
	return &Event{
		Ident:     ident,
		Color:     true,
		timeCache: make(map[string]string, 2),
		pid:       getPID(),
		scratch:   buffer.NewBuffer(min, scratchMax),
	}
}

// Prepare loads the event with the data of one call and stamps it with the
// current time.
func (e *Event) Prepare(level types.Level, file, fn string, line int, format string, args []interface{}) {
	e.Time = time.Now()
	e.Level = level
	e.File = file
	e.Func = fn
	e.Line = line
	e.Format = format
	e.Args = args
	e.Color = true
	e.tidValid = false
}

// Release drops references to the call's arguments so they can be collected.
func (e *Event) Release() {
	e.Args = nil
	e.Format = ""
}

// formattedTime returns the time rendered through d's sub-pattern. The result
// is cached until the wall-clock second of the event changes.
func (e *Event) formattedTime(d *Directive) string {
	sec := e.Time.Unix()
	if !e.timeValid || sec != e.timeSec {
		for k := range e.timeCache {
			delete(e.timeCache, k)
		}
		e.timeSec = sec
		e.timeValid = true
	}
	if s, ok := e.timeCache[d.Text]; ok {
		return s
	}
	s := d.timeFmt.FormatString(e.Time)
	e.timeCache[d.Text] = s
	return s
}

func (e *Event) threadID() int {
	if !e.tidValid {
		e.tid = getTID()
		e.tidValid = true
	}
	return e.tid
}

func (e *Event) host() string {
	if !e.hostValid {
		e.hostname = getHostname()
		e.hostValid = true
	}
	return e.hostname
}
