package sinklog

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/formatters"
)

// Option configures a Registry
type Option func(*Registry) error

// WithBufferLimits sets the initial and maximum size of every handler's
// render buffer.
func WithBufferLimits(min, max int) Option {
	return func(r *Registry) error {
		if min <= 0 || max <= 0 {
			return errors.Errorf("buffer limits must be positive: min=%d max=%d", min, max)
		}
		if min > max {
			return errors.Errorf("buffer min %d exceeds max %d", min, max)
		}
		r.bufMin, r.bufMax = min, max
		return nil
	}
}

// WithErrorHandler sets the function receiving engine failures
func WithErrorHandler(handler ErrorHandler) Option {
	return func(r *Registry) error {
		if handler == nil {
			handler = SilentErrorHandler
		}
		r.errorHandler = handler
		return nil
	}
}

// WithSinkFactory sets the factory used by OpenSink
func WithSinkFactory(f *backends.Factory) Option {
	return func(r *Registry) error {
		if f == nil {
			return errors.New("sink factory cannot be nil")
		}
		r.sinkFactory = f
		return nil
	}
}

// WithFormatFactory sets the factory that compiles and shares templates
func WithFormatFactory(f *formatters.Factory) Option {
	return func(r *Registry) error {
		if f == nil {
			return errors.New("format factory cannot be nil")
		}
		r.formats = f
		return nil
	}
}

// Registry owns handlers and named sinks. Templates are shared through its
// format factory.
type Registry struct {
	mu           sync.RWMutex
	handlers     map[string]*Handler
	sinks        map[string]backends.Sink
	sinkOrder    []string
	formats      *formatters.Factory
	sinkFactory  *backends.Factory
	bufMin       int
	bufMax       int
	errorHandler ErrorHandler
}

// SinkInfo is the diagnostic description of a named sink
type SinkInfo struct {
	Name string `json:"name"`
	backends.Info
}

// NewRegistry creates an empty registry with its own format catalogue and
// sink factory.
func NewRegistry(options ...Option) (*Registry, error) {
	min, max := defaultBufferLimits()
	r := &Registry{
		handlers:     make(map[string]*Handler),
		sinks:        make(map[string]backends.Sink),
		formats:      formatters.NewFactory(),
		sinkFactory:  backends.NewFactory(),
		bufMin:       min,
		bufMax:       max,
		errorHandler: defaultErrorHandler(),
	}

	for _, opt := range options {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetErrorHandler replaces the error handler. nil silences errors.
func (r *Registry) SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		handler = SilentErrorHandler
	}
	r.mu.Lock()
	r.errorHandler = handler
	r.mu.Unlock()
}

func (r *Registry) reportError(op, handler string, sink backends.Sink, err error) {
	r.mu.RLock()
	eh := r.errorHandler
	r.mu.RUnlock()

	le := LogError{
		Operation: op,
		Handler:   handler,
		Err:       err,
		Timestamp: time.Now(),
	}
	if sink != nil {
		le.Sink = sinkTarget(sink)
	}
	eh(le)
}

// sinkTarget describes a sink without letting a faulty Describe escape.
func sinkTarget(sink backends.Sink) (target string) {
	defer func() {
		if recover() != nil {
			target = "unknown"
		}
	}()
	return sink.Describe().Target
}

// Handler returns the handler named ident, creating it on first use.
func (r *Registry) Handler(ident string) *Handler {
	r.mu.RLock()
	h, ok := r.handlers[ident]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handlers[ident]; ok {
		return h
	}
	h = newHandler(r, ident, r.bufMin, r.bufMax)
	r.handlers[ident] = h
	return h
}

// Lookup returns an existing handler
func (r *Registry) Lookup(ident string) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ident]
	return h, ok
}

// Handlers returns the idents of every handler in sorted order
func (r *Registry) Handlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idents := make([]string, 0, len(r.handlers))
	for ident := range r.handlers {
		idents = append(idents, ident)
	}
	sort.Strings(idents)
	return idents
}

// DestroyHandler removes a handler and its rules. Sinks and templates are
// left alone. Unknown idents are ignored.
func (r *Registry) DestroyHandler(ident string) bool {
	r.mu.Lock()
	h, ok := r.handlers[ident]
	delete(r.handlers, ident)
	r.mu.Unlock()

	if ok {
		h.clear()
	}
	return ok
}

// Compile compiles pattern, sharing the template with every other user of
// the same pattern.
func (r *Registry) Compile(pattern string) (*formatters.Template, error) {
	return r.formats.Get(pattern)
}

// Format resolves "@name" to a registered format and compiles anything else
// as a pattern.
func (r *Registry) Format(ref string) (*formatters.Template, error) {
	return r.formats.Resolve(ref)
}

// RegisterFormat compiles pattern and registers it under name. Formats are
// private to the registry.
func (r *Registry) RegisterFormat(name, pattern string) (*formatters.Template, error) {
	return r.formats.Register(name, pattern)
}

// CreateSink builds a sink from cfg and registers it under name.
func (r *Registry) CreateSink(name string, cfg backends.Config) (backends.Sink, error) {
	if err := r.checkSinkName(name); err != nil {
		return nil, err
	}
	sink, err := backends.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "create sink %s", name)
	}
	if err := r.adopt(name, sink); err != nil {
		return nil, err
	}
	return sink, nil
}

// OpenSink builds a sink from a URI and registers it under name.
func (r *Registry) OpenSink(name, uri string) (backends.Sink, error) {
	if err := r.checkSinkName(name); err != nil {
		return nil, err
	}
	sink, err := r.sinkFactory.Open(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "create sink %s", name)
	}
	if err := r.adopt(name, sink); err != nil {
		return nil, err
	}
	return sink, nil
}

// AddSink registers a sink built elsewhere. The registry closes it on Close.
func (r *Registry) AddSink(name string, sink backends.Sink) error {
	if sink == nil {
		return ErrNilSink
	}
	if err := r.checkSinkName(name); err != nil {
		return err
	}
	return r.adopt(name, sink)
}

func (r *Registry) checkSinkName(name string) error {
	if name == "" {
		return errors.Wrap(ErrEmptyName, "sink")
	}
	r.mu.RLock()
	_, exists := r.sinks[name]
	r.mu.RUnlock()
	if exists {
		return errors.Wrap(ErrDuplicateSink, name)
	}
	return nil
}

// adopt stores sink under name; if the name was taken meanwhile the new
// sink is closed.
func (r *Registry) adopt(name string, sink backends.Sink) error {
	r.mu.Lock()
	if _, exists := r.sinks[name]; exists {
		r.mu.Unlock()
		_ = sink.Close()
		return errors.Wrap(ErrDuplicateSink, name)
	}
	r.sinks[name] = sink
	r.sinkOrder = append(r.sinkOrder, name)
	r.mu.Unlock()
	return nil
}

// Sink returns the sink registered under name
func (r *Registry) Sink(name string) (backends.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[name]
	return sink, ok
}

// Sinks returns sink names in registration order
func (r *Registry) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.sinkOrder...)
}

// CloseSink unbinds the named sink from every handler, closes it and
// forgets it.
func (r *Registry) CloseSink(name string) error {
	r.mu.Lock()
	sink, ok := r.sinks[name]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrUnknownSink, name)
	}
	delete(r.sinks, name)
	r.sinkOrder = removeName(r.sinkOrder, name)
	handlers := make([]*Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h.unbindAll(sink)
	}
	return errors.Wrapf(sink.Close(), "close sink %s", name)
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}

// Describe returns diagnostics for every named sink in registration order.
func (r *Registry) Describe() []SinkInfo {
	r.mu.RLock()
	names := append([]string(nil), r.sinkOrder...)
	sinks := make([]backends.Sink, len(names))
	for i, name := range names {
		sinks[i] = r.sinks[name]
	}
	r.mu.RUnlock()

	infos := make([]SinkInfo, len(names))
	for i, name := range names {
		infos[i] = SinkInfo{Name: name, Info: sinks[i].Describe()}
	}
	return infos
}

// Flush flushes every named sink that supports it.
func (r *Registry) Flush() error {
	r.mu.RLock()
	sinks := make([]backends.Sink, 0, len(r.sinks))
	for _, name := range r.sinkOrder {
		sinks = append(sinks, r.sinks[name])
	}
	r.mu.RUnlock()

	var err error
	for _, sink := range sinks {
		if f, ok := sink.(backends.Flusher); ok {
			err = multierr.Append(err, f.Flush())
		}
	}
	return err
}

// Close clears every handler and closes every named sink. Sink errors are
// combined.
func (r *Registry) Close() error {
	r.mu.Lock()
	handlers := r.handlers
	names := r.sinkOrder
	sinks := r.sinks
	r.handlers = make(map[string]*Handler)
	r.sinks = make(map[string]backends.Sink)
	r.sinkOrder = nil
	r.mu.Unlock()

	for _, h := range handlers {
		h.clear()
	}

	var err error
	for _, name := range names {
		if cerr := sinks[name].Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrapf(cerr, "close sink %s", name))
		}
	}
	return err
}
