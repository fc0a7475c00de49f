package formatters

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// NamePrefix marks a reference to a registered format in Resolve: "@simple"
// names the built-in format, "simple" is the literal pattern.
const NamePrefix = "@"

// Factory compiles patterns once and hands out the shared Template for every
// later request of the same pattern. Templates may also be registered under
// a name.
type Factory struct {
	mu        sync.RWMutex
	byPattern map[string]*Template
	byName    map[string]*Template
}

// Built-in named patterns
var builtinPatterns = map[string]string{
	"default":  DefaultPattern,
	"simple":   "%V %m%n",
	"color":    "%d.%ms %C%5V%R [%c] %m%n",
	"detailed": "%d.%us %5V %H %c[%p:%t] %F:%L %U: %m%n",
	"message":  "%m",
}

// NewFactory creates a new factory with the built-in patterns registered
func NewFactory() *Factory {
	f := &Factory{
		byPattern: make(map[string]*Template),
		byName:    make(map[string]*Template),
	}

	for name, pattern := range builtinPatterns {
		if _, err := f.Register(name, pattern); err != nil {
			panic(err)
		}
	}

	return f
}

// Get returns the compiled template for pattern, compiling it on first use.
func (f *Factory) Get(pattern string) (*Template, error) {
	f.mu.RLock()
	t, ok := f.byPattern[pattern]
	f.mu.RUnlock()
	if ok {
		return t, nil
	}

	compiled, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another goroutine may have won the race
	if t, ok := f.byPattern[pattern]; ok {
		return t, nil
	}
	f.byPattern[pattern] = compiled
	return compiled, nil
}

// Register compiles pattern and makes it available under name. Registering
// an existing name replaces it.
func (f *Factory) Register(name, pattern string) (*Template, error) {
	if name == "" {
		return nil, errors.New("format name cannot be empty")
	}
	if strings.HasPrefix(name, NamePrefix) {
		return nil, errors.Errorf("format name %q cannot start with %s", name, NamePrefix)
	}

	t, err := f.Get(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "register format %q", name)
	}

	f.mu.Lock()
	f.byName[name] = t
	f.mu.Unlock()
	return t, nil
}

// Lookup returns the template registered under name.
func (f *Factory) Lookup(name string) (*Template, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.byName[name]
	return t, ok
}

// Resolve looks up "@name" among the registered formats and compiles
// anything else as a pattern.
func (f *Factory) Resolve(ref string) (*Template, error) {
	if name, ok := strings.CutPrefix(ref, NamePrefix); ok {
		t, found := f.Lookup(name)
		if !found {
			return nil, errors.Errorf("unknown format %q", name)
		}
		return t, nil
	}
	return f.Get(ref)
}

// List returns the registered names in sorted order.
func (f *Factory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.byName))
	for name := range f.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
