package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ResultsKey is the bundle member read back after a script has run.
const ResultsKey = "results"

// ErrInvalidName is returned when a capability name cannot be used as a bare
// identifier inside a script.
var ErrInvalidName = errors.New("invalid capability name")

// ContextFunc returns the context of the run currently calling a capability.
type ContextFunc func() context.Context

// contextBinder is implemented by capabilities that block on I/O. The
// method is unexported so scripts cannot reach it.
type contextBinder interface {
	bindContext(ContextFunc)
}

// BindContext makes v use the context fn returns for its blocking calls,
// so cancellation and run timeouts reach a call that is in progress. It
// reports whether v is such a capability.
func BindContext(v any, fn ContextFunc) bool {
	b, ok := v.(contextBinder)
	if ok {
		b.bindContext(fn)
	}
	return ok
}

// Bundle is the set of named values a script can reference as globals.
// Members keep the order in which they were registered.
type Bundle struct {
	mu     sync.RWMutex
	names  []string
	values map[string]any
}

func NewBundle() *Bundle {
	return &Bundle{values: make(map[string]any)}
}

// Register adds or replaces a member. Replacing keeps the original position.
func (b *Bundle) Register(name string, value any) error {
	if !IsIdentifier(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}
	b.values[name] = value
	return nil
}

// MustRegister is Register for bundles assembled from constant names.
func (b *Bundle) MustRegister(name string, value any) *Bundle {
	if err := b.Register(name, value); err != nil {
		panic(err)
	}
	return b
}

func (b *Bundle) Get(name string) (any, bool) {
	b.mu.RLock()
	v, ok := b.values[name]
	b.mu.RUnlock()
	return v, ok
}

// Keys returns member names in registration order.
func (b *Bundle) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names
}

func (b *Bundle) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.names)
}

// Validate reports the first member whose name cannot be a script global.
func (b *Bundle) Validate() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, name := range b.names {
		if !IsIdentifier(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Results returns the accumulator member, or nil when the bundle has none.
func (b *Bundle) Results() any {
	v, _ := b.Get(ResultsKey)
	return v
}

// IsIdentifier reports whether name is a plain JavaScript identifier
// (ASCII letters, digits, '_' and '$', not starting with a digit).
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return !reservedWords[name]
}

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "false": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "null": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true, "let": true, "static": true, "enum": true, "await": true,
}
