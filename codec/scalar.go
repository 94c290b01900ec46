// Package codec holds the primitive conversions used by jsonproto types.
//
// A Scalar converts one primitive value between its domain form (the value
// stored in a record or an unstruct tree) and its JSON-native form (string,
// float64, int64, json.Number, bool). Scalars are stateless and safe for
// concurrent use.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMismatch reports a value whose Go type or content does not fit a Scalar.
var ErrMismatch = errors.New("codec: type mismatch")

// Scalar converts a primitive between domain and JSON-native form.
type Scalar interface {
	// Name is the registry name used by declaration files ("string", "time", ...).
	Name() string
	// JSONType is the JSON Schema type of the JSON-native form.
	JSONType() string
	// JSONFormat is the JSON Schema format annotation, or "".
	JSONFormat() string
	// Accepts reports whether v is a domain value of this scalar and returns it
	// normalized (for example every Go integer becomes int64).
	Accepts(v any) (any, bool)
	// ToJSON converts a normalized domain value to its JSON-native form.
	ToJSON(v any) (any, error)
	// FromJSON converts a JSON-native value to its normalized domain form.
	FromJSON(v any) (any, error)
}

func mismatch(want string, v any) error {
	return fmt.Errorf("%w: expected %s, got %T", ErrMismatch, want, v)
}

var (
	_registryMu sync.RWMutex
	_registry   = map[string]Scalar{}
)

func init() {
	for _, s := range []Scalar{String(), Int(), Float(), Bool(), Time(), Date(), Duration(), Bytes(), UUID(), IP()} {
		_registry[s.Name()] = s
	}
}

// Register adds a custom Scalar under its name, replacing any previous entry.
func Register(s Scalar) {
	if s == nil {
		return
	}
	_registryMu.Lock()
	_registry[s.Name()] = s
	_registryMu.Unlock()
}

// Lookup returns the Scalar registered under name.
func Lookup(name string) (Scalar, bool) {
	_registryMu.RLock()
	s, ok := _registry[name]
	_registryMu.RUnlock()
	return s, ok
}

// Names lists registered scalar names in sorted order.
func Names() []string {
	_registryMu.RLock()
	out := make([]string, 0, len(_registry))
	for n := range _registry {
		out = append(out, n)
	}
	_registryMu.RUnlock()
	sort.Strings(out)
	return out
}
