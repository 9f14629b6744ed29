// Package encoding maps categorical property attributes to the integer codes
// the price model was trained with.
package encoding

import (
	"sort"
	"strings"
)

// Dimension names one categorical feature
type Dimension string

const (
	DimensionBuilder      Dimension = "builder"
	DimensionLocality     Dimension = "locality"
	DimensionPropertyType Dimension = "property_type"
)

// DefaultCode is the baseline class assigned to values outside a vocabulary.
const DefaultCode = 0

// FallbackToBaseline is the policy applied when a value is not in a
// dimension's vocabulary. It never fails: unseen categories are scored as the
// baseline class, which makes them indistinguishable from an explicit
// selection of that class.
func FallbackToBaseline(_ Dimension, _ string) int {
	return DefaultCode
}

// Normalize case-folds a raw categorical value before lookup
func Normalize(raw string) string {
	return strings.ToLower(raw)
}

// Map is an immutable vocabulary for one dimension
type Map struct {
	codes map[string]int
}

// NewMap copies entries into a new Map, normalizing every key.
func NewMap(entries map[string]int) Map {
	codes := make(map[string]int, len(entries))
	for k, v := range entries {
		codes[Normalize(k)] = v
	}
	return Map{codes: codes}
}

// Lookup returns the code for raw and whether it is part of the vocabulary.
func (m Map) Lookup(raw string) (int, bool) {
	code, ok := m.codes[Normalize(raw)]
	return code, ok
}

// Entries returns a copy of the vocabulary
func (m Map) Entries() map[string]int {
	out := make(map[string]int, len(m.codes))
	for k, v := range m.codes {
		out[k] = v
	}
	return out
}

// Resolution is the result of resolving one categorical value.
type Resolution struct {
	Dimension Dimension
	Value     string
	Code      int
	// Known is false when the code came from the fallback policy.
	Known bool
}

// FallbackObserver is notified every time the fallback policy is applied.
// It must be safe for concurrent use.
type FallbackObserver func(dim Dimension, raw string)

// Option configures a Registry
type Option func(*Registry)

// WithFallbackObserver registers fn to be told about unknown categories.
func WithFallbackObserver(fn FallbackObserver) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, fn)
	}
}

// Registry holds one Map per dimension. It is built once before serving and
// never mutated afterwards, so concurrent reads need no locking.
type Registry struct {
	maps      map[Dimension]Map
	fallback  func(Dimension, string) int
	observers []FallbackObserver
}

// NewRegistry builds a Registry from per-dimension tables.
func NewRegistry(tables map[Dimension]map[string]int, opts ...Option) *Registry {
	r := &Registry{
		maps:     make(map[Dimension]Map, len(tables)),
		fallback: FallbackToBaseline,
	}
	for dim, entries := range tables {
		r.maps[dim] = NewMap(entries)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultTables returns the vocabularies the deployed model was trained on.
func DefaultTables() map[Dimension]map[string]int {
	return map[Dimension]map[string]int{
		DimensionBuilder:      {"builder_a": 0, "builder_b": 1},
		DimensionLocality:     {"locality_1": 0, "locality_2": 1},
		DimensionPropertyType: {"apartment": 0, "villa": 1},
	}
}

// NewDefaultRegistry builds a Registry from DefaultTables.
func NewDefaultRegistry(opts ...Option) *Registry {
	return NewRegistry(DefaultTables(), opts...)
}

// Encode returns the integer code for raw in dimension dim.
func (r *Registry) Encode(dim Dimension, raw string) int {
	return r.Resolve(dim, raw).Code
}

// Resolve looks raw up in dimension dim, applying the fallback policy when
// the value (or the dimension) is unknown.
func (r *Registry) Resolve(dim Dimension, raw string) Resolution {
	res := Resolution{Dimension: dim, Value: raw}
	if m, ok := r.maps[dim]; ok {
		if code, known := m.Lookup(raw); known {
			res.Code = code
			res.Known = true
			return res
		}
	}

	res.Code = r.fallback(dim, raw)
	for _, obs := range r.observers {
		obs(dim, raw)
	}
	return res
}

// Vocabulary returns a copy of the vocabulary for dim, or nil if dim is not registered.
func (r *Registry) Vocabulary(dim Dimension) map[string]int {
	m, ok := r.maps[dim]
	if !ok {
		return nil
	}
	return m.Entries()
}

// Dimensions lists the registered dimensions in sorted order
func (r *Registry) Dimensions() []Dimension {
	dims := make([]Dimension, 0, len(r.maps))
	for d := range r.maps {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	return dims
}
