package class

import (
	"sync/atomic"

	"github.com/kayrt/kay/id"
)

// GenericID is the hand-rolled id.TypedID implementation for hosts that
// don't run a code-generation pass to emit one strongly-typed id wrapper
// per actor class (the original emits e.g. CounterID via a derive macro;
// see SPEC_FULL.md's Supplemented Features). It simply carries a RawID and
// a human name for logging.
type GenericID struct {
	raw  id.RawID
	kind string
}

// NewGenericID wraps raw, tagging it with kind (typically the Go type name
// of the actor class) for readable logging.
func NewGenericID(raw id.RawID, kind string) GenericID {
	return GenericID{raw: raw, kind: kind}
}

func (g GenericID) AsRaw() id.RawID { return g.raw }

func (g GenericID) String() string {
	if g.kind == "" {
		return g.raw.String()
	}
	return g.kind + "(" + g.raw.String() + ")"
}

var _ id.TypedID = GenericID{}

// External marks a field of an actor struct as holding a handle that must
// not be naively deep-copied by value the way the rest of the struct is
// during compaction/resize (e.g. an open OS handle, a channel, a pointer
// into foreign memory). Grounded on original_source/src/external.rs: the
// original uses a raw-pointer wrapper plus an "is valid" flag checked
// before every dereference; since struct-assignment compaction in this
// runtime only ever copies Go-native values (which are always safe to
// move), External[T] only needs to track validity, not patch pointers.
type External[T any] struct {
	valid atomic.Bool
	value T
}

// NewExternal wraps value as a currently-valid External handle.
func NewExternal[T any](value T) *External[T] {
	e := &External[T]{value: value}
	e.valid.Store(true)
	return e
}

// Get returns the wrapped value and whether it is still valid.
func (e *External[T]) Get() (T, bool) {
	if !e.valid.Load() {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Invalidate marks the handle unusable; subsequent Get calls report false.
// Used when the actor owning this field is destroyed but something else
// still transiently holds a copy of the External wrapper (e.g. a spawned
// goroutine mid-flight).
func (e *External[T]) Invalidate() {
	e.valid.Store(false)
}
