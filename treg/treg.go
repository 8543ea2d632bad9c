// Package treg implements the dense type registry that assigns every actor
// class, actor trait, and message type a stable 16-bit id in first-seen
// order. Grounded on original_source/src/lib.rs (the TypeRegistry impl) and
// on the teacher's xact/xreg/xreg.go registry shape: a name-keyed map
// protected by a single mutex, with a reverse slice for id->name lookups,
// following the same "entries behind one mutex, indexed both ways" pattern
// xreg uses for its active/roActive/all maps.
package treg

import (
	"reflect"
	"sync"

	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
)

// Registry assigns and looks up ShortTypeIDs for Go types identified by
// reflect.Type. The caller decides which kinds share an id space:
// system.ActorSystem keeps one Registry for actor classes and traits
// together and a separate one for message types.
type Registry struct {
	mtx     sync.RWMutex
	byType  map[reflect.Type]id.ShortTypeID
	byName  map[string]id.ShortTypeID
	names   []string
	maxSize int
}

// New constructs a Registry capped at maxSize distinct entries. Pass
// id.MaxRecipientTypes for a class/trait registry, id.MaxMessageTypes for a
// message registry.
func New(maxSize int) *Registry {
	return &Registry{
		byType: make(map[reflect.Type]id.ShortTypeID),
		byName: make(map[string]id.ShortTypeID),
		names:  make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

// GetOrRegister returns the id for t, assigning the next free id the first
// time t is seen. The zero value of t is only used to capture its
// reflect.Type; no instance of t needs to be constructed by the caller.
func (r *Registry) GetOrRegister(t reflect.Type) (id.ShortTypeID, error) {
	r.mtx.RLock()
	if tid, ok := r.byType[t]; ok {
		r.mtx.RUnlock()
		return tid, nil
	}
	r.mtx.RUnlock()

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if tid, ok := r.byType[t]; ok {
		return tid, nil
	}
	if len(r.names) >= r.maxSize {
		return 0, kerr.Programmer("type registry full (%d entries): cannot register %s", r.maxSize, t)
	}
	tid := id.ShortTypeID(len(r.names))
	name := t.String()
	if _, dup := r.byName[name]; dup {
		return 0, kerr.Programmer("type registry: duplicate name %q", name)
	}
	r.byType[t] = tid
	r.byName[name] = tid
	r.names = append(r.names, name)
	return tid, nil
}

// RegisterDummy reserves an id that is deliberately never dispatched to,
// mirroring the original's RegisterDummy<D>: used to pad a dispatch table
// to the correct offset in tests, or to reserve a message type whose
// handler lives only on some peers.
func (r *Registry) RegisterDummy(name string) (id.ShortTypeID, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if tid, ok := r.byName[name]; ok {
		return tid, nil
	}
	if len(r.names) >= r.maxSize {
		return 0, kerr.Programmer("type registry full (%d entries): cannot register dummy %q", r.maxSize, name)
	}
	tid := id.ShortTypeID(len(r.names))
	r.byName[name] = tid
	r.names = append(r.names, name)
	return tid, nil
}

// Get returns the id already assigned to t, or false if t was never
// registered.
func (r *Registry) Get(t reflect.Type) (id.ShortTypeID, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	tid, ok := r.byType[t]
	return tid, ok
}

// Name returns the name recorded for tid, the way nlog wants a printable
// identity for an otherwise-opaque ShortTypeID.
func (r *Registry) Name(tid id.ShortTypeID) string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	i := int(tid)
	if i < 0 || i >= len(r.names) {
		return "<unknown>"
	}
	return r.names[i]
}

// Len reports how many ids have been assigned so far.
func (r *Registry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.names)
}
