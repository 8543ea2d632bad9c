package system

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/kayrt/kay/class"
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
	"github.com/kayrt/kay/klog"
)

// traitState is what RegisterTrait records: a trait owns no state or
// arena, only a name (for logging) and the class ids of whatever has
// registered as one of its implementors so far. Grounded on
// original_source/src/actor_system.rs's implementors table
// (register_implementor, ActorSystem.send's recipient-is-a-trait branch)
// and spec.md §3's Trait definition.
type traitState struct {
	name         string
	implementors []id.ShortTypeID
}

// TraitHandle is the caller-held reference returned by RegisterTrait,
// passed to RegisterImplementor and used to build LocalBroadcastOf/
// GlobalBroadcastOf addresses that fan out to every implementor.
type TraitHandle struct {
	tid id.ShortTypeID
}

// TypeID returns the ShortTypeID this trait was assigned, from the same
// id space classes are assigned from (spec.md §3: "a trait is a type-id
// that owns no state or arena").
func (h *TraitHandle) TypeID() id.ShortTypeID { return h.tid }

// RegisterTrait registers trait type T, assigning it a ShortTypeID from
// the shared class/trait registry. Must be called exactly once per trait,
// before any RegisterImplementor[_, T] call.
func RegisterTrait[T any](sys *ActorSystem, name string) (*TraitHandle, error) {
	sys.mtx.Lock()
	defer sys.mtx.Unlock()

	t := reflect.TypeOf((*T)(nil)).Elem()
	tid, err := sys.classReg.GetOrRegister(t)
	if err != nil {
		return nil, errors.Wrapf(err, "register trait %s", name)
	}
	if _, dup := sys.traits[tid]; dup {
		return nil, kerr.Programmer("trait %s already registered", name)
	}
	sys.traits[tid] = &traitState{name: name}
	klog.Infof("system[%s]: registered trait %s as type %d", sys.runID, name, tid)
	return &TraitHandle{tid: tid}, nil
}

// RegisterTraitMessage registers message type M for use with a trait's
// broadcast address, without attaching a handler. Mirrors
// register_trait_message from spec.md §6: a trait owns no handler of its
// own, so this only needs to give M a wire id before the first send; a
// handler for M still has to be added per implementing class via
// AddHandler. Calling this is optional — AddHandler on any implementor
// already registers M the same way — but it lets a trait-message type be
// assigned an id before any implementor is wired up.
func RegisterTraitMessage[M any](sys *ActorSystem) (id.ShortTypeID, error) {
	return registerMessageType[M](sys)
}

// RegisterImplementor records that class A implements trait T: a
// broadcast addressed to T's type id will be delivered to every instance
// of A (and every other registered implementor). Both must already be
// registered.
func RegisterImplementor[A any, T any](sys *ActorSystem, trait *TraitHandle, cls *ClassHandle[A]) error {
	sys.mtx.Lock()
	defer sys.mtx.Unlock()
	ts, ok := sys.traits[trait.tid]
	if !ok {
		return kerr.Programmer("register implementor: trait type %d is not registered", trait.tid)
	}
	for _, existing := range ts.implementors {
		if existing == cls.tid {
			return kerr.Programmer("class type %d is already registered as an implementor of trait %s", cls.tid, ts.name)
		}
	}
	ts.implementors = append(ts.implementors, cls.tid)
	return nil
}

// sendToTrait is the trait branch of send, taken whenever to.TypeID does
// not name a registered class: to is either a malformed/unknown recipient
// or addresses a trait's fan-out group. Since a trait owns no arena, only
// a broadcast address makes sense; anything else is a programmer error,
// matching spec.md §4.4's "unknown recipient or trait has no
// implementors".
func (sys *ActorSystem) sendToTrait(to id.RawID, msgTypeID id.ShortTypeID, from id.RawID, payload []byte) error {
	sys.mtx.RLock()
	ts, ok := sys.traits[to.TypeID]
	sys.mtx.RUnlock()
	if !ok || !to.IsBroadcast() {
		return kerr.Programmer("send: unknown recipient or trait has no implementors (type %d)", to.TypeID)
	}
	if len(ts.implementors) == 0 {
		return kerr.Programmer("send: trait %s has no implementors", ts.name)
	}
	for _, classTID := range ts.implementors {
		host, ok := sys.classHostFor(classTID)
		if !ok {
			continue
		}
		host.putBroadcast(msgTypeID, from, payload)
	}
	if to.IsGlobalBroadcast() && sys.transport != nil {
		frame := class.EncodeFrame(msgTypeID, from, payload)
		wire := make([]byte, 0, 8+len(frame))
		wire = appendRawID(wire, to)
		wire = append(wire, frame...)
		_ = sys.transport.SendTo(id.BroadcastMachine, wire)
	}
	return nil
}
