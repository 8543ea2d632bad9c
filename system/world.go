package system

import (
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
	"github.com/kayrt/kay/message"
)

// World is the reentrant handle passed into every handler and spawner: it
// carries the identity of the instance currently executing (or a
// class-scoped identity, inside a spawner) and every send/spawn/kill
// operation available to it. Grounded on original_source/src/actor.rs's
// World type; the original asserts its raw-self-pointer World is Send+Sync
// so it can be threaded through FFI-adjacent call sites. Go has no such
// need (there is no unsafe FFI boundary here, and World values are never
// shared across goroutines — handlers run strictly sequentially inside one
// ProcessAllMessages call) so World here is a plain value with no unsafe
// tricks, deliberately not safe for concurrent use from multiple
// goroutines.
type World struct {
	sys  *ActorSystem
	self id.RawID
}

// Self returns the RawID of the instance this World was handed to. Inside
// a spawner, TypeID/Machine are valid but InstanceID is not yet assigned.
func (w *World) Self() id.RawID { return w.self }

// LocalMachine returns the machine this World's ActorSystem runs on.
func (w *World) LocalMachine() id.MachineID { return w.sys.machine }

// ShuttingDown reports whether the owning ActorSystem has been asked to
// shut down.
func (w *World) ShuttingDown() bool { return w.sys.ShuttingDown() }

// Kill removes the instance addressed by raw immediately. Calling Kill on
// the currently-executing instance (w.Self()) is the normal way a handler
// ends its own life; Kill on any other live instance of any class is also
// valid and is how one actor destroys another. Returns false if raw no
// longer addresses a live instance.
func (w *World) Kill(raw id.RawID) bool {
	host, ok := w.sys.classHostFor(raw.TypeID)
	if !ok {
		return false
	}
	killed := host.swapRemove(raw)
	if killed {
		w.sys.metrics.AddInstancesKilled(1)
	}
	return killed
}

// IsLive reports whether raw still addresses a live instance, without
// sending anything.
func (w *World) IsLive(raw id.RawID) bool {
	host, ok := w.sys.classHostFor(raw.TypeID)
	if !ok {
		return false
	}
	return host.isLive(raw)
}

// LocalBroadcastOf builds the RawID that addresses every machine-local
// instance of the class identified by typeID.
func (w *World) LocalBroadcastOf(typeID id.ShortTypeID) id.RawID {
	return id.New(typeID, id.BroadcastInstance, w.sys.machine, 0)
}

// GlobalBroadcastOf builds the RawID that addresses every instance of the
// class identified by typeID, on every peer.
func (w *World) GlobalBroadcastOf(typeID id.ShortTypeID) id.RawID {
	return id.New(typeID, id.BroadcastInstance, id.BroadcastMachine, 0)
}

// Send encodes msg and enqueues it for delivery to to, which may be a
// single instance, a LocalBroadcastOf, or a GlobalBroadcastOf address. The
// sender recorded on the delivered frame is w.Self().
func Send[M any, PM interface {
	*M
	message.Message
}](w *World, to id.RawID, msg M) error {
	mtid, ok := w.sys.msgReg.Get(messageType[M]())
	if !ok {
		return kerr.Programmer("send: message type %T was never registered with AddHandler/AddSpawner", msg)
	}
	payload, err := PM(&msg).MarshalBinary()
	if err != nil {
		return kerr.Wrap(err, "send: encode %T", msg)
	}
	return w.sys.send(to, mtid, w.self, payload)
}

// SpawnTo encodes msg and delivers it to classType's spawn inbox, causing
// the registered OnSpawn handler for M to run on the next dispatch cycle
// and (if it returns message.Live) a new instance to be created.
func SpawnTo[M any, PM interface {
	*M
	message.Message
}](w *World, classType id.ShortTypeID, msg M) error {
	mtid, ok := w.sys.msgReg.Get(messageType[M]())
	if !ok {
		return kerr.Programmer("spawn: message type %T was never registered with AddSpawner", msg)
	}
	payload, err := PM(&msg).MarshalBinary()
	if err != nil {
		return kerr.Wrap(err, "spawn: encode %T", msg)
	}
	return w.sys.spawnSend(classType, mtid, w.self, payload)
}

// PredictNextInstanceID returns the RawID the next Spawn/spawn-message
// delivery to class A will receive, so the spawning actor can hand the
// address out to third parties before the spawned instance actually
// exists. Grounded on the original's World::allocate_instance_id. This is
// a prediction, not a reservation: it is only correct if nothing else adds
// to or removes from this class before the predicted spawn actually runs,
// which holds for the common case of predicting-then-immediately-spawning
// within the same handler (single-threaded within one dispatch cycle).
func PredictNextInstanceID[A any](h *ClassHandle[A], machine id.MachineID) id.RawID {
	return id.New(h.tid, h.cs.arena.PeekNextInstanceID(), machine, 0)
}
