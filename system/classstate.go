package system

import (
	"github.com/kayrt/kay/class"
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
	"github.com/kayrt/kay/message"
)

// classHost is the type-erased interface ActorSystem stores one of per
// registered actor class. classState[A] is its only implementation; the
// interface exists purely so classes of different Go types A can live in
// one map, the way the original's ActorSystem stores a homogeneous Vec of
// trait-object classes instead of one vec-per-type.
type classHost interface {
	typeID() id.ShortTypeID
	name() string
	instanceCount() int
	isLive(raw id.RawID) bool
	putToInstance(to id.RawID, msgTypeID id.ShortTypeID, from id.RawID, payload []byte) bool
	putBroadcast(msgTypeID id.ShortTypeID, from id.RawID, payload []byte)
	putSpawn(msgTypeID id.ShortTypeID, from id.RawID, payload []byte)
	swapRemove(raw id.RawID) bool
	cycle(sys *ActorSystem, criticalOnly bool) (int, error)
	queueLength() int
}

type messageEntry[A any] struct {
	critical bool
	apply    func(self *A, from id.RawID, payload []byte, w *World) error
}

type spawnEntry[A any] struct {
	critical bool
	apply    func(from id.RawID, payload []byte, w *World) (A, message.Fate, error)
}

// classState is the concrete, generic per-class state: the storage arena
// plus its dispatch table. One classState[A] is created per call to
// RegisterClass[A].
type classState[A any] struct {
	tid      id.ShortTypeID
	nameStr  string
	arena    *class.Class[A]
	handlers map[id.ShortTypeID]messageEntry[A]
	spawners map[id.ShortTypeID]spawnEntry[A]
}

func (cs *classState[A]) typeID() id.ShortTypeID { return cs.tid }
func (cs *classState[A]) name() string           { return cs.nameStr }
func (cs *classState[A]) instanceCount() int     { return cs.arena.Len() }
func (cs *classState[A]) isLive(raw id.RawID) bool { return cs.arena.IsLive(raw) }

func (cs *classState[A]) putToInstance(to id.RawID, msgTypeID id.ShortTypeID, from id.RawID, payload []byte) bool {
	if !cs.arena.IsLive(to) {
		return false
	}
	ib, ok := cs.arena.InboxOf(to.InstanceID)
	if !ok {
		return false
	}
	ib.Put(msgTypeID, from, payload)
	return true
}

func (cs *classState[A]) putBroadcast(msgTypeID id.ShortTypeID, from id.RawID, payload []byte) {
	cs.arena.ForEachInstanceID(func(iid uint32) {
		if ib, ok := cs.arena.InboxOf(iid); ok {
			ib.Put(msgTypeID, from, payload)
		}
	})
}

func (cs *classState[A]) putSpawn(msgTypeID id.ShortTypeID, from id.RawID, payload []byte) {
	cs.arena.ClassInbox().Put(msgTypeID, from, payload)
}

func (cs *classState[A]) swapRemove(raw id.RawID) bool { return cs.arena.SwapRemove(raw) }
func (cs *classState[A]) queueLength() int              { return cs.arena.QueueLength() }

// cycle runs one single_message_cycle pass for this class: drain the
// class-level spawn inbox, then visit every live instance once and drain
// its own inbox, dispatching each frame through the registered handler.
// When criticalOnly is set (the system has already recorded a panic on a
// previous cycle), only handlers registered as critical run; everything
// else is silently dropped, matching the original's post-panic behaviour.
func (cs *classState[A]) cycle(sys *ActorSystem, criticalOnly bool) (int, error) {
	processed := 0

	spawnFrames, err := cs.arena.ClassInbox().Drain()
	if err != nil {
		return processed, err
	}
	for _, f := range spawnFrames {
		entry, ok := cs.spawners[f.MsgTypeID]
		if !ok {
			if criticalOnly {
				continue
			}
			return processed, kerr.Programmer("class %s: no spawner registered for message %s", cs.nameStr, sys.msgReg.Name(f.MsgTypeID))
		}
		if criticalOnly && !entry.critical {
			continue
		}
		w := sys.worldFor(id.RawID{TypeID: cs.tid, Machine: sys.machine})
		a, fate, err := entry.apply(f.From, f.Payload, w)
		if err != nil {
			return processed, err
		}
		processed++
		sys.recordMessageStat(cs.nameStr, f.MsgTypeID)
		if fate == message.Live {
			cs.arena.Add(a)
			sys.metrics.AddInstancesSpawned(1)
		}
	}

	var firstErr error
	cs.arena.VisitAll(func(instanceID uint32, a *A) bool {
		if firstErr != nil {
			return false
		}
		ib, ok := cs.arena.InboxOf(instanceID)
		if !ok {
			return false
		}
		frames, err := ib.Drain()
		if err != nil {
			firstErr = err
			return false
		}
		raw, err := cs.arena.RawIDOf(instanceID)
		if err != nil {
			firstErr = err
			return false
		}
		w := sys.worldFor(raw)
		for _, f := range frames {
			entry, ok := cs.handlers[f.MsgTypeID]
			if !ok {
				if criticalOnly {
					continue
				}
				firstErr = kerr.Programmer("class %s: no handler registered for message %s", cs.nameStr, sys.msgReg.Name(f.MsgTypeID))
				return false
			}
			if criticalOnly && !entry.critical {
				continue
			}
			if err := entry.apply(a, f.From, f.Payload, w); err != nil {
				firstErr = err
				return false
			}
			processed++
			sys.recordMessageStat(cs.nameStr, f.MsgTypeID)
		}
		return false
	})
	return processed, firstErr
}
