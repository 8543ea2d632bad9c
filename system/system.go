// Package system implements the actor runtime's dispatch loop: ActorSystem
// (registration, the panic-quarantined process_all_messages cycle, the
// telemetry and run-id surface) and World (the reentrant send/spawn handle
// passed into every handler). Grounded on original_source/src/actor_system.rs
// and src/lib.rs. Registration follows the teacher's xact/xreg pattern —
// a name-keyed registry behind a single mutex, entries looked up by a
// caller-held handle rather than re-resolved by name on every call — here
// specialized per actor class via Go generics instead of xreg's
// interface-based Renewable.
package system

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	shortid "github.com/teris-io/shortid"

	"github.com/kayrt/kay/class"
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/inspect"
	"github.com/kayrt/kay/kdebug"
	"github.com/kayrt/kay/kerr"
	"github.com/kayrt/kay/klog"
	"github.com/kayrt/kay/message"
	"github.com/kayrt/kay/metrics"
	"github.com/kayrt/kay/treg"
	"github.com/kayrt/kay/tuning"
)

// MaxCyclesPerTurn bounds process_all_messages the way the original caps a
// turn at 1000 dispatch cycles: a chain of messages that keeps spawning
// more work forever is a programmer error, not something the runtime
// silently loops on forever.
const MaxCyclesPerTurn = 1000

// PeerTransport is the networking boundary ActorSystem sends through. The
// net package's Networking type implements it; kept as an interface here
// so system has no import-time dependency on net (net depends on system,
// not the other way around).
type PeerTransport interface {
	// SendTo hands a fully framed, recipient-prefixed payload to whatever
	// connection serves machine. Returns an error only for conditions the
	// transport cannot itself recover from; ordinary backpressure is the
	// transport's own concern, not the caller's.
	SendTo(machine id.MachineID, frame []byte) error
}

// ActorSystem owns every registered class, the shared class/message type
// registries, and the turn-cycle/panic-quarantine state machine. One
// ActorSystem exists per machine in the simulation.
type ActorSystem struct {
	machine id.MachineID
	runID   string

	classReg *treg.Registry
	msgReg   *treg.Registry

	mtx     sync.RWMutex
	classes map[id.ShortTypeID]classHost
	order   []id.ShortTypeID
	traits  map[id.ShortTypeID]*traitState

	tuning tuning.Tuning

	panicked     atomic.Bool
	panicValue   atomic.Value
	shuttingDown atomic.Bool

	transport PeerTransport
	metrics   *metrics.Collector

	statsMtx sync.Mutex
	msgStats map[string]uint64
}

// New builds an empty ActorSystem for the given machine, using t for every
// chunky-backed structure's growth sizing.
func New(machine id.MachineID, t tuning.Tuning) *ActorSystem {
	runID, err := shortid.Generate()
	if err != nil {
		runID = "run"
	}
	sys := &ActorSystem{
		machine:  machine,
		runID:    runID,
		classReg: treg.New(id.MaxRecipientTypes),
		msgReg:   treg.New(id.MaxMessageTypes),
		classes:  make(map[id.ShortTypeID]classHost),
		traits:   make(map[id.ShortTypeID]*traitState),
		tuning:   t,
		metrics:  metrics.NewCollector(),
		msgStats: make(map[string]uint64),
	}
	klog.Prefix = runID
	return sys
}

// RunID is the short id stamped into every log line and the debug dump,
// identifying one process lifetime (useful when several peers' logs are
// interleaved).
func (sys *ActorSystem) RunID() string { return sys.runID }

// LocalMachine returns this system's MachineID.
func (sys *ActorSystem) LocalMachine() id.MachineID { return sys.machine }

// AttachTransport wires a PeerTransport so cross-machine sends leave the
// process instead of erroring. Calling this is optional: a single-machine
// simulation never needs one.
func (sys *ActorSystem) AttachTransport(t PeerTransport) { sys.transport = t }

// Metrics exposes the Prometheus collector backing this system's
// telemetry, for registration with a prometheus.Registerer.
func (sys *ActorSystem) Metrics() *metrics.Collector { return sys.metrics }

// PanicHappened reports whether a previous process_all_messages call
// recorded a handler panic. Once true, it stays true: only critical
// handlers run on every subsequent call.
func (sys *ActorSystem) PanicHappened() bool { return sys.panicked.Load() }

// PanicValue returns whatever value the recovered panic carried, or nil if
// none has happened.
func (sys *ActorSystem) PanicValue() any {
	v := sys.panicValue.Load()
	if v == nil {
		return nil
	}
	return v
}

// RequestShutdown marks the system as shutting down; process_all_messages
// keeps running (in-flight critical cleanup handlers still fire) but
// ShuttingDown callers can use this to stop accepting new external work.
func (sys *ActorSystem) RequestShutdown() { sys.shuttingDown.Store(true) }

// ShuttingDown reports whether RequestShutdown has been called.
func (sys *ActorSystem) ShuttingDown() bool { return sys.shuttingDown.Load() }

// ClassHandle is the caller-held reference to one registered actor class,
// returned by RegisterClass and passed to AddHandler/AddSpawner. It avoids
// re-resolving a class by reflect.Type on every registration call, the way
// the teacher's xreg callers hold onto a registry entry instead of
// re-querying the registry by name.
type ClassHandle[A any] struct {
	tid id.ShortTypeID
	cs  *classState[A]
}

// TypeID returns the ShortTypeID this class was assigned.
func (h *ClassHandle[A]) TypeID() id.ShortTypeID { return h.tid }

// RegisterClass registers actor type A under name (used only for logging
// and the debug dump; the wire identity is the assigned ShortTypeID).
// binCap bounds how many instances share one size-class bin.
func RegisterClass[A any](sys *ActorSystem, name string, binCap int) (*ClassHandle[A], error) {
	sys.mtx.Lock()
	defer sys.mtx.Unlock()

	t := reflect.TypeOf((*A)(nil)).Elem()
	tid, err := sys.classReg.GetOrRegister(t)
	if err != nil {
		return nil, errors.Wrapf(err, "register class %s", name)
	}
	if _, dup := sys.classes[tid]; dup {
		return nil, kerr.Programmer("class %s already registered", name)
	}
	cs := &classState[A]{
		tid:      tid,
		nameStr:  name,
		arena:    class.NewClass[A](tid, sys.machine, binCap, sys.tuning.InboxQueueChunkSize),
		handlers: make(map[id.ShortTypeID]messageEntry[A]),
		spawners: make(map[id.ShortTypeID]spawnEntry[A]),
	}
	sys.classes[tid] = cs
	sys.order = append(sys.order, tid)
	klog.Infof("system[%s]: registered class %s as type %d", sys.runID, name, tid)
	return &ClassHandle[A]{tid: tid, cs: cs}, nil
}

// RegisterDummy reserves a class-registry slot without any backing arena,
// used to pad dispatch-table offsets to match a peer that has additional
// classes this machine does not, mirroring the original's
// register_dummy::<D>.
func RegisterDummy(sys *ActorSystem, name string) error {
	sys.mtx.Lock()
	defer sys.mtx.Unlock()
	_, err := sys.classReg.RegisterDummy(name)
	return err
}

// messageType returns the reflect.Type identifying M in the message
// registry, consistently for registration (AddHandler/AddSpawner) and
// lookup (World.Send/SpawnTo).
func messageType[M any]() reflect.Type {
	return reflect.TypeOf((*M)(nil)).Elem()
}

// registerMessageType returns the ShortTypeID for M, registering it on
// first use. Shared by AddHandler, AddSpawner, and Send so the same Go
// type always maps to the same wire id everywhere it appears.
func registerMessageType[M any](sys *ActorSystem) (id.ShortTypeID, error) {
	return sys.msgReg.GetOrRegister(messageType[M]())
}

// AddHandler registers fn as the OnMessage handler for message type M on
// class A. critical marks fn as one of the handlers that still runs after
// the system has recorded a panic on a previous cycle.
func AddHandler[A any, M any, PM interface {
	*M
	message.Message
}](sys *ActorSystem, h *ClassHandle[A], critical bool, fn func(self *A, msg M, from id.RawID, w *World)) error {
	mtid, err := registerMessageType[M](sys)
	if err != nil {
		return errors.Wrap(err, "add handler")
	}
	h.cs.handlers[mtid] = messageEntry[A]{
		critical: critical,
		apply: func(self *A, from id.RawID, payload []byte, w *World) error {
			m := new(M)
			if err := PM(m).UnmarshalBinary(payload); err != nil {
				return kerr.Wrap(err, "decode message for class %s", h.cs.nameStr)
			}
			fn(self, *m, from, w)
			return nil
		},
	}
	return nil
}

// AddSpawner registers fn as the OnSpawn handler for message type M on
// class A: delivering M to the class itself (rather than to an existing
// instance) constructs a new A and, when fn returns message.Live, inserts
// it into the arena.
func AddSpawner[A any, M any, PM interface {
	*M
	message.Message
}](sys *ActorSystem, h *ClassHandle[A], critical bool, fn func(msg M, from id.RawID, w *World) (A, message.Fate)) error {
	mtid, err := registerMessageType[M](sys)
	if err != nil {
		return errors.Wrap(err, "add spawner")
	}
	h.cs.spawners[mtid] = spawnEntry[A]{
		critical: critical,
		apply: func(from id.RawID, payload []byte, w *World) (A, message.Fate, error) {
			m := new(M)
			if err := PM(m).UnmarshalBinary(payload); err != nil {
				var zero A
				return zero, message.Die, kerr.Wrap(err, "decode spawn message for class %s", h.cs.nameStr)
			}
			a, fate := fn(*m, from, w)
			return a, fate, nil
		},
	}
	return nil
}

// Spawn constructs a new instance of A directly (bypassing the spawn-
// message/Inbox path), returning its RawID. Used at simulation setup time
// before any turn has run, and by tests.
func Spawn[A any](h *ClassHandle[A], a A) id.RawID {
	return h.cs.arena.Add(a)
}

// InstanceCount reports the number of live instances of A.
func InstanceCount[A any](h *ClassHandle[A]) int { return h.cs.arena.Len() }

// Get returns a pointer to the live instance addressed by raw, for hosts
// and tests that need to inspect state without going through the message
// loop. The pointer aliases the arena's own storage: callers must not
// retain it across a ProcessAllMessages call, since a later resize or
// swap-remove can relocate or invalidate it.
func Get[A any](h *ClassHandle[A], raw id.RawID) (*A, bool) {
	return h.cs.arena.Get(raw)
}

func (sys *ActorSystem) classHostFor(tid id.ShortTypeID) (classHost, bool) {
	sys.mtx.RLock()
	defer sys.mtx.RUnlock()
	ch, ok := sys.classes[tid]
	return ch, ok
}

// worldFor builds the World handle passed into a handler executing on
// behalf of self.
func (sys *ActorSystem) worldFor(self id.RawID) *World {
	return &World{sys: sys, self: self}
}

// World returns a host-facing handle for driving the simulation from
// outside any handler: seeding the first messages before the first
// ProcessAllMessages call, or injecting externally-triggered events (a
// player action, a timer) between turns. Its Self() carries no
// instance-specific identity (InstanceID is zero); hosts that need a
// distinguishable "system" sender address should register a dedicated
// dummy class instead. Matches spec.md §6's world() entry in the Runtime
// API.
func (sys *ActorSystem) World() *World {
	return sys.worldFor(id.RawID{Machine: sys.machine})
}

// send is the shared implementation behind World's generic Send helper and
// the networking layer's inbound-frame delivery.
func (sys *ActorSystem) send(to id.RawID, msgTypeID id.ShortTypeID, from id.RawID, payload []byte) error {
	if !to.IsBroadcast() && to.Machine != sys.machine {
		if sys.transport == nil {
			return kerr.Programmer("send to machine %d: no transport attached", to.Machine)
		}
		frame := class.EncodeFrame(msgTypeID, from, payload)
		wire := make([]byte, 0, 8+len(frame))
		wire = appendRawID(wire, to)
		wire = append(wire, frame...)
		return kerr.Wrap(sys.transport.SendTo(to.Machine, wire), "send to machine %d", to.Machine)
	}

	host, ok := sys.classHostFor(to.TypeID)
	if !ok {
		return sys.sendToTrait(to, msgTypeID, from, payload)
	}
	if to.IsBroadcast() {
		host.putBroadcast(msgTypeID, from, payload)
		if to.IsGlobalBroadcast() && sys.transport != nil {
			frame := class.EncodeFrame(msgTypeID, from, payload)
			wire := make([]byte, 0, 8+len(frame))
			wire = appendRawID(wire, to)
			wire = append(wire, frame...)
			_ = sys.transport.SendTo(id.BroadcastMachine, wire)
		}
		return nil
	}
	if !host.putToInstance(to, msgTypeID, from, payload) {
		klog.Warningln("system: dropped message to dead/unknown instance", class.NewGenericID(to, host.name()).String())
	}
	return nil
}

// spawnSend delivers a spawn-class message to a registered class's spawn
// inbox (handled by putSpawn rather than putToInstance/putBroadcast). A
// trait type id is not accepted here.
func (sys *ActorSystem) spawnSend(classType id.ShortTypeID, msgTypeID id.ShortTypeID, from id.RawID, payload []byte) error {
	host, ok := sys.classHostFor(classType)
	if !ok {
		return kerr.Programmer("spawn: class type %d is not registered", classType)
	}
	host.putSpawn(msgTypeID, from, payload)
	return nil
}

func appendRawID(dst []byte, raw id.RawID) []byte {
	var b [8]byte
	b[0] = byte(raw.TypeID)
	b[1] = byte(raw.TypeID >> 8)
	b[2] = byte(raw.InstanceID)
	b[3] = byte(raw.InstanceID >> 8)
	b[4] = byte(raw.InstanceID >> 16)
	b[5] = byte(raw.InstanceID >> 24)
	b[6] = byte(raw.Machine)
	b[7] = raw.Version
	return append(dst, b[:]...)
}

// DecodeRawID is the inverse of appendRawID, used by the networking layer
// to recover the recipient prefixed onto every outbound wire frame.
func DecodeRawID(b []byte) id.RawID {
	tid := id.ShortTypeID(uint16(b[0]) | uint16(b[1])<<8)
	instanceID := uint32(b[2]) | uint32(b[3])<<8 | uint32(b[4])<<16 | uint32(b[5])<<24
	return id.New(tid, instanceID, id.MachineID(b[6]), b[7])
}

// DeliverInbound is called by the networking layer for every data frame it
// receives off the wire: b is the recipient RawID prefix (8 bytes)
// followed by a regular class.EncodeFrame payload.
func (sys *ActorSystem) DeliverInbound(b []byte) error {
	if len(b) < 8 {
		return kerr.Programmer("networking: inbound frame too short (%d bytes)", len(b))
	}
	to := DecodeRawID(b[:8])
	msgTypeID, from, payload, err := class.DecodeFrameHeader(b[8:])
	if err != nil {
		return kerr.Wrap(err, "networking: decode inbound frame for %s", to)
	}
	return sys.send(to, msgTypeID, from, payload)
}

// ProcessAllMessages runs up to MaxCyclesPerTurn dispatch cycles — one
// cycle visits every registered class, in registration order, draining
// each of its inboxes exactly once — stopping early once a cycle across
// every class delivers zero messages. A handler panic is recovered here:
// the panic is recorded (PanicHappened becomes true), this call returns at
// once, and every later call only runs handlers registered as critical,
// mirroring the original's panic-quarantine behaviour.
func (sys *ActorSystem) ProcessAllMessages() (err error) {
	criticalOnly := sys.panicked.Load()
	defer func() {
		if r := recover(); r != nil {
			sys.panicked.Store(true)
			sys.panicValue.Store(r)
			sys.metrics.AddPanicsRecovered(1)
			klog.Errorln("system: handler panic recovered, quarantining to critical handlers:", r)
			kdebug.Func(func() { panic(r) })
		}
	}()

	sys.mtx.RLock()
	order := append([]id.ShortTypeID(nil), sys.order...)
	sys.mtx.RUnlock()

	for cycle := 0; cycle < MaxCyclesPerTurn; cycle++ {
		processed := 0
		for _, tid := range order {
			host, ok := sys.classHostFor(tid)
			if !ok {
				continue
			}
			n, cErr := host.cycle(sys, criticalOnly)
			processed += n
			if cErr != nil {
				return cErr
			}
		}
		sys.metrics.AddCyclesRun(1)
		sys.metrics.AddMessagesDispatched(uint64(processed))
		if processed == 0 {
			sys.metrics.AddTurnsCompleted(1)
			return nil
		}
	}
	return kerr.Programmer("process_all_messages: exceeded %d cycles in one turn", MaxCyclesPerTurn)
}

// recordMessageStat tallies one dispatched message under "<className>.<msgName>",
// backing GetMessageStatistics. className and the message registry's Name
// are both cheap, already-resolved strings by the time a handler runs, so
// this costs one mutex-guarded map bump per dispatched message.
func (sys *ActorSystem) recordMessageStat(className string, msgTypeID id.ShortTypeID) {
	key := className + "." + sys.msgReg.Name(msgTypeID)
	sys.statsMtx.Lock()
	sys.msgStats[key]++
	sys.statsMtx.Unlock()
}

// GetInstanceCounts reports the live instance count of every registered
// class, keyed by the name it was registered under. Part of spec.md §6's
// telemetry surface.
func (sys *ActorSystem) GetInstanceCounts() map[string]int {
	sys.mtx.RLock()
	defer sys.mtx.RUnlock()
	out := make(map[string]int, len(sys.order))
	for _, tid := range sys.order {
		host := sys.classes[tid]
		out[host.name()] = host.instanceCount()
	}
	return out
}

// GetMessageStatistics reports how many times each "<class>.<message>" pair
// has been dispatched since construction or the last ResetMessageStatistics.
func (sys *ActorSystem) GetMessageStatistics() map[string]uint64 {
	sys.statsMtx.Lock()
	defer sys.statsMtx.Unlock()
	out := make(map[string]uint64, len(sys.msgStats))
	for k, v := range sys.msgStats {
		out[k] = v
	}
	return out
}

// ResetMessageStatistics clears every counter GetMessageStatistics reports.
func (sys *ActorSystem) ResetMessageStatistics() {
	sys.statsMtx.Lock()
	sys.msgStats = make(map[string]uint64)
	sys.statsMtx.Unlock()
}

// GetQueueLengths reports, per registered class, the total number of
// undrained inbox frames (its class-level spawn inbox plus every live
// instance's own inbox), keyed by the class's registered name.
func (sys *ActorSystem) GetQueueLengths() map[string]int {
	sys.mtx.RLock()
	defer sys.mtx.RUnlock()
	out := make(map[string]int, len(sys.order))
	for _, tid := range sys.order {
		host := sys.classes[tid]
		out[host.name()] = host.queueLength()
	}
	return out
}

// GetActorTypeIDToNameMapping reports the registered name for every
// assigned class/trait ShortTypeID, for host-side diagnostics that only
// have a raw id (e.g. from a RawID string) to go on.
func (sys *ActorSystem) GetActorTypeIDToNameMapping() map[id.ShortTypeID]string {
	sys.mtx.RLock()
	defer sys.mtx.RUnlock()
	out := make(map[id.ShortTypeID]string, len(sys.order))
	for _, tid := range sys.order {
		out[tid] = sys.classes[tid].name()
	}
	return out
}

// Dump builds a debug snapshot of every registered class and its current
// instance count, rendered to JSON by inspect.ToJSON.
func (sys *ActorSystem) Dump() inspect.Dump {
	sys.mtx.RLock()
	defer sys.mtx.RUnlock()
	d := inspect.Dump{
		RunID:    sys.runID,
		Machine:  sys.machine,
		Panicked: sys.panicked.Load(),
		Classes:  make([]inspect.ClassSnapshot, 0, len(sys.order)),
	}
	for _, tid := range sys.order {
		host := sys.classes[tid]
		d.Classes = append(d.Classes, inspect.ClassSnapshot{
			TypeID:    tid,
			Name:      host.name(),
			Instances: host.instanceCount(),
		})
	}
	return d
}
