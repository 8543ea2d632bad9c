package class

import (
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
)

// bin is one size-class partition of a Class's storage: two parallel
// slices, one holding the live instances and one holding the instance id
// each slot belongs to. Compaction in the original relocates instances by
// patching raw pointers in place; since Go's GC already relocates slice
// backing arrays on its own, the same effect here is a plain element
// assignment inside Go's own growable slice, so we never hand-manage
// byte offsets the way the original's Compact-trait machinery does.
type bin[A any] struct {
	items   []A
	ids     []uint32
	inboxes []*Inbox
}

// Class is a compacting, multi-bin arena for every live instance of one
// actor type. A(n) is plain struct assignment copies instances between
// slots/bins instead of raw-pointer relocation, but every caller-visible
// invariant the original's arena guarantees (stable RawIDs across
// compaction, swap-remove, resize, and broadcast-with-concurrent-mutation)
// is preserved.
type Class[A any] struct {
	typeID     id.ShortTypeID
	machine    id.MachineID
	bins       []*bin[A]
	binCap     int
	inboxChunk int
	slots      *slotMap
	classInbox *Inbox

	// refillBin/refillSlot/refillValid record the most recent swap-remove's
	// refill location, consulted by VisitAll to decide whether the slot it
	// is currently visiting (or one it already passed) needs re-visiting.
	refillValid bool
	refillBin   int
	refillSlot  int
}

// NewClass builds an empty arena for actor type A, registered under
// typeID, addressed as hosted on machine. binCap bounds how many instances
// live in one size-class bin before a new bin is opened; pass
// tuning.Tuning.InstanceChunkSize / (rough size of A) or a flat constant —
// the exact cap only affects how broadcast work is batched across bins,
// never correctness. inboxChunk sizes every instance inbox's (and the
// class-level spawn inbox's) backing chunky.Queue.
func NewClass[A any](typeID id.ShortTypeID, machine id.MachineID, binCap, inboxChunk int) *Class[A] {
	if binCap <= 0 {
		binCap = 1024
	}
	return &Class[A]{
		typeID:     typeID,
		machine:    machine,
		binCap:     binCap,
		inboxChunk: inboxChunk,
		slots:      newSlotMap(),
		classInbox: NewInbox(inboxChunk),
	}
}

// Machine returns the MachineID this arena's instances are addressed as
// hosted on, used to rebuild a RawID from a bare instance id (e.g. when
// restoring a persisted snapshot).
func (c *Class[A]) Machine() id.MachineID { return c.machine }

// ClassInbox is the mailbox for messages addressed to the class itself
// rather than to a particular instance: spawn requests. Class and trait
// broadcasts go to the instances' own inboxes instead.
func (c *Class[A]) ClassInbox() *Inbox { return c.classInbox }

// InboxOf returns the per-instance mailbox for a live instance, or false if
// instanceID is not currently live.
func (c *Class[A]) InboxOf(instanceID uint32) (*Inbox, bool) {
	loc, ok := c.slots.locationOf(instanceID)
	if !ok {
		return nil, false
	}
	return c.bins[loc.bin].inboxes[loc.slot], true
}

// Len reports the number of live instances across every bin.
func (c *Class[A]) Len() int {
	n := 0
	for _, b := range c.bins {
		n += len(b.items)
	}
	return n
}

// Add inserts a new instance and returns the RawID now addressing it.
func (c *Class[A]) Add(a A) id.RawID {
	binIdx := c.binWithRoom()
	b := c.bins[binIdx]
	slot := len(b.items)
	instanceID, version := c.slots.allocate(location{bin: binIdx, slot: slot})
	b.items = append(b.items, a)
	b.ids = append(b.ids, instanceID)
	b.inboxes = append(b.inboxes, NewInbox(c.inboxChunk))
	return id.New(c.typeID, instanceID, c.machine, version)
}

// ReceiveInstance inserts an instance that already carries a RawID assigned
// elsewhere, keeping that id rather than minting a new one. Its caller in
// this module is system.RestoreClass, which reinserts saved instances
// under their saved ids.
func (c *Class[A]) ReceiveInstance(raw id.RawID, a A) error {
	if raw.TypeID != c.typeID {
		return kerr.Programmer("class: ReceiveInstance type mismatch: got %v, want %v", raw.TypeID, c.typeID)
	}
	if _, ok := c.slots.locationOf(raw.InstanceID); ok {
		return kerr.Programmer("class: ReceiveInstance: instance %d already present", raw.InstanceID)
	}
	binIdx := c.binWithRoom()
	b := c.bins[binIdx]
	slot := len(b.items)
	c.slots.versions[raw.InstanceID] = raw.Version
	c.slots.locations[raw.InstanceID] = location{bin: binIdx, slot: slot}
	if raw.InstanceID >= c.slots.nextID {
		c.slots.nextID = raw.InstanceID + 1
	}
	b.items = append(b.items, a)
	b.ids = append(b.ids, raw.InstanceID)
	b.inboxes = append(b.inboxes, NewInbox(c.inboxChunk))
	return nil
}

func (c *Class[A]) binWithRoom() int {
	for i, b := range c.bins {
		if len(b.items) < c.binCap {
			return i
		}
	}
	c.bins = append(c.bins, &bin[A]{})
	return len(c.bins) - 1
}

// Get returns a pointer to the instance addressed by raw, after checking
// its version is still live.
func (c *Class[A]) Get(raw id.RawID) (*A, bool) {
	loc, ok := c.slots.lookup(raw.InstanceID, raw.Version)
	if !ok {
		return nil, false
	}
	return &c.bins[loc.bin].items[loc.slot], true
}

// RawIDOf builds the current RawID for a live instanceID, used when a
// handler needs to address "myself" without having been handed a RawID.
func (c *Class[A]) RawIDOf(instanceID uint32) (id.RawID, error) {
	v, err := c.slots.currentVersion(instanceID)
	if err != nil {
		return id.RawID{}, err
	}
	return id.New(c.typeID, instanceID, c.machine, v), nil
}

// SwapRemove deletes the instance addressed by raw, moving the last
// instance of its bin into the vacated slot (if any) and updating the slot
// map so the moved instance's RawID keeps resolving correctly. Returns
// false if raw no longer addresses a live instance (already dead, or a
// stale version).
func (c *Class[A]) SwapRemove(raw id.RawID) bool {
	loc, ok := c.slots.lookup(raw.InstanceID, raw.Version)
	if !ok {
		return false
	}
	c.removeAt(loc.bin, loc.slot)
	c.slots.release(raw.InstanceID)
	return true
}

// removeAt deletes the element at (binIdx, slot) via swap-with-last,
// re-pointing the slot map for whatever instance got moved into the
// vacated slot. It does not touch the slot map entry for the removed
// instance itself; callers that are actually removing (as opposed to
// relocating, see Resize) must call slots.release separately.
func (c *Class[A]) removeAt(binIdx, slot int) {
	b := c.bins[binIdx]
	last := len(b.items) - 1
	if slot != last {
		b.items[slot] = b.items[last]
		b.ids[slot] = b.ids[last]
		b.inboxes[slot] = b.inboxes[last]
		c.slots.move(b.ids[slot], location{bin: binIdx, slot: slot})
		c.refillValid = true
		c.refillBin = binIdx
		c.refillSlot = slot
	}
	var zero A
	b.items[last] = zero
	b.items = b.items[:last]
	b.ids = b.ids[:last]
	b.inboxes[last] = nil
	b.inboxes = b.inboxes[:last]
}

// Resize relocates the instance addressed by raw into a different bin
// (e.g. when a size-class boundary is crossed), preserving its RawID
// (instance id and version are untouched; only the physical slot changes).
func (c *Class[A]) Resize(raw id.RawID, newBinIdx int) error {
	loc, ok := c.slots.lookup(raw.InstanceID, raw.Version)
	if !ok {
		return kerr.Programmer("class: Resize: %s is not live", raw)
	}
	if newBinIdx == loc.bin {
		return nil
	}
	for newBinIdx >= len(c.bins) {
		c.bins = append(c.bins, &bin[A]{})
	}
	a := c.bins[loc.bin].items[loc.slot]
	ib := c.bins[loc.bin].inboxes[loc.slot]
	c.removeAt(loc.bin, loc.slot)
	dst := c.bins[newBinIdx]
	newSlot := len(dst.items)
	dst.items = append(dst.items, a)
	dst.ids = append(dst.ids, raw.InstanceID)
	dst.inboxes = append(dst.inboxes, ib)
	c.slots.move(raw.InstanceID, location{bin: newBinIdx, slot: newSlot})
	return nil
}

// VisitAll dispatches fn to every currently live instance, honoring the
// "repeat slot" rule: if fn's own side effects (typically: killing some
// other instance of this same class through the actor system, which
// recurses into SwapRemove) swap a not-yet-visited instance into the slot
// index currently being iterated, VisitAll re-invokes fn on that slot
// instead of advancing past it. This mirrors the original's
// receive_broadcast behaviour under concurrent resize/removal: no live
// recipient is skipped merely because an earlier recipient in the same
// broadcast died or moved.
//
// fn receives the instance id and a pointer to the stored value; returning
// remove=true has VisitAll swap-remove that instance itself once fn
// returns (equivalent to a Die Fate from a broadcast spawn/kill handler).
func (c *Class[A]) VisitAll(fn func(instanceID uint32, a *A) (remove bool)) {
	for binIdx := 0; binIdx < len(c.bins); binIdx++ {
		i := 0
		for i < len(c.bins[binIdx].items) {
			b := c.bins[binIdx]
			instanceID := b.ids[i]
			c.refillValid = false
			remove := fn(instanceID, &b.items[i])
			if remove {
				// fn asked for its own removal; find current location
				// (fn's own side effects may already have moved it).
				if loc, ok := c.slots.locationOf(instanceID); ok {
					c.removeAt(loc.bin, loc.slot)
					c.slots.release(instanceID)
				}
			}
			if c.refillValid && c.refillBin == binIdx && c.refillSlot <= i {
				// A swap-remove (this instance's own, or one triggered as
				// a side effect of fn on some other instance) moved the
				// bin's last — possibly not-yet-visited — element into a
				// slot at or before i. Rewind to that slot so it gets
				// visited rather than silently skipped; slots between the
				// refill point and i may be revisited, which is the
				// tradeoff this rule accepts in exchange for never
				// dropping a live recipient.
				c.refillValid = false
				i = c.refillSlot
				continue
			}
			i++
		}
	}
}

// PeekNextInstanceID returns the instance id the next Add call will assign,
// without reserving it. Exposed so callers can predict the RawID a spawn
// about to happen will receive; see system.PredictNextInstanceID.
func (c *Class[A]) PeekNextInstanceID() uint32 {
	if n := len(c.slots.free); n > 0 {
		return c.slots.free[n-1].instanceID
	}
	return c.slots.nextID
}

// IsLive reports whether raw still addresses a live instance (the same
// version check Get and SwapRemove perform), used by the dispatch layer to
// silently drop messages sent to an instance that died since the sender
// looked up its id.
func (c *Class[A]) IsLive(raw id.RawID) bool {
	return c.slots.checkVersion(raw)
}

// ForEachInstanceID calls fn once for every currently live instance id, in
// storage order. Safe for read-only enumeration such as fanning a
// broadcast out to every instance's own inbox; callers that mutate the
// arena from within fn (spawn/kill) must use VisitAll instead so the
// repeat-slot rule applies.
func (c *Class[A]) ForEachInstanceID(fn func(instanceID uint32)) {
	for _, b := range c.bins {
		for _, iid := range b.ids {
			fn(iid)
		}
	}
}

// SaveAll calls fn once for every currently live instance with its
// instance id, version, and a pointer to its stored value, in storage
// order. Read-only: unlike VisitAll it offers no repeat-slot/removal
// machinery, since a snapshot pass must not mutate the arena it is
// walking. Used by system.SaveClass to back a persistent
// chunky.ChunkStorage.
func (c *Class[A]) SaveAll(fn func(instanceID uint32, version uint8, a *A) error) error {
	for binIdx := range c.bins {
		b := c.bins[binIdx]
		for i := range b.items {
			v, err := c.slots.currentVersion(b.ids[i])
			if err != nil {
				return err
			}
			if err := fn(b.ids[i], v, &b.items[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// QueueLength reports the total number of undrained frames across the
// class-level spawn inbox and every live instance's own inbox, used by the
// telemetry surface (system.ActorSystem.QueueLengths).
func (c *Class[A]) QueueLength() int {
	n := c.classInbox.Len()
	for _, b := range c.bins {
		for _, ib := range b.inboxes {
			n += ib.Len()
		}
	}
	return n
}

// Bins reports the number of size-class bins currently open, exposed for
// tests asserting on compaction/resize behaviour.
func (c *Class[A]) Bins() int { return len(c.bins) }

// BinLen reports the live item count of bin i, exposed for tests.
func (c *Class[A]) BinLen(i int) int {
	if i < 0 || i >= len(c.bins) {
		return 0
	}
	return len(c.bins[i].items)
}
