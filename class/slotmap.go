// Package class implements the per-type storage: the slot map that maps an
// instance id to its (bin, slot) location and tracks live versions, the
// compacting multi-bin arena built on top of it, and the chunked Inbox.
// The per-class dispatch table lives in package system. Grounded on
// original_source/src/class/instance_store/slot_map.rs,
// src/class/instance_store/mod.rs, src/class/inbox.rs and src/class/mod.rs.
package class

import (
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
)

// location is where an instance currently lives inside the arena.
type location struct {
	bin  int
	slot int
}

// freeEntry is a recycled instance id paired with the version the next
// occupant of that id will carry, mirroring the original's free list of
// (id, next_version) pairs.
type freeEntry struct {
	instanceID  uint32
	nextVersion uint8
}

// slotMap is the version-checked indirection between an instance id and its
// physical location; every Class[A] builds its own.
type slotMap struct {
	locations map[uint32]location
	versions  map[uint32]uint8
	free      []freeEntry
	nextID    uint32
}

func newSlotMap() *slotMap {
	return &slotMap{
		locations: make(map[uint32]location),
		versions:  make(map[uint32]uint8),
	}
}

// allocate reserves an instance id (recycled from the free list when
// possible) and records the given location for it. The returned version is
// the one live callers must stamp into any RawID referencing this
// instance.
func (s *slotMap) allocate(loc location) (instanceID uint32, version uint8) {
	if n := len(s.free); n > 0 {
		e := s.free[n-1]
		s.free = s.free[:n-1]
		instanceID, version = e.instanceID, e.nextVersion
	} else {
		instanceID = s.nextID
		s.nextID++
		version = 0
	}
	s.versions[instanceID] = version
	s.locations[instanceID] = loc
	return instanceID, version
}

// lookup resolves rawID to its current location, after checking that the
// caller's version matches the live version (the use-after-free guard).
func (s *slotMap) lookup(instanceID uint32, version uint8) (location, bool) {
	live, ok := s.versions[instanceID]
	if !ok || live != version {
		return location{}, false
	}
	loc, ok := s.locations[instanceID]
	return loc, ok
}

// locationOf returns the current location for instanceID without a version
// check, used internally once a caller has already verified liveness (e.g.
// a swap-remove that needs the mover's own last-known location).
func (s *slotMap) locationOf(instanceID uint32) (location, bool) {
	loc, ok := s.locations[instanceID]
	return loc, ok
}

// move updates the recorded location for instanceID, used whenever a
// compaction or resize relocates it.
func (s *slotMap) move(instanceID uint32, loc location) {
	s.locations[instanceID] = loc
}

// release frees instanceID, bumping its version (mod 256, matching the
// original's u8 version width) so any RawID still referencing the old
// version fails the liveness check from here on.
func (s *slotMap) release(instanceID uint32) {
	live := s.versions[instanceID]
	delete(s.locations, instanceID)
	delete(s.versions, instanceID)
	s.free = append(s.free, freeEntry{instanceID: instanceID, nextVersion: live + 1})
}

// currentVersion reports the live version for instanceID, or an error if it
// is not currently allocated. Used by Class.RawIDOf.
func (s *slotMap) currentVersion(instanceID uint32) (uint8, error) {
	v, ok := s.versions[instanceID]
	if !ok {
		return 0, kerr.Programmer("slot map: instance %d is not live", instanceID)
	}
	return v, nil
}

// checkVersion reports whether rawID still refers to a live instance.
func (s *slotMap) checkVersion(raw id.RawID) bool {
	live, ok := s.versions[raw.InstanceID]
	return ok && live == raw.Version
}
