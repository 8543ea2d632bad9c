// Package id implements the raw identifier and packet-addressing model:
// RawID, MachineID, ShortTypeID, and the broadcast sentinels. Grounded on
// original_source/src/id.rs; the wire-exact string form ("%X_%X.%X@%X") and
// the version/instance/machine/type layout are preserved unchanged.
package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kayrt/kay/kerr"
)

// MachineID identifies a peer within the network.
type MachineID uint8

// BroadcastMachine is the sentinel MachineID meaning "every peer" when
// combined with a broadcast InstanceID.
const BroadcastMachine MachineID = 0xFF

// BroadcastInstance is the sentinel InstanceID meaning "every instance of
// this class on the addressed machine(s)".
const BroadcastInstance uint32 = 0xFFFFFFFF

// ShortTypeID is the compact 16-bit id the type registry assigns to an
// actor class, actor trait, or message type.
type ShortTypeID uint16

// MaxRecipientTypes is the ceiling on distinct actor classes/traits.
const MaxRecipientTypes = 64

// MaxMessageTypes is the ceiling on distinct message types, and the fixed
// length of each class's dispatch vector.
const MaxMessageTypes = 256

func (t ShortTypeID) AsUsize() int { return int(t) }

// RawID uniquely addresses an actor instance, or a broadcast group.
type RawID struct {
	InstanceID uint32
	TypeID     ShortTypeID
	Machine    MachineID
	Version    uint8
}

// New constructs a RawID from its four fields.
func New(typeID ShortTypeID, instanceID uint32, machine MachineID, version uint8) RawID {
	return RawID{InstanceID: instanceID, TypeID: typeID, Machine: machine, Version: version}
}

// LocalBroadcast returns the RawID that addresses every machine-local
// instance of this RawID's class.
func (r RawID) LocalBroadcast() RawID {
	r.InstanceID = BroadcastInstance
	return r
}

// GlobalBroadcast returns the RawID that addresses every instance of this
// class on every peer.
func (r RawID) GlobalBroadcast() RawID {
	r = r.LocalBroadcast()
	r.Machine = BroadcastMachine
	return r
}

// IsBroadcast reports whether this RawID addresses a local or global
// broadcast rather than a single instance.
func (r RawID) IsBroadcast() bool { return r.InstanceID == BroadcastInstance }

// IsGlobalBroadcast reports whether this RawID addresses every peer.
func (r RawID) IsGlobalBroadcast() bool { return r.Machine == BroadcastMachine }

// String renders the wire-exact "<type:X>_<instance:X>.<version:X>@<machine:X>" form.
func (r RawID) String() string {
	return fmt.Sprintf("%X_%X.%X@%X", uint16(r.TypeID), r.InstanceID, r.Version, uint8(r.Machine))
}

// ParseRawID is the inverse of String.
func ParseRawID(s string) (RawID, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '.' || r == '@' })
	if len(parts) != 4 {
		return RawID{}, kerr.Programmer("malformed RawID %q: expected type_instance.version@machine", s)
	}
	typ, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return RawID{}, kerr.Wrap(err, "RawID %q: type id", s)
	}
	inst, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return RawID{}, kerr.Wrap(err, "RawID %q: instance id", s)
	}
	ver, err := strconv.ParseUint(parts[2], 16, 8)
	if err != nil {
		return RawID{}, kerr.Wrap(err, "RawID %q: version", s)
	}
	mach, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return RawID{}, kerr.Wrap(err, "RawID %q: machine", s)
	}
	return RawID{
		TypeID:     ShortTypeID(typ),
		InstanceID: uint32(inst),
		Version:    uint8(ver),
		Machine:    MachineID(mach),
	}, nil
}

// TypedID is implemented by the thin per-class wrappers a code-generation
// layer (out of scope for this runtime) would normally emit one of per
// actor class. We keep the interface and hand-roll one implementation
// (class.GenericID) for hosts that don't run codegen.
type TypedID interface {
	fmt.Stringer
	AsRaw() RawID
}
