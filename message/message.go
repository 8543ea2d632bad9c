// Package message defines the on-the-wire packet model: the Message
// interface every payload type implements, the Packet envelope pairing a
// sender id with a payload, and Fate, the spawn-handler return type.
// Grounded on original_source/src/messaging.rs and src/actor.rs. Where the
// original leans on Rust's Compact trait to cast a message to/from a raw
// byte layout, we use encoding.BinaryMarshaler/BinaryUnmarshaler, the
// idiomatic Go equivalent, so a handler's concrete type decodes itself
// instead of the runtime reinterpreting memory.
package message

import (
	"encoding"

	"github.com/kayrt/kay/id"
)

// Message is implemented by every payload type an actor can receive.
// BinaryMarshaler produces the bytes stored in an Inbox frame;
// BinaryUnmarshaler is called, against a zero value of the concrete type,
// to reconstruct it at dispatch time.
type Message interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Packet pairs a decoded payload with the RawID of whoever sent it, the way
// every handler and spawner signature in the original takes a separate
// sender parameter.
type Packet[M Message] struct {
	From    id.RawID
	Payload M
}

// Fate is what an OnSpawn handler returns: Live keeps the newly spawned
// instance, Die has the arena remove it again before returning control to
// the caller that triggered the spawn.
type Fate int

const (
	Live Fate = iota
	Die
)

// Decoder is the registration-time closure the dispatch table stores for
// one (class, message type) pair: it knows how to allocate a fresh M, call
// UnmarshalBinary on the frame bytes, and hand the result to the matching
// handler or spawner. Kept as a plain func type (rather than forcing every
// caller through generics at the call site) so system.ActorSystem can store
// heterogeneous decoders in one slice indexed by ShortTypeID.
type Decoder func(raw []byte) (any, error)

// NewDecoder builds a Decoder for a concrete message struct type M whose
// pointer type PM implements Message. Mirrors the original's registration-
// time generic closures (AddHandler::<M> captures how to produce an M),
// except decoding happens via UnmarshalBinary instead of a raw-pointer
// reinterpretation of the frame bytes.
func NewDecoder[M any, PM interface {
	*M
	Message
}]() Decoder {
	return func(raw []byte) (any, error) {
		m := new(M)
		if err := PM(m).UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		return *m, nil
	}
}
