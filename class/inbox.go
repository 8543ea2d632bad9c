package class

import (
	"encoding/binary"

	"github.com/kayrt/kay/chunky"
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
)

// Inbox is a queue of undelivered messages: a chunked byte buffer of
// [u16 msg_type_id][u32 payload_len][from RawID bytes][payload] frames.
// Grounded on original_source/src/class/inbox.rs, with one deliberate
// departure: the original gives each *class* exactly one Inbox and
// stamps every frame with its recipient_id, so dispatch_packet reads the
// header to decide broadcast-vs-single-instance after the fact. Here
// every live instance owns its own Inbox (see class.Class's per-bin
// inboxes), the class itself owns a separate one for spawn messages
// (Class.ClassInbox), and the routing decision — one instance or every
// instance of the class — is made at enqueue time by whichever of
// putToInstance/putBroadcast/putSpawn the sender called, not by a
// recipient field read out of the frame. The frame header carries the
// sender's RawID instead, since with per-instance queues there is no
// remaining ambiguity for a recipient field to resolve. See DESIGN.md's
// class/inbox entry for why this trade was made and what it costs.
// Put (local delivery) and PutRaw (network-relayed delivery) both
// converge on the same frame representation so Drain never needs to know
// where a message originated.
type Inbox struct {
	q *chunky.Queue
}

// NewInbox builds an empty Inbox whose backing Queue grows in
// tuning-configured chunks.
func NewInbox(chunkSize int) *Inbox {
	return &Inbox{q: chunky.NewQueue(chunkSize)}
}

// frameHeaderSize is 2 (msg type) + 4 (payload len) + 2 (from.TypeID) +
// 4 (from.InstanceID) + 1 (from.Machine) + 1 (from.Version) + 2 trailing
// bytes that are always zero.
const frameHeaderSize = 2 + 4 + 2 + 4 + 1 + 1 + 2

// Put appends a locally-originated message: msgTypeID identifies the
// payload's Go type in the message-type registry, from is the sender's
// RawID, and payload is the sender's pre-encoded (MarshalBinary) bytes.
func (ib *Inbox) Put(msgTypeID id.ShortTypeID, from id.RawID, payload []byte) {
	frame := encodeFrame(msgTypeID, from, payload)
	ib.q.Append(frame)
}

// PutRaw appends an already-framed message exactly as received off the
// wire, without re-encoding it, mirroring the original's put_raw used by
// the networking layer to splice inbound bytes directly into an Inbox.
func (ib *Inbox) PutRaw(frame []byte) {
	ib.q.Append(frame)
}

func encodeFrame(msgTypeID id.ShortTypeID, from id.RawID, payload []byte) []byte {
	frame := make([]byte, 0, frameHeaderSize+len(payload))
	var hdr [frameHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(msgTypeID))
	binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(from.TypeID))
	binary.LittleEndian.PutUint32(hdr[8:12], from.InstanceID)
	hdr[12] = uint8(from.Machine)
	hdr[13] = from.Version
	frame = append(frame, hdr[:]...)
	frame = append(frame, payload...)
	return frame
}

// Frame is one decoded inbox entry, returned by Drain.
type Frame struct {
	MsgTypeID id.ShortTypeID
	From      id.RawID
	Payload   []byte
}

// Drain decodes and returns every frame present in the inbox at the moment
// Drain is called, then resets the inbox. Messages Put or PutRaw while
// Drain's caller is processing the returned frames (e.g. a handler sending
// to its own class) are not included: they will be seen on the next
// dispatch cycle. This bounds a single cycle's work to what was pending
// when the cycle started, matching the original's recursion guard on
// Inbox::drain.
func (ib *Inbox) Drain() ([]Frame, error) {
	buf := ib.q.Bytes()
	frameCount := ib.q.FrameCount()
	frames := make([]Frame, 0, frameCount)
	off := 0
	for n := 0; n < frameCount; n++ {
		if off+frameHeaderSize > len(buf) {
			return nil, kerr.Programmer("inbox: truncated frame header at offset %d", off)
		}
		msgTypeID := id.ShortTypeID(binary.LittleEndian.Uint16(buf[off : off+2]))
		payloadLen := binary.LittleEndian.Uint32(buf[off+2 : off+6])
		from := id.New(
			id.ShortTypeID(binary.LittleEndian.Uint16(buf[off+6:off+8])),
			binary.LittleEndian.Uint32(buf[off+8:off+12]),
			id.MachineID(buf[off+12]),
			buf[off+13],
		)
		start := off + frameHeaderSize
		end := start + int(payloadLen)
		if end > len(buf) {
			return nil, kerr.Programmer("inbox: truncated frame payload at offset %d", off)
		}
		payload := make([]byte, payloadLen)
		copy(payload, buf[start:end])
		frames = append(frames, Frame{MsgTypeID: msgTypeID, From: from, Payload: payload})
		off = end
	}
	ib.q.Reset()
	return frames, nil
}

// Len reports how many undrained frames are queued.
func (ib *Inbox) Len() int { return ib.q.FrameCount() }

// EncodeFrame exposes the frame encoding to the networking layer, which
// needs to produce byte-identical frames for outbound batches (data frames
// on the wire are exactly Inbox frames, prefixed with the recipient's
// RawID so the receiving machine knows which instance's mailbox to
// deliver into).
func EncodeFrame(msgTypeID id.ShortTypeID, from id.RawID, payload []byte) []byte {
	return encodeFrame(msgTypeID, from, payload)
}

// DecodeFrameHeader decodes a single frame's header without requiring it
// to live inside a Queue, used by the networking layer when it has already
// split an inbound batch into individual frames.
func DecodeFrameHeader(frame []byte) (msgTypeID id.ShortTypeID, from id.RawID, payload []byte, err error) {
	if len(frame) < frameHeaderSize {
		return 0, id.RawID{}, nil, kerr.Programmer("frame: truncated header (%d bytes)", len(frame))
	}
	msgTypeID = id.ShortTypeID(binary.LittleEndian.Uint16(frame[0:2]))
	payloadLen := binary.LittleEndian.Uint32(frame[2:6])
	from = id.New(
		id.ShortTypeID(binary.LittleEndian.Uint16(frame[6:8])),
		binary.LittleEndian.Uint32(frame[8:12]),
		id.MachineID(frame[12]),
		frame[13],
	)
	if frameHeaderSize+int(payloadLen) > len(frame) {
		return 0, id.RawID{}, nil, kerr.Programmer("frame: truncated payload (want %d, have %d)", payloadLen, len(frame)-frameHeaderSize)
	}
	payload = frame[frameHeaderSize : frameHeaderSize+int(payloadLen)]
	return msgTypeID, from, payload, nil
}

// FrameHeaderSize is the fixed header length DecodeFrameHeader/EncodeFrame
// use, exposed so callers can split a concatenated run of frames.
const FrameHeaderSize = frameHeaderSize
