// Package chunky provides the chunked storage primitives: a growable byte
// Queue for frame data, which backs the inbox, and a ChunkStorage
// abstraction that system.SaveClass/RestoreClass write class snapshots to,
// on plain process memory or on a persistent backend. The class arena and
// slot map themselves are plain Go slices and maps. Grounded on
// original_source/src/class/inbox.rs (the chunked queue shape: append-only,
// chunk-sized growth, a start offset that advances as frames drain) and on
// the spec's chunked-storage-as-assumed-external-primitive framing. The
// persistent option adapts the teacher's fs/mpath-style "give storage a
// stable identity and let it survive a restart" idea, using
// tidwall/buntdb as the embedded engine instead of the teacher's on-disk
// mountpath layout, since this runtime has no disk/mountpath concept of
// its own.
package chunky

import (
	"encoding/binary"
	"fmt"

	xxhash "github.com/OneOfOne/xxhash"
)

// Queue is an append-only byte buffer that grows in fixed-size chunks and
// tracks how many whole frames have been appended, so a drain operation can
// bound itself to "frames present when the drain started" without being
// pushed forward by concurrent appends during the same drain (mirrors
// Inbox::drain's recursion guard in the original).
type Queue struct {
	chunkSize int
	buf       []byte
	frames    int
}

// NewQueue builds a Queue that grows by chunkSize bytes at a time.
func NewQueue(chunkSize int) *Queue {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &Queue{chunkSize: chunkSize}
}

// Append adds one frame (its byte length recorded so callers can iterate
// frames instead of raw bytes) and returns the frame's count-after-append.
func (q *Queue) Append(frame []byte) int {
	if cap(q.buf)-len(q.buf) < len(frame) {
		grow := q.chunkSize
		for grow < len(frame) {
			grow += q.chunkSize
		}
		nb := make([]byte, len(q.buf), cap(q.buf)+grow)
		copy(nb, q.buf)
		q.buf = nb
	}
	q.buf = append(q.buf, frame...)
	q.frames++
	return q.frames
}

// Bytes returns the queue's current contents. Callers must not retain the
// slice past the next Append/Reset.
func (q *Queue) Bytes() []byte { return q.buf }

// FrameCount reports how many frames have been appended since the last
// Reset.
func (q *Queue) FrameCount() int { return q.frames }

// Reset empties the queue, keeping its backing array so the next growth
// phase reuses the allocation, mirroring the original's chunk-reuse
// behaviour after a drain.
func (q *Queue) Reset() {
	q.buf = q.buf[:0]
	q.frames = 0
}

// Len reports the number of bytes currently buffered.
func (q *Queue) Len() int { return len(q.buf) }

// Ident is a short, stable, content-derived name for a persisted chunk of
// storage, used as the whole storage key for a saved class index or a
// saved instance (see system.SaveClass).
// Grounded on the teacher's content-addressing use of xxhash for object
// identity in its storage layer; adapted here to name chunky regions
// instead of object blobs.
type Ident uint64

// IdentOf hashes a human-readable name (e.g. "class:Counter/bin:0") into a
// stable Ident.
func IdentOf(name string) Ident {
	return Ident(xxhash.ChecksumString64(name))
}

func (i Ident) String() string { return fmt.Sprintf("%016x", uint64(i)) }

// ChunkStorage is the persistence boundary system.SaveClass and
// system.RestoreClass are written against; the caller passes the store
// in. MemStorage keeps data in process memory; BuntStorage backs it with
// tidwall/buntdb so state can survive a restart.
type ChunkStorage interface {
	// Load returns the bytes previously stored under ident, or (nil,
	// false) if nothing has been stored yet.
	Load(ident Ident) ([]byte, bool, error)
	// Store persists data under ident, replacing whatever was there.
	Store(ident Ident, data []byte) error
	// Delete removes whatever was stored under ident, if anything.
	Delete(ident Ident) error
	// Close releases any resources (file handles, connections) held by
	// the backend.
	Close() error
}

// MemStorage is the zero-configuration ChunkStorage: a plain map, gone at
// process exit.
type MemStorage struct {
	data map[Ident][]byte
}

func NewMemStorage() *MemStorage { return &MemStorage{data: make(map[Ident][]byte)} }

func (m *MemStorage) Load(ident Ident) ([]byte, bool, error) {
	b, ok := m.data[ident]
	return b, ok, nil
}

func (m *MemStorage) Store(ident Ident, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[ident] = cp
	return nil
}

func (m *MemStorage) Delete(ident Ident) error {
	delete(m.data, ident)
	return nil
}

func (m *MemStorage) Close() error { return nil }

// EncodeLenPrefixed writes a [u32 len][bytes] frame, the layout networking
// batches use for each frame, so a caller need not hand-roll the header.
func EncodeLenPrefixed(dst []byte, payload []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}
