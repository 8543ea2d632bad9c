package system

import (
	"encoding"
	"strconv"

	"github.com/kayrt/kay/chunky"
	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/kerr"
)

// classIndex is the list of (instance id, version) pairs SaveClass records
// under a class's index Ident, so RestoreClass knows which per-instance
// Idents to load without having to list the whole storage backend.
type classIndex struct {
	IDs      []uint32
	Versions []uint8
}

func indexIdent(className string) chunky.Ident { return chunky.IdentOf("kay:class:" + className + ":index") }

// SaveClass snapshots every live instance of A into store, so a later
// process (or this one, after RestoreClass) can reconstruct the class's
// arena exactly as it stood. Grounded on SPEC_FULL.md's persistent-vector
// wiring of chunky.ChunkStorage (buntdb-backed or in-memory): state must
// already satisfy the runtime's message.Message-shaped compact contract
// (encoding.BinaryMarshaler) to be savable this way, the same contract
// message payloads use.
func SaveClass[A any, PA interface {
	*A
	encoding.BinaryMarshaler
}](h *ClassHandle[A], store chunky.ChunkStorage) error {
	idx := classIndex{}
	saveErr := h.cs.arena.SaveAll(func(instanceID uint32, version uint8, a *A) error {
		data, err := PA(a).MarshalBinary()
		if err != nil {
			return kerr.Wrap(err, "save class %s: marshal instance %d", h.cs.nameStr, instanceID)
		}
		if err := store.Store(perInstanceIdent(h.cs.nameStr, instanceID), data); err != nil {
			return kerr.Wrap(err, "save class %s: store instance %d", h.cs.nameStr, instanceID)
		}
		idx.IDs = append(idx.IDs, instanceID)
		idx.Versions = append(idx.Versions, version)
		return nil
	})
	if saveErr != nil {
		return saveErr
	}
	return store.Store(indexIdent(h.cs.nameStr), encodeClassIndex(idx))
}

// RestoreClass replaces h's arena contents with whatever SaveClass most
// recently wrote to store for this class, restoring each instance's exact
// RawID (instance id and version) via class.Class.ReceiveInstance rather
// than minting new ids. The class must be empty (freshly registered, no
// Spawn/AddHandler traffic yet) for the restored ids to be meaningful.
func RestoreClass[A any, PA interface {
	*A
	encoding.BinaryUnmarshaler
}](h *ClassHandle[A], store chunky.ChunkStorage) error {
	raw, ok, err := store.Load(indexIdent(h.cs.nameStr))
	if err != nil {
		return kerr.Wrap(err, "restore class %s: load index", h.cs.nameStr)
	}
	if !ok {
		return nil
	}
	idx, err := decodeClassIndex(raw)
	if err != nil {
		return kerr.Wrap(err, "restore class %s: decode index", h.cs.nameStr)
	}
	for i, instanceID := range idx.IDs {
		data, ok, err := store.Load(perInstanceIdent(h.cs.nameStr, instanceID))
		if err != nil {
			return kerr.Wrap(err, "restore class %s: load instance %d", h.cs.nameStr, instanceID)
		}
		if !ok {
			return kerr.Programmer("restore class %s: index names instance %d but no snapshot is stored for it", h.cs.nameStr, instanceID)
		}
		var a A
		if err := PA(&a).UnmarshalBinary(data); err != nil {
			return kerr.Wrap(err, "restore class %s: unmarshal instance %d", h.cs.nameStr, instanceID)
		}
		rawID := id.New(h.tid, instanceID, h.cs.arena.Machine(), idx.Versions[i])
		if err := h.cs.arena.ReceiveInstance(rawID, a); err != nil {
			return kerr.Wrap(err, "restore class %s: receive instance %d", h.cs.nameStr, instanceID)
		}
	}
	return nil
}

// perInstanceIdent gives each saved instance its own key so a save/restore
// cycle never has to rewrite the whole class in one storage value.
func perInstanceIdent(className string, instanceID uint32) chunky.Ident {
	return chunky.IdentOf("kay:class:" + className + ":instance:" + strconv.FormatUint(uint64(instanceID), 10))
}

func encodeClassIndex(idx classIndex) []byte {
	out := make([]byte, 4, 4+len(idx.IDs)*5)
	out[0], out[1], out[2], out[3] = byte(len(idx.IDs)), byte(len(idx.IDs)>>8), byte(len(idx.IDs)>>16), byte(len(idx.IDs)>>24)
	for i, iid := range idx.IDs {
		var b [5]byte
		b[0], b[1], b[2], b[3] = byte(iid), byte(iid>>8), byte(iid>>16), byte(iid>>24)
		b[4] = idx.Versions[i]
		out = append(out, b[:]...)
	}
	return out
}

func decodeClassIndex(b []byte) (classIndex, error) {
	if len(b) < 4 {
		return classIndex{}, kerr.Programmer("class index: truncated count header")
	}
	n := int(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	idx := classIndex{IDs: make([]uint32, 0, n), Versions: make([]uint8, 0, n)}
	off := 4
	for i := 0; i < n; i++ {
		if off+5 > len(b) {
			return classIndex{}, kerr.Programmer("class index: truncated entry %d", i)
		}
		iid := uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
		idx.IDs = append(idx.IDs, iid)
		idx.Versions = append(idx.Versions, b[off+4])
		off += 5
	}
	return idx, nil
}
