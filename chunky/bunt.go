package chunky

import (
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// BuntStorage is the persistent ChunkStorage backend, used when a run is
// configured to survive a restart. Adapted from the teacher's pattern of
// giving a storage subsystem a single open handle guarded by the backend's
// own locking (buntdb serializes writes internally the way the teacher's
// fs.Mountpath layer relies on the underlying filesystem for durability).
type BuntStorage struct {
	db *buntdb.DB
}

// OpenBunt opens (creating if necessary) a buntdb file at path. Pass ":memory:"
// for an in-process, non-persistent instance useful in tests that still
// want to exercise the buntdb code path.
func OpenBunt(path string) (*BuntStorage, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "chunky: open buntdb at %q", path)
	}
	return &BuntStorage{db: db}, nil
}

func (b *BuntStorage) Load(ident Ident) ([]byte, bool, error) {
	var val string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(ident.String())
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "chunky: load %s", ident)
	}
	return []byte(val), true, nil
}

func (b *BuntStorage) Store(ident Ident, data []byte) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(ident.String(), string(data), nil)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "chunky: store %s", ident)
	}
	return nil
}

func (b *BuntStorage) Delete(ident Ident) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(ident.String())
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "chunky: delete %s", ident)
	}
	return nil
}

func (b *BuntStorage) Close() error {
	return b.db.Close()
}
