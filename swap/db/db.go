// Package db is the on-disk persistence layer every swap checkpoints to
// before each side effect it can't safely repeat: a flat key-value
// store keyed by swap ID, holding one opaque JSON blob per swap.
package db

import (
	"fmt"

	"github.com/ChainSafe/chaindb"
)

// keyPrefix namespaces swap records within the shared chaindb instance, in
// case other subsystems ever share the same on-disk database.
var keyPrefix = []byte("swap/")

// Database is the literal put/get/list_all persistence contract a swap
// needs: single-key writes that are atomic with respect to process crash,
// and a way to enumerate everything on disk at startup so in-flight swaps
// can be resumed.
type Database interface {
	Put(id [32]byte, blob []byte) error
	Get(id [32]byte) ([]byte, error)
	ListAll() (map[[32]byte][]byte, error)
	Delete(id [32]byte) error
	Close() error
}

// chainDB implements Database on top of ChainSafe/chaindb's embedded
// key-value store, the same dependency the rest of the corpus reaches for
// when it needs a local database (bingcicle-atomic-swap's swap manager
// wraps the same package, though no full implementation of the wrapper
// shipped with it — this one is written from scratch against chaindb's
// public API).
type chainDB struct {
	db chaindb.Database
}

// NewBadgerDB opens (or creates) a BadgerDB-backed Database at dataDir. An
// empty dataDir opens an in-memory database, used by tests.
func NewBadgerDB(dataDir string) (Database, error) {
	cfg := &chaindb.Config{
		DataDir:  dataDir,
		InMemory: dataDir == "",
	}

	bdb, err := chaindb.NewBadgerDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap database: %w", err)
	}

	return &chainDB{db: bdb}, nil
}

func swapKey(id [32]byte) []byte {
	key := make([]byte, 0, len(keyPrefix)+32)
	key = append(key, keyPrefix...)
	key = append(key, id[:]...)
	return key
}

func (c *chainDB) Put(id [32]byte, blob []byte) error {
	if err := c.db.Put(swapKey(id), blob); err != nil {
		return fmt.Errorf("failed to persist swap %x: %w", id, err)
	}
	return nil
}

func (c *chainDB) Get(id [32]byte) ([]byte, error) {
	blob, err := c.db.Get(swapKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read swap %x: %w", id, err)
	}
	return blob, nil
}

func (c *chainDB) Delete(id [32]byte) error {
	if err := c.db.Del(swapKey(id)); err != nil {
		return fmt.Errorf("failed to delete swap %x: %w", id, err)
	}
	return nil
}

// ListAll scans every key under keyPrefix, the startup step that lets a
// restarted node find every swap it needs to resume after a crash.
func (c *chainDB) ListAll() (map[[32]byte][]byte, error) {
	iter := c.db.NewIterator()
	defer iter.Release()

	out := make(map[[32]byte][]byte)
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(keyPrefix)+32 {
			continue
		}

		var id [32]byte
		copy(id[:], key[len(keyPrefix):])

		value := iter.Value()
		blob := make([]byte, len(value))
		copy(blob, value)
		out[id] = blob
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate swap database: %w", err)
	}

	return out, nil
}

func (c *chainDB) Close() error {
	return c.db.Close()
}
