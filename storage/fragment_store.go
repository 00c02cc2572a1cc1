package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/zdecomp/log"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/blake2b"
)

// DigestSize is the length of an image digest.
const DigestSize = blake2b.Size256

// Digest identifies the contents of a story image.
type Digest [DigestSize]byte

// ImageDigest hashes a story image with blake2b-256.
func ImageDigest(image []byte) Digest {
	return blake2b.Sum256(image)
}

// StoredFragment is the persisted form of a rendered block.
type StoredFragment struct {
	Addr         uint32   `json:"addr"`
	Code         string   `json:"code"`
	Next         uint32   `json:"next"`
	Instructions int      `json:"instructions"`
	Calls        []uint32 `json:"calls,omitempty"`
	PausesVM     bool     `json:"pauses_vm,omitempty"`
}

// FragmentStore wraps LevelDB for fragment persistence. Keys are the image
// digest, the story version and the block address, so a store can be shared
// by several stories and stays valid only for the exact image it was built
// from.
// Thread-safe: LevelDB handles its own synchronization.
type FragmentStore struct {
	db *leveldb.DB
}

// NewFragmentStore opens or creates a LevelDB database at the given path.
// If path is empty, uses in-memory storage.
func NewFragmentStore(path string) (*FragmentStore, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fragment store at %s: %w", path, err)
	}
	return &FragmentStore{db: db}, nil
}

// NewMemoryFragmentStore creates an in-memory FragmentStore for testing.
func NewMemoryFragmentStore() (*FragmentStore, error) {
	return NewFragmentStore("")
}

func imagePrefix(digest Digest, version uint8) []byte {
	prefix := make([]byte, 0, DigestSize+1)
	prefix = append(prefix, digest[:]...)
	return append(prefix, version)
}

func fragmentKey(digest Digest, version uint8, addr uint32) []byte {
	return binary.BigEndian.AppendUint32(imagePrefix(digest, version), addr)
}

// Get retrieves a fragment. Returns (nil, false, nil) if not found.
func (fs *FragmentStore) Get(digest Digest, version uint8, addr uint32) (*StoredFragment, bool, error) {
	data, err := fs.db.Get(fragmentKey(digest, version, addr), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get fragment 0x%x: %w", addr, err)
	}
	var frag StoredFragment
	if err := json.Unmarshal(data, &frag); err != nil {
		return nil, false, fmt.Errorf("decode fragment 0x%x: %w", addr, err)
	}
	return &frag, true, nil
}

func (fs *FragmentStore) Put(digest Digest, version uint8, frag *StoredFragment) error {
	data, err := json.Marshal(frag)
	if err != nil {
		return fmt.Errorf("encode fragment 0x%x: %w", frag.Addr, err)
	}
	log.Trace(log.StorageMonitoring, "put fragment", "addr", frag.Addr, "bytes", len(data))
	return fs.db.Put(fragmentKey(digest, version, frag.Addr), data, nil)
}

func (fs *FragmentStore) Delete(digest Digest, version uint8, addr uint32) error {
	return fs.db.Delete(fragmentKey(digest, version, addr), nil)
}

// Addresses returns the block addresses stored for an image, in ascending
// order.
func (fs *FragmentStore) Addresses(digest Digest, version uint8) ([]uint32, error) {
	iter := fs.db.NewIterator(util.BytesPrefix(imagePrefix(digest, version)), nil)
	defer iter.Release()

	var addrs []uint32
	for iter.Next() {
		key := iter.Key()
		addrs = append(addrs, binary.BigEndian.Uint32(key[len(key)-4:]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	return addrs, nil
}

// DeleteImage drops every fragment stored for an image.
func (fs *FragmentStore) DeleteImage(digest Digest, version uint8) error {
	addrs, err := fs.Addresses(digest, version)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, addr := range addrs {
		batch.Delete(fragmentKey(digest, version, addr))
	}
	return fs.db.Write(batch, nil)
}

func (fs *FragmentStore) Close() error {
	return fs.db.Close()
}
