package zvm

import (
	"testing"

	"github.com/colorfulnotion/zdecomp/config"
	"github.com/colorfulnotion/zdecomp/storage"
	"github.com/colorfulnotion/zdecomp/zerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecompilerValidates(t *testing.T) {
	cfg := config.Default()
	cfg.ImageLength = 0x1000
	cfg.Version = 2
	_, err := NewDecompiler(cfg)
	assert.ErrorIs(t, err, zerrors.ErrUnsupportedVersion)

	cfg.Version = 7
	d, err := NewDecompiler(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), d.Version())
	assert.Len(t, d.Image(), 0x1000)
	assert.Equal(t, make([]byte, 0x1000), d.Image())
}

func TestFragmentCache(t *testing.T) {
	d := newTestSession(t, 5, 0x14, 0x02, 0x03, 0x00, 0xB0)
	first, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	again, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Same(t, first, again)

	// writing through Image drops the cached fragment
	d.Image()[testCodeBase+1] = 0x07
	changed, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Contains(t, changed.Code, "t=7+3")
}

func TestFragmentOutOfRange(t *testing.T) {
	d := newTestSession(t, 5)
	_, err := d.Fragment(0x1000)
	assert.ErrorIs(t, err, zerrors.ErrAddressOutOfRange)
	assert.Equal(t, "Z7", zerrors.GetErrorCode(err))
}

func TestFragmentPersistentStore(t *testing.T) {
	store, err := storage.NewMemoryFragmentStore()
	require.NoError(t, err)
	defer store.Close()

	d := newTestSession(t, 5, 0xE0, 0x3F, 0x01, 0x00, 0x00)
	d.SetStore(store)
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)

	digest := storage.ImageDigest(d.img.Bytes())
	addrs, err := store.Addresses(digest, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{testCodeBase}, addrs)

	// a fresh session over the same image reads the stored fragment
	other := newTestSession(t, 5, 0xE0, 0x3F, 0x01, 0x00, 0x00)
	other.SetStore(store)
	stored, err := other.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Equal(t, frag, stored)

	// a different image misses
	changed := newTestSession(t, 5, 0xE0, 0x3F, 0x02, 0x00, 0x00)
	changed.SetStore(store)
	frag, err = changed.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x800}, frag.Calls)
}

func TestClone(t *testing.T) {
	d := newTestSession(t, 5, 0x14, 0x02, 0x03, 0x00, 0xB0)
	c := d.Clone()

	frag, err := c.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "t=2+3")
	assert.Empty(t, d.cache)

	// clones share the backing bytes and see each other's writes
	d.Image()[testCodeBase+2] = 0x09
	frag, err = c.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "t=2+9")
}

func TestCloneWithStoreSeesWrites(t *testing.T) {
	store, err := storage.NewMemoryFragmentStore()
	require.NoError(t, err)
	defer store.Close()

	d := newTestSession(t, 5, 0xB0)
	d.SetStore(store)
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "return 1")

	// rtrue -> rfalse after cloning
	c := d.Clone()
	d.Image()[testCodeBase] = 0xB1
	frag, err = c.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "return 0")
	frag, err = d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "return 0")

	// a write through the clone drops the parent's cached fragment
	c.Image()[testCodeBase] = 0xB0
	frag, err = d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "return 1")
	frag, err = c.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Contains(t, frag.Code, "return 1")
}

func TestBytesKeepsCache(t *testing.T) {
	d := newTestSession(t, 5, 0xB0)
	_, err := d.Fragment(testCodeBase)
	require.NoError(t, err)

	assert.Equal(t, byte(0xB0), d.Bytes()[testCodeBase])
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Len(t, d.cache, 1)
	assert.Same(t, frag, d.cache[testCodeBase])

	d.Image()
	assert.Empty(t, d.cache)
}

func TestFunctionUnsupported(t *testing.T) {
	d := newTestSession(t, 5)
	fn, err := d.Function(testCodeBase)
	assert.Nil(t, fn)
	assert.ErrorIs(t, err, zerrors.ErrFunctionUnsupported)
}

func TestLoad(t *testing.T) {
	d := newTestSession(t, 5)
	require.NoError(t, d.Load([]byte{5, 0, 0, 0}))
	assert.Equal(t, byte(5), d.Image()[0])
	assert.Error(t, d.Load(make([]byte, 0x1001)))
}
