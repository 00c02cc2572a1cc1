package zvm

import (
	"fmt"
	"sync/atomic"

	"github.com/colorfulnotion/zdecomp/config"
	"github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/storage"
	"github.com/colorfulnotion/zdecomp/zerrors"
	"github.com/colorfulnotion/zdecomp/zvm/program"
)

// Decompiler is a decompilation session over one story image.
//
// The host fills the image through Image before asking for fragments. Each
// call to Image is treated as a write to the bytes shared with every clone:
// each session drops its cached fragments and image digest before its next
// Fragment. A Decompiler is not safe for concurrent use; Clone gives each
// goroutine its own cursor over the same bytes and definitions.
type Decompiler struct {
	img  *Image
	defs Definitions
	gen  *generator

	staticMemory    uint16
	unsafeIO        bool
	maxInstructions int

	cache  map[uint32]*Fragment
	store  *storage.FragmentStore
	digest *storage.Digest

	writes *atomic.Uint64 // Image calls, shared with clones
	seen   uint64         // writes the cache and digest reflect
}

// NewDecompiler allocates a zeroed image and the opcode table for the
// configured version.
func NewDecompiler(cfg config.Config) (*Decompiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defs, err := NewDefinitions(cfg.Version)
	if err != nil {
		return nil, err
	}
	return &Decompiler{
		img:  NewImage(cfg.ImageLength),
		defs: defs,
		gen: &generator{
			version:          cfg.Version,
			globals:          cfg.Globals,
			packedMultiplier: program.PackedMultiplier(cfg.Version),
		},
		staticMemory:    cfg.StaticMemory,
		unsafeIO:        cfg.UnsafeIO,
		maxInstructions: cfg.MaxBlockInstructions,
		cache:           make(map[uint32]*Fragment),
		writes:          new(atomic.Uint64),
	}, nil
}

// SetStore attaches a persistent fragment store. The session does not close
// it.
func (d *Decompiler) SetStore(store *storage.FragmentStore) {
	d.store = store
}

func (d *Decompiler) Version() uint8 {
	return d.gen.version
}

func (d *Decompiler) Definitions() Definitions {
	return d.defs
}

// UnsafeIO reports the session's policy for the function layer.
func (d *Decompiler) UnsafeIO() bool {
	return d.unsafeIO
}

// Image returns the mutable image bytes. This is the only way to write to
// the image, and all writes must happen before the next Fragment call.
func (d *Decompiler) Image() []byte {
	d.writes.Add(1)
	d.invalidate()
	return d.img.Bytes()
}

// Bytes returns the image for reading. Writing through it leaves cached
// fragments stale; use Image to patch the story.
func (d *Decompiler) Bytes() []byte {
	return d.img.Bytes()
}

// Load copies a story into the start of the image.
func (d *Decompiler) Load(story []byte) error {
	if uint32(len(story)) > d.img.Len() {
		return fmt.Errorf("story of %d bytes does not fit an image of %d bytes", len(story), d.img.Len())
	}
	copy(d.Image(), story)
	log.Debug(log.SessionMonitoring, "story loaded", "bytes", len(story))
	return nil
}

func (d *Decompiler) invalidate() {
	if len(d.cache) > 0 {
		d.cache = make(map[uint32]*Fragment)
	}
	d.digest = nil
	d.seen = d.writes.Load()
}

// sync drops state cached before a write made through this session or a
// clone.
func (d *Decompiler) sync() {
	if d.writes.Load() != d.seen {
		log.Debug(log.SessionMonitoring, "image written, dropping cached fragments", "cached", len(d.cache))
		d.invalidate()
	}
}

// Clone returns a session sharing the image bytes and the opcode table with
// its own cursor, cache and digest. The persistent store is shared.
func (d *Decompiler) Clone() *Decompiler {
	c := *d
	c.img = d.img.View()
	c.cache = make(map[uint32]*Fragment)
	c.digest = nil
	c.seen = d.writes.Load()
	return &c
}

func (d *Decompiler) imageDigest() storage.Digest {
	if d.digest == nil {
		digest := storage.ImageDigest(d.img.Bytes())
		d.digest = &digest
	}
	return *d.digest
}

// Fragment returns the JavaScript for the basic block starting at addr.
func (d *Decompiler) Fragment(addr uint32) (*Fragment, error) {
	d.sync()
	if frag, ok := d.cache[addr]; ok {
		return frag, nil
	}

	if d.store != nil {
		stored, ok, err := d.store.Get(d.imageDigest(), d.gen.version, addr)
		if err != nil {
			log.Warn(log.StorageMonitoring, "fragment store read failed", "addr", addr, "err", err)
		} else if ok {
			frag := fromStored(stored)
			d.cache[addr] = frag
			return frag, nil
		}
	}

	frag, err := d.gen.renderBlock(d.img, d.defs, addr, d.maxInstructions)
	if err != nil {
		return nil, err
	}
	if d.staticMemory != 0 && addr < uint32(d.staticMemory) {
		log.Warn(log.SessionMonitoring, "caching a fragment in dynamic memory", "addr", addr, "static", d.staticMemory)
	}
	d.cache[addr] = frag

	if d.store != nil {
		if err := d.store.Put(d.imageDigest(), d.gen.version, toStored(frag)); err != nil {
			log.Warn(log.StorageMonitoring, "fragment store write failed", "addr", addr, "err", err)
		}
	}
	return frag, nil
}

// Disassemble decodes the basic block starting at addr without rendering it.
func (d *Decompiler) Disassemble(addr uint32) (*BasicBlock, error) {
	return decodeBlock(d.img, d.defs, d.gen.globals, addr, d.maxInstructions)
}

// Decode decodes the single instruction at addr.
func (d *Decompiler) Decode(addr uint32) (*Instruction, error) {
	if addr >= d.img.Len() {
		return nil, fmt.Errorf("instruction at 0x%x in image of %d bytes: %w", addr, d.img.Len(), zerrors.ErrAddressOutOfRange)
	}
	d.img.SetPosition(addr)
	return DecodeInstruction(d.img, d.defs, d.gen.globals)
}

// RenderInstruction returns the statement for one decoded instruction.
func (d *Decompiler) RenderInstruction(inst *Instruction) (string, error) {
	return d.gen.renderInstruction(inst)
}

// Function would decompile a whole routine. Grouping blocks into functions
// is not available; callers decompile block by block with Fragment.
func (d *Decompiler) Function(addr uint32) (*Function, error) {
	return nil, fmt.Errorf("function at 0x%x: %w", addr, zerrors.ErrFunctionUnsupported)
}

func toStored(frag *Fragment) *storage.StoredFragment {
	return &storage.StoredFragment{
		Addr:         frag.Addr,
		Code:         frag.Code,
		Next:         frag.Next,
		Instructions: frag.Instructions,
		Calls:        frag.Calls,
		PausesVM:     frag.PausesVM,
	}
}

func fromStored(s *storage.StoredFragment) *Fragment {
	return &Fragment{
		Addr:         s.Addr,
		Code:         s.Code,
		Next:         s.Next,
		Instructions: s.Instructions,
		Calls:        s.Calls,
		PausesVM:     s.PausesVM,
	}
}
