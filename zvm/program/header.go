package program

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/zdecomp/zerrors"
)

// HeaderSize is the fixed length of the story file header.
const HeaderSize = 64

// Header holds the story header fields the decompiler needs.
type Header struct {
	Version      uint8
	InitialPC    uint32
	Dictionary   uint16
	ObjectTable  uint16
	Globals      uint16
	StaticMemory uint16
	FileLength   uint32 // in bytes, zero when the story does not record it
}

// ParseHeader reads the header at the start of a story image.
func ParseHeader(story []byte) (*Header, error) {
	if len(story) < HeaderSize {
		return nil, fmt.Errorf("story of %d bytes: %w", len(story), zerrors.ErrHeaderTooShort)
	}
	h := &Header{
		Version:      story[0x00],
		InitialPC:    uint32(binary.BigEndian.Uint16(story[0x06:])),
		Dictionary:   binary.BigEndian.Uint16(story[0x08:]),
		ObjectTable:  binary.BigEndian.Uint16(story[0x0A:]),
		Globals:      binary.BigEndian.Uint16(story[0x0C:]),
		StaticMemory: binary.BigEndian.Uint16(story[0x0E:]),
	}
	h.FileLength = uint32(binary.BigEndian.Uint16(story[0x1A:])) * uint32(h.PackedMultiplier())
	return h, nil
}

// PackedMultiplier is the factor applied to packed string and routine
// addresses. Version 6 and 7 routine offsets are not applied here.
func (h *Header) PackedMultiplier() uint32 {
	return PackedMultiplier(h.Version)
}

// PackedMultiplier returns the packed address factor for a version.
func PackedMultiplier(version uint8) uint32 {
	switch {
	case version <= 3:
		return 2
	case version == 8:
		return 8
	default:
		return 4
	}
}
