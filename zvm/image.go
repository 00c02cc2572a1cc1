package zvm

import (
	"fmt"

	"github.com/colorfulnotion/zdecomp/zerrors"
)

// Image is a read cursor over a story image.
//
// The backing bytes are shared with the host: the host populates them through
// Bytes before any decoding starts and the decoder only reads them afterwards.
// An Image is not safe for concurrent use; use View to give each reader its
// own cursor over the same bytes.
type Image struct {
	buf []byte
	pos uint32
	err error
}

// NewImage allocates a zeroed image of the given length.
func NewImage(length uint32) *Image {
	return &Image{buf: make([]byte, length)}
}

// Bytes returns the mutable backing view of the image.
func (img *Image) Bytes() []byte {
	return img.buf
}

// Len returns the image length in bytes.
func (img *Image) Len() uint32 {
	return uint32(len(img.buf))
}

// View returns an independent cursor over the same backing bytes.
func (img *Image) View() *Image {
	return &Image{buf: img.buf}
}

func (img *Image) Position() uint32 {
	return img.pos
}

// SetPosition moves the cursor and clears any previous overrun.
func (img *Image) SetPosition(pos uint32) {
	img.pos = pos
	img.err = nil
}

// Err returns the first overrun since the last SetPosition.
func (img *Image) Err() error {
	return img.err
}

func (img *Image) overrun(n uint32) bool {
	if img.err != nil {
		return true
	}
	if uint64(img.pos)+uint64(n) > uint64(len(img.buf)) {
		img.err = fmt.Errorf("read of %d bytes at 0x%x in image of %d bytes: %w", n, img.pos, len(img.buf), zerrors.ErrImageOverrun)
		return true
	}
	return false
}

func (img *Image) ReadU8() uint8 {
	if img.overrun(1) {
		return 0
	}
	v := img.buf[img.pos]
	img.pos++
	return v
}

// ReadU16 reads a big-endian word.
func (img *Image) ReadU16() uint16 {
	if img.overrun(2) {
		return 0
	}
	v := uint16(img.buf[img.pos])<<8 | uint16(img.buf[img.pos+1])
	img.pos += 2
	return v
}

func (img *Image) ReadI16() int16 {
	return int16(img.ReadU16())
}
