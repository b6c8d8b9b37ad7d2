// Package block implements the primitive block codec and every MDF4 block
// type (spec.md §3, §4.1, §4.2): the 24-byte header shared by all blocks,
// the 64-byte identification preamble, and ID/HD/DG/CG/CN/CC/TX/MD/SI/DT/DL/
// SD/HL/FH parse+serialize pairs.
//
// Every block type has a ParseXX(data) function (ParseHD, ParseCN,
// ParseTextBlock for TX/MD, ...) and a ToBytes() method, mirroring the
// Parse/Bytes pair mebo/section uses for its fixed-size headers
// (section/numeric_header.go), generalized here to variable-length blocks
// with a link table.
package block

import (
	"encoding/binary"

	"github.com/mdf4kit/mdf4/errs"
)

// HeaderSize is the fixed size of the 24-byte block header shared by every
// block (spec.md §3 "Block header").
const HeaderSize = 24

// Header is the common prefix of every block: a 4-byte ASCII tag beginning
// with "##", 4 reserved bytes, a 64-bit block length, and a 64-bit link
// count. The block graph is always little-endian (spec.md §3).
type Header struct {
	ID        [4]byte
	Length    uint64
	LinkCount uint64
}

// Tag returns the header's ID field as a string, e.g. "##HD".
func (h Header) Tag() string { return string(h.ID[:]) }

// PeekHeader reads a 24-byte block header from the front of data without
// requiring the block body to be present, for callers that first discover
// a block's length and then read the rest (the lazy graph loader).
func PeekHeader(data []byte, want string) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.NewMalformedBlock(0, "block header truncated")
	}

	var h Header
	copy(h.ID[:], data[0:4])
	if h.ID[0] != '#' || h.ID[1] != '#' {
		return Header{}, errs.NewMalformedBlock(0, "block tag missing ## prefix")
	}
	if want != "" && h.Tag() != want {
		return Header{}, errs.NewMalformedBlock(0, "block tag mismatch: want "+want+" got "+h.Tag())
	}

	h.Length = binary.LittleEndian.Uint64(data[8:16])
	h.LinkCount = binary.LittleEndian.Uint64(data[16:24])

	if h.Length < HeaderSize {
		return Header{}, errs.NewMalformedBlock(0, "block length smaller than header")
	}

	return h, nil
}

// ParseHeader reads a 24-byte block header from the front of data and
// confirms its tag matches want (e.g. "##CN") and that data holds the
// whole declared block. Decoders accept any link_count >= the block
// type's expected count and ignore extras (spec.md §4.2
// forward-compatibility rule); it is the caller's job to check that
// floor.
func ParseHeader(data []byte, want string) (Header, error) {
	h, err := PeekHeader(data, want)
	if err != nil {
		return Header{}, err
	}
	if uint64(len(data)) < h.Length {
		return Header{}, errs.NewMalformedBlock(0, "block body truncated")
	}

	return h, nil
}

// PutHeader writes a 24-byte header for a block of the given tag, length,
// and link count into the front of buf. buf must be at least HeaderSize
// bytes.
func PutHeader(buf []byte, tag string, length uint64, linkCount uint64) {
	copy(buf[0:4], tag)
	buf[4], buf[5], buf[6], buf[7] = 0, 0, 0, 0
	binary.LittleEndian.PutUint64(buf[8:16], length)
	binary.LittleEndian.PutUint64(buf[16:24], linkCount)
}

// Align8 rounds n up to the next multiple of 8, the alignment every block
// must satisfy (spec.md §3 "All blocks are 8-byte aligned").
func Align8(n int) int {
	return (n + 7) &^ 7
}

// ReadLinks reads count 64-bit little-endian link addresses starting at
// offset in data.
func ReadLinks(data []byte, offset int, count int) ([]uint64, error) {
	need := offset + count*8
	if len(data) < need {
		return nil, errs.NewMalformedBlock(int64(offset), "link table truncated")
	}
	links := make([]uint64, count)
	for i := 0; i < count; i++ {
		links[i] = binary.LittleEndian.Uint64(data[offset+i*8 : offset+i*8+8])
	}

	return links, nil
}

// PutLinks writes links as 64-bit little-endian addresses starting at
// offset in buf.
func PutLinks(buf []byte, offset int, links []uint64) {
	for i, l := range links {
		binary.LittleEndian.PutUint64(buf[offset+i*8:offset+i*8+8], l)
	}
}

// PadText null-pads s to the next 8-byte boundary past its length+1 (room
// for one trailing null), per spec.md §4.2 TextBlock rule. s must not
// contain embedded nulls.
func PadText(s string) []byte {
	n := Align8(len(s) + 1)
	buf := make([]byte, n)
	copy(buf, s)
	// buf[len(s):] is already zero

	return buf
}

// TrimText extracts a null-terminated (or block-length-bounded) string from
// a text payload.
func TrimText(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}

	return string(data)
}
