package block

import "encoding/binary"

// HeaderList is the "##HL" block: a thin wrapper pointing at the first
// DLBLOCK of a chain, used by foreign writers to flag a zipped (DZ) data
// list. This module never writes DZ blocks (on-disk blocks stay raw per
// spec.md §3), so HL is parsed for graph compatibility with foreign files;
// ZipType is read as stored, and a DL reached through an HL whose ZipType
// is non-zero is reported via the graph as an unsupported
// compressed data list.
type HeaderList struct {
	FirstDLAddr uint64
	Flags       uint16
	ZipType     uint8
}

const hlDataSize = 2 + 1 + 5 // flags, zip_type, reserved

// ParseHL reads an HLBLOCK from data.
func ParseHL(data []byte) (HeaderList, error) {
	h, err := ParseHeader(data, "##HL")
	if err != nil {
		return HeaderList{}, err
	}
	if h.LinkCount < 1 {
		return HeaderList{}, newTruncatedLinksErr("HL", 1, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, 1)
	if err != nil {
		return HeaderList{}, err
	}

	body := HeaderSize + 8
	if len(data) < body+hlDataSize {
		return HeaderList{}, newTruncatedBodyErr("HL")
	}
	d := data[body:]

	return HeaderList{
		FirstDLAddr: links[0],
		Flags:       binary.LittleEndian.Uint16(d[0:2]),
		ZipType:     d[2],
	}, nil
}

// ToBytes serializes the HLBLOCK.
func (hl HeaderList) ToBytes() []byte {
	total := Align8(HeaderSize + 8 + hlDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##HL", uint64(total), 1)
	PutLinks(buf, HeaderSize, []uint64{hl.FirstDLAddr})

	d := buf[HeaderSize+8:]
	binary.LittleEndian.PutUint16(d[0:2], hl.Flags)
	d[2] = hl.ZipType

	return buf
}

// IsCompressed reports whether the data list this HL wraps uses a zip
// encoding this module does not support decoding.
func (hl HeaderList) IsCompressed() bool { return hl.ZipType != 0 }
