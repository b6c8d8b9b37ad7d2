// Package endian provides byte-order utilities for binary encoding and
// decoding across the block graph and channel decoder.
//
// It extends the standard encoding/binary package by combining ByteOrder
// and AppendByteOrder into a single interface, the same way mebo's endian
// package does for its blob format. The block graph itself is always
// little-endian per ASAM MDF4 (spec.md §3); channel *record* bytes select
// their engine per channel from data_type (spec.md §4.3 step 2, §6).
package endian

import "encoding/binary"

// Engine combines ByteOrder and AppendByteOrder from encoding/binary into a
// single interface, satisfied by binary.LittleEndian and binary.BigEndian.
type Engine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// LittleEndian is the engine used for every block-graph structure.
func LittleEndian() Engine { return binary.LittleEndian }

// BigEndian is the engine selected for channels whose data_type marks
// big-endian storage (spec.md §6 data_type encoding: 1, 3, 5, 15).
func BigEndian() Engine { return binary.BigEndian }

// ForDataType returns the engine matching a channel's big-endian flag.
func ForDataType(isBigEndian bool) Engine {
	if isBigEndian {
		return BigEndian()
	}

	return LittleEndian()
}
