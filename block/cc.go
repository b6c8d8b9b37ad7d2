package block

import (
	"encoding/binary"

	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
)

// CCFixedLinkCount is the number of fixed links a CCBLOCK carries before
// its variable-length reference table: name (TX), unit (TX), comment (MD),
// and inverse conversion (CC, optional) (spec.md §3 CC entity).
const CCFixedLinkCount = 4

// Conversion is the "##CC" block: a rule mapping a channel's raw value to
// its physical value, optionally chained through a ref table of nested
// CC/TX blocks (value tables, range tables, formula text).
type Conversion struct {
	NameAddr    uint64
	UnitAddr    uint64
	CommentAddr uint64
	InverseAddr uint64
	Refs        []uint64 // ref_count entries: nested CC or TX block addresses
	Type        format.ConversionType
	Precision   uint8
	Flags       uint16
	PhyRangeMin float64
	PhyRangeMax float64
	PhyRangeValid bool
	Val         []float64 // val_count entries: coefficients or table values
}

const ccFixedDataSize = 1 + 1 + 2 + 2 + 2 + 2 /*reserved*/ + 8 + 8

// ParseCC reads a CCBLOCK from data.
func ParseCC(data []byte) (Conversion, error) {
	h, err := ParseHeader(data, "##CC")
	if err != nil {
		return Conversion{}, err
	}
	if h.LinkCount < CCFixedLinkCount {
		return Conversion{}, newTruncatedLinksErr("CC", CCFixedLinkCount, h.LinkCount)
	}
	refCount := h.LinkCount - CCFixedLinkCount

	links, err := ReadLinks(data, HeaderSize, int(h.LinkCount))
	if err != nil {
		return Conversion{}, err
	}

	body := HeaderSize + int(h.LinkCount)*8
	if len(data) < body+ccFixedDataSize {
		return Conversion{}, newTruncatedBodyErr("CC")
	}
	d := data[body:]

	cc := Conversion{
		NameAddr:    links[0],
		UnitAddr:    links[1],
		CommentAddr: links[2],
		InverseAddr: links[3],
		Refs:        append([]uint64(nil), links[CCFixedLinkCount:]...),
		Type:        format.ConversionType(d[0]),
		Precision:   d[1],
		Flags:       binary.LittleEndian.Uint16(d[2:4]),
	}
	refCountWire := binary.LittleEndian.Uint16(d[4:6])
	if uint64(refCountWire) != refCount {
		return Conversion{}, errs.NewMalformedBlock(0, "CC ref_count disagrees with link_count")
	}
	valCount := binary.LittleEndian.Uint16(d[6:8])
	cc.PhyRangeMin = float64FromBits(d[8:16])
	cc.PhyRangeMax = float64FromBits(d[16:24])
	cc.PhyRangeValid = cc.Flags&0x1 != 0

	valStart := body + ccFixedDataSize
	need := valStart + int(valCount)*8
	if len(data) < need {
		return Conversion{}, newTruncatedBodyErr("CC")
	}
	cc.Val = make([]float64, valCount)
	for i := 0; i < int(valCount); i++ {
		cc.Val[i] = float64FromBits(data[valStart+i*8 : valStart+i*8+8])
	}

	return cc, nil
}

// ToBytes serializes the CCBLOCK.
func (cc Conversion) ToBytes() []byte {
	linkCount := CCFixedLinkCount + len(cc.Refs)
	dataSize := ccFixedDataSize + len(cc.Val)*8
	total := Align8(HeaderSize + linkCount*8 + dataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##CC", uint64(total), uint64(linkCount))
	links := append([]uint64{cc.NameAddr, cc.UnitAddr, cc.CommentAddr, cc.InverseAddr}, cc.Refs...)
	PutLinks(buf, HeaderSize, links)

	d := buf[HeaderSize+linkCount*8:]
	d[0] = uint8(cc.Type)
	d[1] = cc.Precision
	flags := cc.Flags
	if cc.PhyRangeValid {
		flags |= 0x1
	}
	binary.LittleEndian.PutUint16(d[2:4], flags)
	binary.LittleEndian.PutUint16(d[4:6], uint16(len(cc.Refs)))
	binary.LittleEndian.PutUint16(d[6:8], uint16(len(cc.Val)))
	putFloat64Bits(d[8:16], cc.PhyRangeMin)
	putFloat64Bits(d[16:24], cc.PhyRangeMax)

	valStart := HeaderSize + linkCount*8 + ccFixedDataSize
	for i, v := range cc.Val {
		putFloat64Bits(buf[valStart+i*8:valStart+i*8+8], v)
	}

	return buf
}
