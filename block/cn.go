package block

import (
	"encoding/binary"

	"github.com/mdf4kit/mdf4/format"
)

// CNLinkCount is the number of links a CNBLOCK carries: next channel,
// composition (nested CN or CA, unused here), name (TX), source (SI),
// conversion (CC), VLSD data (SD/DL, for variable-length channels), unit
// (TX), and a comment (spec.md §3 CN entity).
const CNLinkCount = 8

// Channel is the "##CN" block: one signal's layout within a record.
type Channel struct {
	NextCNAddr       uint64
	ComponentAddr    uint64
	NameAddr         uint64
	SourceAddr       uint64
	ConversionAddr   uint64
	DataAddr         uint64
	UnitAddr         uint64
	CommentAddr      uint64
	ChannelType      format.ChannelType
	SyncType         format.SyncType
	DataType         format.DataType
	BitOffset        uint8
	ByteOffset       uint32
	BitCount         uint32
	Flags            format.ChannelFlag
	PosInvalBit      uint32
	Precision        uint8
	AttachmentCount  uint16
	MinRaw           float64
	MaxRaw           float64
	LowerLimit       float64
	UpperLimit       float64
	LowerExtLimit    float64
	UpperExtLimit    float64
}

const cnDataSize = 1 + 1 + 1 + 1 + 4 + 4 + 4 + 4 + 1 + 1 + 2 + 8*6

// ParseCN reads a CNBLOCK from data.
func ParseCN(data []byte) (Channel, error) {
	h, err := ParseHeader(data, "##CN")
	if err != nil {
		return Channel{}, err
	}
	if h.LinkCount < CNLinkCount {
		return Channel{}, newTruncatedLinksErr("CN", CNLinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, CNLinkCount)
	if err != nil {
		return Channel{}, err
	}

	body := HeaderSize + CNLinkCount*8
	if len(data) < body+cnDataSize {
		return Channel{}, newTruncatedBodyErr("CN")
	}
	d := data[body:]

	cn := Channel{
		NextCNAddr:      links[0],
		ComponentAddr:   links[1],
		NameAddr:        links[2],
		SourceAddr:      links[3],
		ConversionAddr:  links[4],
		DataAddr:        links[5],
		UnitAddr:        links[6],
		CommentAddr:     links[7],
		ChannelType:     format.ChannelType(d[0]),
		SyncType:        format.SyncType(d[1]),
		DataType:        format.DataType(d[2]),
		BitOffset:       d[3],
		ByteOffset:      binary.LittleEndian.Uint32(d[4:8]),
		BitCount:        binary.LittleEndian.Uint32(d[8:12]),
		Flags:           format.ChannelFlag(binary.LittleEndian.Uint32(d[12:16])),
		PosInvalBit:     binary.LittleEndian.Uint32(d[16:20]),
		Precision:       d[20],
		AttachmentCount: binary.LittleEndian.Uint16(d[22:24]),
	}
	rest := d[24:]
	cn.MinRaw = float64FromBits(rest[0:8])
	cn.MaxRaw = float64FromBits(rest[8:16])
	cn.LowerLimit = float64FromBits(rest[16:24])
	cn.UpperLimit = float64FromBits(rest[24:32])
	cn.LowerExtLimit = float64FromBits(rest[32:40])
	cn.UpperExtLimit = float64FromBits(rest[40:48])

	return cn, nil
}

// ToBytes serializes the CNBLOCK.
func (cn Channel) ToBytes() []byte {
	total := Align8(HeaderSize + CNLinkCount*8 + cnDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##CN", uint64(total), CNLinkCount)
	links := []uint64{
		cn.NextCNAddr, cn.ComponentAddr, cn.NameAddr, cn.SourceAddr,
		cn.ConversionAddr, cn.DataAddr, cn.UnitAddr, cn.CommentAddr,
	}
	PutLinks(buf, HeaderSize, links)

	d := buf[HeaderSize+CNLinkCount*8:]
	d[0] = uint8(cn.ChannelType)
	d[1] = uint8(cn.SyncType)
	d[2] = uint8(cn.DataType)
	d[3] = cn.BitOffset
	binary.LittleEndian.PutUint32(d[4:8], cn.ByteOffset)
	binary.LittleEndian.PutUint32(d[8:12], cn.BitCount)
	binary.LittleEndian.PutUint32(d[12:16], uint32(cn.Flags))
	binary.LittleEndian.PutUint32(d[16:20], cn.PosInvalBit)
	d[20] = cn.Precision
	binary.LittleEndian.PutUint16(d[22:24], cn.AttachmentCount)
	rest := d[24:]
	putFloat64Bits(rest[0:8], cn.MinRaw)
	putFloat64Bits(rest[8:16], cn.MaxRaw)
	putFloat64Bits(rest[16:24], cn.LowerLimit)
	putFloat64Bits(rest[24:32], cn.UpperLimit)
	putFloat64Bits(rest[32:40], cn.LowerExtLimit)
	putFloat64Bits(rest[40:48], cn.UpperExtLimit)

	return buf
}

// ByteLen is the number of whole bytes this channel's bits span, rounding
// up a bit-packed field to its covering byte range.
func (cn Channel) ByteLen() uint32 {
	return (uint32(cn.BitOffset) + cn.BitCount + 7) / 8
}
