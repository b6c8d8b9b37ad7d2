package block

import "encoding/binary"

// CGLinkCount is the number of links a CGBLOCK carries: next channel group,
// first channel, acquisition name (TX), acquisition source (SI), first
// sample reduction (unused, kept for graph compatibility), and a comment
// (spec.md §3 CG entity).
const CGLinkCount = 6

// ChannelGroupFlagVLSD marks a channel group whose single channel is a
// variable-length record (spec.md §4.7 VLSD channel groups for bus logs).
const ChannelGroupFlagVLSD = 0x1

// ChannelGroup is the "##CG" block: one fixed-size record layout and its
// channels.
type ChannelGroup struct {
	NextCGAddr     uint64
	FirstCNAddr    uint64
	AcqNameAddr    uint64
	AcqSourceAddr  uint64
	SampleRedAddr  uint64
	CommentAddr    uint64
	RecordID       uint64
	CycleCount     uint64
	Flags          uint16
	PathSeparator  uint16
	DataBytes      uint32
	InvalBytes     uint32
}

const cgDataSize = 8 + 8 + 2 + 2 + 4 /*reserved*/ + 4 + 4

// ParseCG reads a CGBLOCK from data.
func ParseCG(data []byte) (ChannelGroup, error) {
	h, err := ParseHeader(data, "##CG")
	if err != nil {
		return ChannelGroup{}, err
	}
	if h.LinkCount < CGLinkCount {
		return ChannelGroup{}, newTruncatedLinksErr("CG", CGLinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, CGLinkCount)
	if err != nil {
		return ChannelGroup{}, err
	}

	body := HeaderSize + CGLinkCount*8
	if len(data) < body+cgDataSize {
		return ChannelGroup{}, newTruncatedBodyErr("CG")
	}
	d := data[body:]

	return ChannelGroup{
		NextCGAddr:    links[0],
		FirstCNAddr:   links[1],
		AcqNameAddr:   links[2],
		AcqSourceAddr: links[3],
		SampleRedAddr: links[4],
		CommentAddr:   links[5],
		RecordID:      binary.LittleEndian.Uint64(d[0:8]),
		CycleCount:    binary.LittleEndian.Uint64(d[8:16]),
		Flags:         binary.LittleEndian.Uint16(d[16:18]),
		PathSeparator: binary.LittleEndian.Uint16(d[18:20]),
		DataBytes:     binary.LittleEndian.Uint32(d[24:28]),
		InvalBytes:    binary.LittleEndian.Uint32(d[28:32]),
	}, nil
}

// ToBytes serializes the CGBLOCK.
func (cg ChannelGroup) ToBytes() []byte {
	total := Align8(HeaderSize + CGLinkCount*8 + cgDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##CG", uint64(total), CGLinkCount)
	links := []uint64{cg.NextCGAddr, cg.FirstCNAddr, cg.AcqNameAddr, cg.AcqSourceAddr, cg.SampleRedAddr, cg.CommentAddr}
	PutLinks(buf, HeaderSize, links)

	d := buf[HeaderSize+CGLinkCount*8:]
	binary.LittleEndian.PutUint64(d[0:8], cg.RecordID)
	binary.LittleEndian.PutUint64(d[8:16], cg.CycleCount)
	binary.LittleEndian.PutUint16(d[16:18], cg.Flags)
	binary.LittleEndian.PutUint16(d[18:20], cg.PathSeparator)
	binary.LittleEndian.PutUint32(d[24:28], cg.DataBytes)
	binary.LittleEndian.PutUint32(d[28:32], cg.InvalBytes)

	return buf
}

// IsVLSD reports whether the channel group holds variable-length records.
func (cg ChannelGroup) IsVLSD() bool { return cg.Flags&ChannelGroupFlagVLSD != 0 }

// RecordLen is the total byte length of one fixed-size record in this
// group: data bytes plus the invalidation byte tail.
func (cg ChannelGroup) RecordLen() uint32 { return cg.DataBytes + cg.InvalBytes }
