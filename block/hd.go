package block

import "encoding/binary"

// HDLinkCount is the number of links an HDBLOCK carries: first data group,
// first file history, first channel hierarchy, first attachment, first
// event, and a file comment (spec.md §3 HD entity).
const HDLinkCount = 6

// HeaderData is the "##HD" block: the single root of the block graph,
// reached at a fixed address immediately after the identification preamble.
type HeaderData struct {
	FirstDGAddr      uint64
	FirstFHAddr      uint64
	FirstCHAddr      uint64
	FirstATAddr      uint64
	FirstEVAddr      uint64
	CommentAddr      uint64
	StartTimeNs      uint64
	TZOffsetMin      int16
	DSTOffsetMin     int16
	TimeFlags        uint8
	TimeClass        uint8
	Flags            uint8
	StartAngleRad    float64
	StartDistanceM   float64
	StartAngleValid  bool
	StartDistValid   bool
}

const hdDataSize = 8 + 2 + 2 + 1 + 1 + 1 + 1 /*reserved*/ + 8 + 8

// ParseHD reads an HDBLOCK from data.
func ParseHD(data []byte) (HeaderData, error) {
	h, err := ParseHeader(data, "##HD")
	if err != nil {
		return HeaderData{}, err
	}
	if h.LinkCount < HDLinkCount {
		return HeaderData{}, newTruncatedLinksErr("HD", HDLinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, HDLinkCount)
	if err != nil {
		return HeaderData{}, err
	}

	body := HeaderSize + int(HDLinkCount)*8
	if len(data) < body+hdDataSize {
		return HeaderData{}, newTruncatedBodyErr("HD")
	}
	d := data[body:]

	hd := HeaderData{
		FirstDGAddr:    links[0],
		FirstFHAddr:    links[1],
		FirstCHAddr:    links[2],
		FirstATAddr:    links[3],
		FirstEVAddr:    links[4],
		CommentAddr:    links[5],
		StartTimeNs:    binary.LittleEndian.Uint64(d[0:8]),
		TZOffsetMin:    int16(binary.LittleEndian.Uint16(d[8:10])),
		DSTOffsetMin:   int16(binary.LittleEndian.Uint16(d[10:12])),
		TimeFlags:      d[12],
		TimeClass:      d[13],
		Flags:          d[14],
		StartAngleRad:  float64FromBits(d[16:24]),
		StartDistanceM: float64FromBits(d[24:32]),
	}
	hd.StartAngleValid = hd.Flags&0x1 != 0
	hd.StartDistValid = hd.Flags&0x2 != 0

	return hd, nil
}

// ToBytes serializes the HDBLOCK.
func (hd HeaderData) ToBytes() []byte {
	total := HeaderSize + HDLinkCount*8 + hdDataSize
	total = Align8(total)
	buf := make([]byte, total)

	PutHeader(buf, "##HD", uint64(total), HDLinkCount)
	links := []uint64{hd.FirstDGAddr, hd.FirstFHAddr, hd.FirstCHAddr, hd.FirstATAddr, hd.FirstEVAddr, hd.CommentAddr}
	PutLinks(buf, HeaderSize, links)

	d := buf[HeaderSize+HDLinkCount*8:]
	binary.LittleEndian.PutUint64(d[0:8], hd.StartTimeNs)
	binary.LittleEndian.PutUint16(d[8:10], uint16(hd.TZOffsetMin))
	binary.LittleEndian.PutUint16(d[10:12], uint16(hd.DSTOffsetMin))
	d[12] = hd.TimeFlags
	d[13] = hd.TimeClass
	flags := hd.Flags
	if hd.StartAngleValid {
		flags |= 0x1
	}
	if hd.StartDistValid {
		flags |= 0x2
	}
	d[14] = flags
	putFloat64Bits(d[16:24], hd.StartAngleRad)
	putFloat64Bits(d[24:32], hd.StartDistanceM)

	return buf
}
