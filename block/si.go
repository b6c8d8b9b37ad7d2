package block

import "github.com/mdf4kit/mdf4/format"

// SILinkCount is the number of links an SIBLOCK carries: name (TX), path
// (TX), and a comment (MD) (spec.md §3 SI entity).
const SILinkCount = 3

// SourceInformation is the "##SI" block: describes the acquisition source
// (ECU, bus, tool, ...) a channel group or channel was recorded from.
type SourceInformation struct {
	NameAddr    uint64
	PathAddr    uint64
	CommentAddr uint64
	SourceType  format.SourceType
	BusType     format.BusType
	Flags       uint8
}

const siDataSize = 1 + 1 + 1 + 5 // reserved tail to 8-byte boundary

// ParseSI reads an SIBLOCK from data.
func ParseSI(data []byte) (SourceInformation, error) {
	h, err := ParseHeader(data, "##SI")
	if err != nil {
		return SourceInformation{}, err
	}
	if h.LinkCount < SILinkCount {
		return SourceInformation{}, newTruncatedLinksErr("SI", SILinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, SILinkCount)
	if err != nil {
		return SourceInformation{}, err
	}

	body := HeaderSize + SILinkCount*8
	if len(data) < body+siDataSize {
		return SourceInformation{}, newTruncatedBodyErr("SI")
	}
	d := data[body:]

	return SourceInformation{
		NameAddr:    links[0],
		PathAddr:    links[1],
		CommentAddr: links[2],
		SourceType:  format.SourceType(d[0]),
		BusType:     format.BusType(d[1]),
		Flags:       d[2],
	}, nil
}

// ToBytes serializes the SIBLOCK.
func (si SourceInformation) ToBytes() []byte {
	total := Align8(HeaderSize + SILinkCount*8 + siDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##SI", uint64(total), SILinkCount)
	PutLinks(buf, HeaderSize, []uint64{si.NameAddr, si.PathAddr, si.CommentAddr})

	d := buf[HeaderSize+SILinkCount*8:]
	d[0] = uint8(si.SourceType)
	d[1] = uint8(si.BusType)
	d[2] = si.Flags

	return buf
}
