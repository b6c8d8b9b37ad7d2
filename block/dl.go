package block

import "encoding/binary"

// DataListFlagEqualLength marks a DLBLOCK whose referenced data blocks all
// have the same length, letting offsets be computed rather than stored
// (spec.md §3 DL entity).
const DataListFlagEqualLength = 0x1

// DataList is the "##DL" block: a chain node listing DT/SD blocks that
// together form one logical, appendable data stream
// (spec.md §4.4 "appendable DT/DL chains").
type DataList struct {
	NextDLAddr   uint64
	DataAddrs    []uint64 // DT or SD block addresses
	EqualLength  bool
	CommonLength uint64   // valid when EqualLength
	Offsets      []uint64 // valid when !EqualLength, one per DataAddrs entry
}

const dlFixedDataSize = 1 + 3 /*reserved*/ + 4 + 8 // flags, count, common-length-or-first-offset-slot

// ParseDL reads a DLBLOCK from data.
func ParseDL(data []byte) (DataList, error) {
	h, err := ParseHeader(data, "##DL")
	if err != nil {
		return DataList{}, err
	}
	if h.LinkCount < 1 {
		return DataList{}, newTruncatedLinksErr("DL", 1, h.LinkCount)
	}
	count := int(h.LinkCount - 1)

	links, err := ReadLinks(data, HeaderSize, int(h.LinkCount))
	if err != nil {
		return DataList{}, err
	}

	body := HeaderSize + int(h.LinkCount)*8
	if len(data) < body+dlFixedDataSize {
		return DataList{}, newTruncatedBodyErr("DL")
	}
	d := data[body:]

	dl := DataList{
		NextDLAddr: links[0],
		DataAddrs:  append([]uint64(nil), links[1:]...),
	}
	flags := d[0]
	dl.EqualLength = flags&DataListFlagEqualLength != 0
	wireCount := binary.LittleEndian.Uint32(d[4:8])
	if int(wireCount) != count {
		return DataList{}, newTruncatedBodyErr("DL")
	}

	if dl.EqualLength {
		dl.CommonLength = binary.LittleEndian.Uint64(d[8:16])
		return dl, nil
	}

	offStart := body + dlFixedDataSize
	need := offStart + count*8
	if len(data) < need {
		return DataList{}, newTruncatedBodyErr("DL")
	}
	dl.Offsets = make([]uint64, count)
	for i := 0; i < count; i++ {
		dl.Offsets[i] = binary.LittleEndian.Uint64(data[offStart+i*8 : offStart+i*8+8])
	}

	return dl, nil
}

// ToBytes serializes the DLBLOCK.
func (dl DataList) ToBytes() []byte {
	linkCount := 1 + len(dl.DataAddrs)
	dataSize := dlFixedDataSize
	if !dl.EqualLength {
		dataSize += len(dl.Offsets) * 8
	}
	total := Align8(HeaderSize + linkCount*8 + dataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##DL", uint64(total), uint64(linkCount))
	links := append([]uint64{dl.NextDLAddr}, dl.DataAddrs...)
	PutLinks(buf, HeaderSize, links)

	d := buf[HeaderSize+linkCount*8:]
	if dl.EqualLength {
		d[0] = DataListFlagEqualLength
	}
	binary.LittleEndian.PutUint32(d[4:8], uint32(len(dl.DataAddrs)))
	if dl.EqualLength {
		binary.LittleEndian.PutUint64(d[8:16], dl.CommonLength)
		return buf
	}

	offStart := HeaderSize + linkCount*8 + dlFixedDataSize
	for i, o := range dl.Offsets {
		binary.LittleEndian.PutUint64(buf[offStart+i*8:offStart+i*8+8], o)
	}

	return buf
}
