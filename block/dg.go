package block

// DGLinkCount is the number of links a DGBLOCK carries: next data group,
// first channel group, data block (DT or DL), and a comment (spec.md §3 DG
// entity).
const DGLinkCount = 4

// DataGroup is the "##DG" block: one record layout (a fixed byte stride
// shared by its channel groups) and its data payload.
type DataGroup struct {
	NextDGAddr    uint64
	FirstCGAddr   uint64
	DataAddr      uint64
	CommentAddr   uint64
	RecordIDLen   uint8
}

const dgDataSize = 8 // record_id_len(1) + reserved(7)

// ParseDG reads a DGBLOCK from data.
func ParseDG(data []byte) (DataGroup, error) {
	h, err := ParseHeader(data, "##DG")
	if err != nil {
		return DataGroup{}, err
	}
	if h.LinkCount < DGLinkCount {
		return DataGroup{}, newTruncatedLinksErr("DG", DGLinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, DGLinkCount)
	if err != nil {
		return DataGroup{}, err
	}

	body := HeaderSize + DGLinkCount*8
	if len(data) < body+dgDataSize {
		return DataGroup{}, newTruncatedBodyErr("DG")
	}

	return DataGroup{
		NextDGAddr:  links[0],
		FirstCGAddr: links[1],
		DataAddr:    links[2],
		CommentAddr: links[3],
		RecordIDLen: data[body],
	}, nil
}

// ToBytes serializes the DGBLOCK.
func (dg DataGroup) ToBytes() []byte {
	total := Align8(HeaderSize + DGLinkCount*8 + dgDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##DG", uint64(total), DGLinkCount)
	PutLinks(buf, HeaderSize, []uint64{dg.NextDGAddr, dg.FirstCGAddr, dg.DataAddr, dg.CommentAddr})
	buf[HeaderSize+DGLinkCount*8] = dg.RecordIDLen

	return buf
}
