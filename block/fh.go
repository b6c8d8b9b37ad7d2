package block

import "encoding/binary"

// FHTimeFlagLocal marks a file-history timestamp as local time rather than
// UTC; FHTimeFlagOffsetsValid marks TZOffsetMin/DSTOffsetMin as meaningful
// (SPEC_FULL.md Supplemented Features, grounded on
// original_source/src/blocks/file_history_block.rs time_flags).
const (
	FHTimeFlagLocal        = 0x1
	FHTimeFlagOffsetsValid = 0x2
)

// FHLinkCount is the number of links an FHBLOCK carries: next file history
// entry and a comment (spec.md §3 FH entity).
const FHLinkCount = 2

// FileHistory is the "##FH" block: one entry in the audit trail of tool
// runs that created or modified the file.
type FileHistory struct {
	NextFHAddr   uint64
	CommentAddr  uint64
	TimeNs       uint64
	TZOffsetMin  int16
	DSTOffsetMin int16
	TimeFlags    uint8
}

const fhDataSize = 8 + 2 + 2 + 1 + 3 // reserved tail to 8-byte boundary

// ParseFH reads an FHBLOCK from data.
func ParseFH(data []byte) (FileHistory, error) {
	h, err := ParseHeader(data, "##FH")
	if err != nil {
		return FileHistory{}, err
	}
	if h.LinkCount < FHLinkCount {
		return FileHistory{}, newTruncatedLinksErr("FH", FHLinkCount, h.LinkCount)
	}

	links, err := ReadLinks(data, HeaderSize, FHLinkCount)
	if err != nil {
		return FileHistory{}, err
	}

	body := HeaderSize + FHLinkCount*8
	if len(data) < body+fhDataSize {
		return FileHistory{}, newTruncatedBodyErr("FH")
	}
	d := data[body:]

	return FileHistory{
		NextFHAddr:   links[0],
		CommentAddr:  links[1],
		TimeNs:       binary.LittleEndian.Uint64(d[0:8]),
		TZOffsetMin:  int16(binary.LittleEndian.Uint16(d[8:10])),
		DSTOffsetMin: int16(binary.LittleEndian.Uint16(d[10:12])),
		TimeFlags:    d[12],
	}, nil
}

// ToBytes serializes the FHBLOCK.
func (fh FileHistory) ToBytes() []byte {
	total := Align8(HeaderSize + FHLinkCount*8 + fhDataSize)
	buf := make([]byte, total)

	PutHeader(buf, "##FH", uint64(total), FHLinkCount)
	PutLinks(buf, HeaderSize, []uint64{fh.NextFHAddr, fh.CommentAddr})

	d := buf[HeaderSize+FHLinkCount*8:]
	binary.LittleEndian.PutUint64(d[0:8], fh.TimeNs)
	binary.LittleEndian.PutUint16(d[8:10], uint16(fh.TZOffsetMin))
	binary.LittleEndian.PutUint16(d[10:12], uint16(fh.DSTOffsetMin))
	d[12] = fh.TimeFlags

	return buf
}

// IsLocal reports whether TimeNs is local time rather than UTC.
func (fh FileHistory) IsLocal() bool { return fh.TimeFlags&FHTimeFlagLocal != 0 }

// OffsetsValid reports whether TZOffsetMin/DSTOffsetMin are meaningful.
func (fh FileHistory) OffsetsValid() bool { return fh.TimeFlags&FHTimeFlagOffsetsValid != 0 }
