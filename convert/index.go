package convert

import (
	"io"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/compress"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/graph"
	"github.com/mdf4kit/mdf4/internal/collision"
	"github.com/mdf4kit/mdf4/internal/hash"
)

// Entry is one channel's position within its channel group's fixed-size
// record, used to compute a byte range for single-channel remote/partial
// reads (spec.md §4.5).
type Entry struct {
	Name          string
	Channel       block.Channel
	Group         block.ChannelGroup
	RecordLen     uint32 // data_bytes + inval_bytes
	DataAddr      uint64 // the data group's DataAddr (DT or DL chain root)
}

// ByteOffset is the entry's field offset within one record.
func (e Entry) ByteOffset() uint32 { return e.Channel.ByteOffset }

// ByteLen is the number of bytes the entry's field spans within one
// record.
func (e Entry) ByteLen() uint32 { return e.Channel.ByteLen() }

// Index maps channel names to their Entry, built once per data group and
// reused across every sample access (spec.md §4.5 "conversion resolver and
// range index").
type Index struct {
	byID     map[uint64]Entry
	tracker  *collision.Tracker
}

// BuildIndex constructs an Index from a data group's channel groups and
// channels.
func BuildIndex(dg block.DataGroup, groups []block.ChannelGroup, channelsByGroup map[int][]block.Channel, names map[uint64]string) (*Index, error) {
	idx := &Index{
		byID:    make(map[uint64]Entry),
		tracker: collision.NewTracker(),
	}

	for gi, cg := range groups {
		for _, cn := range channelsByGroup[gi] {
			id := hash.ID(namesKey(names, cn))
			name := namesKey(names, cn)
			if err := idx.tracker.Track(name, id); err != nil {
				return nil, err
			}
			idx.byID[id] = Entry{
				Name:      name,
				Channel:   cn,
				Group:     cg,
				RecordLen: cg.RecordLen(),
				DataAddr:  dg.DataAddr,
			}
		}
	}

	return idx, nil
}

func namesKey(names map[uint64]string, cn block.Channel) string {
	return names[cn.NameAddr]
}

// Lookup resolves a channel by name.
func (idx *Index) Lookup(name string) (Entry, bool) {
	e, ok := idx.byID[hash.ID(name)]
	return e, ok
}

// HasNameCollision reports whether two distinct channel names in this
// index hashed to the same id (spec.md §4.5 edge case).
func (idx *Index) HasNameCollision() bool { return idx.tracker.HasCollision() }

// Fetch reads one record's worth of bytes for entry's field directly from
// r at the given record's absolute file offset, without decoding the rest
// of the record. recordFileOffset is the absolute offset of the record's
// first byte within the file (the caller locates it via the DT/DL chain).
func (idx *Index) Fetch(r io.ReaderAt, entry Entry, recordFileOffset int64) ([]byte, error) {
	buf := make([]byte, entry.ByteLen())
	off := recordFileOffset + int64(entry.ByteOffset())
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, err
	}

	return buf, nil
}

// FetchCompressed is Fetch followed by compression through the
// range-fetch codec profile (spec.md §4.5 + SPEC_FULL.md Domain Stack):
// it never affects what is stored on disk, only the bytes returned to a
// remote caller.
func (idx *Index) FetchCompressed(r io.ReaderAt, entry Entry, recordFileOffset int64, ct format.CompressionType) ([]byte, error) {
	raw, err := idx.Fetch(r, entry, recordFileOffset)
	if err != nil {
		return nil, err
	}

	codec, err := compress.ForRange(ct)
	if err != nil {
		return nil, err
	}

	return codec.Compress(raw)
}

// Range is one absolute (file_offset, length) byte range within the file.
type Range struct {
	Offset int64
	Length uint32
}

// ChannelRanges intersects entry's record rectangle with every data
// segment of its data group, producing the minimal byte ranges a remote
// reader must fetch to decode that channel alone (spec.md §4.5). It
// applies to sorted data groups (record_id_len 0), whose record stride is
// the fixed record length.
func ChannelRanges(segments []graph.Segment, entry Entry) []Range {
	stride := int64(entry.RecordLen)
	if stride == 0 {
		return nil
	}

	width := entry.ByteLen()
	var out []Range
	for _, seg := range segments {
		n := int64(seg.DataLen) / stride
		for i := int64(0); i < n; i++ {
			out = append(out, Range{
				Offset: seg.DataStart + i*stride + int64(entry.ByteOffset()),
				Length: width,
			})
		}
	}

	return out
}

// RecordOffset computes the absolute file offset of the record at index i
// within a single DT block starting at dtDataStart (the first byte after
// the block header), given the group's fixed record length.
func RecordOffset(dtDataStart int64, recordLen uint32, i int) int64 {
	return dtDataStart + int64(i)*int64(recordLen)
}
