package decode

import (
	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/format"
)

// Decode extracts one channel's sample from record, applies its validity
// rule, and runs it through its conversion chain, producing the physical
// value a caller would display (spec.md §4.3, full pipeline).
func Decode(record []byte, cg block.ChannelGroup, cn block.Channel, res Resolver) (Value, error) {
	valid, err := IsValid(record, cg, cn)
	if err != nil {
		return Value{}, err
	}

	raw, err := ExtractRaw(record, cn.ByteOffset, cn.BitOffset, cn.BitCount, cn.DataType)
	if err != nil {
		return Value{}, err
	}
	raw.Valid = valid

	cc, err := res.Conversion(cn.ConversionAddr)
	if err != nil {
		return Value{}, err
	}

	return ApplyConversion(raw, cc, res)
}

// DecodeGroup decodes every channel of cg from one fixed-size record,
// failing on the first undecodable channel. For the lenient semantics of
// spec.md §7 (skip the channel, keep the rest) use GroupDecoder.
func DecodeGroup(record []byte, cg block.ChannelGroup, channels []block.Channel, res Resolver) (map[string]Value, error) {
	out := make(map[string]Value, len(channels))
	for _, cn := range channels {
		name, err := res.Text(cn.NameAddr)
		if err != nil {
			return nil, err
		}
		v, err := Decode(record, cg, cn, res)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	return out, nil
}

// CanDecode reports whether a channel's samples can be extracted from
// fixed-size records at all: a supported channel type, a known data type,
// and a representable bit width. Channels failing this are semantic
// failures, not structural ones (spec.md §7 "Semantic" policy).
func CanDecode(cn block.Channel) bool {
	switch cn.ChannelType {
	case format.ChannelTypeFixedLength, format.ChannelTypeMaster:
	default:
		// VLSD, virtual, synchronization, and MLSD channels carry no
		// directly extractable fixed-width field
		return false
	}

	dt := cn.DataType
	switch {
	case dt.IsInteger() || dt.IsFloat():
		return cn.BitCount >= 1 && cn.BitCount <= 64
	case dt.IsString() || dt == format.DataTypeByteArray || dt == format.DataTypeMimeSample || dt == format.DataTypeMimeStream:
		return cn.BitCount%8 == 0
	default:
		return false
	}
}

// LogFunc receives the one-line notice emitted when a channel is skipped.
type LogFunc func(format string, args ...any)

// GroupDecoder decodes whole records while tolerating semantically
// undecodable channels: each such channel is skipped, reported through
// Logf once, and never fails the rest of the record (spec.md §7, "other
// channels continue; logged once per channel").
type GroupDecoder struct {
	Logf   LogFunc
	warned map[string]bool
}

// NewGroupDecoder creates a lenient record decoder. A nil logf discards
// the skip notices.
func NewGroupDecoder(logf LogFunc) *GroupDecoder {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &GroupDecoder{Logf: logf, warned: make(map[string]bool)}
}

// DecodeRecord decodes every decodable channel of the record into a
// name-keyed map, skipping the rest.
func (d *GroupDecoder) DecodeRecord(record []byte, cg block.ChannelGroup, channels []block.Channel, res Resolver) (map[string]Value, error) {
	out := make(map[string]Value, len(channels))
	for _, cn := range channels {
		name, err := res.Text(cn.NameAddr)
		if err != nil {
			return nil, err
		}
		if !CanDecode(cn) {
			if !d.warned[name] {
				d.warned[name] = true
				d.Logf("channel %q skipped: unsupported channel_type %d / data_type %d / bit_count %d",
					name, cn.ChannelType, cn.DataType, cn.BitCount)
			}

			continue
		}
		v, err := Decode(record, cg, cn, res)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	return out, nil
}
