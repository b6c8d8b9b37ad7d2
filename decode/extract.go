package decode

import (
	"math"

	"github.com/mdf4kit/mdf4/endian"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
)

// extractBits gathers bitCount bits starting at bitOffset within span
// (span already sliced to the covering byte range, byteOffset.. ) into a
// uint64 accumulator, LSB-first, the way ASAM MDF4 packs sub-byte fields
// (spec.md §4.3 "bit-packed gather path"). For big-endian data types the
// caller passes span with its bytes already reversed.
func extractBits(span []byte, bitOffset uint8, bitCount uint32) (uint64, error) {
	if bitCount == 0 || bitCount > 64 {
		return 0, errs.ErrBitRangeOutOfBounds
	}

	needBits := int(bitOffset) + int(bitCount)
	if len(span)*8 < needBits {
		return 0, errs.ErrBitRangeOutOfBounds
	}

	var acc uint64
	var accBits uint32
	bit := int(bitOffset)
	for accBits < bitCount {
		byteIdx := bit / 8
		bitInByte := uint(bit % 8)
		take := 8 - bitInByte
		if uint32(take) > bitCount-accBits {
			take = uint(bitCount - accBits)
		}

		mask := byte((1 << take) - 1)
		chunk := (span[byteIdx] >> bitInByte) & mask
		acc |= uint64(chunk) << accBits

		accBits += uint32(take)
		bit += int(take)
	}

	return acc, nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}

	return out
}

// signExtend widens a bitCount-wide two's complement value held in the low
// bitCount bits of raw to a full int64.
func signExtend(raw uint64, bitCount uint32) int64 {
	if bitCount >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << (bitCount - 1)
	if raw&signBit != 0 {
		return int64(raw | (^uint64(0) << bitCount))
	}

	return int64(raw)
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	var bits uint32
	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			// subnormal half -> normalize into float32
			e := -1
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			exp32 := uint32(127 - 15 + e + 1)
			bits = (sign << 31) | (exp32 << 23) | (frac << 13)
		}
	case 0x1f:
		bits = (sign << 31) | (0xff << 23) | (frac << 13)
	default:
		exp32 := exp - 15 + 127
		bits = (sign << 31) | (exp32 << 23) | (frac << 13)
	}

	return math.Float32frombits(bits)
}

// ExtractRaw reads the raw (unconverted) bits of one channel field from
// record and produces an untyped Value per the channel's data_type
// (spec.md §4.3). Validity is left true; callers apply invalidation
// separately.
func ExtractRaw(record []byte, byteOffset uint32, bitOffset uint8, bitCount uint32, dt format.DataType) (Value, error) {
	if dt.IsString() || dt == format.DataTypeByteArray || dt == format.DataTypeMimeSample || dt == format.DataTypeMimeStream {
		byteLen := bitCount / 8
		if uint64(byteOffset)+uint64(byteLen) > uint64(len(record)) {
			return Value{}, errs.ErrBitRangeOutOfBounds
		}
		raw := record[byteOffset : byteOffset+byteLen]

		if dt.IsString() {
			return Value{Kind: KindString, Str: trimNulls(raw), Valid: true}, nil
		}

		out := make([]byte, len(raw))
		copy(out, raw)

		return Value{Kind: KindBytes, Bytes: out, Valid: true}, nil
	}

	byteLen := (uint32(bitOffset) + bitCount + 7) / 8
	if uint64(byteOffset)+uint64(byteLen) > uint64(len(record)) {
		return Value{}, errs.ErrBitRangeOutOfBounds
	}
	span := record[byteOffset : byteOffset+byteLen]

	var raw uint64
	if bitOffset == 0 && isWholeWidth(bitCount) {
		// byte-aligned power-of-two widths read directly through the
		// channel's byte-order engine (spec.md §4.3 step 2)
		raw = readAligned(span, bitCount, dt)
	} else {
		if dt.IsBigEndian() {
			span = reversed(span)
		}
		var err error
		raw, err = extractBits(span, bitOffset, bitCount)
		if err != nil {
			return Value{}, err
		}
	}

	switch {
	case dt.IsFloat() && bitCount == 16:
		return Value{Kind: KindFloat, Float: float64(halfToFloat32(uint16(raw))), Valid: true}, nil
	case dt.IsFloat() && bitCount == 32:
		return Value{Kind: KindFloat, Float: float64(math.Float32frombits(uint32(raw))), Valid: true}, nil
	case dt.IsFloat() && bitCount == 64:
		return Value{Kind: KindFloat, Float: math.Float64frombits(raw), Valid: true}, nil
	case dt.IsSigned():
		return Value{Kind: KindSigned, Int: signExtend(raw, bitCount), Valid: true}, nil
	default:
		return Value{Kind: KindUnsigned, Uint: raw, Valid: true}, nil
	}
}

func isWholeWidth(bitCount uint32) bool {
	return bitCount == 8 || bitCount == 16 || bitCount == 32 || bitCount == 64
}

func readAligned(span []byte, bitCount uint32, dt format.DataType) uint64 {
	e := endian.ForDataType(dt.IsBigEndian())
	switch bitCount {
	case 8:
		return uint64(span[0])
	case 16:
		return uint64(e.Uint16(span))
	case 32:
		return uint64(e.Uint32(span))
	default:
		return e.Uint64(span)
	}
}

func trimNulls(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}
