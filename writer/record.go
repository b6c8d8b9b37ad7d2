package writer

import (
	"math"

	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/endian"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
)

// putBits is the inverse of decode's extractBits: it scatters the low
// bitCount bits of v into span starting at bitOffset, LSB-first, clearing
// and overwriting only the bits it owns.
func putBits(span []byte, bitOffset uint8, bitCount uint32, v uint64) {
	bit := int(bitOffset)
	var written uint32
	for written < bitCount {
		byteIdx := bit / 8
		bitInByte := uint(bit % 8)
		take := 8 - bitInByte
		if uint32(take) > bitCount-written {
			take = uint(bitCount - written)
		}

		mask := byte((1 << take) - 1)
		chunk := byte(v>>written) & mask
		span[byteIdx] = (span[byteIdx] &^ (mask << bitInByte)) | (chunk << bitInByte)

		written += uint32(take)
		bit += int(take)
	}
}

func maskBits(bitCount uint32) uint64 {
	if bitCount >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << bitCount) - 1
}

// float32ToHalf narrows a float32 to an IEEE-754 binary16, the inverse of
// decode's halfToFloat32.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	frac := bits & 0x7fffff

	switch {
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint(14 - exp)
		return sign | uint16(frac>>shift)
	case exp >= 0x1f:
		if (bits&0x7fffffff) > 0x7f800000 {
			return sign | 0x7e00 // NaN
		}
		return sign | 0x7c00 // Inf
	default:
		return sign | uint16(exp)<<10 | uint16(frac>>13)
	}
}

func reverseInto(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

// PutRaw writes a single channel field's raw (unconverted) bits into
// record, the logical inverse of decode.ExtractRaw (spec.md §4.4 "Record
// encoding").
func PutRaw(record []byte, byteOffset uint32, bitOffset uint8, bitCount uint32, dt format.DataType, v decode.Value) error {
	if dt.IsString() || dt == format.DataTypeByteArray || dt == format.DataTypeMimeSample || dt == format.DataTypeMimeStream {
		byteLen := bitCount / 8
		if uint64(byteOffset)+uint64(byteLen) > uint64(len(record)) {
			return errs.ErrBitRangeOutOfBounds
		}
		dst := record[byteOffset : byteOffset+byteLen]
		for i := range dst {
			dst[i] = 0
		}

		switch v.Kind {
		case decode.KindString:
			copy(dst, v.Str)
		case decode.KindBytes:
			copy(dst, v.Bytes)
		}

		return nil
	}

	byteLen := (uint32(bitOffset) + bitCount + 7) / 8
	if uint64(byteOffset)+uint64(byteLen) > uint64(len(record)) {
		return errs.ErrBitRangeOutOfBounds
	}
	dst := record[byteOffset : byteOffset+byteLen]

	var raw uint64
	switch {
	case dt.IsFloat() && bitCount == 16:
		raw = uint64(float32ToHalf(float32(v.AsFloat64())))
	case dt.IsFloat() && bitCount == 32:
		raw = uint64(math.Float32bits(float32(v.AsFloat64())))
	case dt.IsFloat() && bitCount == 64:
		raw = math.Float64bits(v.AsFloat64())
	case dt.IsSigned():
		raw = uint64(v.Int) & maskBits(bitCount)
	default:
		if v.Kind == decode.KindSigned {
			raw = uint64(v.Int) & maskBits(bitCount)
		} else {
			raw = v.Uint & maskBits(bitCount)
		}
	}

	if bitOffset == 0 && wholeWidth(bitCount) {
		putAligned(dst, bitCount, dt, raw)
		return nil
	}

	if dt.IsBigEndian() {
		work := make([]byte, byteLen)
		putBits(work, bitOffset, bitCount, raw)
		reverseInto(dst, work)
		return nil
	}

	putBits(dst, bitOffset, bitCount, raw)

	return nil
}

func wholeWidth(bitCount uint32) bool {
	return bitCount == 8 || bitCount == 16 || bitCount == 32 || bitCount == 64
}

func putAligned(dst []byte, bitCount uint32, dt format.DataType, raw uint64) {
	e := endian.ForDataType(dt.IsBigEndian())
	switch bitCount {
	case 8:
		dst[0] = byte(raw)
	case 16:
		e.PutUint16(dst, uint16(raw))
	case 32:
		e.PutUint32(dst, uint32(raw))
	default:
		e.PutUint64(dst, raw)
	}
}
