package decode

import (
	"testing"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	conversions map[uint64]block.Conversion
	texts       map[uint64]string
}

func (f fakeResolver) Conversion(addr uint64) (block.Conversion, error) {
	if addr == 0 {
		return block.Conversion{}, nil
	}
	return f.conversions[addr], nil
}

func (f fakeResolver) Text(addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}
	return f.texts[addr], nil
}

func TestExtractRawByteAligned(t *testing.T) {
	record := []byte{0x34, 0x12, 0x00, 0x00}
	v, err := ExtractRaw(record, 0, 0, 16, format.DataTypeUnsignedLE)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), v.Uint)
}

func TestExtractRawBitPacked(t *testing.T) {
	// 12 bits starting at bit 4 of byte 0: 0b1111_0000 0b0000_1010 -> low
	// nibble of byte0 is garbage (bit offset 4 skips it), value bits span
	// byte0[4:8] and byte1[0:8].
	record := []byte{0xF0, 0x0A}
	v, err := ExtractRaw(record, 0, 4, 12, format.DataTypeUnsignedLE)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xAF), v.Uint)
}

func TestExtractRawSigned(t *testing.T) {
	record := []byte{0xFF} // -1 as int8
	v, err := ExtractRaw(record, 0, 0, 8, format.DataTypeSignedLE)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v.Int)
}

func TestIsValidAllInvalid(t *testing.T) {
	cg := block.ChannelGroup{DataBytes: 4, InvalBytes: 1}
	cn := block.Channel{Flags: format.ChannelFlagAllInvalid}
	record := make([]byte, 5)

	valid, err := IsValid(record, cg, cn)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsValidInvalidationBit(t *testing.T) {
	cg := block.ChannelGroup{DataBytes: 4, InvalBytes: 1}
	cn := block.Channel{Flags: format.ChannelFlagInvalidBitValid, PosInvalBit: 2}
	record := make([]byte, 5)
	record[4] = 0x04 // bit 2 set -> invalid

	valid, err := IsValid(record, cg, cn)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsValidLenientPastRecordEnd(t *testing.T) {
	// The invalidation rectangle falls past the record's actual length:
	// decode leniently treats the sample as valid instead of failing.
	cg := block.ChannelGroup{DataBytes: 4, InvalBytes: 1}
	cn := block.Channel{Flags: format.ChannelFlagInvalidBitValid, PosInvalBit: 0}
	record := make([]byte, 4) // inval byte missing

	valid, err := IsValid(record, cg, cn)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestInvalidationBitWithValue(t *testing.T) {
	cg := block.ChannelGroup{DataBytes: 4, InvalBytes: 1}
	cn := block.Channel{
		DataType:    format.DataTypeUnsignedLE,
		ByteOffset:  0,
		BitCount:    16,
		Flags:       format.ChannelFlagInvalidBitValid,
		PosInvalBit: 0,
	}

	record := []byte{0x12, 0x34, 0x00, 0x00, 0x01}
	v, err := Decode(record, cg, cn, fakeResolver{})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, uint64(0x3412), v.Uint)

	record[4] = 0x00
	v, err = Decode(record, cg, cn, fakeResolver{})
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestExtractRawBigEndian(t *testing.T) {
	record := []byte{0x12, 0x34}
	v, err := ExtractRaw(record, 0, 0, 16, format.DataTypeUnsignedBE)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), v.Uint)
}

func TestApplyConversionLinear(t *testing.T) {
	cc := block.Conversion{Type: format.ConversionLinear, Val: []float64{10, 0.5}}
	raw := Value{Kind: KindUnsigned, Uint: 20, Valid: true}

	v, err := ApplyConversion(raw, cc, fakeResolver{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v.Float)
}

func TestApplyConversionValueToText(t *testing.T) {
	res := fakeResolver{texts: map[uint64]string{100: "OFF", 200: "ON"}}
	cc := block.Conversion{
		Type: format.ConversionValueToText,
		Val:  []float64{0, 1},
		Refs: []uint64{100, 200},
	}
	raw := Value{Kind: KindUnsigned, Uint: 1, Valid: true}

	v, err := ApplyConversion(raw, cc, res)
	require.NoError(t, err)
	assert.Equal(t, "ON", v.Str)
}

func TestApplyConversionTextToValue(t *testing.T) {
	res := fakeResolver{texts: map[uint64]string{100: "LOW", 200: "HIGH"}}
	cc := block.Conversion{
		Type: format.ConversionTextToValue,
		Refs: []uint64{100, 200},
		Val:  []float64{1, 2, -1}, // trailing entry is the default
	}

	v, err := ApplyConversion(Value{Kind: KindString, Str: "HIGH", Valid: true}, cc, res)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Float)

	v, err = ApplyConversion(Value{Kind: KindString, Str: "OTHER", Valid: true}, cc, res)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v.Float)

	// non-string input passes through: text-to-value requires string input
	v, err = ApplyConversion(Value{Kind: KindUnsigned, Uint: 5, Valid: true}, cc, res)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v.Uint)
}

func TestApplyConversionTextToValueNoDefault(t *testing.T) {
	res := fakeResolver{texts: map[uint64]string{100: "ON"}}
	cc := block.Conversion{
		Type: format.ConversionTextToValue,
		Refs: []uint64{100},
		Val:  []float64{1},
	}

	v, err := ApplyConversion(Value{Kind: KindString, Str: "OFF", Valid: true}, cc, res)
	require.NoError(t, err)
	assert.Equal(t, "OFF", v.Str)
}

func TestDecodeFullPipeline(t *testing.T) {
	cg := block.ChannelGroup{DataBytes: 2, InvalBytes: 0}
	cn := block.Channel{
		DataType:       format.DataTypeUnsignedLE,
		ByteOffset:     0,
		BitCount:       16,
		ConversionAddr: 64,
	}
	res := fakeResolver{conversions: map[uint64]block.Conversion{
		64: {Type: format.ConversionLinear, Val: []float64{0, 0.1}},
	}}
	record := []byte{0x64, 0x00} // 100 raw -> 10.0 physical

	v, err := Decode(record, cg, cn, res)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Float)
	assert.True(t, v.Valid)
}
