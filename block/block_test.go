package block

import (
	"testing"

	"github.com/mdf4kit/mdf4/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign8(t *testing.T) {
	assert.Equal(t, 0, Align8(0))
	assert.Equal(t, 8, Align8(1))
	assert.Equal(t, 8, Align8(8))
	assert.Equal(t, 16, Align8(9))
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, 24)
	PutHeader(buf, "##HD", 24, 3)

	h, err := ParseHeader(buf, "##HD")
	require.NoError(t, err)
	assert.Equal(t, "##HD", h.Tag())
	assert.Equal(t, uint64(24), h.Length)
	assert.Equal(t, uint64(3), h.LinkCount)
}

func TestHeaderRejectsWrongTag(t *testing.T) {
	buf := make([]byte, 24)
	PutHeader(buf, "##HD", 24, 0)

	_, err := ParseHeader(buf, "##DG")
	assert.Error(t, err)
}

func TestIdentificationRoundTrip(t *testing.T) {
	id := NewIdentification("mdf4kit", 410)
	bytes := id.ToBytes()
	assert.Len(t, bytes, IdentificationSize)

	got, err := ParseIdentification(bytes)
	require.NoError(t, err)
	assert.Equal(t, uint16(410), got.VersionNumber)
	assert.Equal(t, "4.10    ", string(got.FormatID[:]))
}

func TestTextBlockRoundTrip(t *testing.T) {
	tx := NewText("Engine_Speed")
	bytes := tx.ToBytes()
	assert.Equal(t, 0, len(bytes)%8)

	got, err := ParseTextBlock(bytes)
	require.NoError(t, err)
	assert.Equal(t, "Engine_Speed", got.Text)
	assert.Equal(t, "##TX", got.Tag)
}

func TestChannelRoundTrip(t *testing.T) {
	cn := Channel{
		NextCNAddr:     0,
		NameAddr:       128,
		ConversionAddr: 256,
		ChannelType:    format.ChannelTypeFixedLength,
		DataType:       format.DataTypeUnsignedLE,
		ByteOffset:     4,
		BitCount:       16,
		Flags:          format.ChannelFlagInvalidBitValid,
		PosInvalBit:    3,
	}

	bytes := cn.ToBytes()
	got, err := ParseCN(bytes)
	require.NoError(t, err)
	assert.Equal(t, cn.NameAddr, got.NameAddr)
	assert.Equal(t, cn.ByteOffset, got.ByteOffset)
	assert.Equal(t, cn.BitCount, got.BitCount)
	assert.True(t, got.Flags.Has(format.ChannelFlagInvalidBitValid))
	assert.Equal(t, uint32(2), got.ByteLen())
}

func TestConversionLinearRoundTrip(t *testing.T) {
	cc := Conversion{
		Type: format.ConversionLinear,
		Val:  []float64{0.0, 0.1},
	}
	bytes := cc.ToBytes()

	got, err := ParseCC(bytes)
	require.NoError(t, err)
	assert.Equal(t, format.ConversionLinear, got.Type)
	require.Len(t, got.Val, 2)
	assert.Equal(t, 0.1, got.Val[1])
}

func TestDataListEqualLengthRoundTrip(t *testing.T) {
	dl := DataList{
		DataAddrs:   []uint64{1000, 2000, 3000},
		EqualLength: true,
		CommonLength: 512,
	}
	bytes := dl.ToBytes()

	got, err := ParseDL(bytes)
	require.NoError(t, err)
	assert.True(t, got.EqualLength)
	assert.Equal(t, uint64(512), got.CommonLength)
	assert.Equal(t, dl.DataAddrs, got.DataAddrs)
}

func TestSignalDataEntries(t *testing.T) {
	var sd SignalData
	off1 := sd.AppendEntry([]byte("hello"))
	off2 := sd.AppendEntry([]byte("world!!"))

	got1, next, err := sd.EntryAt(off1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got1)
	assert.Equal(t, off2, next)

	got2, _, err := sd.EntryAt(off2)
	require.NoError(t, err)
	assert.Equal(t, []byte("world!!"), got2)
}
