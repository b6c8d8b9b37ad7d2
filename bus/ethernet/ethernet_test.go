package ethernet

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4"
	"github.com/mdf4kit/mdf4/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFrame(dst, src MacAddress, etherType uint16, payload []byte) []byte {
	raw := make([]byte, 0, HeaderSize+len(payload))
	raw = append(raw, dst[:]...)
	raw = append(raw, src[:]...)
	raw = append(raw, byte(etherType>>8), byte(etherType))

	return append(raw, payload...)
}

func TestParseFrame(t *testing.T) {
	src := MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	f, err := ParseFrame(rawFrame(Broadcast(), src, EtherTypeIPv4, payload))
	require.NoError(t, err)
	assert.Equal(t, Broadcast(), f.Dst)
	assert.Equal(t, src, f.Src)
	assert.Equal(t, EtherTypeIPv4, f.EtherType)
	assert.Equal(t, payload, f.Payload)

	_, err = ParseFrame([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestRawLoggerRoundTrip(t *testing.T) {
	src := MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dst := MacAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	l := WithName("eth0")
	require.NoError(t, l.Log(1_000_000, rawFrame(dst, src, EtherTypeIPv4, []byte{0x01, 0x02, 0x03})))
	require.NoError(t, l.LogTx(2_000_000, rawFrame(Broadcast(), src, EtherTypeARP, []byte{0x04})))

	assert.Equal(t, uint64(2), l.TotalFrameCount())
	assert.Equal(t, uint64(1), l.CountForEtherType(EtherTypeIPv4))
	assert.Equal(t, 2, l.UniqueEtherTypeCount())

	data, err := l.Finalize()
	require.NoError(t, err)

	rd, err := mdf4.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	g, ok := rd.GroupByAcqName(GroupName)
	require.True(t, ok)
	require.Equal(t, 2, g.RecordCount())

	// EtherType is stored big-endian, as on the wire.
	ets, err := g.DecodeChannel("ETH_Frame.EtherType")
	require.NoError(t, err)
	assert.Equal(t, uint64(EtherTypeIPv4), ets[0].Uint)
	assert.Equal(t, uint64(EtherTypeARP), ets[1].Uint)

	dsts, err := g.DecodeChannel("ETH_Frame.Destination")
	require.NoError(t, err)
	assert.Equal(t, dst[:], dsts[0].Bytes)
	assert.Equal(t, Broadcast(), MacAddress(dsts[1].Bytes))

	srcs, err := g.DecodeChannel("ETH_Frame.Source")
	require.NoError(t, err)
	assert.Equal(t, src[:], srcs[0].Bytes)

	dirs, err := g.DecodeChannel("ETH_Frame.Direction")
	require.NoError(t, err)
	assert.Equal(t, uint64(bus.DirectionRx), dirs[0].Uint)
	assert.Equal(t, uint64(bus.DirectionTx), dirs[1].Uint)

	lengths, err := g.DecodeChannel("ETH_Frame.FrameLength")
	require.NoError(t, err)
	assert.Equal(t, uint64(HeaderSize+3), lengths[0].Uint)

	payload, err := g.DecodeChannel("ETH_Frame.DataBytes")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload[0].Bytes)
}

func TestJumboFlag(t *testing.T) {
	src := MacAddress{1, 2, 3, 4, 5, 6}
	l := New()
	require.NoError(t, l.Log(0, rawFrame(Broadcast(), src, EtherTypeIPv4, bytes.Repeat([]byte{0}, 1600))))

	data, err := l.Finalize()
	require.NoError(t, err)

	rd, err := mdf4.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	g := rd.Groups()[0]
	flags, err := g.DecodeChannel("ETH_Frame.Flags")
	require.NoError(t, err)
	assert.Equal(t, uint64(FlagJumbo), flags[0].Uint&uint64(FlagJumbo))
}
