package flexray

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4"
	"github.com/mdf4kit/mdf4/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLoggerRoundTrip(t *testing.T) {
	l := WithName("Chassis_FR")
	require.NoError(t, l.LogChannelA(100, 0, 1_000_000, []byte{0x01, 0x02, 0x03}))
	require.NoError(t, l.LogChannelB(101, 1, 2_000_000, []byte{0x04}))
	require.NoError(t, l.LogTx(102, 2, ChannelAB, 3_000_000, []byte{0x05, 0x06}))
	require.NoError(t, l.LogNullFrame(50, 3, ChannelA, 4_000_000))
	require.NoError(t, l.LogStartup(1, 0, ChannelAB, 5_000_000, []byte{0xFF}))

	assert.Equal(t, uint64(5), l.TotalFrameCount())
	assert.Equal(t, 5, l.UniqueSlotCount())
	assert.Equal(t, uint64(1), l.CountForSlot(100))

	data, err := l.Finalize()
	require.NoError(t, err)

	rd, err := mdf4.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	g, ok := rd.GroupByAcqName(GroupName)
	require.True(t, ok)
	require.Equal(t, 5, g.RecordCount())

	slots, err := g.DecodeChannel("FLEXRAY_Frame.ID")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), slots[0].Uint)
	assert.Equal(t, uint64(1), slots[4].Uint)

	cycles, err := g.DecodeChannel("FLEXRAY_Frame.CycleCount")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cycles[3].Uint)

	channels, err := g.DecodeChannel("FLEXRAY_Frame.Channel")
	require.NoError(t, err)
	assert.Equal(t, uint64(ChannelA), channels[0].Uint)
	assert.Equal(t, uint64(ChannelB), channels[1].Uint)
	assert.Equal(t, uint64(ChannelAB), channels[2].Uint)

	dirs, err := g.DecodeChannel("FLEXRAY_Frame.Direction")
	require.NoError(t, err)
	assert.Equal(t, uint64(bus.DirectionTx), dirs[2].Uint)

	flags, err := g.DecodeChannel("FLEXRAY_Frame.Flags")
	require.NoError(t, err)
	assert.Equal(t, uint64(FlagNullFrame), flags[3].Uint)
	assert.Equal(t, uint64(FlagStartup|FlagSync), flags[4].Uint)

	payload, err := g.DecodeChannel("FLEXRAY_Frame.DataBytes")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload[0].Bytes[:3])
}

func TestRawLoggerValidation(t *testing.T) {
	l := New()
	assert.Error(t, l.Log(0, 0, ChannelA, 0, nil), "slot 0 is reserved")
	assert.Error(t, l.Log(2048, 0, ChannelA, 0, nil))
	assert.Error(t, l.Log(1, 64, ChannelA, 0, nil))
	assert.Error(t, l.Log(1, 0, Channel(0), 0, nil))
	assert.Error(t, l.Log(1, 0, ChannelA, 0, bytes.Repeat([]byte{0}, 255)))
}
