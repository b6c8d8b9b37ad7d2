package lin

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4"
	"github.com/mdf4kit/mdf4/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedIDParity(t *testing.T) {
	// Worked examples from the LIN 2.x specification parity formula.
	tests := []struct {
		id  uint8
		pid uint8
	}{
		{0x00, 0x80},
		{0x01, 0xC1},
		{0x02, 0x42},
		{0x03, 0x03},
		{0x20, 0x20},
		{0x3C, 0x3C},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.pid, ProtectedID(tc.id), "id 0x%02X", tc.id)
	}
}

func TestChecksums(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}

	classic := ClassicChecksum(data)
	assert.Equal(t, ^uint8(0x0A), classic)

	// carry wrap: 0xFF + 0x02 = 0x101 -> 0x101 - 0xFF = 0x02
	assert.Equal(t, ^uint8(0x02), ClassicChecksum([]byte{0xFF, 0x02}))

	pid := ProtectedID(0x20)
	enhanced := EnhancedChecksum(pid, data)
	assert.NotEqual(t, classic, enhanced)
}

func TestNewFrameComputesFields(t *testing.T) {
	f := NewFrame(0x20, []byte{0x11, 0x22}, ChecksumEnhanced)
	assert.Equal(t, uint8(0x20), f.ID)
	assert.Equal(t, ProtectedID(0x20), f.ProtectedID)
	assert.Equal(t, EnhancedChecksum(f.ProtectedID, f.Data), f.Checksum)
	assert.Equal(t, ChecksumEnhanced, f.ChecksumType)
}

func TestRawLoggerRoundTrip(t *testing.T) {
	l := WithName("Body_LIN")
	require.NoError(t, l.Log(0x20, 1_000_000, []byte{0x01, 0x02, 0x03, 0x04}))
	require.NoError(t, l.LogClassic(0x21, 2_000_000, []byte{0x05, 0x06}))
	require.NoError(t, l.LogTx(0x22, 3_000_000, []byte{0x07}))

	assert.Equal(t, uint64(3), l.TotalFrameCount())
	assert.Equal(t, 3, l.UniqueIDCount())
	assert.Equal(t, uint64(1), l.CountForID(0x20))

	data, err := l.Finalize()
	require.NoError(t, err)

	rd, err := mdf4.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	g, ok := rd.GroupByAcqName(GroupName)
	require.True(t, ok)
	require.Equal(t, 3, g.RecordCount())

	ids, err := g.DecodeChannel("LIN_Frame.ID")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x20), ids[0].Uint)

	pids, err := g.DecodeChannel("LIN_Frame.ProtectedID")
	require.NoError(t, err)
	assert.Equal(t, uint64(ProtectedID(0x20)), pids[0].Uint)

	ctypes, err := g.DecodeChannel("LIN_Frame.ChecksumType")
	require.NoError(t, err)
	assert.Equal(t, uint64(ChecksumEnhanced), ctypes[0].Uint)
	assert.Equal(t, uint64(ChecksumClassic), ctypes[1].Uint)

	dirs, err := g.DecodeChannel("LIN_Frame.Direction")
	require.NoError(t, err)
	assert.Equal(t, uint64(bus.DirectionRx), dirs[0].Uint)
	assert.Equal(t, uint64(bus.DirectionTx), dirs[2].Uint)

	payload, err := g.DecodeChannel("LIN_Frame.DataBytes")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, payload[0].Bytes[:4])
}

func TestRawLoggerRejectsBadFrames(t *testing.T) {
	l := New()
	assert.Error(t, l.Log(0x40, 0, nil))
	assert.Error(t, l.Log(0x01, 0, bytes.Repeat([]byte{0}, 9)))
}
