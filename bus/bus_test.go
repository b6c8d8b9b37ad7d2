package bus

import (
	"testing"

	"github.com/mdf4kit/mdf4/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCounting(t *testing.T) {
	s := NewStats()
	s.Record(0x100)
	s.Record(0x100)
	s.Record(0x200)

	assert.Equal(t, uint64(3), s.TotalFrameCount())
	assert.Equal(t, uint64(2), s.CountForID(0x100))
	assert.Equal(t, uint64(0), s.CountForID(0x300))
	assert.Equal(t, 2, s.UniqueIDCount())
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "Rx", DirectionRx.String())
	assert.Equal(t, "Tx", DirectionTx.String())
}

func TestCompressRoundTripsThroughCodec(t *testing.T) {
	raw := []byte("finalized mdf4 bytes finalized mdf4 bytes finalized mdf4 bytes")

	out, err := Compress(raw, format.CompressionS2)
	require.NoError(t, err)
	assert.NotEqual(t, raw, out)

	same, err := Compress(raw, format.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, raw, same)
}
