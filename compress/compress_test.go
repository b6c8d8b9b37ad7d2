package compress

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, c Codec, data []byte) {
	t.Helper()
	compressed, err := c.Compress(data)
	require.NoError(t, err)

	got, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCodecsRoundTripBothPurposes(t *testing.T) {
	// a small channel-range payload and a larger export-style blob
	rangePayload := []byte{0x64, 0x00, 0x12, 0x34}
	exportBlob := bytes.Repeat([]byte("CAN frame payload bytes "), 256)

	types := []format.CompressionType{
		format.CompressionNone,
		format.CompressionS2,
		format.CompressionLZ4,
		format.CompressionZstd,
	}
	for _, ct := range types {
		rc, err := ForRange(ct)
		require.NoError(t, err, ct.String())
		roundTrip(t, rc, rangePayload)
		roundTrip(t, rc, exportBlob)

		ec, err := ForExport(ct)
		require.NoError(t, err, ct.String())
		roundTrip(t, ec, rangePayload)
		roundTrip(t, ec, exportBlob)
	}
}

func TestExportAndRangeDecodeEachOther(t *testing.T) {
	// both profiles of one type emit the same wire format
	blob := bytes.Repeat([]byte("interchange "), 64)

	for _, ct := range []format.CompressionType{format.CompressionS2, format.CompressionLZ4, format.CompressionZstd} {
		rc, err := ForRange(ct)
		require.NoError(t, err)
		ec, err := ForExport(ct)
		require.NoError(t, err)

		compressed, err := ec.Compress(blob)
		require.NoError(t, err)
		got, err := rc.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, blob, got, ct.String())
	}
}

func TestForPurposeRejectsUnknown(t *testing.T) {
	_, err := ForPurpose(format.CompressionType(250), PurposeExport)
	assert.Error(t, err)
}

func TestNoOpPassesThrough(t *testing.T) {
	data := []byte{1, 2, 3}
	c, err := ForRange(format.CompressionNone)
	require.NoError(t, err)

	out, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
