package mdf4_test

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vp(v decode.Value) *decode.Value { return &v }

// Builds a capture with two channel groups: Speed+RPM counters, and a
// Temperature/Pressure/Status group whose Status channel maps raw values
// to text. Reading it back must reproduce every sample.
func TestTwoGroupRoundTrip(t *testing.T) {
	backend := writer.NewMemBackend()
	w, err := writer.New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cg1, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	speed, err := w.AddChannel(cg1, 0, writer.ChannelSpec{Name: "Speed", DataType: format.DataTypeUnsignedLE, BitCount: 32, Unit: "km/h"})
	require.NoError(t, err)
	_, err = w.AddChannel(cg1, speed, writer.ChannelSpec{Name: "RPM", DataType: format.DataTypeUnsignedLE, BitCount: 32, Unit: "1/min"})
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cg1, 0))
	for i := 0; i < 100; i++ {
		require.NoError(t, w.WriteRecord(cg1, []*decode.Value{
			vp(writer.UnsignedInteger(uint64(i))),
			vp(writer.UnsignedInteger(uint64(i * 30))),
		}))
	}
	require.NoError(t, w.FinishDataBlock(cg1))

	cg2, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	temp, err := w.AddChannel(cg2, 0, writer.ChannelSpec{Name: "Temperature", DataType: format.DataTypeSignedLE, BitCount: 32, Unit: "degC"})
	require.NoError(t, err)
	press, err := w.AddChannel(cg2, temp, writer.ChannelSpec{Name: "Pressure", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "bar"})
	require.NoError(t, err)
	status, err := w.AddChannel(cg2, press, writer.ChannelSpec{Name: "Status", DataType: format.DataTypeUnsignedLE, BitCount: 8})
	require.NoError(t, err)
	err = w.AddValueToTextConversion(status, []writer.ValueText{{Value: 0, Text: "OK"}, {Value: 1, Text: "WARN"}}, "UNKNOWN")
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cg2, 0))
	for i := 0; i < 100; i++ {
		require.NoError(t, w.WriteRecord(cg2, []*decode.Value{
			vp(writer.SignedInteger(int64(i - 40))),
			vp(writer.Float(1.0 + float64(i)*0.01)),
			vp(writer.UnsignedInteger(uint64(i % 2))),
		}))
	}
	require.NoError(t, w.Finalize())

	rd, err := mdf4.NewReader(bytes.NewReader(backend.Bytes()))
	require.NoError(t, err)
	groups := rd.Groups()
	require.Len(t, groups, 2)

	g1 := groups[0]
	assert.Equal(t, 100, g1.RecordCount())
	speeds, err := g1.DecodeChannel("Speed")
	require.NoError(t, err)
	for i, v := range speeds {
		assert.Equal(t, uint64(i), v.Uint)
		assert.True(t, v.Valid)
	}

	g2 := groups[1]
	temps, err := g2.DecodeChannel("Temperature")
	require.NoError(t, err)
	assert.Equal(t, int64(-40), temps[0].Int)
	assert.Equal(t, int64(59), temps[99].Int)

	statuses, err := g2.DecodeChannel("Status")
	require.NoError(t, err)
	for i, v := range statuses {
		want := "OK"
		if i%2 == 1 {
			want = "WARN"
		}
		assert.Equal(t, want, v.Str)
		assert.NotEqual(t, "UNKNOWN", v.Str)
	}

	ch, ok := g2.Channel("Pressure")
	require.True(t, ok)
	assert.Equal(t, "bar", ch.Unit)

	_, err = g2.DecodeChannel("NoSuchChannel")
	assert.Error(t, err)
}

func TestReaderRejectsPreV4(t *testing.T) {
	backend := writer.NewMemBackend()
	w, err := writer.New(backend, writer.WithVersionNumber(310))
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	_, err = mdf4.NewReader(bytes.NewReader(backend.Bytes()))
	assert.Error(t, err)
}

func TestDecodeRecordByIndex(t *testing.T) {
	backend := writer.NewMemBackend()
	w, err := writer.New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cg, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	a, err := w.AddChannel(cg, 0, writer.ChannelSpec{Name: "a", DataType: format.DataTypeUnsignedLE, BitCount: 8})
	require.NoError(t, err)
	_, err = w.AddChannel(cg, a, writer.ChannelSpec{Name: "b", DataType: format.DataTypeFloatLE, BitCount: 64})
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cg, 0))
	require.NoError(t, w.WriteRecord(cg, []*decode.Value{
		vp(writer.UnsignedInteger(7)),
		vp(writer.Float(2.5)),
	}))
	require.NoError(t, w.Finalize())

	rd, err := mdf4.NewReader(bytes.NewReader(backend.Bytes()))
	require.NoError(t, err)

	row, err := rd.Groups()[0].DecodeRecord(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), row["a"].Uint)
	assert.InDelta(t, 2.5, row["b"].Float, 0)
}
