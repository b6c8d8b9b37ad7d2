package writer

import (
	"testing"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vp(v decode.Value) *decode.Value { return &v }

// readSortedRecords re-opens the backend's bytes and splits the first data
// group's committed record stream by its fixed record length.
func readSortedRecords(t *testing.T, backend *MemBackend) (block.ChannelGroup, []block.Channel, [][]byte, *graph.Graph) {
	t.Helper()

	g, err := graph.Open(backend)
	require.NoError(t, err)

	dgs, err := g.DataGroups()
	require.NoError(t, err)
	require.NotEmpty(t, dgs)

	cgs, err := g.ChannelGroups(dgs[0])
	require.NoError(t, err)
	require.Len(t, cgs, 1)
	cg := cgs[0]

	cns, err := g.Channels(cg)
	require.NoError(t, err)

	segments, err := g.DataBlocks(dgs[0].DataAddr)
	require.NoError(t, err)
	var stream []byte
	for _, seg := range segments {
		stream = append(stream, seg...)
	}

	recLen := int(cg.RecordLen())
	n := len(stream) / recLen
	if c := int(cg.CycleCount); c < n {
		n = c
	}
	records := make([][]byte, n)
	for i := range records {
		records[i] = stream[i*recLen : (i+1)*recLen]
	}

	return cg, cns, records, g
}

func TestInitFileLayout(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend, WithProgramID("testprog"))
	require.NoError(t, err)
	require.NoError(t, w.InitFile(1_700_000_000_000_000_000))

	g, err := graph.Open(backend)
	require.NoError(t, err)

	id := g.Identification()
	assert.Equal(t, uint16(410), id.VersionNumber)
	assert.Equal(t, "4.10    ", string(id.FormatID[:]))

	hd := g.HD()
	assert.Equal(t, uint64(1_700_000_000_000_000_000), hd.StartTimeNs)
	assert.NotZero(t, hd.FirstFHAddr)

	fh, err := g.FileHistory(hd.FirstFHAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000_000_000_000), fh.TimeNs)
	assert.True(t, fh.IsLocal())
}

func TestWriteReadRoundTrip(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	speedAddr, err := w.AddChannel(cgAddr, 0, ChannelSpec{Name: "Speed", DataType: format.DataTypeUnsignedLE, BitCount: 32, Unit: "km/h"})
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, speedAddr, ChannelSpec{Name: "Pressure", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "bar"})
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	for i := 0; i < 10; i++ {
		err := w.WriteRecord(cgAddr, []*decode.Value{
			vp(UnsignedInteger(uint64(i))),
			vp(Float(float64(i) * 1.5)),
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Finalize())

	cg, cns, records, g := readSortedRecords(t, backend)
	assert.Equal(t, uint64(10), cg.CycleCount)
	require.Len(t, cns, 2)
	require.Len(t, records, 10)

	name, err := g.Text(cns[0].NameAddr)
	require.NoError(t, err)
	assert.Equal(t, "Speed", name)
	unit, err := g.Text(cns[1].UnitAddr)
	require.NoError(t, err)
	assert.Equal(t, "bar", unit)

	for i, record := range records {
		speed, err := decode.Decode(record, cg, cns[0], g)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), speed.Uint)
		assert.True(t, speed.Valid)

		pressure, err := decode.Decode(record, cg, cns[1], g)
		require.NoError(t, err)
		assert.InDelta(t, float64(i)*1.5, pressure.Float, 0)
	}
}

func TestWriteRecordMisuse(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, 0, ChannelSpec{Name: "v", DataType: format.DataTypeUnsignedLE, BitCount: 8})
	require.NoError(t, err)

	err = w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(1))})
	assert.ErrorIs(t, err, errs.ErrNoDataBlockOpen)

	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	err = w.WriteRecord(cgAddr, nil)
	assert.ErrorIs(t, err, errs.ErrRecordCountMismatch)

	require.NoError(t, w.Finalize())
	err = w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(1))})
	assert.ErrorIs(t, err, errs.ErrWriterClosed)
}

func TestInvalidationBit(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, 0, ChannelSpec{Name: "Temp", DataType: format.DataTypeUnsignedLE, BitCount: 16, Invalidatable: true})
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(0x3412))}))
	require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{nil}))
	require.NoError(t, w.Finalize())

	cg, cns, records, g := readSortedRecords(t, backend)
	assert.Equal(t, uint32(2), cg.DataBytes)
	assert.Equal(t, uint32(1), cg.InvalBytes)
	require.Len(t, records, 2)

	v0, err := decode.Decode(records[0], cg, cns[0], g)
	require.NoError(t, err)
	assert.True(t, v0.Valid)
	assert.Equal(t, uint64(0x3412), v0.Uint)

	v1, err := decode.Decode(records[1], cg, cns[0], g)
	require.NoError(t, err)
	assert.False(t, v1.Valid)
}

func TestValueToTextConversion(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	cnAddr, err := w.AddChannel(cgAddr, 0, ChannelSpec{Name: "Status", DataType: format.DataTypeUnsignedLE, BitCount: 8})
	require.NoError(t, err)
	err = w.AddValueToTextConversion(cnAddr, []ValueText{{Value: 0, Text: "OK"}, {Value: 1, Text: "WARN"}}, "UNKNOWN")
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	for _, raw := range []uint64{0, 1, 7} {
		require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(raw))}))
	}
	require.NoError(t, w.Finalize())

	cg, cns, records, g := readSortedRecords(t, backend)
	want := []string{"OK", "WARN", "UNKNOWN"}
	for i, record := range records {
		v, err := decode.Decode(record, cg, cns[0], g)
		require.NoError(t, err)
		assert.Equal(t, want[i], v.Str)
	}
}

func TestFlushPolicyEveryNRecords(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend, WithFlushPolicy(FlushEveryNRecords(100)))
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, 0, ChannelSpec{Name: "v", DataType: format.DataTypeUnsignedLE, BitCount: 32})
	require.NoError(t, err)
	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))

	// 250 records: auto-flush commits the DT length at 100 and 200. A
	// reader before finalization sees exactly the committed prefix.
	for i := 0; i < 250; i++ {
		require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(uint64(i)))}))
	}

	stats := w.FlushStats()
	assert.Equal(t, uint64(2), stats.FlushCount)
	assert.Equal(t, uint64(50), stats.RecordsSinceFlush)
	assert.Equal(t, uint64(250), stats.TotalRecords)

	_, _, records, _ := readSortedRecords(t, backend)
	assert.Len(t, records, 200)
	assert.Zero(t, len(records)%100)

	require.NoError(t, w.Finalize())
	_, _, records, _ = readSortedRecords(t, backend)
	assert.Len(t, records, 250)
}

func TestChunkRotationBuildsDataList(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend, WithFlushPolicy(FlushEveryNRecords(4)), WithChunkSize(16))
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, 0, ChannelSpec{Name: "v", DataType: format.DataTypeUnsignedLE, BitCount: 64})
	require.NoError(t, err)
	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))

	for i := 0; i < 12; i++ {
		require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(uint64(i)))}))
	}
	require.NoError(t, w.Finalize())

	g, err := graph.Open(backend)
	require.NoError(t, err)
	dgs, err := g.DataGroups()
	require.NoError(t, err)

	dl, err := g.DataList(dgs[0].DataAddr)
	require.NoError(t, err, "rotated data group should link a DL chain")
	assert.Greater(t, len(dl.DataAddrs), 1)

	cg, cns, records, _ := readSortedRecords(t, backend)
	require.Len(t, records, 12)
	for i, record := range records {
		v, err := decode.Decode(record, cg, cns[0], g)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v.Uint)
	}
}

func TestAppendToFlushedFile(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	_, err = w.AddChannel(cgAddr, 0, ChannelSpec{Name: "v", DataType: format.DataTypeUnsignedLE, BitCount: 64})
	require.NoError(t, err)
	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(UnsignedInteger(uint64(i)))}))
	}
	require.NoError(t, w.Flush())

	// Re-open the same backend for append: the writer positions at the
	// tail DT and extends it in place.
	w2, err := Open(backend)
	require.NoError(t, err)
	groups := w2.dgs[0].groups
	require.Len(t, groups, 1)
	cg2 := groups[0].addr
	for i := 5; i < 10; i++ {
		require.NoError(t, w2.WriteRecord(cg2, []*decode.Value{vp(UnsignedInteger(uint64(i)))}))
	}
	require.NoError(t, w2.Finalize())

	cg, cns, records, g := readSortedRecords(t, backend)
	require.Len(t, records, 10)
	for i, record := range records {
		v, err := decode.Decode(record, cg, cns[0], g)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v.Uint)
	}
}

func TestMultiGroupRecordIDs(t *testing.T) {
	backend := NewMemBackend()
	w, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	cgA, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	dgAddr, err := w.DataGroupAddr(cgA)
	require.NoError(t, err)
	cgB, err := w.AddChannelGroup(dgAddr)
	require.NoError(t, err)

	_, err = w.AddChannel(cgA, 0, ChannelSpec{Name: "a", DataType: format.DataTypeUnsignedLE, BitCount: 16})
	require.NoError(t, err)
	_, err = w.AddChannel(cgB, 0, ChannelSpec{Name: "b", DataType: format.DataTypeUnsignedLE, BitCount: 32})
	require.NoError(t, err)

	require.NoError(t, w.StartDataBlockForCG(cgA, 1))
	require.NoError(t, w.StartDataBlockForCG(cgB, 2))
	require.NoError(t, w.WriteRecord(cgA, []*decode.Value{vp(UnsignedInteger(0xAAAA))}))
	require.NoError(t, w.WriteRecord(cgB, []*decode.Value{vp(UnsignedInteger(0xBBBBBBBB))}))
	require.NoError(t, w.WriteRecord(cgA, []*decode.Value{vp(UnsignedInteger(0xCCCC))}))
	require.NoError(t, w.Finalize())

	g, err := graph.Open(backend)
	require.NoError(t, err)
	dgs, err := g.DataGroups()
	require.NoError(t, err)
	require.Len(t, dgs, 1)
	assert.Equal(t, uint8(1), dgs[0].RecordIDLen)

	cgs, err := g.ChannelGroups(dgs[0])
	require.NoError(t, err)
	require.Len(t, cgs, 2)
	assert.Equal(t, uint64(1), cgs[0].RecordID)
	assert.Equal(t, uint64(2), cgs[1].RecordID)
	assert.Equal(t, uint64(2), cgs[0].CycleCount)
	assert.Equal(t, uint64(1), cgs[1].CycleCount)
}
