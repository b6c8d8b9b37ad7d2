package graph_test

import (
	"bytes"
	"testing"

	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/graph"
	"github.com/mdf4kit/mdf4/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vp(v decode.Value) *decode.Value { return &v }

func TestOpenRejectsBadMagic(t *testing.T) {
	data := make([]byte, 128)
	copy(data, "NOTMDF  ")

	_, err := graph.Open(bytes.NewReader(data))
	assert.ErrorIs(t, err, errs.ErrMalformedBlock)
}

func TestOpenRejectsTruncatedPreamble(t *testing.T) {
	_, err := graph.Open(bytes.NewReader(make([]byte, 16)))
	assert.Error(t, err)
}

func TestWalkBlockGraph(t *testing.T) {
	backend := writer.NewMemBackend()
	w, err := writer.New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(42))

	cgAddr, err := w.AddChannelGroup(0)
	require.NoError(t, err)
	cnAddr, err := w.AddChannel(cgAddr, 0, writer.ChannelSpec{Name: "Torque", DataType: format.DataTypeSignedLE, BitCount: 16, Unit: "Nm"})
	require.NoError(t, err)
	require.NoError(t, w.SetTimeChannel(cnAddr))

	require.NoError(t, w.StartDataBlockForCG(cgAddr, 0))
	require.NoError(t, w.WriteRecord(cgAddr, []*decode.Value{vp(writer.SignedInteger(-5))}))
	require.NoError(t, w.Finalize())

	g, err := graph.Open(backend)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), g.HD().StartTimeNs)

	dgs, err := g.DataGroups()
	require.NoError(t, err)
	require.Len(t, dgs, 1)

	cgs, err := g.ChannelGroups(dgs[0])
	require.NoError(t, err)
	require.Len(t, cgs, 1)

	cns, err := g.Channels(cgs[0])
	require.NoError(t, err)
	require.Len(t, cns, 1)
	assert.Equal(t, format.ChannelTypeMaster, cns[0].ChannelType)
	assert.Equal(t, format.SyncTypeTime, cns[0].SyncType)

	name, err := g.Text(cns[0].NameAddr)
	require.NoError(t, err)
	assert.Equal(t, "Torque", name)

	// resolving the same address twice must hit the cache, not re-read
	again, err := g.Channel(cgs[0].FirstCNAddr)
	require.NoError(t, err)
	assert.Equal(t, cns[0], again)

	segments, err := g.DataBlocks(dgs[0].DataAddr)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.GreaterOrEqual(t, len(segments[0]), 2)
}

func TestDataBlocksRejectsUnknownTag(t *testing.T) {
	backend := writer.NewMemBackend()
	w, err := writer.New(backend)
	require.NoError(t, err)
	require.NoError(t, w.InitFile(0))

	g, err := graph.Open(backend)
	require.NoError(t, err)

	// point DataBlocks at the HD block: not a data-carrying tag
	_, err = g.DataBlocks(64)
	assert.ErrorIs(t, err, errs.ErrMalformedBlock)
}
