// Package mdf4 implements an ASAM MDF4 (Measurement Data Format v4)
// read/write engine for automotive measurement capture and post-processing.
//
// The on-disk format is a graph of typed, link-addressed blocks rooted at a
// fixed header; this package's subpackages mirror that structure:
//
//   - block: the primitive block codec and every block type (ID, HD, DG,
//     CG, CN, CC, TX/MD, SI, DT, DL, SD, HL, FH)
//   - graph: the lazy link-graph loader
//   - decode: bit-exact channel decoding, validity, conversion application
//   - convert: conversion resolver + byte-range index for partial reads
//   - writer: the forward-only streaming emitter with flush policies
//   - mergecut: time-windowed extraction and file concatenation
//   - bus/...: CAN/LIN/FlexRay/Ethernet frame logging codecs
//
// # Basic Usage
//
// Writing a file:
//
//	backend, _ := writer.CreateFileBackend("capture.mf4")
//	w, _ := writer.New(backend)
//	w.InitFile(uint64(time.Now().UnixNano()))
//	cg, _ := w.AddChannelGroup(0)
//	cn, _ := w.AddChannel(cg, 0, writer.ChannelSpec{Name: "Speed", DataType: format.DataTypeUnsignedLE, BitCount: 32})
//	w.StartDataBlockForCG(cg, 0)
//	w.WriteRecord(cg, []*decode.Value{ptr(writer.UnsignedInteger(42))})
//	w.Finalize()
//
// Reading it back:
//
//	r, _ := mdf4.ReadFile("capture.mf4")
//	values, _ := r.Groups()[0].DecodeChannel("Speed")
//
// This package holds the read facade and a few construction conveniences;
// for fine-grained control use the subpackages directly.
package mdf4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/convert"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/graph"
	"github.com/mdf4kit/mdf4/writer"
)

// MinVersion is the lowest identification version number this engine
// accepts; MDF versions below 4.00 are out of scope (spec.md §1 Non-goals).
const MinVersion = 400

// Channel pairs a CN block with its resolved name and unit texts.
type Channel struct {
	Name  string
	Unit  string
	Block block.Channel
}

// Group is one channel group together with its owning data group, resolved
// channel list, and the record payloads belonging to it. Records are
// stored with the record-id prefix already stripped, so each entry is
// exactly data_bytes + inval_bytes long.
type Group struct {
	DataGroup    block.DataGroup
	ChannelGroup block.ChannelGroup
	AcqName      string
	Channels     []Channel

	records  [][]byte
	resolver decode.Resolver
	decoder  *decode.GroupDecoder
}

// SetLog installs the callback that receives the one-line notice when an
// undecodable channel is skipped during DecodeRecord (spec.md §7,
// "logged once per channel"). The default discards them.
func (g *Group) SetLog(logf decode.LogFunc) {
	g.decoder = decode.NewGroupDecoder(logf)
}

// RecordCount is the number of records read for this group.
func (g *Group) RecordCount() int { return len(g.records) }

// Records returns the group's raw record payloads in capture order. The
// caller must not mutate them.
func (g *Group) Records() [][]byte { return g.records }

// Resolver exposes the group's materialized conversion resolver, which
// serves every CC/TX block its channels reference from memory.
func (g *Group) Resolver() decode.Resolver { return g.resolver }

// Channel finds a channel by name.
func (g *Group) Channel(name string) (Channel, bool) {
	for _, ch := range g.Channels {
		if ch.Name == name {
			return ch, true
		}
	}

	return Channel{}, false
}

// MasterChannel returns the group's master (independent-axis) channel, or
// false when the group has none.
func (g *Group) MasterChannel() (Channel, bool) {
	for _, ch := range g.Channels {
		if ch.Block.ChannelType == format.ChannelTypeMaster ||
			ch.Block.ChannelType == format.ChannelTypeVirtualMaster {
			return ch, true
		}
	}

	return Channel{}, false
}

// DecodeChannel decodes every record's sample for the named channel,
// applying validity and conversion rules (spec.md §4.3).
func (g *Group) DecodeChannel(name string) ([]decode.Value, error) {
	ch, ok := g.Channel(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrChannelNotFound, name)
	}

	out := make([]decode.Value, len(g.records))
	for i, record := range g.records {
		v, err := decode.Decode(record, g.ChannelGroup, ch.Block, g.resolver)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

// DecodeRecord decodes every channel of record i into a name-keyed map.
// Channels the decoder cannot handle are skipped rather than failing the
// record (spec.md §7 "Semantic" policy).
func (g *Group) DecodeRecord(i int) (map[string]decode.Value, error) {
	if i < 0 || i >= len(g.records) {
		return nil, errs.ErrInvalidRecord
	}
	blocks := make([]block.Channel, len(g.Channels))
	for j, ch := range g.Channels {
		blocks[j] = ch.Block
	}

	return g.decoder.DecodeRecord(g.records[i], g.ChannelGroup, blocks, g.resolver)
}

// Reader is a decoded view over one MDF4 file: the identification preamble,
// the root header, and every channel group with its records split out of
// the data-block stream. Construction walks the block graph once; decoding
// individual samples afterwards touches only memory.
type Reader struct {
	id     block.Identification
	header block.HeaderData
	groups []*Group
}

// NewReader parses the file behind r. Multi-channel-group data groups have
// their record stream demultiplexed by record id; sorted groups are split
// by their fixed record length (spec.md §3 DG entity).
func NewReader(r io.ReaderAt) (*Reader, error) {
	g, err := graph.Open(r)
	if err != nil {
		return nil, err
	}
	id := g.Identification()
	if id.VersionNumber < MinVersion {
		return nil, fmt.Errorf("%w: version %d", errs.ErrUnsupportedVersion, id.VersionNumber)
	}

	rd := &Reader{id: id, header: g.HD()}

	dgs, err := g.DataGroups()
	if err != nil {
		return nil, err
	}
	for _, dg := range dgs {
		groups, err := loadDataGroup(g, dg)
		if err != nil {
			return nil, err
		}
		rd.groups = append(rd.groups, groups...)
	}

	return rd, nil
}

// ReadFile loads path fully into memory and parses it. For bounded-memory
// access to large files, open the file yourself and use NewReader with
// convert.Index for channel-sliced reads.
func ReadFile(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return NewReader(bytes.NewReader(data))
}

// Identification returns the file's 64-byte preamble.
func (rd *Reader) Identification() block.Identification { return rd.id }

// Header returns the root HD block.
func (rd *Reader) Header() block.HeaderData { return rd.header }

// Groups returns every channel group of the file in graph order.
func (rd *Reader) Groups() []*Group { return rd.groups }

// GroupByAcqName finds a channel group by its acquisition name.
func (rd *Reader) GroupByAcqName(name string) (*Group, bool) {
	for _, g := range rd.groups {
		if g.AcqName == name {
			return g, true
		}
	}

	return nil, false
}

func loadDataGroup(g *graph.Graph, dg block.DataGroup) ([]*Group, error) {
	cgs, err := g.ChannelGroups(dg)
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, len(cgs))
	for i, cg := range cgs {
		cns, err := g.Channels(cg)
		if err != nil {
			return nil, err
		}
		channels := make([]Channel, len(cns))
		for j, cn := range cns {
			name, terr := g.Text(cn.NameAddr)
			if terr != nil {
				return nil, terr
			}
			unit, terr := g.Text(cn.UnitAddr)
			if terr != nil {
				return nil, terr
			}
			channels[j] = Channel{Name: name, Unit: unit, Block: cn}
		}
		acqName, err := g.Text(cg.AcqNameAddr)
		if err != nil {
			return nil, err
		}
		resolver, err := convert.Materialize(g, cns)
		if err != nil {
			return nil, err
		}
		groups[i] = &Group{
			DataGroup:    dg,
			ChannelGroup: cg,
			AcqName:      acqName,
			Channels:     channels,
			resolver:     resolver,
			decoder:      decode.NewGroupDecoder(nil),
		}
	}

	segments, err := g.DataBlocks(dg.DataAddr)
	if err != nil {
		return nil, err
	}
	var stream []byte
	for _, seg := range segments {
		stream = append(stream, seg...)
	}
	if err := splitRecords(stream, dg, groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// splitRecords distributes the data group's record stream onto its channel
// groups. A sorted group (record_id_len 0) is split by fixed stride,
// bounded by the declared cycle count so DT alignment padding is never
// misread as a phantom record; an unsorted group is demultiplexed by the
// record-id prefix of each record (spec.md §3, §8 invariant 4).
func splitRecords(stream []byte, dg block.DataGroup, groups []*Group) error {
	if len(groups) == 0 || len(stream) == 0 {
		return nil
	}

	idLen := int(dg.RecordIDLen)
	if idLen == 0 {
		g := groups[0]
		recLen := int(g.ChannelGroup.RecordLen())
		if recLen == 0 {
			return nil
		}
		n := len(stream) / recLen
		if c := g.ChannelGroup.CycleCount; c > 0 && int(c) < n {
			n = int(c)
		}
		for i := 0; i < n; i++ {
			g.records = append(g.records, stream[i*recLen:(i+1)*recLen])
		}

		return nil
	}

	byID := make(map[uint64]*Group, len(groups))
	for _, g := range groups {
		byID[g.ChannelGroup.RecordID] = g
	}

	off := 0
	for off+idLen <= len(stream) {
		id := readRecordID(stream[off:off+idLen], idLen)
		g, ok := byID[id]
		if !ok {
			if allZero(stream[off:]) {
				// trailing DT alignment padding
				return nil
			}

			return fmt.Errorf("%w: unknown record id %d at stream offset %d", errs.ErrInvalidRecord, id, off)
		}
		recLen := int(g.ChannelGroup.RecordLen())
		if off+idLen+recLen > len(stream) {
			return fmt.Errorf("%w: truncated record at stream offset %d", errs.ErrInvalidRecord, off)
		}
		g.records = append(g.records, stream[off+idLen:off+idLen+recLen])
		off += idLen + recLen
	}

	return nil
}

func readRecordID(b []byte, idLen int) uint64 {
	switch idLen {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}

// CreateFileWriter creates path, wraps it in a writer with the given
// options, and initializes the file at startTimeNs, mirroring the
// convenience constructors the subpackage-level API leaves to callers.
func CreateFileWriter(path string, startTimeNs uint64, opts ...writer.Option) (*writer.Writer, *writer.FileBackend, error) {
	backend, err := writer.CreateFileBackend(path)
	if err != nil {
		return nil, nil, err
	}
	w, err := writer.New(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	if err := w.InitFile(startTimeNs); err != nil {
		backend.Close()
		return nil, nil, err
	}

	return w, backend, nil
}
