// Package writer implements the forward-only MDF4 emitter: block address
// allocation, link patching, and flush-policy-driven chunking
// (spec.md §4.4 "Streaming writer"). It never seeks backward to rewrite
// more than one 64-bit field at a time, so every block keeps the address
// it was first written at for the life of the file.
package writer

import (
	"encoding/binary"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/graph"
	"github.com/mdf4kit/mdf4/internal/options"
	"github.com/mdf4kit/mdf4/internal/pool"
)

// ChannelSpec describes a channel to add via Writer.AddChannel: the
// fields a caller chooses, as opposed to the ones the writer derives
// (byte/bit offset within the record, invalidation bit position).
type ChannelSpec struct {
	Name          string
	DataType      format.DataType
	BitCount      uint32 // 0 defaults to the type's natural width
	ChannelType   format.ChannelType
	Unit          string
	Comment       string
	Invalidatable bool
	MinRaw        float64
	MaxRaw        float64
	LowerLimit    float64
	UpperLimit    float64
	LimitsValid   bool
}

func defaultBitCount(dt format.DataType) uint32 {
	switch {
	case dt.IsFloat():
		return 64
	case dt.IsInteger():
		return 32
	default:
		return 8
	}
}

// ValueText is one entry of a value-to-text conversion table
// (spec.md §4.5 ConversionValueToText).
type ValueText struct {
	Value int64
	Text  string
}

type channelState struct {
	addr uint64
	cn   block.Channel
}

type groupState struct {
	addr        uint64
	cg          block.ChannelGroup
	dg          *dataGroupState
	channels    []*channelState
	bitCursor   uint32
	invalCursor uint32
}

type dataGroupState struct {
	addr      uint64
	dg        block.DataGroup
	groups    []*groupState
	open      bool
	dtAddr    uint64
	dtDataLen uint64   // bytes appended to the currently open DT, excluding its header
	allDTs    []uint64 // every DT address ever opened for this DG, in order
	allDTLens []uint64 // each closed DT's unaligned payload length, parallel to allDTs
}

// Writer builds an MDF4 file forward, one block at a time
// (spec.md §4.4 "Operations and guarantees").
type Writer struct {
	backend       Backend
	programID     string
	versionNumber uint16
	flushPolicy   FlushPolicy
	flush         flushState
	chunkSize     uint64

	hdAddr     uint64
	hd         block.HeaderData
	fhTailAddr uint64

	dgs []*dataGroupState

	initialized bool
	closed      bool
}

// New creates a Writer over backend with the given options applied. Call
// InitFile before any other operation.
func New(backend Backend, opts ...Option) (*Writer, error) {
	w := &Writer{
		backend:       backend,
		programID:     "mdf4kit",
		versionNumber: 410,
		flushPolicy:   ManualFlush(),
	}
	if err := options.Apply[*Writer](w, opts...); err != nil {
		return nil, err
	}

	return w, nil
}

// InitFile writes the identification preamble, the root HD block, and an
// initial FH audit entry at startTimeNs (spec.md §4.4 "init_file").
func (w *Writer) InitFile(startTimeNs uint64) error {
	if w.initialized {
		return errs.ErrDataBlockOpen
	}

	id := block.NewIdentification(w.programID, w.versionNumber)
	if _, err := w.writeRaw(id.ToBytes()); err != nil {
		return err
	}

	w.hd = block.HeaderData{StartTimeNs: startTimeNs}
	hdAddr, err := w.writeBlock(w.hd.ToBytes())
	if err != nil {
		return err
	}
	w.hdAddr = hdAddr

	fh := block.FileHistory{TimeNs: startTimeNs, TimeFlags: block.FHTimeFlagLocal}
	fhAddr, err := w.writeBlock(fh.ToBytes())
	if err != nil {
		return err
	}
	w.fhTailAddr = fhAddr
	if err := w.patchLink(hdAddr, 1, fhAddr); err != nil {
		return err
	}
	w.hd.FirstFHAddr = fhAddr

	w.initialized = true

	return nil
}

// AddFileHistory appends a new FH entry to the audit chain, for use after
// Open-ing an existing file for append (spec.md §4.4 "append").
func (w *Writer) AddFileHistory(timeNs uint64, flags uint8) error {
	if !w.initialized {
		return errs.ErrFileNotInitialized
	}

	fh := block.FileHistory{TimeNs: timeNs, TimeFlags: flags}
	addr, err := w.writeBlock(fh.ToBytes())
	if err != nil {
		return err
	}
	if err := w.patchLink(w.fhTailAddr, 0, addr); err != nil {
		return err
	}
	w.fhTailAddr = addr

	return nil
}

// AddChannelGroup creates a new channel group. Passing dgAddr as zero
// always allocates a fresh data group for it, matching the writer's
// default one-data-group-per-channel-group layout; passing the address of
// an existing, still-open (no data written) data group attaches a second
// channel group to it and promotes that group's record_id_len to 1
// (spec.md §4.4, §3 DG entity "record_id_len = 0 iff exactly one CG").
func (w *Writer) AddChannelGroup(dgAddr uint64) (uint64, error) {
	if !w.initialized {
		return 0, errs.ErrFileNotInitialized
	}
	if w.closed {
		return 0, errs.ErrWriterClosed
	}

	var dgs *dataGroupState
	if dgAddr == 0 {
		dg := block.DataGroup{}
		addr, err := w.writeBlock(dg.ToBytes())
		if err != nil {
			return 0, err
		}
		dgs = &dataGroupState{addr: addr, dg: dg}
		if err := w.linkDataGroup(dgs); err != nil {
			return 0, err
		}
		w.dgs = append(w.dgs, dgs)
	} else {
		dgs = w.dataGroupByAddr(dgAddr)
		if dgs == nil {
			return 0, errs.ErrChannelNotFound
		}
		if dgs.open {
			return 0, errs.ErrDataBlockOpen
		}
	}

	cg := block.ChannelGroup{}
	cgAddr, err := w.writeBlock(cg.ToBytes())
	if err != nil {
		return 0, err
	}
	gs := &groupState{addr: cgAddr, cg: cg, dg: dgs}
	dgs.groups = append(dgs.groups, gs)

	if len(dgs.groups) == 1 {
		if err := w.patchLink(dgs.addr, 1, cgAddr); err != nil {
			return 0, err
		}
		dgs.dg.FirstCGAddr = cgAddr
	} else {
		prev := dgs.groups[len(dgs.groups)-2]
		if err := w.patchLink(prev.addr, 0, cgAddr); err != nil {
			return 0, err
		}
		prev.cg.NextCGAddr = cgAddr

		if dgs.dg.RecordIDLen == 0 {
			dgs.dg.RecordIDLen = 1
			if err := w.patchBodyU64(dgs.addr, block.DGLinkCount, 0, uint64(dgs.dg.RecordIDLen)); err != nil {
				return 0, err
			}
			for i, g := range dgs.groups {
				g.cg.RecordID = uint64(i + 1)
				if err := w.patchBodyU64(g.addr, block.CGLinkCount, 0, g.cg.RecordID); err != nil {
					return 0, err
				}
			}
		}
	}

	return cgAddr, nil
}

func (w *Writer) linkDataGroup(dgs *dataGroupState) error {
	if w.hd.FirstDGAddr == 0 {
		if err := w.patchLink(w.hdAddr, 0, dgs.addr); err != nil {
			return err
		}
		w.hd.FirstDGAddr = dgs.addr

		return nil
	}

	tail := w.dgs[len(w.dgs)-1]
	if err := w.patchLink(tail.addr, 0, dgs.addr); err != nil {
		return err
	}
	tail.dg.NextDGAddr = dgs.addr

	return nil
}

// AddChannel appends a channel to the channel group addressed by cgAddr,
// immediately after the channel at "after" (or as the first channel when
// after is zero). The channel's byte/bit offset is derived from the
// group's current layout: byte-aligned widths (bit_count a multiple of 8)
// round up to the next byte boundary, anything else stacks into the
// remaining bits of the current byte (spec.md §4.4 "add_channel").
func (w *Writer) AddChannel(cgAddr uint64, after uint64, spec ChannelSpec) (uint64, error) {
	if !w.initialized {
		return 0, errs.ErrFileNotInitialized
	}
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return 0, errs.ErrChannelNotFound
	}
	if gs.dg.open {
		return 0, errs.ErrChannelGroupClosed
	}

	bitCount := spec.BitCount
	if bitCount == 0 {
		bitCount = defaultBitCount(spec.DataType)
	}

	byteAligned := bitCount%8 == 0
	if byteAligned {
		gs.bitCursor = (gs.bitCursor + 7) &^ 7
	}
	byteOffset := gs.bitCursor / 8
	bitOffset := uint8(gs.bitCursor % 8)
	gs.bitCursor += bitCount

	cn := block.Channel{
		ChannelType: spec.ChannelType,
		DataType:    spec.DataType,
		BitOffset:   bitOffset,
		ByteOffset:  byteOffset,
		BitCount:    bitCount,
		MinRaw:      spec.MinRaw,
		MaxRaw:      spec.MaxRaw,
		LowerLimit:  spec.LowerLimit,
		UpperLimit:  spec.UpperLimit,
	}
	if spec.Invalidatable {
		cn.Flags |= format.ChannelFlagInvalidBitValid
		cn.PosInvalBit = gs.invalCursor
		gs.invalCursor++
	}

	if spec.Name != "" {
		nameAddr, err := w.writeBlock(block.NewText(spec.Name).ToBytes())
		if err != nil {
			return 0, err
		}
		cn.NameAddr = nameAddr
	}
	if spec.Unit != "" {
		unitAddr, err := w.writeBlock(block.NewText(spec.Unit).ToBytes())
		if err != nil {
			return 0, err
		}
		cn.UnitAddr = unitAddr
	}
	if spec.Comment != "" {
		commentAddr, err := w.writeBlock(block.NewMetadata(spec.Comment).ToBytes())
		if err != nil {
			return 0, err
		}
		cn.CommentAddr = commentAddr
	}

	cnAddr, err := w.writeBlock(cn.ToBytes())
	if err != nil {
		return 0, err
	}
	cs := &channelState{addr: cnAddr, cn: cn}

	if after == 0 {
		if len(gs.channels) == 0 {
			if err := w.patchLink(gs.addr, 1, cnAddr); err != nil {
				return 0, err
			}
			gs.cg.FirstCNAddr = cnAddr
		} else {
			return 0, errs.NewMalformedBlock(int64(cgAddr), "after=0 requires an empty channel group")
		}
	} else {
		prev := w.channelByAddr(gs, after)
		if prev == nil {
			return 0, errs.ErrChannelNotFound
		}
		if err := w.patchLink(prev.addr, 0, cnAddr); err != nil {
			return 0, err
		}
		prev.cn.NextCNAddr = cnAddr
	}
	gs.channels = append(gs.channels, cs)

	dataBytes := (gs.bitCursor + 7) / 8
	invalBytes := uint32(0)
	if gs.invalCursor > 0 {
		invalBytes = (gs.invalCursor + 7) / 8
	}
	gs.cg.DataBytes = dataBytes
	gs.cg.InvalBytes = invalBytes
	combined := uint64(dataBytes) | uint64(invalBytes)<<32
	if err := w.patchBodyU64(gs.addr, block.CGLinkCount, 24, combined); err != nil {
		return 0, err
	}

	return cnAddr, nil
}

// SetTimeChannel marks an already-added channel as the group's master
// time channel (spec.md §4.4 "set_time_channel").
func (w *Writer) SetTimeChannel(cnAddr uint64) error {
	cs, _ := w.findChannel(cnAddr)
	if cs == nil {
		return errs.ErrChannelNotFound
	}

	cs.cn.ChannelType = format.ChannelTypeMaster
	cs.cn.SyncType = format.SyncTypeTime

	return w.patchBodyWord(cnAddr, block.CNLinkCount, 0, func(b []byte) {
		b[0] = byte(format.ChannelTypeMaster)
		b[1] = byte(format.SyncTypeTime)
	})
}

// AddValueToTextConversion attaches a ConversionValueToText CC block to an
// already-added channel: each mapping entry becomes one val/TX ref pair,
// with defaultText used for any raw value not present in the table
// (spec.md §4.5 ConversionValueToText).
func (w *Writer) AddValueToTextConversion(cnAddr uint64, mapping []ValueText, defaultText string) error {
	cs, _ := w.findChannel(cnAddr)
	if cs == nil {
		return errs.ErrChannelNotFound
	}

	cc := block.Conversion{Type: format.ConversionValueToText}
	cc.Val = make([]float64, len(mapping))
	cc.Refs = make([]uint64, len(mapping)+1)
	for i, m := range mapping {
		cc.Val[i] = float64(m.Value)
		txAddr, err := w.writeBlock(block.NewText(m.Text).ToBytes())
		if err != nil {
			return err
		}
		cc.Refs[i] = txAddr
	}
	defaultAddr, err := w.writeBlock(block.NewText(defaultText).ToBytes())
	if err != nil {
		return err
	}
	cc.Refs[len(mapping)] = defaultAddr

	ccAddr, err := w.writeBlock(cc.ToBytes())
	if err != nil {
		return err
	}

	cs.cn.ConversionAddr = ccAddr

	return w.patchLink(cnAddr, 4, ccAddr)
}

// StartDataBlockForCG opens the data group's DT block for writing, or
// registers recordID against an already-open multi-channel-group DT
// (spec.md §4.4 "start_data_block_for_cg"). recordID is ignored when the
// group's data group has record_id_len == 0.
func (w *Writer) StartDataBlockForCG(cgAddr uint64, recordID uint64) error {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}
	dgs := gs.dg

	if dgs.dg.RecordIDLen > 0 {
		gs.cg.RecordID = recordID
		if err := w.patchBodyU64(gs.addr, block.CGLinkCount, 0, recordID); err != nil {
			return err
		}
	}

	if dgs.open {
		return nil
	}

	dt := block.DataBlock{}
	addr, err := w.writeBlock(dt.ToBytes())
	if err != nil {
		return err
	}
	dgs.dtAddr = addr
	dgs.dtDataLen = 0
	dgs.open = true
	dgs.allDTs = append(dgs.allDTs, addr)

	if dgs.dg.DataAddr == 0 {
		if err := w.patchLink(dgs.addr, 2, addr); err != nil {
			return err
		}
		dgs.dg.DataAddr = addr
	}

	return nil
}

// WriteRecord encodes one sample row for every channel of the group
// addressed by cgAddr and appends it to the group's open DT. values must
// have exactly as many entries as the group has channels, in add order; a
// nil entry for an invalidation-enabled channel sets that channel's
// invalidation bit and writes a zero raw value (spec.md §4.4
// "write_record", §4.3 "Validity").
func (w *Writer) WriteRecord(cgAddr uint64, values []*decode.Value) error {
	if w.closed {
		return errs.ErrWriterClosed
	}
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}
	if !gs.dg.open {
		return errs.ErrNoDataBlockOpen
	}
	if len(values) != len(gs.channels) {
		return errs.ErrRecordCountMismatch
	}

	recordIDLen := int(gs.dg.dg.RecordIDLen)
	recordLen := recordIDLen + int(gs.cg.DataBytes) + int(gs.cg.InvalBytes)

	buf := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(buf)
	buf.Grow(recordLen)
	buf.ExtendOrGrow(recordLen)
	record := buf.Bytes()
	for i := range record {
		record[i] = 0
	}

	if recordIDLen > 0 {
		putRecordID(record[:recordIDLen], gs.cg.RecordID)
	}
	dataStart := recordIDLen
	invalStart := dataStart + int(gs.cg.DataBytes)

	for i, cs := range gs.channels {
		v := values[i]
		if v == nil {
			if cs.cn.Flags.Has(format.ChannelFlagInvalidBitValid) {
				bytePos := invalStart + int(cs.cn.PosInvalBit/8)
				record[bytePos] |= 1 << (cs.cn.PosInvalBit % 8)
			}

			continue
		}
		if err := PutRaw(record[dataStart:invalStart], cs.cn.ByteOffset, cs.cn.BitOffset, cs.cn.BitCount, cs.cn.DataType, *v); err != nil {
			return err
		}
	}

	if _, err := w.writeRaw(record); err != nil {
		return err
	}
	gs.dg.dtDataLen += uint64(recordLen)
	gs.cg.CycleCount++
	if err := w.patchBodyU64(gs.addr, block.CGLinkCount, 8, gs.cg.CycleCount); err != nil {
		return err
	}

	w.flush.recordWrite(1, uint64(recordLen))
	if w.flushPolicy.IsAuto() && w.flush.shouldFlush(w.flushPolicy) {
		return w.Flush()
	}

	return nil
}

// WriteRawRecord appends one already-encoded record payload (data bytes
// plus invalidation bytes, without the record-id prefix) to the group's
// open DT, prefixing this group's record id when its data group uses one.
// It is the bit-exact append path merge/cut use to carry records between
// files without a decode/re-encode round trip (spec.md §4.6).
func (w *Writer) WriteRawRecord(cgAddr uint64, payload []byte) error {
	if w.closed {
		return errs.ErrWriterClosed
	}
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}
	if !gs.dg.open {
		return errs.ErrNoDataBlockOpen
	}
	if len(payload) != int(gs.cg.DataBytes)+int(gs.cg.InvalBytes) {
		return errs.ErrInvalidRecord
	}

	recordIDLen := int(gs.dg.dg.RecordIDLen)
	if recordIDLen > 0 {
		var prefix [8]byte
		putRecordID(prefix[:recordIDLen], gs.cg.RecordID)
		if _, err := w.writeRaw(prefix[:recordIDLen]); err != nil {
			return err
		}
	}
	if _, err := w.writeRaw(payload); err != nil {
		return err
	}

	recordLen := recordIDLen + len(payload)
	gs.dg.dtDataLen += uint64(recordLen)
	gs.cg.CycleCount++
	if err := w.patchBodyU64(gs.addr, block.CGLinkCount, 8, gs.cg.CycleCount); err != nil {
		return err
	}

	w.flush.recordWrite(1, uint64(recordLen))
	if w.flushPolicy.IsAuto() && w.flush.shouldFlush(w.flushPolicy) {
		return w.Flush()
	}

	return nil
}

func putRecordID(dst []byte, id uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(id)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(id))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(id))
	case 8:
		binary.LittleEndian.PutUint64(dst, id)
	}
}

// Flush updates the currently open DT's declared length to match what has
// been appended so far, asks the backend to persist, and, once the open
// DT for a data group has grown past the writer's chunk size, rotates to
// a fresh DT so the closed one can later be linked into a DL chain
// (spec.md §4.4 "flush").
func (w *Writer) Flush() error {
	if w.closed {
		return errs.ErrWriterClosed
	}

	for _, dgs := range w.dgs {
		if !dgs.open {
			continue
		}
		if err := w.patchHeaderLength(dgs.dtAddr, uint64(block.HeaderSize)+dgs.dtDataLen); err != nil {
			return err
		}

		if w.chunkSize > 0 && dgs.dtDataLen >= w.chunkSize {
			if err := w.rotateDT(dgs); err != nil {
				return err
			}
		}
	}

	if err := w.backend.Flush(); err != nil {
		return err
	}
	w.flush.onFlush()

	return nil
}

// rotateDT closes the data group's current DT block and opens a fresh one
// in its place, so the closed block can be linked into a DL chain at
// Finalize (spec.md §4.4 "appendable DT/DL chains").
func (w *Writer) rotateDT(dgs *dataGroupState) error {
	if err := w.closeDT(dgs); err != nil {
		return err
	}

	dt := block.DataBlock{}
	addr, err := w.writeBlock(dt.ToBytes())
	if err != nil {
		return err
	}
	dgs.dtAddr = addr
	dgs.dtDataLen = 0
	dgs.open = true
	dgs.allDTs = append(dgs.allDTs, addr)

	return nil
}

// FinishDataBlock closes the data group's DT block for good: pads it to
// an 8-byte boundary and records its final length (spec.md §4.4
// "finish_data_block").
func (w *Writer) FinishDataBlock(cgAddr uint64) error {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}
	dgs := gs.dg
	if !dgs.open {
		return errs.ErrNoDataBlockOpen
	}

	if err := w.closeDT(dgs); err != nil {
		return err
	}

	return nil
}

func (w *Writer) closeDT(dgs *dataGroupState) error {
	aligned := block.Align8(int(uint64(block.HeaderSize) + dgs.dtDataLen))
	if err := w.patchHeaderLength(dgs.dtAddr, uint64(aligned)); err != nil {
		return err
	}
	pad := aligned - int(uint64(block.HeaderSize)+dgs.dtDataLen)
	if pad > 0 {
		if _, err := w.writeRaw(make([]byte, pad)); err != nil {
			return err
		}
	}
	dgs.allDTLens = append(dgs.allDTLens, dgs.dtDataLen)
	dgs.open = false

	return nil
}

// Finalize closes every still-open data block and promotes any data group
// with more than one DT into a DL chain (cycle counts are already patched
// record by record), leaving the file in a terminal, fully linked state
// (spec.md §4.4 "finalize").
func (w *Writer) Finalize() error {
	if w.closed {
		return errs.ErrWriterClosed
	}

	for _, dgs := range w.dgs {
		if dgs.open {
			if err := w.closeDT(dgs); err != nil {
				return err
			}
		}

		if len(dgs.allDTs) > 1 {
			offsets := make([]uint64, len(dgs.allDTLens))
			var cum uint64
			for i, ln := range dgs.allDTLens {
				offsets[i] = cum
				cum += ln
			}
			dl := block.DataList{DataAddrs: append([]uint64(nil), dgs.allDTs...), Offsets: offsets}
			dlAddr, err := w.writeBlock(dl.ToBytes())
			if err != nil {
				return err
			}
			if err := w.patchLink(dgs.addr, 2, dlAddr); err != nil {
				return err
			}
		}
	}

	if err := w.backend.Flush(); err != nil {
		return err
	}
	w.flush.onFlush()
	w.closed = true

	return nil
}

// FlushStats reports the writer's cumulative flush bookkeeping
// (SPEC_FULL.md Supplemented Features).
func (w *Writer) FlushStats() FlushStats {
	return FlushStats{
		RecordsSinceFlush: w.flush.recordsSinceFlush,
		BytesSinceFlush:   w.flush.bytesSinceFlush,
		TotalRecords:      w.flush.totalRecords,
		TotalBytes:        w.flush.totalBytes,
		FlushCount:        w.flush.flushCount,
	}
}

// Open reconstructs a Writer from an already-initialized file, positioning
// each data group's cursor at the end of its tail DT block so that
// subsequent WriteRecord calls extend it in place (spec.md §4.4 "append").
// The target file must not already have been promoted to a DL chain for
// the data group being appended to.
func Open(backend Backend, opts ...Option) (*Writer, error) {
	w := &Writer{
		backend:       backend,
		programID:     "mdf4kit",
		versionNumber: 410,
		flushPolicy:   ManualFlush(),
	}
	if err := options.Apply[*Writer](w, opts...); err != nil {
		return nil, err
	}

	g, err := graph.Open(readerAtFunc(backend))
	if err != nil {
		return nil, err
	}
	w.hd = g.HD()
	w.hdAddr = block.IdentificationSize
	w.fhTailAddr = w.hd.FirstFHAddr
	for addr := w.hd.FirstFHAddr; addr != 0; {
		fh, ferr := g.FileHistory(addr)
		if ferr != nil {
			return nil, ferr
		}
		w.fhTailAddr = addr
		addr = fh.NextFHAddr
	}

	dgBlocks, err := g.DataGroups()
	if err != nil {
		return nil, err
	}
	dgAddr := w.hd.FirstDGAddr
	for _, dg := range dgBlocks {
		dgs := &dataGroupState{addr: dgAddr, dg: dg}

		cgBlocks, cerr := g.ChannelGroups(dg)
		if cerr != nil {
			return nil, cerr
		}
		cgAddr := dg.FirstCGAddr
		for _, cg := range cgBlocks {
			gs := &groupState{addr: cgAddr, cg: cg, dg: dgs}
			cnBlocks, nerr := g.Channels(cg)
			if nerr != nil {
				return nil, nerr
			}
			cnAddr := cg.FirstCNAddr
			for _, cn := range cnBlocks {
				gs.channels = append(gs.channels, &channelState{addr: cnAddr, cn: cn})
				gs.bitCursor = cn.ByteOffset*8 + uint32(cn.BitOffset) + cn.BitCount
				if cn.Flags.Has(format.ChannelFlagInvalidBitValid) && cn.PosInvalBit+1 > gs.invalCursor {
					gs.invalCursor = cn.PosInvalBit + 1
				}
				cnAddr = cn.NextCNAddr
			}
			dgs.groups = append(dgs.groups, gs)
			cgAddr = cg.NextCGAddr
		}

		if dg.DataAddr != 0 {
			tail, tailLen, terr := tailDataBlock(g, backend, dg.DataAddr)
			if terr != nil {
				return nil, terr
			}
			dgs.dtAddr = tail
			dgs.dtDataLen = tailLen
			dgs.allDTs = []uint64{tail}
			dgs.open = true
		}

		w.dgs = append(w.dgs, dgs)
		dgAddr = dg.NextDGAddr
	}

	w.initialized = true

	return w, nil
}

// tailDataBlock finds the last DT block reachable from dataAddr (directly,
// or through a DL chain) and how many payload bytes it already holds, by
// peeking that block's own 24-byte header (spec.md §4.4 "append").
func tailDataBlock(g *graph.Graph, backend Backend, dataAddr uint64) (uint64, uint64, error) {
	addr := dataAddr
	dl, err := g.DataList(dataAddr)
	if err == nil && len(dl.DataAddrs) > 0 {
		for dl.NextDLAddr != 0 {
			dl, err = g.DataList(dl.NextDLAddr)
			if err != nil {
				return 0, 0, err
			}
		}
		addr = dl.DataAddrs[len(dl.DataAddrs)-1]
	}

	var head [block.HeaderSize]byte
	if _, err := backend.ReadAt(head[:], int64(addr)); err != nil {
		return 0, 0, err
	}
	length := binary.LittleEndian.Uint64(head[8:16])
	dataLen := length - uint64(block.HeaderSize)

	return addr, dataLen, nil
}

func readerAtFunc(b Backend) readerAt { return readerAt{b} }

type readerAt struct{ b Backend }

func (r readerAt) ReadAt(p []byte, off int64) (int, error) { return r.b.ReadAt(p, off) }

func (w *Writer) writeBlock(b []byte) (uint64, error) {
	return w.writeRaw(b)
}

func (w *Writer) writeRaw(b []byte) (uint64, error) {
	addr, err := w.backend.WriteAtEnd(b)
	if err != nil {
		w.closed = true
		return 0, err
	}

	return uint64(addr), nil
}

func (w *Writer) patchLink(blockAddr uint64, linkIdx int, value uint64) error {
	off := int64(blockAddr) + int64(block.HeaderSize) + int64(linkIdx)*8

	return w.backend.PatchUint64(off, value)
}

func (w *Writer) patchBodyU64(blockAddr uint64, linkCount int, byteOffsetInBody int, value uint64) error {
	off := int64(blockAddr) + int64(block.HeaderSize) + int64(linkCount)*8 + int64(byteOffsetInBody)

	return w.backend.PatchUint64(off, value)
}

func (w *Writer) patchBodyWord(blockAddr uint64, linkCount int, byteOffsetInBody int, mutate func([]byte)) error {
	off := int64(blockAddr) + int64(block.HeaderSize) + int64(linkCount)*8 + int64(byteOffsetInBody)
	var buf [8]byte
	if _, err := w.backend.ReadAt(buf[:], off); err != nil {
		return err
	}
	mutate(buf[:])

	return w.backend.PatchUint64(off, binary.LittleEndian.Uint64(buf[:]))
}

func (w *Writer) patchHeaderLength(blockAddr uint64, length uint64) error {
	return w.backend.PatchUint64(int64(blockAddr)+8, length)
}

func (w *Writer) dataGroupByAddr(addr uint64) *dataGroupState {
	for _, dgs := range w.dgs {
		if dgs.addr == addr {
			return dgs
		}
	}

	return nil
}

func (w *Writer) groupByAddr(addr uint64) *groupState {
	for _, dgs := range w.dgs {
		for _, gs := range dgs.groups {
			if gs.addr == addr {
				return gs
			}
		}
	}

	return nil
}

func (w *Writer) channelByAddr(gs *groupState, addr uint64) *channelState {
	for _, cs := range gs.channels {
		if cs.addr == addr {
			return cs
		}
	}

	return nil
}

func (w *Writer) findChannel(addr uint64) (*channelState, *groupState) {
	for _, dgs := range w.dgs {
		for _, gs := range dgs.groups {
			if cs := w.channelByAddr(gs, addr); cs != nil {
				return cs, gs
			}
		}
	}

	return nil, nil
}
