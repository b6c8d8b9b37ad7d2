// Package graph implements the lazy link-graph loader: given a random
// access reader over an MDF4 file, it resolves block addresses to decoded
// block structs on demand and caches them, rather than parsing the entire
// file up front (spec.md §4.1 "lazy parse", §5 "single random-access
// reader per open file").
//
// The cache generalizes mebo's indexMaps[T] lookup pattern
// (internal hash-keyed maps in mebo/blob) to address-keyed block caches.
package graph

import (
	"io"

	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/errs"
)

// cache is an address-keyed lookup table for one decoded block type,
// generalizing mebo's indexMaps[T] pattern to the block graph's
// address-as-key world.
type cache[T any] struct {
	entries map[uint64]T
}

func newCache[T any]() *cache[T] {
	return &cache[T]{entries: make(map[uint64]T)}
}

func (c *cache[T]) get(addr uint64) (T, bool) {
	v, ok := c.entries[addr]
	return v, ok
}

func (c *cache[T]) put(addr uint64, v T) {
	c.entries[addr] = v
}

// Graph is a lazy, caching view over one MDF4 file's block graph.
type Graph struct {
	r  io.ReaderAt
	id block.Identification
	hd block.HeaderData

	dgs   *cache[block.DataGroup]
	cgs   *cache[block.ChannelGroup]
	cns   *cache[block.Channel]
	ccs   *cache[block.Conversion]
	sis   *cache[block.SourceInformation]
	fhs   *cache[block.FileHistory]
	dls   *cache[block.DataList]
	hls   *cache[block.HeaderList]
	texts *cache[string]
}

// Open reads the identification preamble and root HD block from r and
// returns a Graph ready to lazily resolve the rest.
func Open(r io.ReaderAt) (*Graph, error) {
	preamble := make([]byte, block.IdentificationSize)
	if _, err := r.ReadAt(preamble, 0); err != nil {
		return nil, err
	}
	id, err := block.ParseIdentification(preamble)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		r:     r,
		id:    id,
		dgs:   newCache[block.DataGroup](),
		cgs:   newCache[block.ChannelGroup](),
		cns:   newCache[block.Channel](),
		ccs:   newCache[block.Conversion](),
		sis:   newCache[block.SourceInformation](),
		fhs:   newCache[block.FileHistory](),
		dls:   newCache[block.DataList](),
		hls:   newCache[block.HeaderList](),
		texts: newCache[string](),
	}

	hd, err := g.readHD(block.IdentificationSize)
	if err != nil {
		return nil, err
	}
	g.hd = hd

	return g, nil
}

// Identification returns the file's parsed 64-byte preamble.
func (g *Graph) Identification() block.Identification { return g.id }

// HD returns the root header block.
func (g *Graph) HD() block.HeaderData { return g.hd }

// readFull peeks the 24-byte header at addr to discover the block's
// declared length, then reads the full block.
func (g *Graph) readFull(addr uint64) ([]byte, error) {
	head := make([]byte, block.HeaderSize)
	if _, err := g.r.ReadAt(head, int64(addr)); err != nil {
		return nil, err
	}
	h, err := block.PeekHeader(head, "")
	if err != nil {
		return nil, err
	}

	buf := make([]byte, h.Length)
	if _, err := g.r.ReadAt(buf, int64(addr)); err != nil && err != io.EOF {
		return nil, err
	}

	return buf, nil
}

func (g *Graph) readHD(addr uint64) (block.HeaderData, error) {
	buf, err := g.readFull(addr)
	if err != nil {
		return block.HeaderData{}, err
	}

	return block.ParseHD(buf)
}

// DataGroup resolves a DG block address, or a zero value with no error
// when addr is the null address.
func (g *Graph) DataGroup(addr uint64) (block.DataGroup, error) {
	if addr == 0 {
		return block.DataGroup{}, nil
	}
	if v, ok := g.dgs.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.DataGroup{}, err
	}
	dg, err := block.ParseDG(buf)
	if err != nil {
		return block.DataGroup{}, err
	}
	g.dgs.put(addr, dg)

	return dg, nil
}

// ChannelGroup resolves a CG block address.
func (g *Graph) ChannelGroup(addr uint64) (block.ChannelGroup, error) {
	if addr == 0 {
		return block.ChannelGroup{}, nil
	}
	if v, ok := g.cgs.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.ChannelGroup{}, err
	}
	cg, err := block.ParseCG(buf)
	if err != nil {
		return block.ChannelGroup{}, err
	}
	g.cgs.put(addr, cg)

	return cg, nil
}

// Channel resolves a CN block address.
func (g *Graph) Channel(addr uint64) (block.Channel, error) {
	if addr == 0 {
		return block.Channel{}, nil
	}
	if v, ok := g.cns.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.Channel{}, err
	}
	cn, err := block.ParseCN(buf)
	if err != nil {
		return block.Channel{}, err
	}
	g.cns.put(addr, cn)

	return cn, nil
}

// Conversion resolves a CC block address, or the zero conversion (identity)
// at the null address per spec.md §4.5.
func (g *Graph) Conversion(addr uint64) (block.Conversion, error) {
	if addr == 0 {
		return block.Conversion{}, nil
	}
	if v, ok := g.ccs.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.Conversion{}, err
	}
	cc, err := block.ParseCC(buf)
	if err != nil {
		return block.Conversion{}, err
	}
	g.ccs.put(addr, cc)

	return cc, nil
}

// Source resolves an SI block address.
func (g *Graph) Source(addr uint64) (block.SourceInformation, error) {
	if addr == 0 {
		return block.SourceInformation{}, nil
	}
	if v, ok := g.sis.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.SourceInformation{}, err
	}
	si, err := block.ParseSI(buf)
	if err != nil {
		return block.SourceInformation{}, err
	}
	g.sis.put(addr, si)

	return si, nil
}

// FileHistory resolves an FH block address.
func (g *Graph) FileHistory(addr uint64) (block.FileHistory, error) {
	if addr == 0 {
		return block.FileHistory{}, nil
	}
	if v, ok := g.fhs.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.FileHistory{}, err
	}
	fh, err := block.ParseFH(buf)
	if err != nil {
		return block.FileHistory{}, err
	}
	g.fhs.put(addr, fh)

	return fh, nil
}

// DataList resolves a DL block address.
func (g *Graph) DataList(addr uint64) (block.DataList, error) {
	if addr == 0 {
		return block.DataList{}, nil
	}
	if v, ok := g.dls.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.DataList{}, err
	}
	dl, err := block.ParseDL(buf)
	if err != nil {
		return block.DataList{}, err
	}
	g.dls.put(addr, dl)

	return dl, nil
}

// HeaderListBlock resolves an HL block address.
func (g *Graph) HeaderListBlock(addr uint64) (block.HeaderList, error) {
	if addr == 0 {
		return block.HeaderList{}, nil
	}
	if v, ok := g.hls.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return block.HeaderList{}, err
	}
	hl, err := block.ParseHL(buf)
	if err != nil {
		return block.HeaderList{}, err
	}
	g.hls.put(addr, hl)

	return hl, nil
}

// Text resolves a TX or MD block address to its decoded string, or "" for
// the null address.
func (g *Graph) Text(addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}
	if v, ok := g.texts.get(addr); ok {
		return v, nil
	}

	buf, err := g.readFull(addr)
	if err != nil {
		return "", err
	}
	tx, err := block.ParseTextBlock(buf)
	if err != nil {
		return "", err
	}
	g.texts.put(addr, tx.Text)

	return tx.Text, nil
}

// DataGroups walks the DG chain rooted at the HD block.
func (g *Graph) DataGroups() ([]block.DataGroup, error) {
	var out []block.DataGroup
	addr := g.hd.FirstDGAddr
	for addr != 0 {
		dg, err := g.DataGroup(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, dg)
		addr = dg.NextDGAddr
	}

	return out, nil
}

// ChannelGroups walks the CG chain of one data group.
func (g *Graph) ChannelGroups(dg block.DataGroup) ([]block.ChannelGroup, error) {
	var out []block.ChannelGroup
	addr := dg.FirstCGAddr
	for addr != 0 {
		cg, err := g.ChannelGroup(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, cg)
		addr = cg.NextCGAddr
	}

	return out, nil
}

// Channels walks the CN chain of one channel group.
func (g *Graph) Channels(cg block.ChannelGroup) ([]block.Channel, error) {
	var out []block.Channel
	addr := cg.FirstCNAddr
	for addr != 0 {
		cn, err := g.Channel(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, cn)
		addr = cn.NextCNAddr
	}

	return out, nil
}

// DataBlocks resolves the data payload reachable from a DG's DataAddr,
// transparently walking a DL chain if present, and returns the raw bytes
// of each DT/SD leaf in order. A data list wrapped in a compressed HL is
// reported as an error: this module does not decode DZ payloads.
func (g *Graph) DataBlocks(dataAddr uint64) ([][]byte, error) {
	if dataAddr == 0 {
		return nil, nil
	}

	head := make([]byte, block.HeaderSize)
	if _, err := g.r.ReadAt(head, int64(dataAddr)); err != nil {
		return nil, err
	}
	h, err := block.PeekHeader(head, "")
	if err != nil {
		return nil, err
	}

	switch h.Tag() {
	case "##DT", "##SD":
		buf, err := g.readFull(dataAddr)
		if err != nil {
			return nil, err
		}

		return [][]byte{buf[block.HeaderSize:h.Length]}, nil
	case "##DL":
		return g.walkDataList(dataAddr)
	case "##HL":
		hl, err := g.HeaderListBlock(dataAddr)
		if err != nil {
			return nil, err
		}
		if hl.IsCompressed() {
			return nil, errs.NewMalformedBlock(int64(dataAddr), "compressed (DZ) data lists are not supported")
		}

		return g.walkDataList(hl.FirstDLAddr)
	default:
		return nil, errs.NewMalformedBlock(int64(dataAddr), "unexpected data block tag "+h.Tag())
	}
}

// Segment locates one DT/SD leaf's payload within the file: the absolute
// offset of its first data byte (past the block header) and the payload
// length. The convert package intersects channel rectangles with these to
// compute minimal byte ranges for remote reads (spec.md §4.5).
type Segment struct {
	DataStart int64
	DataLen   uint64
}

// DataSegments resolves the payload locations reachable from a DG's
// DataAddr without reading the payload bytes themselves, walking a DL
// chain if present.
func (g *Graph) DataSegments(dataAddr uint64) ([]Segment, error) {
	if dataAddr == 0 {
		return nil, nil
	}

	head := make([]byte, block.HeaderSize)
	if _, err := g.r.ReadAt(head, int64(dataAddr)); err != nil {
		return nil, err
	}
	h, err := block.PeekHeader(head, "")
	if err != nil {
		return nil, err
	}

	switch h.Tag() {
	case "##DT", "##SD":
		return []Segment{{DataStart: int64(dataAddr) + block.HeaderSize, DataLen: h.Length - block.HeaderSize}}, nil
	case "##DL":
		return g.walkDataListSegments(dataAddr)
	case "##HL":
		hl, err := g.HeaderListBlock(dataAddr)
		if err != nil {
			return nil, err
		}
		if hl.IsCompressed() {
			return nil, errs.NewMalformedBlock(int64(dataAddr), "compressed (DZ) data lists are not supported")
		}

		return g.walkDataListSegments(hl.FirstDLAddr)
	default:
		return nil, errs.NewMalformedBlock(int64(dataAddr), "unexpected data block tag "+h.Tag())
	}
}

func (g *Graph) walkDataListSegments(addr uint64) ([]Segment, error) {
	var out []Segment
	for addr != 0 {
		dl, err := g.DataList(addr)
		if err != nil {
			return nil, err
		}
		for _, leafAddr := range dl.DataAddrs {
			leafHead := make([]byte, block.HeaderSize)
			if _, err := g.r.ReadAt(leafHead, int64(leafAddr)); err != nil {
				return nil, err
			}
			lh, err := block.PeekHeader(leafHead, "")
			if err != nil {
				return nil, err
			}
			out = append(out, Segment{DataStart: int64(leafAddr) + block.HeaderSize, DataLen: lh.Length - block.HeaderSize})
		}
		addr = dl.NextDLAddr
	}

	return out, nil
}

func (g *Graph) walkDataList(addr uint64) ([][]byte, error) {
	var out [][]byte
	for addr != 0 {
		dl, err := g.DataList(addr)
		if err != nil {
			return nil, err
		}
		for _, leafAddr := range dl.DataAddrs {
			leafHead := make([]byte, block.HeaderSize)
			if _, err := g.r.ReadAt(leafHead, int64(leafAddr)); err != nil {
				return nil, err
			}
			lh, err := block.PeekHeader(leafHead, "")
			if err != nil {
				return nil, err
			}
			buf, err := g.readFull(leafAddr)
			if err != nil {
				return nil, err
			}
			out = append(out, buf[block.HeaderSize:lh.Length])
		}
		addr = dl.NextDLAddr
	}

	return out, nil
}
