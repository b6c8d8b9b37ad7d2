// Package convert implements the conversion resolver and channel byte-range
// index (spec.md §4.5): materializing a data group's CC/TX dependency
// chains once so repeated sample decoding never re-walks the block graph,
// and computing each channel's (file_offset, length) byte range for
// single-channel remote/partial reads.
package convert

import (
	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/decode"
)

// MaterializedResolver is a decode.Resolver backed entirely by an
// in-memory cache built ahead of time, so bulk decoding over many records
// never issues further reads against the file (spec.md §4.5
// "materializes CC/TX dependency chains").
type MaterializedResolver struct {
	conversions map[uint64]block.Conversion
	texts       map[uint64]string
}

var _ decode.Resolver = (*MaterializedResolver)(nil)

// graphSource is the subset of graph.Graph the resolver needs to walk the
// CC/TX chains reachable from a channel's conversion.
type graphSource interface {
	Conversion(addr uint64) (block.Conversion, error)
	Text(addr uint64) (string, error)
}

// Materialize walks the conversion chain rooted at each of the given
// channels' ConversionAddr, following every nested CC/TX ref up to
// decode.MaxConversionDepth, caches each channel's name text, and returns a
// resolver that serves them from memory.
func Materialize(g graphSource, channels []block.Channel) (*MaterializedResolver, error) {
	r := &MaterializedResolver{
		conversions: make(map[uint64]block.Conversion),
		texts:       make(map[uint64]string),
	}

	for _, cn := range channels {
		if cn.NameAddr != 0 {
			if _, err := r.cacheText(g, cn.NameAddr); err != nil {
				return nil, err
			}
		}
		if err := r.walk(g, cn.ConversionAddr, 0); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *MaterializedResolver) walk(g graphSource, addr uint64, depth int) error {
	if addr == 0 || depth > decode.MaxConversionDepth {
		return nil
	}
	if _, ok := r.conversions[addr]; ok {
		return nil
	}

	cc, err := g.Conversion(addr)
	if err != nil {
		return err
	}
	r.conversions[addr] = cc

	for _, ref := range cc.Refs {
		if ref == 0 {
			continue
		}
		if nested, err := g.Conversion(ref); err == nil && nested.Type != 0 {
			if err := r.walk(g, ref, depth+1); err != nil {
				return err
			}

			continue
		}
		if _, ok := r.texts[ref]; ok {
			continue
		}
		text, err := g.Text(ref)
		if err != nil {
			return err
		}
		r.texts[ref] = text
	}

	if cc.NameAddr != 0 {
		if _, err := r.cacheText(g, cc.NameAddr); err != nil {
			return err
		}
	}
	if cc.UnitAddr != 0 {
		if _, err := r.cacheText(g, cc.UnitAddr); err != nil {
			return err
		}
	}

	return nil
}

func (r *MaterializedResolver) cacheText(g graphSource, addr uint64) (string, error) {
	if v, ok := r.texts[addr]; ok {
		return v, nil
	}
	text, err := g.Text(addr)
	if err != nil {
		return "", err
	}
	r.texts[addr] = text

	return text, nil
}

// Conversion implements decode.Resolver from the in-memory cache.
func (r *MaterializedResolver) Conversion(addr uint64) (block.Conversion, error) {
	if addr == 0 {
		return block.Conversion{}, nil
	}

	return r.conversions[addr], nil
}

// Text implements decode.Resolver from the in-memory cache.
func (r *MaterializedResolver) Text(addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}

	return r.texts[addr], nil
}
