package writer

import (
	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
)

// SetChannelGroupName writes a TX block carrying the group's acquisition
// name and links it into the CG (spec.md §3 CG entity, acq_name link).
func (w *Writer) SetChannelGroupName(cgAddr uint64, name string) error {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}

	txAddr, err := w.writeBlock(block.NewText(name).ToBytes())
	if err != nil {
		return err
	}
	gs.cg.AcqNameAddr = txAddr

	return w.patchLink(cgAddr, 2, txAddr)
}

// SetChannelGroupSource writes an SI block (plus its name/path TX blocks)
// describing where the group's records were acquired and links it into the
// CG (spec.md §3 SI entity; the bus codecs use this to tag each group with
// its bus).
func (w *Writer) SetChannelGroupSource(cgAddr uint64, sourceType format.SourceType, busType format.BusType, name, path string) error {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return errs.ErrChannelNotFound
	}

	si := block.SourceInformation{SourceType: sourceType, BusType: busType}
	if name != "" {
		addr, err := w.writeBlock(block.NewText(name).ToBytes())
		if err != nil {
			return err
		}
		si.NameAddr = addr
	}
	if path != "" {
		addr, err := w.writeBlock(block.NewText(path).ToBytes())
		if err != nil {
			return err
		}
		si.PathAddr = addr
	}

	siAddr, err := w.writeBlock(si.ToBytes())
	if err != nil {
		return err
	}
	gs.cg.AcqSourceAddr = siAddr

	return w.patchLink(cgAddr, 3, siAddr)
}

// DataGroupAddr returns the address of the data group owning the channel
// group at cgAddr, so callers can attach further channel groups to the
// same DG (spec.md §3 "Multi-CG DGs").
func (w *Writer) DataGroupAddr(cgAddr uint64) (uint64, error) {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return 0, errs.ErrChannelNotFound
	}

	return gs.dg.addr, nil
}

// ChannelLayout is the record rectangle the writer derived for one
// channel: where its bits landed within the group's record.
type ChannelLayout struct {
	ByteOffset uint32
	BitOffset  uint8
	BitCount   uint32
}

// ChannelLayouts reports the derived layout of every channel in the group
// at cgAddr, in add order, letting callers confirm a rebuilt group matches
// a source layout before carrying raw records across (spec.md §4.6).
func (w *Writer) ChannelLayouts(cgAddr uint64) ([]ChannelLayout, error) {
	gs := w.groupByAddr(cgAddr)
	if gs == nil {
		return nil, errs.ErrChannelNotFound
	}

	out := make([]ChannelLayout, len(gs.channels))
	for i, cs := range gs.channels {
		out[i] = ChannelLayout{
			ByteOffset: cs.cn.ByteOffset,
			BitOffset:  cs.cn.BitOffset,
			BitCount:   cs.cn.BitCount,
		}
	}

	return out, nil
}

// AddConversion deep-copies a conversion (and everything its ref table
// reaches through res: TX text pools and nested CC blocks) into this
// writer's file and attaches the copy to the channel at cnAddr. It is the
// write-side counterpart of convert.Materialize, used by merge/cut to
// carry conversions from a source file into a new one (spec.md §4.6
// "preserving metadata and conversions").
func (w *Writer) AddConversion(cnAddr uint64, cc block.Conversion, res decode.Resolver) error {
	cs, _ := w.findChannel(cnAddr)
	if cs == nil {
		return errs.ErrChannelNotFound
	}

	ccAddr, err := w.copyConversion(cc, res, 0)
	if err != nil {
		return err
	}
	cs.cn.ConversionAddr = ccAddr

	return w.patchLink(cnAddr, 4, ccAddr)
}

func (w *Writer) copyConversion(cc block.Conversion, res decode.Resolver, depth int) (uint64, error) {
	if depth > decode.MaxConversionDepth {
		return 0, errs.ErrConversionCycle
	}

	out := block.Conversion{
		Type:          cc.Type,
		Precision:     cc.Precision,
		Flags:         cc.Flags,
		PhyRangeMin:   cc.PhyRangeMin,
		PhyRangeMax:   cc.PhyRangeMax,
		PhyRangeValid: cc.PhyRangeValid,
		Val:           append([]float64(nil), cc.Val...),
		Refs:          make([]uint64, len(cc.Refs)),
	}

	if cc.UnitAddr != 0 {
		unit, err := res.Text(cc.UnitAddr)
		if err != nil {
			return 0, err
		}
		addr, err := w.writeBlock(block.NewText(unit).ToBytes())
		if err != nil {
			return 0, err
		}
		out.UnitAddr = addr
	}

	for i, ref := range cc.Refs {
		if ref == 0 {
			continue
		}
		nested, err := res.Conversion(ref)
		if err == nil && nested.Type != format.ConversionIdentity {
			addr, nerr := w.copyConversion(nested, res, depth+1)
			if nerr != nil {
				return 0, nerr
			}
			out.Refs[i] = addr

			continue
		}
		text, err := res.Text(ref)
		if err != nil {
			return 0, err
		}
		addr, err := w.writeBlock(block.NewText(text).ToBytes())
		if err != nil {
			return 0, err
		}
		out.Refs[i] = addr
	}

	return w.writeBlock(out.ToBytes())
}
