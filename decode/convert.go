package decode

import (
	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
)

// MaxConversionDepth bounds how deeply ApplyConversion will chase nested
// CC blocks (e.g. a value-to-text table whose text entries are themselves
// formulas) before reporting a cycle, per spec.md §4.3 "nested with cycle
// detection ≤32 depth".
const MaxConversionDepth = 32

// Resolver resolves the block addresses a Conversion references: nested
// CC blocks and TX text blocks. graph.Graph satisfies this interface.
type Resolver interface {
	Conversion(addr uint64) (block.Conversion, error)
	Text(addr uint64) (string, error)
}

// ApplyConversion maps a raw decoded Value through a CC block's rule to
// its physical representation (spec.md §4.3 "conversion application").
// The zero Conversion (addr 0, ConversionIdentity) passes raw through
// unchanged.
func ApplyConversion(raw Value, cc block.Conversion, res Resolver) (Value, error) {
	return applyConversion(raw, cc, res, 0)
}

func applyConversion(raw Value, cc block.Conversion, res Resolver, depth int) (Value, error) {
	if depth > MaxConversionDepth {
		return Value{}, errs.ErrConversionCycle
	}

	switch cc.Type {
	case format.ConversionIdentity:
		return raw, nil

	case format.ConversionLinear:
		if len(cc.Val) < 2 {
			return Value{}, errs.NewMalformedBlock(0, "linear conversion needs 2 coefficients")
		}
		x := raw.AsFloat64()
		return Value{Kind: KindFloat, Float: cc.Val[0] + cc.Val[1]*x, Valid: raw.Valid}, nil

	case format.ConversionRational:
		if len(cc.Val) < 6 {
			return Value{}, errs.NewMalformedBlock(0, "rational conversion needs 6 coefficients")
		}
		x := raw.AsFloat64()
		p1, p2, p3, p4, p5, p6 := cc.Val[0], cc.Val[1], cc.Val[2], cc.Val[3], cc.Val[4], cc.Val[5]
		num := p1*x*x + p2*x + p3
		den := p4*x*x + p5*x + p6
		if den == 0 {
			return Value{}, errs.NewMalformedBlock(0, "rational conversion division by zero")
		}
		return Value{Kind: KindFloat, Float: num / den, Valid: raw.Valid}, nil

	case format.ConversionValueToValue:
		return valueToValue(raw, cc), nil

	case format.ConversionValueRangeToValue:
		return valueRangeToValue(raw, cc), nil

	case format.ConversionValueToText:
		return valueToText(raw, cc, res, depth)

	case format.ConversionValueRangeToText:
		return valueRangeToText(raw, cc, res, depth)

	case format.ConversionTextToValue:
		return textToValue(raw, cc, res)

	case format.ConversionTextToText:
		return textToText(raw, cc, res)

	case format.ConversionAlgebraicText, format.ConversionBitfieldText:
		// No formula/bitfield evaluator is implemented; both pass the raw
		// value through untouched rather than fail the whole decode.
		return raw, nil

	default:
		return raw, nil
	}
}

func valueToValue(raw Value, cc block.Conversion) Value {
	x := raw.AsFloat64()
	n := len(cc.Val) / 2
	if n == 0 {
		return raw
	}
	if x <= cc.Val[0] {
		return Value{Kind: KindFloat, Float: cc.Val[1], Valid: raw.Valid}
	}
	if x >= cc.Val[(n-1)*2] {
		return Value{Kind: KindFloat, Float: cc.Val[(n-1)*2+1], Valid: raw.Valid}
	}
	for i := 0; i < n-1; i++ {
		x0, y0 := cc.Val[i*2], cc.Val[i*2+1]
		x1, y1 := cc.Val[(i+1)*2], cc.Val[(i+1)*2+1]
		if x >= x0 && x <= x1 {
			if x1 == x0 {
				return Value{Kind: KindFloat, Float: y0, Valid: raw.Valid}
			}
			y := y0 + (y1-y0)*(x-x0)/(x1-x0)
			return Value{Kind: KindFloat, Float: y, Valid: raw.Valid}
		}
	}

	return raw
}

func valueRangeToValue(raw Value, cc block.Conversion) Value {
	x := raw.AsFloat64()
	n := len(cc.Val) / 3
	for i := 0; i < n; i++ {
		lo, hi, val := cc.Val[i*3], cc.Val[i*3+1], cc.Val[i*3+2]
		if x >= lo && x <= hi {
			return Value{Kind: KindFloat, Float: val, Valid: raw.Valid}
		}
	}
	if len(cc.Val) == n*3+1 {
		return Value{Kind: KindFloat, Float: cc.Val[n*3], Valid: raw.Valid}
	}

	return raw
}

func valueToText(raw Value, cc block.Conversion, res Resolver, depth int) (Value, error) {
	x := raw.AsFloat64()
	n := len(cc.Val)
	for i := 0; i < n; i++ {
		if x == cc.Val[i] {
			return resolveTextRef(cc.Refs, i, res, raw, depth)
		}
	}
	if len(cc.Refs) == n+1 {
		return resolveTextRef(cc.Refs, n, res, raw, depth)
	}

	return raw, nil
}

func valueRangeToText(raw Value, cc block.Conversion, res Resolver, depth int) (Value, error) {
	x := raw.AsFloat64()
	n := len(cc.Val) / 2
	for i := 0; i < n; i++ {
		lo, hi := cc.Val[i*2], cc.Val[i*2+1]
		if x >= lo && x <= hi {
			return resolveTextRef(cc.Refs, i, res, raw, depth)
		}
	}
	if len(cc.Refs) == n+1 {
		return resolveTextRef(cc.Refs, n, res, raw, depth)
	}

	return raw, nil
}

// resolveTextRef resolves Refs[i], which is either a TX block (literal
// text) or a nested CC block (e.g. a formula producing the display text).
func resolveTextRef(refs []uint64, i int, res Resolver, raw Value, depth int) (Value, error) {
	if i < 0 || i >= len(refs) || refs[i] == 0 {
		return Value{Kind: KindString, Str: "", Valid: raw.Valid}, nil
	}

	nested, err := res.Conversion(refs[i])
	if err == nil && nested.Type != format.ConversionIdentity {
		return applyConversion(raw, nested, res, depth+1)
	}

	text, err := res.Text(refs[i])
	if err != nil {
		return Value{}, err
	}

	return Value{Kind: KindString, Str: text, Valid: raw.Valid}, nil
}

// textToValue maps a string raw value through a table of TX keys
// (cc.Refs[i]) to numeric outputs (cc.Val[i]), with cc.Val[n] as the
// trailing default when present.
func textToValue(raw Value, cc block.Conversion, res Resolver) (Value, error) {
	if raw.Kind != KindString {
		return raw, nil
	}
	n := len(cc.Refs)
	for i := 0; i < n && i < len(cc.Val); i++ {
		key, err := res.Text(cc.Refs[i])
		if err != nil {
			return Value{}, err
		}
		if key == raw.Str {
			return Value{Kind: KindFloat, Float: cc.Val[i], Valid: raw.Valid}, nil
		}
	}
	if len(cc.Val) == n+1 {
		return Value{Kind: KindFloat, Float: cc.Val[n], Valid: raw.Valid}, nil
	}

	return raw, nil
}

func textToText(raw Value, cc block.Conversion, res Resolver) (Value, error) {
	if raw.Kind != KindString {
		return raw, nil
	}
	n := len(cc.Refs) / 2
	for i := 0; i < n; i++ {
		key, err := res.Text(cc.Refs[i*2])
		if err != nil {
			return Value{}, err
		}
		if key == raw.Str {
			val, err := res.Text(cc.Refs[i*2+1])
			if err != nil {
				return Value{}, err
			}
			return Value{Kind: KindString, Str: val, Valid: raw.Valid}, nil
		}
	}
	if len(cc.Refs) == n*2+1 {
		val, err := res.Text(cc.Refs[n*2])
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: val, Valid: raw.Valid}, nil
	}

	return raw, nil
}
