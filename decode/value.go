// Package decode implements bit-exact channel decoding: validity handling,
// byte/bit extraction, typed sample production, and conversion application
// (spec.md §4.3 "Channel Decoder").
package decode

// Kind identifies which field of a Value holds the decoded sample.
type Kind uint8

const (
	KindUnsigned Kind = iota
	KindSigned
	KindFloat
	KindString
	KindBytes
)

// Value is one decoded channel sample: either a physical (converted) value
// or a raw value, tagged by Kind, plus its validity bit.
type Value struct {
	Kind    Kind
	Uint    uint64
	Int     int64
	Float   float64
	Str     string
	Bytes   []byte
	Valid   bool
}

// AsFloat64 returns the value widened to float64 regardless of Kind,
// useful once a numeric conversion has been applied. Strings and byte
// arrays return 0.
func (v Value) AsFloat64() float64 {
	switch v.Kind {
	case KindUnsigned:
		return float64(v.Uint)
	case KindSigned:
		return float64(v.Int)
	case KindFloat:
		return v.Float
	default:
		return 0
	}
}
