package writer

import "github.com/mdf4kit/mdf4/decode"

// UnsignedInteger builds a writer sample holding an unsigned integer.
func UnsignedInteger(v uint64) decode.Value {
	return decode.Value{Kind: decode.KindUnsigned, Uint: v, Valid: true}
}

// SignedInteger builds a writer sample holding a signed integer.
func SignedInteger(v int64) decode.Value {
	return decode.Value{Kind: decode.KindSigned, Int: v, Valid: true}
}

// Float builds a writer sample holding a floating point value.
func Float(v float64) decode.Value {
	return decode.Value{Kind: decode.KindFloat, Float: v, Valid: true}
}

// String builds a writer sample holding text.
func String(v string) decode.Value {
	return decode.Value{Kind: decode.KindString, Str: v, Valid: true}
}

// Bytes builds a writer sample holding an opaque byte array.
func Bytes(v []byte) decode.Value {
	return decode.Value{Kind: decode.KindBytes, Bytes: v, Valid: true}
}
