package block

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/mdf4kit/mdf4/errs"
)

func newTruncatedLinksErr(tag string, want, got uint64) error {
	return errs.NewMalformedBlock(0, tag+" block has "+strconv.FormatUint(got, 10)+
		" links, need at least "+strconv.FormatUint(want, 10))
}

func newTruncatedBodyErr(tag string) error {
	return errs.NewMalformedBlock(0, tag+" block body truncated")
}

func float64FromBits(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func putFloat64Bits(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}
