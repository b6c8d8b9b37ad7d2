package decode

import (
	"github.com/mdf4kit/mdf4/block"
	"github.com/mdf4kit/mdf4/format"
)

// IsValid reports whether a channel's sample in record is marked valid,
// per spec.md §4.3 "validity (invalidation bit) handling":
//   - ChannelFlagAllInvalid forces every sample of the channel invalid.
//   - otherwise, if ChannelFlagInvalidBitValid is set, PosInvalBit indexes
//     a bit within the record's invalidation byte tail (data_bytes..
//     data_bytes+inval_bytes); a set bit marks the sample invalid.
//   - a channel with neither flag is always valid.
func IsValid(record []byte, cg block.ChannelGroup, cn block.Channel) (bool, error) {
	if cn.Flags.Has(format.ChannelFlagAllInvalid) {
		return false, nil
	}
	if !cn.Flags.Has(format.ChannelFlagInvalidBitValid) {
		return true, nil
	}

	byteIdx := uint64(cg.DataBytes) + uint64(cn.PosInvalBit)/8
	bitIdx := uint(cn.PosInvalBit % 8)
	if byteIdx >= uint64(len(record)) {
		// The invalidation bit falls past the record's actual length.
		// Treat the sample as valid rather than erroring (spec.md §4.3
		// step 1 leniency rule).
		return true, nil
	}

	return record[byteIdx]&(1<<bitIdx) == 0, nil
}
