// Package bus holds the pieces shared by the CAN, LIN, FlexRay, and
// Ethernet frame codecs (spec.md §4.7): the transmit/receive direction
// encoding, the per-logger frame statistics, and the export-path
// compression hook every RawLogger exposes.
//
// Each bus's codec lives in its own subpackage (bus/can, bus/lin,
// bus/flexray, bus/ethernet) and packs frames into the fixed
// channel-group layout ASAM MDF4 Bus Logging defines for that bus.
package bus

import (
	"github.com/mdf4kit/mdf4/compress"
	"github.com/mdf4kit/mdf4/format"
)

// Direction tags a logged frame as received or transmitted, using the u8
// encoding shared by every bus layout (spec.md §4.7: 0=Rx, 1=Tx).
type Direction uint8

const (
	DirectionRx Direction = 0
	DirectionTx Direction = 1
)

func (d Direction) String() string {
	if d == DirectionTx {
		return "Tx"
	}

	return "Rx"
}

// Stats aggregates a logger's frame counters: total frames, per-id counts,
// and the number of distinct ids seen (spec.md §4.7 "statistics").
type Stats struct {
	total uint64
	perID map[uint32]uint64
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{perID: make(map[uint32]uint64)}
}

// Record counts one frame under id.
func (s *Stats) Record(id uint32) {
	s.total++
	s.perID[id]++
}

// TotalFrameCount is the number of frames logged so far.
func (s *Stats) TotalFrameCount() uint64 { return s.total }

// CountForID is the number of frames logged under id.
func (s *Stats) CountForID(id uint32) uint64 { return s.perID[id] }

// UniqueIDCount is the number of distinct ids logged.
func (s *Stats) UniqueIDCount() int { return len(s.perID) }

// Compress runs finalized file bytes through the selected export codec.
// It never affects on-disk block bytes; it only wraps the fully built file
// for archival or network shipping (SPEC_FULL.md Domain Stack).
func Compress(raw []byte, ct format.CompressionType) ([]byte, error) {
	codec, err := compress.ForExport(ct)
	if err != nil {
		return nil, err
	}

	return codec.Compress(raw)
}
