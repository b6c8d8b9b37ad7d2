package writer

import "github.com/mdf4kit/mdf4/format"

// FlushPolicy governs automatic flushing of buffered record data during a
// long-running capture, grounded on original_source/src/writer/streaming.rs
// FlushPolicy. The zero value is Manual: flush only happens on an explicit
// Flush() or Finalize() call.
type FlushPolicy struct {
	Kind format.FlushPolicyKind
	N    uint64 // record count or byte count threshold, depending on Kind
}

// ManualFlush never auto-flushes.
func ManualFlush() FlushPolicy { return FlushPolicy{Kind: format.FlushManual} }

// FlushEveryNRecords auto-flushes once at least n records have been
// written across all channel groups since the last flush.
func FlushEveryNRecords(n uint64) FlushPolicy {
	return FlushPolicy{Kind: format.FlushEveryNRecords, N: n}
}

// FlushEveryNBytes auto-flushes once at least n bytes of record data have
// been written since the last flush.
func FlushEveryNBytes(n uint64) FlushPolicy {
	return FlushPolicy{Kind: format.FlushEveryNBytes, N: n}
}

// IsAuto reports whether this policy requires automatic flushing.
func (p FlushPolicy) IsAuto() bool { return p.Kind != format.FlushManual }

// flushState tracks the bookkeeping FlushPolicy decisions are made from,
// grounded on streaming.rs's FlushState.
type flushState struct {
	recordsSinceFlush uint64
	bytesSinceFlush   uint64
	totalRecords      uint64
	totalBytes        uint64
	flushCount        uint64
}

func (s *flushState) recordWrite(records, bytes uint64) {
	s.recordsSinceFlush += records
	s.bytesSinceFlush += bytes
	s.totalRecords += records
	s.totalBytes += bytes
}

func (s *flushState) shouldFlush(p FlushPolicy) bool {
	switch p.Kind {
	case format.FlushEveryNRecords:
		return s.recordsSinceFlush >= p.N
	case format.FlushEveryNBytes:
		return s.bytesSinceFlush >= p.N
	default:
		return false
	}
}

func (s *flushState) onFlush() {
	s.recordsSinceFlush = 0
	s.bytesSinceFlush = 0
	s.flushCount++
}

// FlushStats reports the writer's cumulative flush bookkeeping
// (SPEC_FULL.md Supplemented Features: Writer.FlushStats()).
type FlushStats struct {
	RecordsSinceFlush uint64
	BytesSinceFlush   uint64
	TotalRecords      uint64
	TotalBytes        uint64
	FlushCount        uint64
}
