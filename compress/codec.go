// Package compress provides byte compressors for the export path only:
// remote/partial channel-range fetches (convert.Index.FetchCompressed)
// and archival bus-log export (bus/*.RawLogger.FinalizeCompressed).
// On-disk block bytes (DT/DL/SD) are always raw per spec.md §3; this
// package never touches them.
//
// The two consumers have opposite profiles, so every codec is built for
// one of two purposes rather than from general-purpose defaults:
//
//   - range fetches hand over many tiny payloads (one channel rectangle
//     per record, bytes to a few KB) and are latency-bound;
//   - export compresses one finalized file blob per capture and is
//     ratio-bound.
//
// The engine is single-threaded (spec.md §5), so codecs are plain shared
// values configured once; there is no encoder pooling to amortize
// contention that never occurs.
package compress

import (
	"fmt"

	"github.com/mdf4kit/mdf4/format"
)

// Compressor compresses a byte slice.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a byte slice previously produced by the
// matching Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

// Purpose selects the tuning profile a codec is built with.
type Purpose uint8

const (
	// PurposeRange tunes for channel byte-range fetches: small payloads,
	// many calls, speed over ratio.
	PurposeRange Purpose = iota
	// PurposeExport tunes for one-shot archival of finalized files:
	// large blobs, ratio over speed.
	PurposeExport
)

// ForRange builds a Codec tuned for channel byte-range fetches.
func ForRange(ct format.CompressionType) (Codec, error) {
	return ForPurpose(ct, PurposeRange)
}

// ForExport builds a Codec tuned for archival export of finalized files.
func ForExport(ct format.CompressionType) (Codec, error) {
	return ForPurpose(ct, PurposeExport)
}

// ForPurpose builds a Codec for the given compression type and purpose.
func ForPurpose(ct format.CompressionType, p Purpose) (Codec, error) {
	switch ct {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return zstdFor(p)
	case format.CompressionS2:
		return S2Codec{better: p == PurposeExport}, nil
	case format.CompressionLZ4:
		return LZ4Codec{highCompression: p == PurposeExport}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", ct)
	}
}
