package writer

import "github.com/mdf4kit/mdf4/internal/options"

// Option configures a Writer at InitFile time, following the generic
// functional-options pattern shared across this module (internal/options,
// ported from mebo).
type Option = options.Option[*Writer]

// WithProgramID sets the 8-byte program id written to the file
// identification preamble. It is truncated/padded to 8 bytes.
func WithProgramID(id string) Option {
	return options.NoError[*Writer](func(w *Writer) { w.programID = id })
}

// WithVersionNumber sets the MDF version written to the identification
// preamble, e.g. 410 for "4.10".
func WithVersionNumber(v uint16) Option {
	return options.NoError[*Writer](func(w *Writer) { w.versionNumber = v })
}

// WithFlushPolicy sets the writer's automatic flush policy
// (spec.md §4.4, grounded on original_source's FlushPolicy).
func WithFlushPolicy(p FlushPolicy) Option {
	return options.NoError[*Writer](func(w *Writer) { w.flushPolicy = p })
}

// WithChunkSize bounds how many record bytes accumulate in a single DT
// block before Flush rotates to a new one, chaining the closed blocks
// together with a DL at Finalize (spec.md §4.4 "appendable DT/DL chains").
// A size of zero (the default) never rotates: the whole capture lives in
// one DT.
func WithChunkSize(bytes uint64) Option {
	return options.NoError[*Writer](func(w *Writer) { w.chunkSize = bytes })
}
