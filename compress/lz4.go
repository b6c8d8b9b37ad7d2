package compress

import (
	"errors"

	"github.com/pierrec/lz4/v4"
)

// LZ4Codec compresses with LZ4 block framing. The range profile uses the
// fast block encoder; the export profile uses the HC encoder, whose
// slower match search only runs once per finalized capture.
type LZ4Codec struct {
	highCompression bool
}

var _ Codec = LZ4Codec{}

func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	var n int
	var err error
	if c.highCompression {
		hc := lz4.CompressorHC{Level: lz4.Level4}
		n, err = hc.CompressBlock(data, dst)
	} else {
		var lc lz4.Compressor
		n, err = lc.CompressBlock(data, dst)
	}
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// Decompress sizes its buffer adaptively since LZ4 block frames do not
// carry the decompressed size: start at 4x the compressed size, double on
// a short-buffer error up to a 128MB safety limit.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	const maxSize = 128 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}

			return nil, err
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}
