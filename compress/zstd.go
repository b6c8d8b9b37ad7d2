package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// rangeWindowSize caps the zstd match window for range fetches. A channel
// rectangle is at most a few KB per record, so the default 8MB window
// buys nothing and costs memory on every fetch.
const rangeWindowSize = 32 * 1024

// ZstdCodec wraps one encoder/decoder pair configured for a single
// purpose. Both EncodeAll and DecodeAll are stateless, so the pair is
// built once per purpose and shared.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Codec = (*ZstdCodec)(nil)

var zstdRange = sync.OnceValues(func() (*ZstdCodec, error) {
	return newZstdCodec(
		[]zstd.EOption{
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderCRC(false),
			zstd.WithWindowSize(rangeWindowSize),
			zstd.WithLowerEncoderMem(true),
		},
		[]zstd.DOption{
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		},
	)
})

var zstdExport = sync.OnceValues(func() (*ZstdCodec, error) {
	return newZstdCodec(
		[]zstd.EOption{
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderCRC(false),
		},
		[]zstd.DOption{
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		},
	)
})

func zstdFor(p Purpose) (*ZstdCodec, error) {
	if p == PurposeExport {
		return zstdExport()
	}

	return zstdRange()
}

func newZstdCodec(eopts []zstd.EOption, dopts []zstd.DOption) (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder setup: %w", err)
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder setup: %w", err)
	}

	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return c.enc.EncodeAll(data, nil), nil
}

func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return out, nil
}
