package compress

// NoOpCompressor copies data through unchanged. It is the default codec
// for readers/writers that never opt into export compression.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a pass-through codec.
func NewNoOpCompressor() NoOpCompressor { return NoOpCompressor{} }

func (c NoOpCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
