package compress

import "github.com/klauspost/compress/s2"

// S2Codec compresses with S2. The range profile uses the fast encoder; the
// export profile uses EncodeBetter, worth the extra CPU on a blob written
// once per capture. The destination is presized from MaxEncodedLen so a
// tiny channel-range payload compresses without buffer growth.
type S2Codec struct {
	better bool
}

var _ Codec = S2Codec{}

func (c S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, s2.MaxEncodedLen(len(data)))
	if c.better {
		return s2.EncodeBetter(dst, data), nil
	}

	return s2.Encode(dst, data), nil
}

func (c S2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, err
	}

	return s2.Decode(make([]byte, n), data)
}
