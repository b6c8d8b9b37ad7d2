package block

import "encoding/binary"

// SignalData is the "##SD" block: the byte pool backing VLSD channels.
// Each entry is a 4-byte little-endian length prefix followed by that many
// raw bytes (spec.md §3 SD entity / §4.7 VLSD channel groups).
type SignalData struct {
	Data []byte
}

// ParseSD reads an SDBLOCK from data.
func ParseSD(data []byte) (SignalData, error) {
	h, err := ParseHeader(data, "##SD")
	if err != nil {
		return SignalData{}, err
	}

	return SignalData{Data: data[HeaderSize:h.Length]}, nil
}

// ToBytes serializes the SDBLOCK.
func (sd SignalData) ToBytes() []byte {
	total := Align8(HeaderSize + len(sd.Data))
	buf := make([]byte, total)
	PutHeader(buf, "##SD", uint64(total), 0)
	copy(buf[HeaderSize:], sd.Data)

	return buf
}

// EntryAt reads the length-prefixed entry at byte offset off within the
// signal data pool, returning its payload and the offset immediately past
// it.
func (sd SignalData) EntryAt(off uint64) ([]byte, uint64, error) {
	if off+4 > uint64(len(sd.Data)) {
		return nil, 0, newTruncatedBodyErr("SD")
	}
	n := binary.LittleEndian.Uint32(sd.Data[off : off+4])
	start := off + 4
	end := start + uint64(n)
	if end > uint64(len(sd.Data)) {
		return nil, 0, newTruncatedBodyErr("SD")
	}

	return sd.Data[start:end], end, nil
}

// AppendEntry appends a length-prefixed entry to the pool and returns the
// byte offset it was written at.
func (sd *SignalData) AppendEntry(payload []byte) uint64 {
	off := uint64(len(sd.Data))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	sd.Data = append(sd.Data, lenBuf[:]...)
	sd.Data = append(sd.Data, payload...)

	return off
}
