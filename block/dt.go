package block

// DataBlock is the "##DT" block: a raw concatenation of fixed-size records
// belonging to one data group, with no links and no compression
// (spec.md §3 DT entity; SPEC_FULL.md Domain Stack keeps compression
// strictly off the on-disk block bytes).
type DataBlock struct {
	Data []byte
}

// ParseDT reads a DTBLOCK from data.
func ParseDT(data []byte) (DataBlock, error) {
	h, err := ParseHeader(data, "##DT")
	if err != nil {
		return DataBlock{}, err
	}

	return DataBlock{Data: data[HeaderSize:h.Length]}, nil
}

// ToBytes serializes the DTBLOCK.
func (dt DataBlock) ToBytes() []byte {
	total := Align8(HeaderSize + len(dt.Data))
	buf := make([]byte, total)
	PutHeader(buf, "##DT", uint64(total), 0)
	copy(buf[HeaderSize:], dt.Data)

	return buf
}
