package block

import (
	"encoding/binary"

	"github.com/mdf4kit/mdf4/errs"
)

// IdentificationSize is the fixed size of the file identification preamble
// at address 0 (spec.md §6 "ID block").
const IdentificationSize = 64

// Identification is the 64-byte file preamble. It precedes the block graph
// and is not itself a tagged block (no 24-byte header, no links).
type Identification struct {
	FileID         [8]byte // "MDF     "
	FormatID       [8]byte // e.g. "4.10    "
	ProgramID      [8]byte
	VersionNumber  uint16 // e.g. 410 for 4.10
	Unfinalized    bool
	CustomFlags    uint16
}

// DefaultFileID is the fixed magic written at offset 0 of every MDF4 file.
var DefaultFileID = [8]byte{'M', 'D', 'F', ' ', ' ', ' ', ' ', ' '}

// ParseIdentification reads the fixed 64-byte preamble from the front of
// data.
func ParseIdentification(data []byte) (Identification, error) {
	if len(data) < IdentificationSize {
		return Identification{}, errs.NewMalformedBlock(0, "identification block truncated")
	}

	var id Identification
	copy(id.FileID[:], data[0:8])
	copy(id.FormatID[:], data[8:16])
	copy(id.ProgramID[:], data[16:24])
	// bytes 24..28 reserved
	id.VersionNumber = binary.LittleEndian.Uint16(data[28:30])
	// bytes 30..40 reserved
	flags := binary.LittleEndian.Uint16(data[40:42])
	id.Unfinalized = flags&0x1 != 0
	id.CustomFlags = flags

	if id.FileID != DefaultFileID {
		return Identification{}, errs.NewMalformedBlock(0, "missing MDF file magic")
	}

	return id, nil
}

// ToBytes serializes the preamble to its fixed 64-byte form.
func (id Identification) ToBytes() []byte {
	buf := make([]byte, IdentificationSize)
	copy(buf[0:8], id.FileID[:])
	copy(buf[8:16], id.FormatID[:])
	copy(buf[16:24], id.ProgramID[:])
	binary.LittleEndian.PutUint16(buf[28:30], id.VersionNumber)
	flags := id.CustomFlags
	if id.Unfinalized {
		flags |= 0x1
	}
	binary.LittleEndian.PutUint16(buf[40:42], flags)

	return buf
}

// NewIdentification builds a preamble for a freshly written file at the
// given format version (e.g. 410 for "4.10").
func NewIdentification(programID string, versionNumber uint16) Identification {
	id := Identification{
		FileID:        DefaultFileID,
		VersionNumber: versionNumber,
	}
	copy(id.ProgramID[:], programID)
	formatStr := formatVersionString(versionNumber)
	copy(id.FormatID[:], formatStr)

	return id
}

func formatVersionString(v uint16) string {
	major := v / 100
	minor := v % 100
	buf := make([]byte, 0, 8)
	buf = append(buf, byte('0'+major))
	buf = append(buf, '.')
	buf = append(buf, byte('0'+minor/10), byte('0'+minor%10))
	for len(buf) < 8 {
		buf = append(buf, ' ')
	}

	return string(buf)
}
