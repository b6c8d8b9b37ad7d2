package block

// TextBlock ("##TX") and MetadataBlock ("##MD") both hold a null-terminated,
// 8-byte-padded UTF-8 payload with no links (spec.md §4.2). MD additionally
// permits XML content; the wire shape is identical so one type serves both,
// distinguished only by the tag used to serialize it.
type TextBlock struct {
	Tag  string // "##TX" or "##MD"
	Text string
}

// NewText builds a TextBlock carrying plain text.
func NewText(text string) TextBlock { return TextBlock{Tag: "##TX", Text: text} }

// NewMetadata builds a TextBlock carrying XML metadata.
func NewMetadata(xml string) TextBlock { return TextBlock{Tag: "##MD", Text: xml} }

// ParseTextBlock reads a TX or MD block from data.
func ParseTextBlock(data []byte) (TextBlock, error) {
	h, err := ParseHeader(data, "")
	if err != nil {
		return TextBlock{}, err
	}
	if h.Tag() != "##TX" && h.Tag() != "##MD" {
		return TextBlock{}, errMismatch(h.Tag(), "##TX or ##MD")
	}

	body := data[HeaderSize:h.Length]

	return TextBlock{Tag: h.Tag(), Text: TrimText(body)}, nil
}

// ToBytes serializes the text block.
func (t TextBlock) ToBytes() []byte {
	payload := PadText(t.Text)
	buf := make([]byte, HeaderSize+len(payload))
	PutHeader(buf, t.Tag, uint64(len(buf)), 0)
	copy(buf[HeaderSize:], payload)

	return buf
}
