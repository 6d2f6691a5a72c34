package catalog

import "fmt"

// EncodeTag renders a tag: one byte below 0x100, else two bytes big-endian.
func EncodeTag(tag Tag) []byte {
	if tag < 0x100 {
		return []byte{byte(tag)}
	}
	return []byte{byte(tag >> 8), byte(tag)}
}

// EncodeLength renders a BER-TLV length. Short form for values under
// 0x80; the compound `0x81 LL` form for 0x80-0xff; `0x82 HH LL` beyond
// that for robustness, though no catalog entry in this card is expected
// to reach it.
func EncodeLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n < 0x100:
		return []byte{0x81, byte(n)}
	default:
		return []byte{0x82, byte(n >> 8), byte(n)}
	}
}

// EncodeTLV renders tag + length + value as one contiguous buffer; used
// both by CmpRead dispatch (for each child) and by any external caller
// that needs to frame a tag outside the catalog's own GET DATA path (the
// card's GET PUBLIC KEY response, for instance).
func EncodeTLV(tag Tag, value []byte) ([]byte, error) {
	if len(value) > 0xffff {
		return nil, fmt.Errorf("catalog: value for tag %#x too large for TLV framing", tag)
	}
	out := append([]byte{}, EncodeTag(tag)...)
	out = append(out, EncodeLength(len(value))...)
	out = append(out, value...)
	return out, nil
}
