package protocol

import (
	"golang.org/x/text/encoding/charmap"
)

// EncodeText encodes s one byte per character (ISO-8859-1). Receivers parse
// probes by fixed offsets, so a multi-byte encoding would break them.
func EncodeText(s string) ([]byte, error) {
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}

// DecodeText decodes a datagram one byte per character. Every byte value
// maps to exactly one rune, so no input is rejected.
func DecodeText(data []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// unreachable for ISO-8859-1
		return string(data)
	}
	return string(out)
}
