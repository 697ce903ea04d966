package stream

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// DecodeMacRoman converts legacy Pascal-string bytes to UTF-8.
func DecodeMacRoman(b []byte) string {
	out, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// DecodeUTF16BE converts big-endian UTF-16 code units to UTF-8, dropping a
// leading byte-order mark and trailing NULs.
func DecodeUTF16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
	}
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// EncodeUTF16BE is the inverse of DecodeUTF16BE, without a byte-order mark.
func EncodeUTF16BE(s string) []byte {
	out, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return out
}

// DecodeLatin1 converts ISO-8859-1 bytes to UTF-8.
func DecodeLatin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
