package channel

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeBestEffort returns b as UTF-8 text. Devices occasionally emit bytes
// that aren't valid UTF-8 (raw ISO-8859-1 from older firmware); in that
// case fall back to decoding as Latin-1, which always succeeds since every
// byte value is a valid Latin-1 code point.
func decodeBestEffort(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return b
	}
	return out
}
