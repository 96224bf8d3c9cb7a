package channel

import "regexp"

// ansiEscapeRegex matches CSI/OSC-style ANSI escape sequences, written
// against the ECMA-48 CSI grammar: ESC '[' followed by
// parameter/intermediate bytes and a final byte in 0x40-0x7E.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07|\x1b[@-Z\\-_]`)

// stripANSI removes escape sequences from b. It is idempotent:
// stripANSI(stripANSI(x)) == stripANSI(x), since it repeats the replacement
// until the regex no longer matches (removing one sequence can join the
// bytes around it into a new one).
func stripANSI(b []byte) []byte {
	out := ansiEscapeRegex.ReplaceAll(b, nil)
	for ansiEscapeRegex.Match(out) {
		out = ansiEscapeRegex.ReplaceAll(out, nil)
	}
	return out
}
