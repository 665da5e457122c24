package terminal

import (
	"strings"
	"unicode/utf8"
)

// LossyText converts raw terminal output to a string, substituting the
// replacement character for invalid UTF-8. The stream is not chunked on
// character boundaries, so a multi-byte sequence split across two drain
// cycles is mangled at the boundary instead of being buffered until the
// rest arrives. Known limitation; callers needing exact bytes should use
// the raw slice.
func LossyText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
