package gopher

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// RootSelectorLabel is how the empty selector is shown in logs and reports.
const RootSelectorLabel = "(root selector)"

// terminators are the end-of-listing sequences, in the order they are tried.
var terminators = [][]byte{
	[]byte("\r\n.\r\n"),
	[]byte("\n.\n"),
	[]byte(".\r\n"),
}

// StripTerminator removes one trailing terminator from data, if present.
// Only the first matching form is removed and only from the very end.
func StripTerminator(data []byte) []byte {
	for _, t := range terminators {
		if bytes.HasSuffix(data, t) {
			return data[:len(data)-len(t)]
		}
	}
	return data
}

// DecodeText converts a response to a string. UTF-8 is tried first; invalid
// UTF-8 is decoded as ISO-8859-1, which maps every byte to a rune and so never
// fails. The second return value reports whether the fallback was used.
func DecodeText(data []byte) (string, bool) {
	if utf8.Valid(data) {
		return string(data), false
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO-8859-1 defines all 256 bytes; keep going with replacement runes.
		return strings.ToValidUTF8(string(data), string(utf8.RuneError)), true
	}
	return string(decoded), true
}

// encodeRequest builds the request bytes for selector. A selector that is not
// valid UTF-8 is sent as ISO-8859-1 with unsupported runes replaced.
func encodeRequest(selector string) []byte {
	if utf8.ValidString(selector) {
		return []byte(selector + "\r\n")
	}
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	encoded, err := enc.String(strings.ToValidUTF8(selector, "?"))
	if err != nil {
		encoded = strings.ToValidUTF8(selector, "?")
	}
	return []byte(encoded + "\r\n")
}

// DisplaySelector renders a selector for humans: control characters are
// escaped and the empty selector becomes RootSelectorLabel.
func DisplaySelector(selector string) string {
	if selector == "" {
		return RootSelectorLabel
	}
	return EscapeControl(selector)
}

// EscapeControl replaces CR, LF and TAB with their backslash escapes and any
// other control character with a \xNN escape.
func EscapeControl(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case isControl(r):
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[(r>>4)&0xF])
			sb.WriteByte(hexDigits[r&0xF])
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EscapeText prepares a multi-line body for a terminal. Line breaks and tabs
// are kept, CRLF becomes LF, and every other control character, including a
// lone CR and the ESC of terminal sequences, gets a \xNN escape.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.IndexFunc(s, isEscapedInText) < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for _, r := range s {
		if isEscapedInText(r) {
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[(r>>4)&0xF])
			sb.WriteByte(hexDigits[r&0xF])
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isEscapedInText(r rune) bool {
	return isControl(r) && r != '\n' && r != '\t'
}

const hexDigits = "0123456789abcdef"

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7F
}
