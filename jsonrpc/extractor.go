package jsonrpc

import (
	"encoding/json"
	"strings"

	"github.com/nrcarlson/mcpcore/internal/logging"
)

var log = logging.For("jsonrpc")

// Extract scans text for JSON-RPC 2.0 objects. It returns them in the
// order they appear; malformed or non-RPC JSON spans are skipped
// silently. Extraction does not require the whole input to be JSON — this
// is what lets tool calls live inside a sentence of prose.
func Extract(text string) []Object {
	if len(text) < 2 {
		return nil
	}

	var out []Object
	pos := 0
	for {
		start := strings.IndexByte(text[pos:], '{')
		if start < 0 {
			break
		}
		start += pos

		end, ok := matchingBrace(text, start)
		if !ok {
			// Unmatched opening brace (a stray brace or a truncated object):
			// skip just this brace and keep scanning, so a complete object
			// that starts later is still found.
			pos = start + 1
			continue
		}

		span := text[start : end+1]
		pos = end + 1

		var obj Object
		if err := json.Unmarshal([]byte(span), &obj); err != nil {
			log.Debug("skipping unparseable span", "len", len(span), "err", err)
			continue
		}
		obj.Raw = span

		if !hasShape(&obj) {
			log.Debug("skipping JSON object that is not JSON-RPC shaped")
			continue
		}

		out = append(out, obj)
	}

	return out
}

// matchingBrace finds the index of the '}' that closes the '{' at openIdx,
// tracking whether the scan is inside a quoted string (honoring backslash
// escapes) so a '}' appearing in a string value never closes the object
// early. Returns ok=false if the input ends before the brace closes.
func matchingBrace(text string, openIdx int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := openIdx; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
