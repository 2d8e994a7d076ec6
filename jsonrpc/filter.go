package jsonrpc

import (
	"encoding/json"
	"strings"
)

// Placeholder replaces a detected tool-call JSON-RPC object in user-facing
// output.
const Placeholder = "[tool invocation]"

// Filter strips JSON-RPC tool-call envelopes from text intended for a human
// reader. A well-formed tool call is replaced by Placeholder; a span that
// merely looks JSON-shaped and carries a "jsonrpc"/"method" marker but fails
// to parse is removed outright (it is noise, not prose). Anything that does
// not carry those markers — including ordinary braces in prose or code
// samples — is left untouched. Filter is idempotent: Filter(Filter(x)) ==
// Filter(x), since Placeholder itself contains no brace for a second pass
// to find.
func Filter(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}

	var b strings.Builder
	pos := 0
	for {
		start := strings.IndexByte(text[pos:], '{')
		if start < 0 {
			b.WriteString(text[pos:])
			break
		}
		start += pos

		end, ok := matchingBrace(text, start)
		if !ok {
			// Unmatched brace: keep it verbatim and resume scanning after it,
			// same as the extractor's handling of a stray brace.
			b.WriteString(text[pos : start+1])
			pos = start + 1
			continue
		}

		span := text[start : end+1]
		b.WriteString(text[pos:start])

		if !looksLikeRPC(span) {
			b.WriteString(span)
			pos = end + 1
			continue
		}

		var obj Object
		if err := json.Unmarshal([]byte(span), &obj); err == nil && obj.IsToolCall() {
			b.WriteString(Placeholder)
		}
		// else: JSON-shaped, carries jsonrpc/method markers, but either
		// failed to parse or isn't a tool call — drop it silently.

		pos = end + 1
	}

	return b.String()
}

// looksLikeRPC is a cheap pre-check — it never flags text that merely
// contains braces without jsonrpc/method — gating the expensive parse
// attempt and the decision to drop an unparseable span.
func looksLikeRPC(span string) bool {
	return strings.Contains(span, "jsonrpc") && strings.Contains(span, "method")
}
