package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VerdictKind distinguishes the possible outcomes of Validate.
type VerdictKind int

const (
	// Valid means the whole trimmed input parses as a single JSON-RPC object.
	Valid VerdictKind = iota
	// Mixed means a prefix of prose precedes an otherwise valid JSON-RPC object.
	Mixed
	// Invalid means no JSON-RPC object could be found at all.
	Invalid
	// NotJsonRpc means the input is well-formed JSON but fails the shape check.
	NotJsonRpc
)

func (k VerdictKind) String() string {
	switch k {
	case Valid:
		return "Valid"
	case Mixed:
		return "Mixed"
	case NotJsonRpc:
		return "NotJsonRpc"
	default:
		return "Invalid"
	}
}

// Verdict is the result of validating a whole model response against the
// strict single-object JSON-RPC contract.
type Verdict struct {
	Kind VerdictKind
	// Text is the offending prose: the whole input for Invalid, the prefix
	// before the JSON for Mixed.
	Text string
	// JSON is the parsed object, present for Valid, Mixed (when a JSON
	// suffix was found), and NotJsonRpc.
	JSON *Object
}

// Validate trims the input, tries a whole-input parse, then looks for a
// JSON object starting at the first '{'.
func Validate(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Verdict{Kind: Invalid, Text: trimmed}
	}

	if obj, ok := tryParse(trimmed); ok {
		if hasShape(obj) {
			return Verdict{Kind: Valid, JSON: obj}
		}
		return Verdict{Kind: NotJsonRpc, JSON: obj}
	}

	if start := strings.IndexByte(trimmed, '{'); start >= 0 {
		if obj, ok := tryParse(trimmed[start:]); ok && hasShape(obj) {
			return Verdict{Kind: Mixed, Text: strings.TrimSpace(trimmed[:start]), JSON: obj}
		}
	}

	return Verdict{Kind: Invalid, Text: trimmed}
}

func tryParse(s string) (*Object, bool) {
	var obj Object
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	obj.Raw = s
	return &obj, true
}

const truncateAt = 200

func truncate(s string) string {
	if len(s) <= truncateAt {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q (truncated)", s[:truncateAt])
}

const canonicalExample = `{
  "jsonrpc": "2.0",
  "result": "Your message here...",
  "id": "response_id"
}`

// CorrectivePrompt builds the deterministic message to send back to the
// model for any non-Valid verdict: names the defect, echoes a truncated
// prefix of the offending text, and includes a canonical example.
// Returns "" for a Valid verdict — no correction is needed.
func CorrectivePrompt(v Verdict) string {
	switch v.Kind {
	case Valid:
		return ""

	case Invalid:
		return fmt.Sprintf(
			"Your last response was not in the required JSON-RPC 2.0 format. "+
				"Please reformat your response according to the protocol. "+
				"Your message should be formatted as a single, valid JSON-RPC object like this:\n\n%s\n\n"+
				"Your original message content was: %s\n\n"+
				"Please respond ONLY with a valid JSON-RPC object.",
			canonicalExample, truncate(v.Text))

	case Mixed:
		jsonPart := ""
		if v.JSON != nil {
			if pretty, err := json.MarshalIndent(v.JSON, "", "  "); err == nil {
				jsonPart = fmt.Sprintf("Your JSON part was: %s\n\n", string(pretty))
			}
		}
		return fmt.Sprintf(
			"Your last response mixed regular text with JSON-RPC, which breaks the protocol. "+
				"You should respond ONLY with a valid JSON-RPC object, not a combination of text and JSON.\n\n"+
				"Your text content was: %s\n\n%s"+
				"Please respond ONLY with a valid JSON-RPC object for your ENTIRE message.",
			truncate(v.Text), jsonPart)

	case NotJsonRpc:
		raw := ""
		if v.JSON != nil {
			raw = v.JSON.Raw
		}
		return fmt.Sprintf(
			"Your last response was valid JSON but not a valid JSON-RPC 2.0 object. "+
				"Your response must be a single JSON-RPC object with the required fields: "+
				"jsonrpc, result/error (or method+params), and id.\n\n"+
				"Your JSON was: %s\n\n"+
				"Please respond with a proper JSON-RPC object like this:\n\n%s",
			truncate(raw), canonicalExample)

	default:
		return ""
	}
}
