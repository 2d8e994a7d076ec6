package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_KeyOrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	a := Fingerprint("shell", json.RawMessage(`{"command":"ls","timeout_ms":100}`))
	b := Fingerprint("shell", json.RawMessage(`{"timeout_ms":100,"command":"ls"}`))
	assert.Equal(t, a, b)
}

func TestFingerprint_WhitespaceDoesNotMatter(t *testing.T) {
	t.Parallel()

	a := Fingerprint("shell", json.RawMessage(`{"command":"ls"}`))
	b := Fingerprint("shell", json.RawMessage(`{ "command" : "ls" }`))
	assert.Equal(t, a, b)
}

func TestFingerprint_DifferentToolOrParamsDiffer(t *testing.T) {
	t.Parallel()

	base := Fingerprint("shell", json.RawMessage(`{"command":"ls"}`))
	assert.NotEqual(t, base, Fingerprint("shell", json.RawMessage(`{"command":"pwd"}`)))
	assert.NotEqual(t, base, Fingerprint("grep", json.RawMessage(`{"command":"ls"}`)))
}

func TestLedger_CheckAndAddDetectsDuplicates(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	fp := Fingerprint("shell", json.RawMessage(`{"command":"ls"}`))

	assert.True(t, l.CheckAndAdd(fp))
	assert.False(t, l.CheckAndAdd(fp))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_ClearResetsState(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	fp := Fingerprint("shell", json.RawMessage(`{"command":"ls"}`))
	require.True(t, l.CheckAndAdd(fp))

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.True(t, l.CheckAndAdd(fp))
}
