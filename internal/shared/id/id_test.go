package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTerminalID(t *testing.T) {
	sid := NewTerminalID()

	assert.True(t, strings.HasPrefix(sid.String(), TerminalPrefix+"_"))
	assert.True(t, IsValid(sid.String()))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[TerminalID]bool)
	for i := 0; i < 1000; i++ {
		sid := NewTerminalID()
		assert.False(t, seen[sid], "duplicate ID generated: %s", sid)
		seen[sid] = true
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	sid := NewTerminalID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(sid.String())
	require.NoError(t, err)
	assert.True(t, ts.After(before) && ts.Before(after))
}

func TestShort(t *testing.T) {
	assert.Len(t, Short("term_01HX3ZK9QWERTY", 6), 6)
	assert.Equal(t, "abc", Short("req_abc", 6))
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid("term_not-a-ulid"))
}
