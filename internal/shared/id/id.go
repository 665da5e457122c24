// Package id provides centralized ID generation for the backend.
//
// All identifiers are ULIDs with a type-specific prefix (term_*, req_*),
// which keeps them lexicographically sortable by creation time and makes
// logs readable without a lookup table.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TerminalID identifies a terminal session
type TerminalID string

// RequestID identifies an API request
type RequestID string

const (
	TerminalPrefix = "term"
	RequestPrefix  = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewTerminalID generates a new terminal session ID
func NewTerminalID() TerminalID {
	return TerminalID(Default().GenerateWithPrefix(TerminalPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id TerminalID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// Short returns the first n characters of the ULID body, for display names.
func Short(id string, n int) string {
	body := id
	if i := strings.IndexByte(id, '_'); i >= 0 {
		body = id[i+1:]
	}
	if len(body) < n {
		return body
	}
	return body[:n]
}

// IsValid checks if an ID string carries a valid ULID body
func IsValid(id string) bool {
	body := id
	if i := strings.IndexByte(id, '_'); i >= 0 {
		body = id[i+1:]
	}
	_, err := ulid.Parse(body)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed ID
func Timestamp(id string) (time.Time, error) {
	body := id
	if i := strings.IndexByte(id, '_'); i >= 0 {
		body = id[i+1:]
	}
	parsed, err := ulid.Parse(body)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
