// Package id provides centralized ID generation for the terminal engine.
//
// All identifiers are prefixed ULIDs: lexicographically sortable, unique
// across concurrently-created sessions, and readable in logs (sess_*, line_*,
// proc_*, req_*). Type-specific wrappers prevent mixing session ids with line
// ids at compile time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one terminal tab.
type SessionID string

// LineID identifies a transcript line within a session.
type LineID string

// ProcessID identifies an in-flight command execution.
type ProcessID string

// RequestID identifies an API request.
type RequestID string

const (
	SessionPrefix = "sess"
	LinePrefix    = "line"
	ProcessPrefix = "proc"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator with the given entropy source.
// Tests may pass a deterministic reader.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewLineID generates a new line ID.
func NewLineID() LineID {
	return LineID(Default().GenerateWithPrefix(LinePrefix))
}

// NewProcessID generates a new process ID.
func NewProcessID() ProcessID {
	return ProcessID(Default().GenerateWithPrefix(ProcessPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id LineID) String() string    { return string(id) }
func (id ProcessID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
