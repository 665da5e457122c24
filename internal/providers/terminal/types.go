package terminal

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/agentkube/desktop/backend/internal/logging"
)

// KindType discriminates session kinds
type KindType string

const (
	KindLocal  KindType = "local"
	KindRemote KindType = "remote"
)

// Kind describes a session's execution context. Remote carries target
// metadata only; the concurrency model is identical for both kinds.
type Kind struct {
	Type      KindType `json:"type"`
	Target    string   `json:"target,omitempty"`
	Container string   `json:"container,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
}

// LocalKind returns the kind for a local shell session
func LocalKind() Kind {
	return Kind{Type: KindLocal}
}

// SessionInfo is the public snapshot of a session
type SessionInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	CreatedAt int64  `json:"created_at"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	Active    bool   `json:"active"`
}

// Session represents one pty-backed shell session. It is owned by the
// Manager's registry once inserted; nothing else mutates it.
type Session struct {
	id        string
	kind      Kind
	createdAt int64
	log       *logging.Logger

	mu   sync.RWMutex // guards name, cols, rows
	name string
	cols int
	rows int

	writeMu sync.Mutex // serializes writes to the pty master
	readMu  sync.Mutex // Read is the sole channel consumer
	ptmx    *os.File
	cmd     *exec.Cmd

	output chan []byte   // delivery channel, closed by the pump on exit
	done   chan struct{} // closed by Close, releases a blocked pump send
	exited atomic.Bool   // set when the pump terminates
}

func (s *Session) info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:        s.id,
		Name:      s.name,
		Kind:      s.kind,
		CreatedAt: s.createdAt,
		Cols:      s.cols,
		Rows:      s.rows,
		Active:    !s.exited.Load(),
	}
}

// write flushes data to the pty master in full, never interleaving with
// another writer.
func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for len(data) > 0 {
		n, err := s.ptmx.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
