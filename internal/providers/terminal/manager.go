package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/agentkube/desktop/backend/internal/shared/id"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

const (
	defaultCols = 80
	defaultRows = 24

	// pty winsize fields are uint16
	maxDim = 65535

	// one pump read per chunk; chunks are forwarded without delay
	readBufSize = 4096

	// depth of the delivery channel between pump and Read
	deliveryDepth = 256

	// grace before the initial command is written, giving the shell time
	// to come up; if it is not ready the bytes sit in the pty queue
	primeDelay = 500 * time.Millisecond
)

var (
	// ErrSessionNotFound is returned for unknown session identifiers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned by Read once the delivery channel is
	// disconnected and no buffered data remains. It is a normal
	// end-of-life signal, not a failure.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidSize is returned when a requested geometry does not fit
	// the pty winsize limits.
	ErrInvalidSize = errors.New("invalid terminal size")
)

func validSize(cols, rows int) bool {
	return cols > 0 && cols <= maxDim && rows > 0 && rows <= maxDim
}

// CreateOptions configures a new session. Zero values select defaults.
type CreateOptions struct {
	Name           string
	Cols           int
	Rows           int
	InitialCommand string
}

// Manager owns the session registry and the public operation surface.
type Manager struct {
	log *logging.Logger
	bus *events.Bus

	defaultCols int
	defaultRows int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefaultSize overrides the 80x24 geometry applied when CreateOptions
// leaves Cols or Rows unset. Non-positive values keep the built-in default.
func WithDefaultSize(cols, rows int) Option {
	return func(m *Manager) {
		if cols > 0 {
			m.defaultCols = cols
		}
		if rows > 0 {
			m.defaultRows = rows
		}
	}
}

// NewManager creates a session manager. bus may be nil.
func NewManager(log *logging.Logger, bus *events.Bus, opts ...Option) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	m := &Manager{
		log:         log,
		bus:         bus,
		defaultCols: defaultCols,
		defaultRows: defaultRows,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a pty at the requested size, spawns the platform shell and
// registers a new session. Partially constructed resources are released
// before an error is returned.
func (m *Manager) Create(opts CreateOptions) (SessionInfo, error) {
	cols := opts.Cols
	if cols == 0 {
		cols = m.defaultCols
	}
	rows := opts.Rows
	if rows == 0 {
		rows = m.defaultRows
	}
	if !validSize(cols, rows) {
		return SessionInfo{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}

	spec := ShellSpec(runtime.GOOS, os.Getenv)
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to spawn shell %q: %w", spec.Path, err)
	}

	sid := id.NewTerminalID().String()
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Terminal %s", id.Short(sid, 6))
	}

	s := &Session{
		id:        sid,
		kind:      LocalKind(),
		createdAt: time.Now().Unix(),
		log:       m.log.WithSession(sid),
		name:      name,
		cols:      cols,
		rows:      rows,
		ptmx:      ptmx,
		cmd:       cmd,
		output:    make(chan []byte, deliveryDepth),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[sid] = s
	m.mu.Unlock()

	go m.pump(s)
	go m.reap(s)

	if opts.InitialCommand != "" {
		go m.prime(s, opts.InitialCommand)
	}

	s.log.Info("created terminal session",
		zap.String("shell", spec.Path),
		zap.Int("cols", cols),
		zap.Int("rows", rows),
	)
	m.publish(events.TypeSessionCreated, s.info())

	return s.info(), nil
}

// pump continuously copies raw bytes from the pty master into the delivery
// channel. It terminates on EOF, read error, or when Close signals that the
// consumer is gone, and closing the channel is its final act.
func (m *Manager) pump(s *Session) {
	defer func() {
		s.exited.Store(true)
		close(s.output)
	}()

	buf := make([]byte, readBufSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.output <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			// a pty master read fails with EIO once the child exits;
			// treat it like EOF
			if err != io.EOF && !errors.Is(err, os.ErrClosed) {
				s.log.Debug("pty reader terminated", zap.Error(err))
			}
			return
		}
	}
}

// reap waits on the child so an exited shell never lingers as a zombie.
func (m *Manager) reap(s *Session) {
	if err := s.cmd.Wait(); err != nil {
		s.log.Debug("shell exited", zap.Error(err))
	}
}

// prime injects the initial command once the shell has had time to start.
func (m *Manager) prime(s *Session, command string) {
	time.Sleep(primeDelay)
	if err := s.write([]byte(command + "\n")); err != nil {
		s.log.Error("failed to write initial command", zap.Error(err))
	}
}

// Write forwards data verbatim to the session's pty, fully flushed before
// returning. Concurrent writes are serialized and never interleave.
func (m *Manager) Write(sessionID string, data []byte) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}

	if err := s.write(data); err != nil {
		return fmt.Errorf("write to session %s: %w", sessionID, err)
	}
	return nil
}

// Read drains every currently buffered chunk without blocking. An empty
// result means no data yet; ErrSessionClosed is returned only when the pump
// has terminated and nothing remains buffered, so callers always receive
// the final bytes produced before process exit.
func (m *Manager) Read(sessionID string) ([]byte, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	var out []byte
	closed := false
drain:
	for {
		select {
		case chunk, ok := <-s.output:
			if !ok {
				closed = true
				break drain
			}
			out = append(out, chunk...)
		default:
			break drain
		}
	}

	if closed && len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	return out, nil
}

// Resize updates the pty geometry. Buffered output is unaffected.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if !validSize(cols, rows) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		return fmt.Errorf("resize session %s: %w", sessionID, err)
	}

	s.cols = cols
	s.rows = rows

	s.log.Debug("resized terminal session",
		zap.Int("cols", cols), zap.Int("rows", rows))
	return nil
}

// Rename updates the display name only.
func (m *Manager) Rename(sessionID, newName string) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.name = newName
	s.mu.Unlock()

	s.log.Info("renamed terminal session", zap.String("name", newName))
	return nil
}

// Close removes the session and closes the master side of the pty, which
// lets the pump terminate. The child is not killed explicitly; losing its
// controlling terminal is the shutdown signal.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.closeSession(s)
	return nil
}

// CloseAll removes every session and returns the number removed. Safe to
// call at any time, including while pumps are mid-read.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	old := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range old {
		m.closeSession(s)
	}

	if len(old) > 0 {
		m.log.Info("closed all terminal sessions", zap.Int("count", len(old)))
	}
	return len(old)
}

// closeSession releases the session's OS resources. Only reachable once per
// session: the record is removed from the registry under lock first.
func (m *Manager) closeSession(s *Session) {
	close(s.done)
	if err := s.ptmx.Close(); err != nil {
		s.log.Debug("pty close", zap.Error(err))
	}

	s.log.Info("closed terminal session")
	m.publish(events.TypeSessionClosed, s.id)
}

// List returns a snapshot of every session's metadata, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Get returns a session's metadata.
func (m *Manager) Get(sessionID string) (SessionInfo, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return s.info(), nil
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func (m *Manager) publish(eventType string, payload interface{}) {
	if m.bus != nil {
		m.bus.Publish(events.Event{Type: eventType, Payload: payload})
	}
}
