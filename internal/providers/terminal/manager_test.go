package terminal

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestManager pins the shell to /bin/sh so tests do not depend on the
// developer's login shell or its startup files.
func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("pty session tests require a POSIX platform")
	}
	t.Setenv("SHELL", "/bin/sh")

	m := NewManager(logging.NewNop(), nil, opts...)
	t.Cleanup(func() { m.CloseAll() })
	return m
}

// drainUntil polls Read until the accumulated output contains want.
func drainUntil(t *testing.T, m *Manager, sessionID, want string, timeout time.Duration) string {
	t.Helper()
	var out []byte
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		chunk, err := m.Read(sessionID)
		require.NoError(t, err)
		out = append(out, chunk...)
		if strings.Contains(string(out), want) {
			return string(out)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q; got %q", want, string(out))
	return ""
}

func TestCreateListRenameRoundTrip(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{Name: "foo"})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "foo", info.Name)
	assert.Equal(t, KindLocal, info.Kind.Type)
	assert.Equal(t, defaultCols, info.Cols)
	assert.Equal(t, defaultRows, info.Rows)
	assert.True(t, info.Active)

	require.NoError(t, m.Rename(info.ID, "bar"))

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)
	assert.Equal(t, "bar", list[0].Name)
	assert.Equal(t, info.CreatedAt, list[0].CreatedAt)
}

func TestCreateGeneratesNameAndUniqueIDs(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Create(CreateOptions{})
	require.NoError(t, err)
	b, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(a.Name, "Terminal "))
}

func TestReadAfterCreateNeverErrors(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	// empty or the shell's banner/prompt, never an error
	_, err = m.Read(info.ID)
	assert.NoError(t, err)
}

func TestWriteEcho(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Write(info.ID, []byte("echo terminal-roundtrip\n")))
	drainUntil(t, m, info.ID, "terminal-roundtrip", 5*time.Second)
}

func TestInitialCommandRunsAfterStartup(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{InitialCommand: "echo primed-output"})
	require.NoError(t, err)

	drainUntil(t, m, info.ID, "primed-output", 5*time.Second)
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			line := fmt.Sprintf("echo marker-%d\n", i)
			assert.NoError(t, m.Write(info.ID, []byte(line)))
		}(i)
	}
	wg.Wait()

	// every command must have survived intact; interleaved bytes would
	// corrupt the command and its marker would never be printed
	for i := 0; i < writers; i++ {
		drainUntil(t, m, info.ID, fmt.Sprintf("marker-%d", i), 5*time.Second)
	}
}

func TestSplitMultiByteWriteDoesNotCorruptEarlierOutput(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Write(info.ID, []byte("echo first-line\n")))
	first := drainUntil(t, m, info.ID, "first-line", 5*time.Second)
	assert.Contains(t, first, "first-line")

	// split the two-byte é across two write calls
	payload := []byte("echo héllo\n")
	cut := strings.Index(string(payload), "é") + 1
	require.NoError(t, m.Write(info.ID, payload[:cut]))
	require.NoError(t, m.Write(info.ID, payload[cut:]))

	out := drainUntil(t, m, info.ID, "héllo", 5*time.Second)
	assert.NotContains(t, LossyText([]byte(out)), "first-line�")
}

func TestConfiguredDefaultSizeApplied(t *testing.T) {
	m := newTestManager(t, WithDefaultSize(120, 43))

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 120, info.Cols)
	assert.Equal(t, 43, info.Rows)

	// an explicit size still wins over the configured default
	info, err = m.Create(CreateOptions{Cols: 100, Rows: 30})
	require.NoError(t, err)
	assert.Equal(t, 100, info.Cols)
	assert.Equal(t, 30, info.Rows)
}

func TestCreateRejectsOutOfRangeSize(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(CreateOptions{Cols: -1, Rows: 24})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = m.Create(CreateOptions{Cols: 80, Rows: 70000})
	assert.ErrorIs(t, err, ErrInvalidSize)

	assert.Zero(t, m.Count())
}

func TestResizeRejectsOutOfRangeSize(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Resize(info.ID, -1, 24), ErrInvalidSize)
	assert.ErrorIs(t, m.Resize(info.ID, 80, 70000), ErrInvalidSize)

	// geometry is untouched by a rejected resize
	got, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, defaultCols, got.Cols)
	assert.Equal(t, defaultRows, got.Rows)
}

func TestResizeReflected(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Resize(info.ID, 132, 43))

	got, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 132, got.Cols)
	assert.Equal(t, 43, got.Rows)
}

func TestShellExitEventuallyCloses(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Write(info.ID, []byte("exit\n")))

	deadline := time.Now().Add(10 * time.Second)
	for {
		_, err := m.Read(info.ID)
		if errors.Is(err, ErrSessionClosed) {
			break
		}
		require.NoError(t, err)
		if time.Now().After(deadline) {
			t.Fatal("read never reported the session as closed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// a dead session stays listed until explicitly closed
	got, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Len(t, m.List(), 1)

	require.NoError(t, m.Close(info.ID))
	assert.Zero(t, m.Count())
}

func TestCloseAllRemovesExactly(t *testing.T) {
	m := newTestManager(t)

	const n = 4
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		info, err := m.Create(CreateOptions{})
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	assert.Equal(t, n, m.CloseAll())
	assert.Zero(t, m.Count())
	assert.Zero(t, m.CloseAll())

	for _, sid := range ids {
		_, err := m.Read(sid)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, m.Write(sid, []byte("x")), ErrSessionNotFound)
	}
}

func TestOperationsOnUnknownSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Read("term_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Write("term_missing", []byte("x")), ErrSessionNotFound)
	assert.ErrorIs(t, m.Resize("term_missing", 80, 24), ErrSessionNotFound)
	assert.ErrorIs(t, m.Rename("term_missing", "x"), ErrSessionNotFound)
	assert.ErrorIs(t, m.Close("term_missing"), ErrSessionNotFound)
	_, err = m.Get("term_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLifecycleEventsPublished(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pty session tests require a POSIX platform")
	}
	t.Setenv("SHELL", "/bin/sh")

	bus := events.New()
	ch, cancel := bus.Subscribe()
	defer cancel()

	m := NewManager(logging.NewNop(), bus)
	t.Cleanup(func() { m.CloseAll() })

	info, err := m.Create(CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Close(info.ID))

	seen := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case evt := <-ch:
			seen[evt.Type] = true
		case <-timeout:
			t.Fatalf("missing lifecycle events, saw %v", seen)
		}
	}
	assert.True(t, seen[events.TypeSessionCreated])
	assert.True(t, seen[events.TypeSessionClosed])
}
