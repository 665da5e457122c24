package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusDefaultsOnline(t *testing.T) {
	m := NewMonitor(logging.NewNop(), nil)
	assert.True(t, m.Status().Online)
}

func TestDetectsOfflineTransition(t *testing.T) {
	bus := events.New()
	ch, cancel := bus.Subscribe()
	defer cancel()

	// probe a closed listener so every check fails fast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := NewMonitor(logging.NewNop(), bus,
		WithProbeURL(url),
		WithInterval(10*time.Millisecond),
		WithTimeout(100*time.Millisecond))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	m.Start(ctx)

	select {
	case evt := <-ch:
		require.Equal(t, events.TypeNetworkStatusChanged, evt.Type)
		status, ok := evt.Payload.(Status)
		require.True(t, ok)
		assert.False(t, status.Online)
	case <-time.After(5 * time.Second):
		t.Fatal("offline transition never published")
	}
	assert.False(t, m.Status().Online)
}

func TestTransitionPublishedOnlyOnFlip(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			// hijack and drop the connection to simulate unreachability
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	healthy.Store(true)

	bus := events.New()
	ch, cancel := bus.Subscribe()
	defer cancel()

	m := NewMonitor(logging.NewNop(), bus,
		WithProbeURL(srv.URL),
		WithInterval(10*time.Millisecond),
		WithTimeout(200*time.Millisecond))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	m.Start(ctx)

	// healthy polls should not publish anything
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event while stable: %v", evt)
	case <-time.After(200 * time.Millisecond):
	}

	healthy.Store(false)
	select {
	case evt := <-ch:
		assert.Equal(t, events.TypeNetworkStatusChanged, evt.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("flip never published")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	m := NewMonitor(logging.NewNop(), nil, WithInterval(time.Hour))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m.Start(ctx)
	m.Start(ctx) // second call must not spawn a second loop

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	assert.True(t, started)
}
