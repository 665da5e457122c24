// Package network implements the connectivity prober: a periodic
// reachability check whose state transitions are published as events, so the
// UI learns about going online/offline exactly once per flip rather than on
// every poll.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultProbeURL = "https://1.1.1.1"
	defaultTimeout  = 3 * time.Second
	defaultInterval = 3 * time.Second
)

// Status is the reported connectivity state
type Status struct {
	Online bool `json:"online"`
}

// Option configures a Monitor
type Option func(*Monitor)

// WithProbeURL overrides the reachability endpoint
func WithProbeURL(url string) Option {
	return func(m *Monitor) { m.probeURL = url }
}

// WithInterval overrides the polling interval
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithTimeout overrides the per-probe timeout
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.client.SetTimeout(d) }
}

// Monitor periodically probes reachability and emits a
// network-status-changed event when the state flips.
type Monitor struct {
	log    *logging.Logger
	bus    *events.Bus
	client *resty.Client

	probeURL string
	interval time.Duration

	mu      sync.Mutex
	status  Status
	started bool
}

// NewMonitor creates a connectivity monitor. The initial state is online.
func NewMonitor(log *logging.Logger, bus *events.Bus, opts ...Option) *Monitor {
	if log == nil {
		log = logging.NewNop()
	}
	m := &Monitor{
		log:      log,
		bus:      bus,
		client:   resty.New().SetTimeout(defaultTimeout),
		probeURL: defaultProbeURL,
		interval: defaultInterval,
		status:   Status{Online: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status returns the last observed connectivity state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start launches the background polling loop. Calling it again while a loop
// is running is a no-op. The loop stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.log.Info("starting network monitoring",
		zap.String("probe_url", m.probeURL),
		zap.Duration("interval", m.interval))

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
	}()

	m.update(m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.update(m.probe(ctx))
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	_, err := m.client.R().SetContext(ctx).Get(m.probeURL)
	return err == nil
}

// update records the observation and publishes only on a transition.
func (m *Monitor) update(online bool) {
	m.mu.Lock()
	changed := m.status.Online != online
	m.status.Online = online
	status := m.status
	m.mu.Unlock()

	if !changed {
		return
	}

	m.log.Info("network status changed", zap.Bool("online", online))
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type:    events.TypeNetworkStatusChanged,
			Payload: status,
		})
	}
}
