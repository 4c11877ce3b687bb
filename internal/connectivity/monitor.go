package connectivity

import (
	"context"
	"sync"
	"time"

	"loyalty-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Monitor implements ports.ConnectivityMonitor. State changes are posted to a
// buffered single-consumer channel instead of invoking callbacks, so exactly
// one goroutine (the queue drain loop) reacts to them and re-entrancy is
// impossible by construction.
type Monitor struct {
	mu     sync.Mutex
	online bool
	events chan bool
	log    zerolog.Logger
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(initiallyOnline bool, log zerolog.Logger) *Monitor {
	return &Monitor{
		online: initiallyOnline,
		events: make(chan bool, 8),
		log:    log,
	}
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Events returns the state-change channel. True means connectivity restored.
func (m *Monitor) Events() <-chan bool {
	return m.events
}

// SetOnline records a state change and posts it. Posting never blocks: if
// the consumer lags behind the event is dropped, which is safe because the
// drain loop re-reads Online() before every attempt.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.Info().Bool("online", online).Msg("connectivity state changed")

	select {
	case m.events <- online:
	default:
		m.log.Warn().Msg("connectivity event dropped, consumer lagging")
	}
}

// Prober drives a Monitor from periodic backing-store pings.
type Prober struct {
	monitor  *Monitor
	checker  ports.HealthChecker
	interval time.Duration
	log      zerolog.Logger
}

// NewProber creates a prober pinging checker every interval.
func NewProber(monitor *Monitor, checker ports.HealthChecker, interval time.Duration, log zerolog.Logger) *Prober {
	return &Prober{
		monitor:  monitor,
		checker:  checker,
		interval: interval,
		log:      log,
	}
}

// Run probes until ctx is cancelled. Intended to run in its own goroutine.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.checker.Ping(probeCtx)
	if err != nil {
		p.log.Debug().Err(err).Str("dependency", p.checker.Name()).Msg("connectivity probe failed")
	}
	p.monitor.SetOnline(err == nil)
}
