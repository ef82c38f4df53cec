package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

// Monitor observes backend reachability. An offline-to-online transition
// fires the registered callbacks (the background order refresh).
type Monitor struct {
	client   *zonda.Client
	interval time.Duration
	log      *zap.Logger

	online atomic.Bool

	mu        sync.Mutex
	callbacks []func()
}

func NewMonitor(client *zonda.Client, interval time.Duration, log *zap.Logger) *Monitor {
	m := &Monitor{
		client:   client,
		interval: interval,
		log:      log,
	}
	m.online.Store(true)
	return m
}

// Online reports the last observed reachability state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnReconnect registers a callback to run after an offline-to-online
// transition. Callbacks run on the monitor goroutine.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start polls until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.client.Ping(pingCtx)
	was := m.online.Load()
	now := err == nil
	m.online.Store(now)

	switch {
	case was && !now:
		m.log.Warn("backend unreachable, entering offline mode", zap.Error(err))
	case !was && now:
		m.log.Info("backend reachable again, triggering refresh")
		m.mu.Lock()
		callbacks := append([]func(){}, m.callbacks...)
		m.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	}
}
