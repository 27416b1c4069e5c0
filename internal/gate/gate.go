// Package gate reports whether the remote service is reachable.
package gate

import (
	"context"
	"sync"
	"time"

	"hotelsync/internal/events"

	"github.com/rs/zerolog"
)

type Gate interface {
	Reachable(ctx context.Context) bool
}

// edge tracks the last observed state and announces closed→open transitions.
type edge struct {
	mu   sync.Mutex
	open bool
	bus  *events.EventBus
}

func (e *edge) observe(open bool) {
	e.mu.Lock()
	restored := open && !e.open
	e.open = open
	e.mu.Unlock()

	if restored {
		_ = e.bus.PublishJSON(events.EventConnectivityRestored, struct {
			At time.Time `json:"at"`
		}{At: time.Now()})
	}
}

func (e *edge) state() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Switch is set by the host from platform connectivity callbacks.
type Switch struct {
	edge
}

func NewSwitch(open bool, bus *events.EventBus) *Switch {
	return &Switch{edge: edge{open: open, bus: bus}}
}

func (s *Switch) Set(open bool) {
	s.observe(open)
}

func (s *Switch) Reachable(context.Context) bool {
	return s.state()
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe checks reachability by pinging the remote on every call.
type Probe struct {
	edge
	pinger  Pinger
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewProbe(pinger Pinger, timeout time.Duration, bus *events.EventBus, logger *zerolog.Logger) *Probe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Probe{edge: edge{bus: bus}, pinger: pinger, timeout: timeout, logger: logger}
}

func (p *Probe) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("remote unreachable")
	}
	p.observe(err == nil)
	return err == nil
}

// Watch probes on every tick so connectivity_restored fires even when no pass is running.
func (p *Probe) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Reachable(ctx)
		}
	}
}
