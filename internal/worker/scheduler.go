package worker

import (
	"context"
	"sync/atomic"
	"time"

	"hotelsync/internal/events"
	"hotelsync/internal/lease"
	"hotelsync/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PassRunner interface {
	RunPass(ctx context.Context) (PassResult, error)
}

type SchedulerConfig struct {
	PeriodicInterval time.Duration
	LeaseKey         string
	LeaseTTL         time.Duration
}

// Scheduler owns the single worker slot. Triggers land in a one-element buffer: a trigger
// arriving while a pass is pending replaces it, and one arriving while a pass runs queues
// exactly one follow-up. A running pass is never interrupted.
type Scheduler struct {
	runner  PassRunner
	lease   lease.Lease
	retry   RetryPolicy
	cfg     SchedulerConfig
	trigger chan struct{}
	passes  chan PassResult
	logger  *zerolog.Logger

	// consecutive passes that ended with failures or without reaching the remote
	setbacks int
}

func NewScheduler(runner PassRunner, l lease.Lease, retry RetryPolicy, cfg SchedulerConfig, logger *zerolog.Logger) *Scheduler {
	if cfg.PeriodicInterval <= 0 {
		cfg.PeriodicInterval = 15 * time.Minute
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = "hotelsync:pass"
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Minute
	}
	if l == nil {
		l = lease.NewMemoryLease()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		runner:  runner,
		lease:   l,
		retry:   retry,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		logger:  logger,
	}
}

// Trigger requests a pass as soon as the slot is free. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Subscribe wires the enqueue and connectivity events to Trigger.
func (s *Scheduler) Subscribe(bus *events.EventBus) {
	trigger := func(*events.Event) error {
		s.Trigger()
		return nil
	}
	bus.Subscribe(events.EventMutationEnqueued, trigger)
	bus.Subscribe(events.EventConnectivityRestored, trigger)
}

// Passes returns a channel that receives every finished pass result. It must be called
// before Start; results are dropped when nobody reads them.
func (s *Scheduler) Passes() <-chan PassResult {
	if s.passes == nil {
		s.passes = make(chan PassResult, 16)
	}
	return s.passes
}

// Start runs the scheduling loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("periodic", s.cfg.PeriodicInterval).Msg("sync scheduler started")
	defer s.logger.Info().Msg("sync scheduler stopped")

	periodic := time.NewTicker(s.cfg.PeriodicInterval)
	defer periodic.Stop()

	var followUp *time.Timer
	var followUpC <-chan time.Time
	stopFollowUp := func() {
		if followUp != nil {
			followUp.Stop()
			followUp, followUpC = nil, nil
		}
	}
	defer stopFollowUp()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		case <-periodic.C:
		case <-followUpC:
		}

		// whatever woke us supersedes a pending follow-up
		stopFollowUp()

		if delay, again := s.runOnce(ctx); again {
			followUp = time.NewTimer(delay)
			followUpC = followUp.C
		}
	}
}

// runOnce executes one pass under the lease and decides whether a follow-up is needed.
func (s *Scheduler) runOnce(ctx context.Context) (time.Duration, bool) {
	passID := uuid.NewString()
	log := s.logger.With().Str("pass_id", passID).Logger()

	acquired, err := s.lease.Acquire(ctx, s.cfg.LeaseKey, passID, s.cfg.LeaseTTL)
	if err != nil || !acquired {
		if ctx.Err() != nil {
			return 0, false
		}
		log.Info().Err(err).Msg("sync pass skipped, slot held elsewhere")
		metrics.IncPass("skipped")
		_, delay := s.retry.Next(0)
		return delay, true
	}
	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx), s.cfg.LeaseKey, passID); err != nil {
			log.Warn().Err(err).Msg("failed to release sync lease")
		}
	}()

	passCtx, cancel := context.WithCancel(ctx)
	lost := s.heartbeat(passCtx, cancel, passID)
	res, err := s.runner.RunPass(passCtx)
	cancel()
	leaseLost := lost()
	res.ID = passID
	s.publish(res)

	switch {
	case ctx.Err() != nil:
		return 0, false
	case leaseLost:
		metrics.IncPass("lease_lost")
		delay := s.backoff()
		log.Warn().Dur("retry_in", delay).Msg("sync lease lost, pass abandoned")
		return delay, true
	case IsUnreachable(err):
		metrics.IncPass("unreachable")
		delay := s.backoff()
		log.Info().Dur("retry_in", delay).Msg("remote unreachable, pass rescheduled")
		return delay, true
	case err != nil:
		metrics.IncPass("error")
		delay := s.backoff()
		log.Error().Err(err).Dur("retry_in", delay).Msg("sync pass aborted")
		return delay, true
	}

	event := log.Info().
		Int("attempted", res.Attempted).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("remaining", res.Remaining).
		Int("stuck", res.Stuck).
		Dur("duration", res.Duration)

	if res.Remaining == 0 {
		s.setbacks = 0
		metrics.IncPass("completed")
		event.Msg("sync pass completed")
		return 0, false
	}

	metrics.IncPass("pending")
	var delay time.Duration
	if res.Failed > 0 {
		delay = s.backoff()
	} else {
		// only more than a batch was waiting; keep draining
		s.setbacks = 0
	}
	event.Dur("retry_in", delay).Msg("sync pass left pending records")
	return delay, true
}

// heartbeat keeps the lease alive while the pass runs. If the lease cannot be renewed before
// it expires, the pass is canceled so no record is attempted without it. The returned func
// waits for the heartbeat to stop and reports whether the lease was lost.
func (s *Scheduler) heartbeat(ctx context.Context, cancel context.CancelFunc, owner string) func() bool {
	var lost atomic.Bool
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.LeaseTTL / 3)
		defer ticker.Stop()

		renewed := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			held, err := s.lease.Extend(ctx, s.cfg.LeaseKey, owner, s.cfg.LeaseTTL)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil && time.Since(renewed) < s.cfg.LeaseTTL:
				s.logger.Warn().Err(err).Str("pass_id", owner).Msg("failed to extend sync lease")
				continue
			case err != nil || !held:
				lost.Store(true)
				cancel()
				return
			}
			renewed = time.Now()
		}
	}()

	return func() bool {
		<-done
		return lost.Load()
	}
}

func (s *Scheduler) backoff() time.Duration {
	_, delay := s.retry.Next(s.setbacks)
	s.setbacks++
	return delay
}

func (s *Scheduler) publish(res PassResult) {
	if s.passes == nil {
		return
	}
	select {
	case s.passes <- res:
	default:
	}
}
