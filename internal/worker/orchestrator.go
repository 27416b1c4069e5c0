package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/events"
	"hotelsync/internal/gate"
	"hotelsync/internal/handlers"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"

	"github.com/rs/zerolog"
)

// Store is the part of the mutation store a sync pass needs.
type Store interface {
	DequeueEligible(ctx context.Context, kind models.Kind, limit, maxAttempts int) ([]models.PendingMutation, error)
	MarkSucceeded(ctx context.Context, kind models.Kind, id int64, retained []string) error
	MarkFailed(ctx context.Context, kind models.Kind, id int64, reason string) error
	Counts(ctx context.Context) (map[models.Kind]int, error)
	CountStuck(ctx context.Context, kind models.Kind, maxAttempts int) (int, error)
}

type Attempter interface {
	Attempt(ctx context.Context, m *models.PendingMutation) handlers.Outcome
}

// PassResult summarizes one sync pass.
type PassResult struct {
	ID        string
	Attempted int
	Succeeded int
	Failed    int
	Orphaned  int
	// Remaining counts records a later pass would still attempt.
	Remaining int
	Stuck     int
	Duration  time.Duration
}

// Orchestrator runs sync passes: one bounded batch per kind, records in order, one attempt each.
type Orchestrator struct {
	store     Store
	handlers  Attempter
	gate      gate.Gate
	bus       *events.EventBus
	retry     RetryPolicy
	batchSize int
	logger    *zerolog.Logger
}

func NewOrchestrator(store Store, h Attempter, g gate.Gate, bus *events.EventBus, retry RetryPolicy, batchSize int, logger *zerolog.Logger) *Orchestrator {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Orchestrator{
		store:     store,
		handlers:  h,
		gate:      g,
		bus:       bus,
		retry:     retry,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RunPass performs one pass. With the gate closed it returns handlers.ErrUnreachable
// without reading any record. Store errors abort the pass.
func (o *Orchestrator) RunPass(ctx context.Context) (res PassResult, err error) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.ObservePass(res.Duration)
	}()

	if !o.gate.Reachable(ctx) {
		return res, handlers.ErrUnreachable
	}

	for _, kind := range models.AllKinds() {
		batch, err := o.store.DequeueEligible(ctx, kind, o.batchSize, o.retry.MaxRetries)
		if err != nil {
			return res, fmt.Errorf("dequeue %s: %w", kind, err)
		}
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := o.process(ctx, &batch[i], &res); err != nil {
				return res, err
			}
		}
	}

	if err := o.tally(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, m *models.PendingMutation, res *PassResult) error {
	out := o.handlers.Attempt(ctx, m)
	if ctx.Err() != nil {
		// shutdown mid-call: leave the record untouched for the next run
		return ctx.Err()
	}
	res.Attempted++

	payload := events.MutationEventPayload{
		MutationID:  m.ID,
		Kind:        string(m.Kind),
		RequestType: string(m.RequestType),
	}

	if out.Succeeded() {
		if err := o.store.MarkSucceeded(ctx, m.Kind, m.ID, out.Retained); err != nil {
			return fmt.Errorf("mark %s/%d succeeded: %w", m.Kind, m.ID, err)
		}
		res.Succeeded++
		outcome := "success"
		if out.Fallback {
			outcome = "fallback"
			res.Orphaned += len(out.Retained)
			metrics.AddOrphaned(len(out.Retained))
			o.logger.Warn().
				Int64("mutation_id", m.ID).
				Strs("orphaned", out.Retained).
				Msg("submitted without photos, artifacts kept in orphan ledger")
		}
		metrics.IncAttempt(string(m.Kind), string(m.RequestType), outcome)
		payload.Fallback = out.Fallback
		_ = o.bus.PublishJSON(events.EventMutationSynced, payload)
		return nil
	}

	reason := out.Err.Error()
	if err := o.store.MarkFailed(ctx, m.Kind, m.ID, reason); err != nil {
		return fmt.Errorf("mark %s/%d failed: %w", m.Kind, m.ID, err)
	}
	res.Failed++

	errKind := string(handlers.KindOf(out.Err))
	metrics.IncAttempt(string(m.Kind), string(m.RequestType), errKind)
	o.logger.Warn().
		Err(out.Err).
		Int64("mutation_id", m.ID).
		Str("kind", string(m.Kind)).
		Int("retry_count", m.RetryCount+1).
		Msg("sync attempt failed")

	payload.RetryCount = m.RetryCount + 1
	payload.Error = reason
	payload.ErrorKind = errKind
	_ = o.bus.PublishJSON(events.EventMutationFailed, payload)
	return nil
}

func (o *Orchestrator) tally(ctx context.Context, res *PassResult) error {
	counts, err := o.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	for _, kind := range models.AllKinds() {
		n := counts[kind]
		metrics.SetPending(string(kind), n)
		stuck := 0
		if o.retry.MaxRetries > 0 && n > 0 {
			if stuck, err = o.store.CountStuck(ctx, kind, o.retry.MaxRetries); err != nil {
				return fmt.Errorf("count stuck: %w", err)
			}
		}
		res.Stuck += stuck
		res.Remaining += n - stuck
	}
	return nil
}

// IsUnreachable reports whether err came from a closed connectivity gate.
func IsUnreachable(err error) bool {
	return errors.Is(err, handlers.ErrUnreachable)
}
