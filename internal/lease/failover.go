package lease

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLease prefers the primary lease and falls back to the secondary while the
// primary is failing, retrying the primary once per minute.
type FailoverLease struct {
	primary   Lease
	fallback  Lease
	logger    *zerolog.Logger
	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverLease(primary, fallback Lease, logger *zerolog.Logger) *FailoverLease {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLease{primary: primary, fallback: fallback, logger: logger, now: time.Now}
}

func (f *FailoverLease) usePrimary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.isDown || f.now().Sub(f.lastCheck) > recoveryInterval
}

func (f *FailoverLease) markDown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isDown {
		f.logger.Error().Err(err).Msg("Primary lease failed, falling back to memory")
	}
	f.isDown = true
	f.lastCheck = f.now()
}

func (f *FailoverLease) markUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDown {
		f.logger.Info().Msg("Primary lease recovered")
	}
	f.isDown = false
}

func (f *FailoverLease) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Acquire(ctx, key, owner, ttl)
		if err == nil {
			f.markUp()
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Acquire(ctx, key, owner, ttl)
}

// Extend refreshes the lease where it is held. A primary failure falls through to the
// fallback, which reports false unless the pass was started there.
func (f *FailoverLease) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Extend(ctx, key, owner, ttl)
		if err == nil {
			f.markUp()
			if ok {
				return true, nil
			}
		} else {
			f.markDown(err)
		}
	}
	return f.fallback.Extend(ctx, key, owner, ttl)
}

// Release drops the key from both leases; only the holder's entry is removed.
func (f *FailoverLease) Release(ctx context.Context, key, owner string) error {
	if err := f.fallback.Release(ctx, key, owner); err != nil {
		return err
	}
	if f.usePrimary() {
		if err := f.primary.Release(ctx, key, owner); err != nil {
			f.markDown(err)
		}
	}
	return nil
}
