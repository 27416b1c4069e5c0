package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"hotelsync/internal/events"

	"github.com/stretchr/testify/assert"
)

func countRestored(bus *events.EventBus) *atomic.Int32 {
	var n atomic.Int32
	bus.Subscribe(events.EventConnectivityRestored, func(*events.Event) error {
		n.Add(1)
		return nil
	})
	return &n
}

func TestSwitch(t *testing.T) {
	bus := events.NewEventBus()
	restored := countRestored(bus)
	s := NewSwitch(false, bus)
	ctx := context.Background()

	assert.False(t, s.Reachable(ctx))

	s.Set(true)
	s.Set(true)
	assert.True(t, s.Reachable(ctx))
	assert.Equal(t, int32(1), restored.Load())

	s.Set(false)
	s.Set(true)
	assert.Equal(t, int32(2), restored.Load())
}

type flakyPinger struct {
	fail atomic.Bool
}

func (f *flakyPinger) Ping(ctx context.Context) error {
	if f.fail.Load() {
		return errors.New("no route to host")
	}
	return ctx.Err()
}

func TestProbe(t *testing.T) {
	bus := events.NewEventBus()
	restored := countRestored(bus)
	pinger := &flakyPinger{}
	pinger.fail.Store(true)
	p := NewProbe(pinger, time.Second, bus, nil)
	ctx := context.Background()

	assert.False(t, p.Reachable(ctx))
	assert.Equal(t, int32(0), restored.Load())

	pinger.fail.Store(false)
	assert.True(t, p.Reachable(ctx))
	assert.True(t, p.Reachable(ctx))
	assert.Equal(t, int32(1), restored.Load())
}

func TestProbeWatch(t *testing.T) {
	bus := events.NewEventBus()
	restored := countRestored(bus)
	p := NewProbe(&flakyPinger{}, time.Second, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return restored.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
