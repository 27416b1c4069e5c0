package events

import (
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventMutationSynced, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventMutationSynced, MutationEventPayload{MutationID: 7, Kind: "work_order", Fallback: true})
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventMutationSynced {
		t.Errorf("expected type %s, got %s", EventMutationSynced, received.Type)
	}

	var decoded MutationEventPayload
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.MutationID != 7 || !decoded.Fallback {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventMutationEnqueued, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventMutationEnqueued, func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: EventMutationEnqueued})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestNilBus(t *testing.T) {
	var bus *EventBus
	bus.Publish(&Event{Type: EventConnectivityRestored})
	if err := bus.PublishJSON(EventConnectivityRestored, struct{}{}); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestPublishSetsCreatedAt(t *testing.T) {
	bus := NewEventBus()
	var got *Event
	bus.Subscribe(EventMutationFailed, func(e *Event) error { got = e; return nil })

	bus.Publish(&Event{Type: EventMutationFailed})

	if got == nil || got.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}
}
