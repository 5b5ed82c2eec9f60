package event

import (
	"testing"

	"arbsig/internal/domain/model"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(0)

	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		if _, err := bus.AddListener(func(ev model.Event) {
			got = append(got, name)
		}); err != nil {
			t.Fatalf("AddListener failed: %v", err)
		}
	}

	bus.Publish(model.EventSignalStarted, nil)

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("delivery order wrong: %v", got)
	}
}

func TestBusListenerLimit(t *testing.T) {
	bus := NewBus(2)

	noop := func(model.Event) {}
	if _, err := bus.AddListener(noop); err != nil {
		t.Fatalf("first listener: %v", err)
	}
	if _, err := bus.AddListener(noop); err != nil {
		t.Fatalf("second listener: %v", err)
	}
	if _, err := bus.AddListener(noop); err != ErrTooManyListeners {
		t.Errorf("expected ErrTooManyListeners, got %v", err)
	}
}

func TestBusRemoveListener(t *testing.T) {
	bus := NewBus(0)

	calls := 0
	id, _ := bus.AddListener(func(model.Event) { calls++ })

	bus.Publish(model.EventPriceUpdate, nil)
	bus.RemoveListener(id)
	bus.Publish(model.EventPriceUpdate, nil)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if bus.Len() != 0 {
		t.Errorf("expected empty bus, got %d", bus.Len())
	}
}

func TestBusListenerAddedDuringPublishMissesEvent(t *testing.T) {
	bus := NewBus(0)

	lateCalled := false
	if _, err := bus.AddListener(func(model.Event) {
		// 发布中注册的监听者不应收到本次事件
		_, _ = bus.AddListener(func(model.Event) { lateCalled = true })
	}); err != nil {
		t.Fatal(err)
	}

	bus.Publish(model.EventSignalStopped, nil)
	if lateCalled {
		t.Error("listener registered mid-publish must not receive current event")
	}
}

func TestBusPayloadPassthrough(t *testing.T) {
	bus := NewBus(0)

	var got model.Event
	_, _ = bus.AddListener(func(ev model.Event) { got = ev })

	payload := model.StopPayload{SignalID: "s1", Reason: "manual"}
	bus.Publish(model.EventSignalStopped, payload)

	if got.Type != model.EventSignalStopped {
		t.Errorf("type: %v", got.Type)
	}
	p, ok := got.Payload.(model.StopPayload)
	if !ok || p.SignalID != "s1" {
		t.Errorf("payload: %+v", got.Payload)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
