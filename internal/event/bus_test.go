package event

import (
	"sync"
	"testing"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/protocol"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe("debate-1", func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}

	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}

	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe("debate-1", func(e Event) {
		received = e
	})

	bus.Publish(Broadcast("debate-1", &protocol.PhaseChange{
		Phase:   debate.PhaseCrossfire1,
		Speaker: "",
	}))

	if received.Payload == nil {
		t.Fatal("Handler should have received the event")
	}
	if received.Room != "debate-1" {
		t.Errorf("Expected room 'debate-1', got '%s'", received.Room)
	}
	if received.Type() != "phase-change" {
		t.Errorf("Expected event type 'phase-change', got '%s'", received.Type())
	}
}

func TestBus_PublishMultipleHandlers(t *testing.T) {
	bus := NewBus(nil)

	callCount := 0
	bus.Subscribe("debate-1", func(e Event) {
		callCount++
	})
	bus.Subscribe("debate-1", func(e Event) {
		callCount++
	})

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))

	if callCount != 2 {
		t.Errorf("Expected both handlers to be called, got %d calls", callCount)
	}
}

func TestBus_PublishOtherRoom(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("debate-2", func(e Event) {
		t.Error("Handler should not be called for another room's event")
	})

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.Subscribe("debate-1", func(e Event) {
		order = append(order, "room:"+e.Room)
	})
	bus.SubscribeAll(func(e Event) {
		order = append(order, "firehose:"+e.Room)
	})

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))
	bus.Publish(Broadcast("debate-2", &protocol.ObserverCount{Count: 2}))

	want := []string{"room:debate-1", "firehose:debate-1", "firehose:debate-2"}
	if len(order) != len(want) {
		t.Fatalf("Expected %d handler calls, got %d", len(want), len(order))
	}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("Expected call %d to be '%s', got '%s'", i, w, order[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe("debate-1", func(e Event) {
		called = true
	})

	removed := bus.Unsubscribe(id)
	if !removed {
		t.Error("Unsubscribe should return true when subscription exists")
	}

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after unsubscribe, got %d", bus.SubscriptionCount())
	}

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))

	if called {
		t.Error("Handler should not be called after unsubscribing")
	}
}

func TestBus_UnsubscribeNonExistent(t *testing.T) {
	bus := NewBus(nil)

	removed := bus.Unsubscribe("non-existent-id")
	if removed {
		t.Error("Unsubscribe should return false for non-existent ID")
	}
}

func TestBus_UnsubscribeOne(t *testing.T) {
	bus := NewBus(nil)

	calls := make(map[string]int)
	id1 := bus.Subscribe("debate-1", func(e Event) {
		calls["handler1"]++
	})
	bus.Subscribe("debate-1", func(e Event) {
		calls["handler2"]++
	})

	bus.Unsubscribe(id1)

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))

	if calls["handler1"] != 0 {
		t.Error("handler1 should not be called after unsubscribing")
	}
	if calls["handler2"] != 1 {
		t.Error("handler2 should still be called")
	}
}

func TestBus_CloseRoom(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("debate-1", func(e Event) {
		t.Error("Handler should not be called after CloseRoom")
	})
	bus.Subscribe("debate-1", func(e Event) {
		t.Error("Handler should not be called after CloseRoom")
	})
	survived := 0
	bus.Subscribe("debate-2", func(e Event) {
		survived++
	})

	if n := bus.CloseRoom("debate-1"); n != 2 {
		t.Errorf("Expected CloseRoom to remove 2 subscriptions, got %d", n)
	}
	if bus.RoomCount() != 1 {
		t.Errorf("Expected 1 room after close, got %d", bus.RoomCount())
	}

	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))
	bus.Publish(Broadcast("debate-2", &protocol.ObserverCount{Count: 1}))

	if survived != 1 {
		t.Errorf("Expected surviving room to receive 1 event, got %d", survived)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("debate-1", func(e Event) {})
	bus.Subscribe("debate-2", func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if bus.SubscriptionCount() != 3 {
		t.Errorf("Expected 3 subscriptions before clear, got %d", bus.SubscriptionCount())
	}

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	bus.Subscribe("debate-1", func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe("debate-1", func(e Event) {
		calls++
	})

	// Should not panic
	bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("debate-1", func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(Broadcast("debate-1", &protocol.ObserverCount{Count: 1}))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("debate-1", func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus(nil)

	ids := make(map[string]bool)
	for range 100 {
		id := bus.Subscribe("debate-1", func(e Event) {})
		if ids[id] {
			t.Errorf("Duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}

func TestEvent_Type(t *testing.T) {
	audio := AudioFrame("debate-1", "conn-7", []byte{0x01, 0xde, 0xad})
	if audio.Type() != "audio" {
		t.Errorf("Expected type 'audio', got '%s'", audio.Type())
	}
	if audio.From != "conn-7" {
		t.Errorf("Expected origin 'conn-7', got '%s'", audio.From)
	}

	text := Broadcast("debate-1", &protocol.TimerUpdate{Phase: debate.PhaseRebuttal, Remaining: 30})
	if text.Type() != "timer-update" {
		t.Errorf("Expected type 'timer-update', got '%s'", text.Type())
	}
	if text.From != "" {
		t.Errorf("Expected empty origin for broadcast, got '%s'", text.From)
	}
}
