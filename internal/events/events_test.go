package events

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(ChannelInstallProgress)

	bus.PublishWorkerEvent(ChannelInstallProgress, 7, json.RawMessage(`{"message":"downloading"}`))

	select {
	case received := <-ch:
		ev, ok := received.(*WorkerEvent)
		if !ok {
			t.Fatal("Expected WorkerEvent")
		}
		if ev.Generation != 7 {
			t.Errorf("Expected generation 7, got %d", ev.Generation)
		}
		if string(ev.Payload) != `{"message":"downloading"}` {
			t.Errorf("Unexpected payload %s", ev.Payload)
		}
		if ev.Timestamp().IsZero() {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentChannels(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	installCh := bus.Subscribe(ChannelInstallProgress)
	patchCh := bus.Subscribe(ChannelCreatePatchProgress)

	bus.PublishWorkerEvent(ChannelInstallProgress, 0, json.RawMessage(`{}`))

	select {
	case <-installCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Install subscriber didn't receive event")
	}

	select {
	case <-patchCh:
		t.Error("Patch subscriber received event from another channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_CoalescesProgressWithinGeneration(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(ChannelCreatePatchProgress)

	// Nothing reads while the burst is published, so the queue holds the
	// first event handed to the pump plus at most one per generation run.
	for i := 1; i <= 20000; i++ {
		bus.PublishWorkerEvent(ChannelCreatePatchProgress, 3, json.RawMessage(strconv.Itoa(i)))
	}
	bus.PublishWorkerEvent(ChannelCreatePatchProgress, 4, json.RawMessage(`"next"`))

	var got []*WorkerEvent
	deadline := time.After(time.Second)
	for len(got) == 0 || got[len(got)-1].Generation != 4 {
		select {
		case ev := <-ch:
			got = append(got, ev.(*WorkerEvent))
		case <-deadline:
			t.Fatalf("Timeout after %d events", len(got))
		}
	}

	if len(got) > 3 {
		t.Errorf("Expected the burst to coalesce, got %d deliveries", len(got))
	}
	last3 := got[len(got)-2]
	if last3.Generation != 3 || string(last3.Payload) != "20000" {
		t.Errorf("Expected last generation-3 event to be 20000, got gen %d payload %s", last3.Generation, last3.Payload)
	}
	if want := int64(20000 - len(got) + 1); bus.CoalescedEventCount() != want {
		t.Errorf("Expected %d coalesced events, got %d", want, bus.CoalescedEventCount())
	}
}

func TestEventBus_FinishedChannelsNeverCoalesce(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(ChannelInstallFinished)

	for i := 0; i < 500; i++ {
		bus.PublishWorkerEvent(ChannelInstallFinished, 1, json.RawMessage(strconv.Itoa(i)))
	}

	for i := 0; i < 500; i++ {
		select {
		case ev := <-ch:
			if got := string(ev.(*WorkerEvent).Payload); got != strconv.Itoa(i) {
				t.Fatalf("Expected payload %d, got %s", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for event %d", i)
		}
	}
	if bus.CoalescedEventCount() != 0 {
		t.Errorf("Expected no coalesced events, got %d", bus.CoalescedEventCount())
	}
}

func TestEventBus_MarkerKeepsItsPosition(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(ChannelInstallProgress)

	for i := 1; i <= 1000; i++ {
		bus.PublishWorkerEvent(ChannelInstallProgress, 2, json.RawMessage(strconv.Itoa(i)))
	}
	bus.Publish(&barrier{BaseEvent: BaseEvent{EventType: ChannelInstallProgress}})
	for i := 1001; i <= 2000; i++ {
		bus.PublishWorkerEvent(ChannelInstallProgress, 2, json.RawMessage(strconv.Itoa(i)))
	}

	var beforeMarker, afterMarker string
	sawMarker := false
	for afterMarker != "2000" {
		select {
		case ev := <-ch:
			switch e := ev.(type) {
			case *barrier:
				sawMarker = true
			case *WorkerEvent:
				if sawMarker {
					afterMarker = string(e.Payload)
				} else {
					beforeMarker = string(e.Payload)
				}
			}
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for the tail of the stream")
		}
	}

	if !sawMarker {
		t.Fatal("Marker was never delivered")
	}
	if beforeMarker != "1000" {
		t.Errorf("Expected 1000 before the marker, got %s", beforeMarker)
	}
}

func TestEventBus_CloseDeliversQueued(t *testing.T) {
	bus := NewEventBus()

	ch := bus.Subscribe(ChannelUpdateCheckFinished)
	for i := 0; i < 5; i++ {
		bus.PublishWorkerEvent(ChannelUpdateCheckFinished, 0, nil)
	}
	bus.Close()

	count := 0
	for range ch {
		count++
	}
	if count != 5 {
		t.Errorf("Expected 5 events before close, got %d", count)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(ChannelInstallFinished)
	bus.Unsubscribe(ChannelInstallFinished, ch)

	bus.PublishWorkerEvent(ChannelInstallFinished, 0, json.RawMessage(`"done"`))

	select {
	case <-ch:
		t.Error("Unsubscribed channel received an event")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus()

	ch := bus.Subscribe(ChannelInstallProgress)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishWorkerEvent(ChannelInstallProgress, 0, nil)

	late := bus.Subscribe(ChannelInstallProgress)
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}
