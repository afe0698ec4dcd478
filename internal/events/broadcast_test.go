package events

import (
	"testing"

	"aeron-driver/internal/wire"
)

func TestReaderSeesFramesInOrder(t *testing.T) {
	b := NewBroadcast(8, nil, nil)
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 1})
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 2})

	r := b.NewReader()
	id, _, ok := r.Next()
	if !ok || id != wire.OnOperationSuccess {
		t.Fatalf("first Next() = %d, %v", id, ok)
	}
	id, _, ok = r.Next()
	if !ok || id != wire.OnOperationSuccess {
		t.Fatalf("second Next() = %d, %v", id, ok)
	}
	if _, _, ok = r.Next(); ok {
		t.Fatal("expected reader to catch up to the producer")
	}
}

func TestIndependentReadersEachSeeEveryFrame(t *testing.T) {
	b := NewBroadcast(8, nil, nil)
	b.Error(&wire.ErrorEvent{CorrelationID: 5, Code: wire.ErrGeneric, Message: "boom"})

	r1 := b.NewReader()
	r2 := b.NewReader()

	if _, _, ok := r1.Next(); !ok {
		t.Fatal("expected r1 to see the event")
	}
	if _, _, ok := r2.Next(); !ok {
		t.Fatal("expected r2 to independently see the same event")
	}
}

func TestReaderCreatedAfterAPushStillSeesIt(t *testing.T) {
	b := NewBroadcast(8, nil, nil)
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 1})

	r := b.NewReader()
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 2})

	count := 0
	for {
		_, _, ok := r.Next()
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected a reader created after the first push to still drain both retained frames, got %d", count)
	}
}

func TestPushDropsWhileSlowestReaderLagsACapacityBehind(t *testing.T) {
	drops := 0
	b := NewBroadcast(1, func(reason string) {
		drops++
		if reason != "broadcast_full" {
			t.Fatalf("unexpected drop reason %q", reason)
		}
	}, nil)
	r := b.NewReader()
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 1})
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 2})

	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}

	// Once the lagging reader drains the retained frame, the slot it held
	// is reclaimed and the buffer accepts pushes again.
	if _, _, ok := r.Next(); !ok {
		t.Fatal("expected the reader to see the one retained frame")
	}
	b.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: 3})
	if drops != 1 {
		t.Fatalf("drops = %d, want still 1 after the reader caught up", drops)
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after reclaim", b.Len())
	}
}

func TestDrainCollectsAllRemainingFrames(t *testing.T) {
	b := NewBroadcast(8, nil, nil)
	b.PublicationReady(&wire.PublicationReadyEvent{CorrelationID: 1, RegistrationID: 1})
	b.PublicationReady(&wire.PublicationReadyEvent{CorrelationID: 2, RegistrationID: 2})

	out := b.NewReader().Drain()
	if len(out) != 2 {
		t.Fatalf("Drain() returned %d entries, want 2", len(out))
	}
}

func TestOnEventCountsEverySuccessfulPushByType(t *testing.T) {
	var seen []int32
	b := NewBroadcast(8, nil, func(msgTypeID int32) { seen = append(seen, msgTypeID) })

	b.PublicationReady(&wire.PublicationReadyEvent{CorrelationID: 1})
	b.Error(&wire.ErrorEvent{CorrelationID: 2, Code: wire.ErrGeneric})

	if len(seen) != 2 || seen[0] != wire.OnPublicationReady || seen[1] != wire.OnError {
		t.Fatalf("seen = %v, want [OnPublicationReady, OnError]", seen)
	}
}

func TestOnEventNotCalledForADroppedPush(t *testing.T) {
	var seen []int32
	b := NewBroadcast(1, nil, func(msgTypeID int32) { seen = append(seen, msgTypeID) })
	r := b.NewReader()
	b.PublicationReady(&wire.PublicationReadyEvent{CorrelationID: 1})
	b.PublicationReady(&wire.PublicationReadyEvent{CorrelationID: 2}) // dropped: r hasn't read the first yet

	if len(seen) != 1 {
		t.Fatalf("seen = %v, want exactly 1 (the dropped push must not count)", seen)
	}
	r.Next()
}
