// Package events implements the client broadcast buffer: a bounded,
// non-blocking, single-producer channel the conductor alone writes to,
// and any number of clients read from independently. Modeled on the
// corpus's hub broadcast pattern (pkg/websocket/hub.go's broadcastMessage,
// pkg/websocket/ring_buffer.go's bounded push/pop), generalized from
// "forward to live connections" to "retain a bounded, ordered event log
// every client reads at its own pace".
package events

import (
	"sync"

	"aeron-driver/internal/wire"
)

// DropCounter is invoked whenever an event is dropped because the
// broadcast buffer is full. cmd/aeron-driverd wires it to the
// broadcast-drop metric; a drop does not increment the conductor's own
// error count.
type DropCounter func(reason string)

// EventCounter is invoked once per event successfully pushed, wired to
// the conductor's per-event-type metric.
type EventCounter func(msgTypeID int32)

// Broadcast is the client broadcast buffer (spec.md §4.6, §5): a
// fixed-capacity ring of frames, mirroring ring_buffer.go's per-client
// RingBuffer but shared across every independent Reader cursor instead of
// one ring per client. A slot is only reclaimed once every registered
// Reader has passed it, so push only drops when the slowest reader is
// genuinely capacity frames behind, not permanently after one warm-up fill.
type Broadcast struct {
	mu       sync.Mutex
	capacity int64
	slots    [][]byte
	head     int64 // absolute position of the next frame to be written
	readers  []*Reader
	onDrop   DropCounter
	onEvent  EventCounter
}

// NewBroadcast creates a broadcast buffer bounded at capacity frames.
// onEvent may be nil; when set it is invoked once per successfully pushed
// event, keyed by the event's msgTypeId.
func NewBroadcast(capacity int, onDrop DropCounter, onEvent EventCounter) *Broadcast {
	if capacity <= 0 {
		capacity = 4096
	}
	if onDrop == nil {
		onDrop = func(string) {}
	}
	if onEvent == nil {
		onEvent = func(int32) {}
	}
	return &Broadcast{capacity: int64(capacity), slots: make([][]byte, capacity), onDrop: onDrop, onEvent: onEvent}
}

// push appends a pre-framed event, dropping it (and counting the drop) if
// every slot is still held by a reader that hasn't passed it. Never blocks.
func (b *Broadcast) push(frame []byte) {
	b.mu.Lock()
	if b.head-b.lowWaterMarkLocked() >= b.capacity {
		b.mu.Unlock()
		b.onDrop("broadcast_full")
		return
	}
	b.slots[b.head%b.capacity] = frame
	b.head++
	b.mu.Unlock()

	if msgTypeID, _, err := wire.ParseHeader(frame); err == nil {
		b.onEvent(msgTypeID)
	}
}

// lowWaterMarkLocked returns the oldest frame position still needed by any
// registered reader. With no reader yet registered it returns 0, so
// whatever is pushed before the first subscriber remains available to it.
func (b *Broadcast) lowWaterMarkLocked() int64 {
	if len(b.readers) == 0 {
		return 0
	}
	low := b.readers[0].pos
	for _, r := range b.readers[1:] {
		if r.pos < low {
			low = r.pos
		}
	}
	return low
}

// Len reports how many frames are currently retained.
func (b *Broadcast) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.head - b.lowWaterMarkLocked())
}

// PublicationReady emits ON_PUBLICATION_READY.
func (b *Broadcast) PublicationReady(e *wire.PublicationReadyEvent) {
	b.push(wire.EncodePublicationReady(e))
}

// SubscriptionReady emits ON_SUBSCRIPTION_READY (operation-succeeded for a subscription add).
func (b *Broadcast) SubscriptionReady(e *wire.SubscriptionReadyEvent) {
	b.push(wire.EncodeSubscriptionReady(e))
}

// AvailableImage emits ON_AVAILABLE_IMAGE.
func (b *Broadcast) AvailableImage(e *wire.AvailableImageEvent) {
	b.push(wire.EncodeAvailableImage(e))
}

// UnavailableImage emits ON_UNAVAILABLE_IMAGE.
func (b *Broadcast) UnavailableImage(e *wire.UnavailableImageEvent) {
	b.push(wire.EncodeUnavailableImage(e))
}

// Error emits ON_ERROR.
func (b *Broadcast) Error(e *wire.ErrorEvent) {
	b.push(wire.EncodeError(e))
}

// OperationSuccess emits ON_OPERATION_SUCCESS.
func (b *Broadcast) OperationSuccess(e *wire.OperationSuccessEvent) {
	b.push(wire.EncodeOperationSuccess(e))
}

// Reader is an independent read cursor over the broadcast ring, standing in
// for a client polling the shared broadcast buffer at its own pace.
type Reader struct {
	b   *Broadcast
	pos int64
}

// NewReader returns a reader starting from the oldest frame still retained.
func (b *Broadcast) NewReader() *Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &Reader{b: b, pos: b.lowWaterMarkLocked()}
	b.readers = append(b.readers, r)
	return r
}

// Next returns the next unread frame's msgTypeId and payload, or ok=false
// if the reader has caught up to the producer.
func (r *Reader) Next() (msgTypeID int32, payload []byte, ok bool) {
	r.b.mu.Lock()
	if r.pos >= r.b.head {
		r.b.mu.Unlock()
		return 0, nil, false
	}
	frame := r.b.slots[r.pos%r.b.capacity]
	r.pos++
	r.b.mu.Unlock()

	id, body, err := wire.ParseHeader(frame)
	if err != nil {
		return 0, nil, false
	}
	return id, body, true
}

// Drain reads every remaining frame, for test assertions.
func (r *Reader) Drain() [][2]any {
	var out [][2]any
	for {
		id, payload, ok := r.Next()
		if !ok {
			break
		}
		out = append(out, [2]any{id, payload})
	}
	return out
}
