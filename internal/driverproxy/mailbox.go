package driverproxy

// Mailbox is a bounded one-producer/one-consumer queue of commands of a
// single kind, the shape of the internal sender/receiver command queues
// described in spec.md §5. Sends never block the conductor; an
// overflowing mailbox drops the command being sent and counts it,
// mirroring pkg/websocket/hub.go's RegisterClient/BroadcastMessage
// select-with-default style rather than the corpus's lock-free
// multi-producer ring (that one's multi-producer concurrency isn't
// needed here: the conductor is the mailbox's sole writer).
type Mailbox[T any] struct {
	ch     chan T
	onDrop func()
}

// NewMailbox creates a mailbox with the given bound.
func NewMailbox[T any](capacity int, onDrop func()) *Mailbox[T] {
	if capacity <= 0 {
		capacity = 256
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Mailbox[T]{ch: make(chan T, capacity), onDrop: onDrop}
}

// Send enqueues cmd without blocking, dropping and counting it if full.
func (m *Mailbox[T]) Send(cmd T) {
	select {
	case m.ch <- cmd:
	default:
		m.onDrop()
	}
}

// Poll returns the next queued command, or ok=false if empty. The
// sender/receiver agent side (out of scope) would call this in its own
// loop; tests use it to assert on what the conductor instructed.
func (m *Mailbox[T]) Poll() (cmd T, ok bool) {
	select {
	case cmd = <-m.ch:
		return cmd, true
	default:
		var zero T
		return zero, false
	}
}

// Len reports how many commands are currently queued.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}
