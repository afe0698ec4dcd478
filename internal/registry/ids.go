package registry

import "math/rand"

// IDSequence hands out monotonically increasing 64-bit ids. The command
// handler uses it for registration ids (one per add-command); correlation
// ids come from the clients' own commands.
type IDSequence struct {
	next int64
}

// NewIDSequence starts a sequence at 1 (0 is reserved to mean "none").
func NewIDSequence() *IDSequence {
	return &IDSequence{next: 1}
}

// Next returns the next id in the sequence.
func (s *IDSequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// SessionIDAllocator assigns random 31-bit session ids, re-rolling on
// collision against a caller-supplied predicate (spec.md §4.1: "assign
// session id (random 31-bit, collision-checked against keys on the same
// endpoint+stream)").
type SessionIDAllocator struct {
	rng *rand.Rand
}

// NewSessionIDAllocator creates an allocator seeded from the given source,
// so tests can make session id assignment deterministic.
func NewSessionIDAllocator(seed int64) *SessionIDAllocator {
	return &SessionIDAllocator{rng: rand.New(rand.NewSource(seed))}
}

// Allocate returns a session id for which taken returns false, retrying
// until one is found. taken must terminate (the caller's key space is
// always far smaller than 2^31).
func (a *SessionIDAllocator) Allocate(taken func(sessionID int32) bool) int32 {
	for {
		id := int32(a.rng.Int31())
		if !taken(id) {
			return id
		}
	}
}
