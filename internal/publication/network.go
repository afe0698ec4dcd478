package publication

import "aeron-driver/internal/channeluri"

// NetworkKey identifies a network publication by the (send endpoint,
// stream, session) triple that must be unique among ACTIVE/DRAINING/LINGER
// publications (spec.md §3 "at most one active publication per key").
type NetworkKey struct {
	Endpoint  channeluri.EndpointKey
	StreamID  int32
	SessionID int32
}

// Network is a network publication's conductor-side bookkeeping: the
// sender agent owns the actual log buffer and wire I/O (out of scope
// here), the conductor owns lifecycle, refcounting and notification.
type Network struct {
	RegistrationID int64
	Key            NetworkKey
	CorrelationID  int64
	MTU            int32
	TermLength     int32
	InitTermID     int32
	LogFileName    string
	Exclusive      bool

	// ProducerPosition/ConsumerPosition are updated externally (by the
	// sender agent's status reports, out of scope) and read here only to
	// decide whether the publication has drained.
	ProducerPosition int64
	ConsumerPosition int64

	RefCount int
	State    State

	drainingSinceNS int64
	lingerSinceNS   int64
}

// NewNetwork creates a fresh ACTIVE network publication with one reference.
func NewNetwork(regID int64, key NetworkKey, corrID int64, exclusive bool) *Network {
	return &Network{
		RegistrationID: regID,
		Key:            key,
		CorrelationID:  corrID,
		Exclusive:      exclusive,
		RefCount:       1,
		State:          Active,
	}
}

// Drained reports whether every byte written has been sent.
func (n *Network) Drained() bool {
	return n.ProducerPosition == n.ConsumerPosition
}

// Incref adds a reference, used when a second exclusive-false publisher
// joins an existing ACTIVE publication for the same key.
func (n *Network) Incref() {
	n.RefCount++
}

// Decref removes a reference. The caller must check RefCount == 0
// afterwards to know whether the publication is now eligible to drain.
func (n *Network) Decref() {
	if n.RefCount > 0 {
		n.RefCount--
	}
}

// Tick advances the state machine for one maintenance pass. now is the
// current monotonic time in nanoseconds; t holds the configured timeout
// durations. It returns the actions the conductor must take as a result.
func (n *Network) Tick(now int64, t Timeouts) (notifySenderRemove bool, deleted bool) {
	switch n.State {
	case Active:
		if n.RefCount > 0 {
			return false, false
		}
		if n.Drained() {
			n.State = Linger
			n.lingerSinceNS = now
		} else {
			n.State = Draining
			n.drainingSinceNS = now
		}
		return false, false

	case Draining:
		// A no-receivers connection timeout is the fallback exit: real
		// drain progress depends on remote subscriber status messages,
		// which are out of this conductor's scope, so a publication that
		// is still undrained after PublicationConnectionTimeoutNS is
		// forced to LINGER rather than stalled forever.
		if n.Drained() || now-n.drainingSinceNS >= t.PublicationConnectionTimeoutNS {
			n.State = Linger
			n.lingerSinceNS = now
		}
		return false, false

	case Linger:
		if now-n.lingerSinceNS >= t.PublicationLingerNS {
			n.State = Closing
			return true, false
		}
		return false, false

	case Closing:
		// No real sender-agent ack channel exists in this conductor-only
		// model; the removal instruction is treated as synchronous and
		// the publication is deleted on the tick after it was sent.
		return false, true
	}
	return false, false
}
