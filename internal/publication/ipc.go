package publication

// IPC is an in-process (shared-memory) publication. It has no send
// endpoint and no sender-agent ack to wait for: once LINGER elapses it
// moves to CLOSING and is deleted on the next tick (spec.md §3 "IPC publications are
// driver-local and need no network de-registration").
type IPC struct {
	RegistrationID int64
	StreamID       int32
	SessionID      int32
	CorrelationID  int64
	TermLength     int32
	InitTermID     int32
	LogFileName    string
	Exclusive      bool

	ProducerPosition int64
	ConsumerPosition int64

	RefCount int
	State    State

	drainingSinceNS int64
	lingerSinceNS   int64
}

// NewIPC creates a fresh ACTIVE IPC publication with one reference.
func NewIPC(regID int64, streamID, sessionID int32, corrID int64, exclusive bool) *IPC {
	return &IPC{
		RegistrationID: regID,
		StreamID:       streamID,
		SessionID:      sessionID,
		CorrelationID:  corrID,
		Exclusive:      exclusive,
		RefCount:       1,
		State:          Active,
	}
}

func (p *IPC) Drained() bool {
	return p.ProducerPosition == p.ConsumerPosition
}

func (p *IPC) Incref() { p.RefCount++ }

func (p *IPC) Decref() {
	if p.RefCount > 0 {
		p.RefCount--
	}
}

// Tick advances the IPC state machine. hasSubscribers reports whether any
// subscription is currently attached to this publication's stream over
// aeron:ipc (spy subscriptions never target IPC publications, so this is
// always a direct subscription count). An IPC publication with no
// subscribers has nothing to linger for and drops straight to CLOSING on
// refcount-zero; one that still has subscribers attached has no
// connection-timeout fallback either and instead waits in DRAINING until
// they catch up, since drain progress here is local and not subject to
// network loss.
func (p *IPC) Tick(now int64, t Timeouts, hasSubscribers bool) (deleted bool) {
	switch p.State {
	case Active:
		if p.RefCount > 0 {
			return false
		}
		if !hasSubscribers {
			p.State = Closing
			return false
		}
		if p.Drained() {
			p.State = Linger
			p.lingerSinceNS = now
		} else {
			p.State = Draining
			p.drainingSinceNS = now
		}
		return false

	case Draining:
		if p.Drained() {
			p.State = Linger
			p.lingerSinceNS = now
		}
		return false

	case Linger:
		if now-p.lingerSinceNS >= t.PublicationLingerNS {
			p.State = Closing
		}
		return false

	case Closing:
		return true
	}
	return false
}
