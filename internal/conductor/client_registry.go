package conductor

import "aeron-driver/internal/command"

type registration struct {
	kind command.RegKind
	id   int64
}

// clientState tracks one client's liveness and the registrations it owns,
// so a timed-out client can have everything released as if it had sent
// the matching remove commands itself (spec.md §3 "Client", §4.5).
type clientState struct {
	lastKeepaliveNS int64
	regs            []registration
}

// ClientRegistry is the command.Recorder the dispatcher reports into; it
// is also what timer maintenance walks to find timed-out clients.
type ClientRegistry struct {
	clients map[int64]*clientState
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[int64]*clientState)}
}

func (c *ClientRegistry) stateFor(clientID int64) *clientState {
	st, ok := c.clients[clientID]
	if !ok {
		st = &clientState{}
		c.clients[clientID] = st
	}
	return st
}

func (c *ClientRegistry) Keepalive(clientID int64, nowNS int64) {
	c.stateFor(clientID).lastKeepaliveNS = nowNS
}

func (c *ClientRegistry) Registered(clientID int64, kind command.RegKind, id int64) {
	st := c.stateFor(clientID)
	st.regs = append(st.regs, registration{kind: kind, id: id})
}

func (c *ClientRegistry) Removed(clientID int64, kind command.RegKind, id int64) {
	st, ok := c.clients[clientID]
	if !ok {
		return
	}
	kept := st.regs[:0]
	for _, r := range st.regs {
		if r.kind != kind || r.id != id {
			kept = append(kept, r)
		}
	}
	st.regs = kept
}

// TimedOut returns every client whose last keepalive is older than
// timeoutNS, for timer maintenance to release.
func (c *ClientRegistry) TimedOut(nowNS, timeoutNS int64) []int64 {
	var out []int64
	for clientID, st := range c.clients {
		if nowNS-st.lastKeepaliveNS > timeoutNS {
			out = append(out, clientID)
		}
	}
	return out
}

// Drop removes a client's bookkeeping entirely, called once its
// registrations have all been released.
func (c *ClientRegistry) Drop(clientID int64) {
	delete(c.clients, clientID)
}

// RegistrationsByKind returns a client's registration ids of a given kind
// in the order they were added, for deterministic release ordering.
func (c *ClientRegistry) RegistrationsByKind(clientID int64, kind command.RegKind) []int64 {
	st, ok := c.clients[clientID]
	if !ok {
		return nil
	}
	var out []int64
	for _, r := range st.regs {
		if r.kind == kind {
			out = append(out, r.id)
		}
	}
	return out
}
