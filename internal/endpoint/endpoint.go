// Package endpoint implements the channel endpoint registry (spec.md
// §4.4): one entry per UDP channel (send or receive side), lazily
// created, reference-counted by the streams registered against it, and
// closed at most once.
package endpoint

import (
	"aeron-driver/internal/channeluri"
	"aeron-driver/internal/registry"
)

// Direction distinguishes a send (publication) endpoint from a receive
// (subscription) endpoint; the two are kept in separate tables because a
// send and a receive endpoint can share the same address.
type Direction int

const (
	Send Direction = iota
	Receive
)

// Endpoint is one UDP channel endpoint, multiplexed across streams.
type Endpoint struct {
	Key         channeluri.EndpointKey
	Direction   Direction
	streamCount int
	closeSent   bool // invariant: ReleaseStream reports close at most once
}

// StreamCount reports how many streams currently reference this endpoint.
func (e *Endpoint) StreamCount() int {
	return e.streamCount
}

// Registry tracks send and receive endpoints independently.
type Registry struct {
	send    *registry.Table[channeluri.EndpointKey, Endpoint]
	receive *registry.Table[channeluri.EndpointKey, Endpoint]
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{
		send:    registry.NewTable[channeluri.EndpointKey, Endpoint](),
		receive: registry.NewTable[channeluri.EndpointKey, Endpoint](),
	}
}

func (r *Registry) table(dir Direction) *registry.Table[channeluri.EndpointKey, Endpoint] {
	if dir == Send {
		return r.send
	}
	return r.receive
}

// Ensure returns the endpoint for key, creating it if absent. created
// reports whether this call created it. The command handler registers a
// newly created receive endpoint with the receiver proxy; a send endpoint
// has no separate registration, its key travels with each
// NewNetworkPublicationCmd. Creating an endpoint does not itself open a
// socket.
func (r *Registry) Ensure(dir Direction, key channeluri.EndpointKey) (ep *Endpoint, created bool) {
	t := r.table(dir)
	if existing, ok := t.ByKey(key); ok {
		return existing, false
	}
	ep = &Endpoint{Key: key, Direction: dir}
	t.Insert(key, ep)
	return ep, true
}

// Lookup finds an existing endpoint without creating one.
func (r *Registry) Lookup(dir Direction, key channeluri.EndpointKey) (*Endpoint, bool) {
	return r.table(dir).ByKey(key)
}

// AddStream increments an endpoint's stream-count.
func (r *Registry) AddStream(ep *Endpoint) {
	ep.streamCount++
}

// ReleaseStream decrements an endpoint's stream-count and, if it reaches
// zero, removes the endpoint from the registry and reports that the
// caller must instruct the owning agent to close it. Close is reported
// at most once per endpoint instance.
func (r *Registry) ReleaseStream(dir Direction, ep *Endpoint) (shouldClose bool) {
	ep.streamCount--
	if ep.streamCount > 0 {
		return false
	}
	r.table(dir).Remove(ep.Key)
	if ep.closeSent {
		return false
	}
	ep.closeSent = true
	return true
}
