package publication

import (
	"aeron-driver/internal/channeluri"
	"aeron-driver/internal/registry"
)

// Registry holds every live network and IPC publication, indexed both by
// registration id (for REMOVE_PUBLICATION lookups), by the full
// (endpoint, stream, session) key (to collision-check freshly assigned
// session ids), and by (endpoint, stream) for ACTIVE shared-publication
// reuse.
type Registry struct {
	network      *registry.Table[int64, Network]
	networkByKey map[NetworkKey]int64 // full key -> registration id, lives until deleted

	sharedActive map[sendKey]int64 // endpoint+stream -> registration id, only while ACTIVE and non-exclusive

	ipc      *registry.Table[int64, IPC]
	ipcByKey map[int32]int64 // stream id -> registration id of the latest IPC added on it, any state, until that one is deleted

	ipcSharedActive map[int32]int64 // stream id -> registration id, only while ACTIVE and non-exclusive
}

// sendKey is a network publication's (endpoint, stream) identity, the
// granularity at which a non-exclusive ACTIVE publication is reused by a
// later add (spec.md §4.2's tie-break rule).
type sendKey struct {
	endpoint channeluri.EndpointKey
	streamID int32
}

func NewRegistry() *Registry {
	return &Registry{
		network:         registry.NewTable[int64, Network](),
		networkByKey:    make(map[NetworkKey]int64),
		sharedActive:    make(map[sendKey]int64),
		ipc:             registry.NewTable[int64, IPC](),
		ipcByKey:        make(map[int32]int64),
		ipcSharedActive: make(map[int32]int64),
	}
}

func (r *Registry) sendKeyOf(k NetworkKey) sendKey {
	return sendKey{endpoint: k.Endpoint, streamID: k.StreamID}
}

// FindNetwork returns the publication registered for the exact
// (endpoint, stream, session) key, for session-id collision checks.
func (r *Registry) FindNetwork(key NetworkKey) (*Network, bool) {
	regID, ok := r.networkByKey[key]
	if !ok {
		return nil, false
	}
	return r.network.ByKey(regID)
}

// FindActiveShared returns the ACTIVE non-exclusive publication for an
// (endpoint, stream), if one exists, so a new non-exclusive add can
// reuse it instead of minting a new session.
func (r *Registry) FindActiveShared(endpoint channeluri.EndpointKey, streamID int32) (*Network, bool) {
	regID, ok := r.sharedActive[sendKey{endpoint: endpoint, streamID: streamID}]
	if !ok {
		return nil, false
	}
	return r.network.ByKey(regID)
}

func (r *Registry) AddNetwork(n *Network) {
	r.network.Insert(n.RegistrationID, n)
	r.networkByKey[n.Key] = n.RegistrationID
	if !n.Exclusive && n.State == Active {
		r.sharedActive[r.sendKeyOf(n.Key)] = n.RegistrationID
	}
}

func (r *Registry) NetworkByRegistration(regID int64) (*Network, bool) {
	return r.network.ByKey(regID)
}

// UnshareActive drops n from the ACTIVE shared-reuse index. The command
// handler calls it once n's last reference is released, while n is still
// ACTIVE, so a later add mints a fresh session instead.
func (r *Registry) UnshareActive(n *Network) {
	key := r.sendKeyOf(n.Key)
	if r.sharedActive[key] == n.RegistrationID {
		delete(r.sharedActive, key)
	}
}

func (r *Registry) DeleteNetwork(regID int64) {
	n, ok := r.network.ByKey(regID)
	if ok {
		delete(r.networkByKey, n.Key)
		r.UnshareActive(n)
	}
	r.network.Remove(regID)
}

func (r *Registry) EachNetwork(fn func(regID int64, n *Network)) {
	r.network.Each(fn)
}

// FindIPC returns the most recently added IPC publication for streamID,
// if that one is still registered. It may be in any state, CLOSING
// included.
func (r *Registry) FindIPC(streamID int32) (*IPC, bool) {
	regID, ok := r.ipcByKey[streamID]
	if !ok {
		return nil, false
	}
	return r.ipc.ByKey(regID)
}

// FindActiveSharedIPC mirrors FindActiveShared for shared-memory publications.
func (r *Registry) FindActiveSharedIPC(streamID int32) (*IPC, bool) {
	regID, ok := r.ipcSharedActive[streamID]
	if !ok {
		return nil, false
	}
	return r.ipc.ByKey(regID)
}

func (r *Registry) AddIPC(p *IPC) {
	r.ipc.Insert(p.RegistrationID, p)
	r.ipcByKey[p.StreamID] = p.RegistrationID
	if !p.Exclusive && p.State == Active {
		r.ipcSharedActive[p.StreamID] = p.RegistrationID
	}
}

func (r *Registry) IPCByRegistration(regID int64) (*IPC, bool) {
	return r.ipc.ByKey(regID)
}

func (r *Registry) UnshareActiveIPC(p *IPC) {
	if r.ipcSharedActive[p.StreamID] == p.RegistrationID {
		delete(r.ipcSharedActive, p.StreamID)
	}
}

func (r *Registry) DeleteIPC(regID int64) {
	p, ok := r.ipc.ByKey(regID)
	if ok {
		if r.ipcByKey[p.StreamID] == regID {
			delete(r.ipcByKey, p.StreamID)
		}
		r.UnshareActiveIPC(p)
	}
	r.ipc.Remove(regID)
}

func (r *Registry) EachIPC(fn func(regID int64, p *IPC)) {
	r.ipc.Each(fn)
}

// LenNetwork and LenIPC report live publication counts, for metrics gauges.
func (r *Registry) LenNetwork() int { return r.network.Len() }
func (r *Registry) LenIPC() int     { return r.ipc.Len() }
