package subscription

import (
	"errors"

	"aeron-driver/internal/registry"
)

// ErrReliabilityConflict is returned when a new subscription's Reliable
// flag disagrees with the existing subscriptions sharing its (endpoint,
// stream) key (spec.md §4.4's reliability-conflict invariant): a receive
// endpoint is demuxed once per (endpoint, stream), so every subscriber
// riding it must agree on whether NAK-based retransmission applies.
var ErrReliabilityConflict = errors.New("subscription: reliability conflict for endpoint/stream")

// Registry holds every live subscription indexed by registration id, plus
// a secondary grouping by (endpoint, stream) for reliability checks and
// receive-endpoint refcounting.
type Registry struct {
	byRegistration *registry.Table[int64, Subscription]
	groups         map[EndpointStreamKey][]int64
}

func NewRegistry() *Registry {
	return &Registry{
		byRegistration: registry.NewTable[int64, Subscription](),
		groups:         make(map[EndpointStreamKey][]int64),
	}
}

// Add validates the reliability-conflict invariant against any existing
// subscriptions on the same (endpoint, stream) key before inserting.
func (r *Registry) Add(s *Subscription) error {
	key := s.Key()
	for _, regID := range r.groups[key] {
		existing, ok := r.byRegistration.ByKey(regID)
		if ok && existing.Reliable != s.Reliable {
			return ErrReliabilityConflict
		}
	}
	r.byRegistration.Insert(s.RegistrationID, s)
	r.groups[key] = append(r.groups[key], s.RegistrationID)
	return nil
}

func (r *Registry) ByRegistration(regID int64) (*Subscription, bool) {
	return r.byRegistration.ByKey(regID)
}

// GroupSize reports how many subscriptions currently share key, used to
// decide whether the shared receive endpoint/subscription can be torn
// down on REMOVE_SUBSCRIPTION.
func (r *Registry) GroupSize(key EndpointStreamKey) int {
	return len(r.groups[key])
}

func (r *Registry) Each(key EndpointStreamKey, fn func(s *Subscription)) {
	for _, regID := range r.groups[key] {
		if s, ok := r.byRegistration.ByKey(regID); ok {
			fn(s)
		}
	}
}

func (r *Registry) Remove(regID int64) {
	s, ok := r.byRegistration.ByKey(regID)
	if !ok {
		return
	}
	key := s.Key()
	ids := r.groups[key][:0]
	for _, id := range r.groups[key] {
		if id != regID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		delete(r.groups, key)
	} else {
		r.groups[key] = ids
	}
	r.byRegistration.Remove(regID)
}

func (r *Registry) EachAll(fn func(regID int64, s *Subscription)) {
	r.byRegistration.Each(fn)
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	return r.byRegistration.Len()
}
