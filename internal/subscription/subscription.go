// Package subscription implements subscription registration, the
// (endpoint, stream) reliability-conflict check, and spy subscriptions
// (spec.md §3, §4.3, §4.4).
package subscription

import "aeron-driver/internal/channeluri"

// EndpointStreamKey groups every subscription sharing a receive endpoint
// and stream id, the granularity at which reliability must agree and at
// which a single receive-endpoint registration is shared.
type EndpointStreamKey struct {
	Endpoint channeluri.EndpointKey
	StreamID int32
}

// Subscription is one client's subscription registration.
type Subscription struct {
	RegistrationID int64
	ClientID       int64
	CorrelationID  int64
	StreamID       int32
	ChannelURI     string
	Endpoint       channeluri.EndpointKey
	Reliable       bool
	Spy            bool
	PositionID     int32

	// ImageCorrelationID is set once this subscription has been matched
	// to a live image (nil/zero until AVAILABLE_IMAGE fires for it).
	ImageCorrelationID int64
	HasImage           bool
}

func (s *Subscription) Key() EndpointStreamKey {
	return EndpointStreamKey{Endpoint: s.Endpoint, StreamID: s.StreamID}
}
