// Package driverproxy models the one-way mailboxes the conductor uses to
// instruct the sender and receiver agents (spec.md §1, §5). Each proxy
// exposes only the handful of operations the conductor calls on that
// collaborator, per the design notes' "narrow trait-like capability
// sets" guidance — the agents themselves are out of scope.
package driverproxy

import "aeron-driver/internal/channeluri"

// NewNetworkPublicationCmd instructs the sender to start driving a
// publication's log buffer onto the wire.
type NewNetworkPublicationCmd struct {
	RegistrationID int64
	StreamID       int32
	SessionID      int32
	LogFileName    string
	Endpoint       channeluri.EndpointKey
}

// RemoveNetworkPublicationCmd instructs the sender to stop driving a
// publication and release its resources (emitted on CLOSING entry, spec.md §4.2).
type RemoveNetworkPublicationCmd struct {
	RegistrationID int64
}

// CloseSendEndpointCmd instructs the sender to close a send endpoint's socket.
type CloseSendEndpointCmd struct {
	Endpoint channeluri.EndpointKey
}

// AddDestinationCmd / RemoveDestinationCmd forward MDC destination changes (spec.md §4.1).
type AddDestinationCmd struct {
	RegistrationID int64
	ChannelURI     string
}

type RemoveDestinationCmd struct {
	RegistrationID int64
	ChannelURI     string
}

// SenderProxy is every operation the conductor can ask the sender agent
// to perform. Implementations must never block the caller.
type SenderProxy interface {
	NewNetworkPublication(NewNetworkPublicationCmd)
	RemoveNetworkPublication(RemoveNetworkPublicationCmd)
	CloseSendEndpoint(CloseSendEndpointCmd)
	AddDestination(AddDestinationCmd)
	RemoveDestination(RemoveDestinationCmd)
}

// RegisterReceiveEndpointCmd instructs the receiver to open a receive endpoint's socket.
type RegisterReceiveEndpointCmd struct {
	Endpoint channeluri.EndpointKey
}

// CloseReceiveEndpointCmd instructs the receiver to close a receive endpoint's socket.
type CloseReceiveEndpointCmd struct {
	Endpoint channeluri.EndpointKey
}

// AddSubscriptionCmd / RemoveSubscriptionCmd tell the receiver which
// (endpoint, stream) pairs it should be demuxing images for.
type AddSubscriptionCmd struct {
	Endpoint channeluri.EndpointKey
	StreamID int32
	Reliable bool
}

type RemoveSubscriptionCmd struct {
	Endpoint channeluri.EndpointKey
	StreamID int32
}

// ReceiverProxy is every operation the conductor can ask the receiver
// agent to perform.
type ReceiverProxy interface {
	RegisterReceiveEndpoint(RegisterReceiveEndpointCmd)
	CloseReceiveEndpoint(CloseReceiveEndpointCmd)
	AddSubscription(AddSubscriptionCmd)
	RemoveSubscription(RemoveSubscriptionCmd)
}
