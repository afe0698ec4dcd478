package driverproxy

// ChannelSenderProxy is a SenderProxy backed by bounded mailboxes, one
// per command kind.
type ChannelSenderProxy struct {
	NewPublication    *Mailbox[NewNetworkPublicationCmd]
	RemovePublication *Mailbox[RemoveNetworkPublicationCmd]
	CloseEndpoint     *Mailbox[CloseSendEndpointCmd]
	AddDest           *Mailbox[AddDestinationCmd]
	RemoveDest        *Mailbox[RemoveDestinationCmd]
}

// NewChannelSenderProxy wires a SenderProxy backed by bounded mailboxes.
func NewChannelSenderProxy(capacity int, onDrop func()) *ChannelSenderProxy {
	return &ChannelSenderProxy{
		NewPublication:    NewMailbox[NewNetworkPublicationCmd](capacity, onDrop),
		RemovePublication: NewMailbox[RemoveNetworkPublicationCmd](capacity, onDrop),
		CloseEndpoint:     NewMailbox[CloseSendEndpointCmd](capacity, onDrop),
		AddDest:           NewMailbox[AddDestinationCmd](capacity, onDrop),
		RemoveDest:        NewMailbox[RemoveDestinationCmd](capacity, onDrop),
	}
}

func (p *ChannelSenderProxy) NewNetworkPublication(c NewNetworkPublicationCmd)       { p.NewPublication.Send(c) }
func (p *ChannelSenderProxy) RemoveNetworkPublication(c RemoveNetworkPublicationCmd) { p.RemovePublication.Send(c) }
func (p *ChannelSenderProxy) CloseSendEndpoint(c CloseSendEndpointCmd)               { p.CloseEndpoint.Send(c) }
func (p *ChannelSenderProxy) AddDestination(c AddDestinationCmd)                     { p.AddDest.Send(c) }
func (p *ChannelSenderProxy) RemoveDestination(c RemoveDestinationCmd)               { p.RemoveDest.Send(c) }

var _ SenderProxy = (*ChannelSenderProxy)(nil)

// ChannelReceiverProxy wires a ReceiverProxy backed by bounded mailboxes.
type ChannelReceiverProxy struct {
	Register          *Mailbox[RegisterReceiveEndpointCmd]
	CloseEndpoint     *Mailbox[CloseReceiveEndpointCmd]
	AddSub            *Mailbox[AddSubscriptionCmd]
	RemoveSub         *Mailbox[RemoveSubscriptionCmd]
}

// NewChannelReceiverProxy wires a ReceiverProxy backed by bounded mailboxes.
func NewChannelReceiverProxy(capacity int, onDrop func()) *ChannelReceiverProxy {
	return &ChannelReceiverProxy{
		Register:      NewMailbox[RegisterReceiveEndpointCmd](capacity, onDrop),
		CloseEndpoint: NewMailbox[CloseReceiveEndpointCmd](capacity, onDrop),
		AddSub:        NewMailbox[AddSubscriptionCmd](capacity, onDrop),
		RemoveSub:     NewMailbox[RemoveSubscriptionCmd](capacity, onDrop),
	}
}

func (p *ChannelReceiverProxy) RegisterReceiveEndpoint(c RegisterReceiveEndpointCmd) { p.Register.Send(c) }
func (p *ChannelReceiverProxy) CloseReceiveEndpoint(c CloseReceiveEndpointCmd)       { p.CloseEndpoint.Send(c) }
func (p *ChannelReceiverProxy) AddSubscription(c AddSubscriptionCmd)                 { p.AddSub.Send(c) }
func (p *ChannelReceiverProxy) RemoveSubscription(c RemoveSubscriptionCmd)           { p.RemoveSub.Send(c) }

var _ ReceiverProxy = (*ChannelReceiverProxy)(nil)
