package wire

// AddPublicationCommand is the decoded payload of ADD_PUBLICATION / ADD_EXCLUSIVE_PUBLICATION.
type AddPublicationCommand struct {
	ClientID      int64
	CorrelationID int64
	StreamID      int32
	ChannelURI    string
	Exclusive     bool
}

// DecodeAddPublication decodes an ADD_PUBLICATION or ADD_EXCLUSIVE_PUBLICATION payload.
func DecodeAddPublication(payload []byte, exclusive bool) (*AddPublicationCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	correlationID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	streamID, err := r.Int32()
	if err != nil {
		return nil, err
	}
	channel, err := r.String()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &AddPublicationCommand{
		ClientID:      clientID,
		CorrelationID: correlationID,
		StreamID:      streamID,
		ChannelURI:    channel,
		Exclusive:     exclusive,
	}, nil
}

// EncodeAddPublication encodes an ADD_PUBLICATION / ADD_EXCLUSIVE_PUBLICATION command frame (used by tests/clients).
func EncodeAddPublication(c *AddPublicationCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID).PutInt64(c.CorrelationID).PutInt32(c.StreamID).PutString(c.ChannelURI)
	id := AddPublication
	if c.Exclusive {
		id = AddExclusivePublication
	}
	return Frame(id, w.Bytes())
}

// RemovePublicationCommand is the decoded payload of REMOVE_PUBLICATION.
type RemovePublicationCommand struct {
	ClientID      int64
	CorrelationID int64
	RegistrationID int64
}

func DecodeRemovePublication(payload []byte) (*RemovePublicationCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	correlationID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	regID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &RemovePublicationCommand{ClientID: clientID, CorrelationID: correlationID, RegistrationID: regID}, nil
}

func EncodeRemovePublication(c *RemovePublicationCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID).PutInt64(c.CorrelationID).PutInt64(c.RegistrationID)
	return Frame(RemovePublication, w.Bytes())
}

// AddSubscriptionCommand is the decoded payload of ADD_SUBSCRIPTION.
type AddSubscriptionCommand struct {
	ClientID       int64
	CorrelationID  int64
	StreamID       int32
	RegistrationID int64 // -1 for network
	ChannelURI     string
}

func DecodeAddSubscription(payload []byte) (*AddSubscriptionCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	correlationID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	streamID, err := r.Int32()
	if err != nil {
		return nil, err
	}
	regID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	channel, err := r.String()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &AddSubscriptionCommand{
		ClientID:       clientID,
		CorrelationID:  correlationID,
		StreamID:       streamID,
		RegistrationID: regID,
		ChannelURI:     channel,
	}, nil
}

func EncodeAddSubscription(c *AddSubscriptionCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID).PutInt64(c.CorrelationID).PutInt32(c.StreamID).PutInt64(c.RegistrationID).PutString(c.ChannelURI)
	return Frame(AddSubscription, w.Bytes())
}

// RemoveSubscriptionCommand is the decoded payload of REMOVE_SUBSCRIPTION.
type RemoveSubscriptionCommand struct {
	ClientID       int64
	CorrelationID  int64
	RegistrationID int64
}

func DecodeRemoveSubscription(payload []byte) (*RemoveSubscriptionCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	correlationID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	regID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &RemoveSubscriptionCommand{ClientID: clientID, CorrelationID: correlationID, RegistrationID: regID}, nil
}

func EncodeRemoveSubscription(c *RemoveSubscriptionCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID).PutInt64(c.CorrelationID).PutInt64(c.RegistrationID)
	return Frame(RemoveSubscription, w.Bytes())
}

// ClientKeepaliveCommand is the decoded payload of CLIENT_KEEPALIVE.
type ClientKeepaliveCommand struct {
	ClientID int64
}

func DecodeClientKeepalive(payload []byte) (*ClientKeepaliveCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &ClientKeepaliveCommand{ClientID: clientID}, nil
}

func EncodeClientKeepalive(c *ClientKeepaliveCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID)
	return Frame(ClientKeepalive, w.Bytes())
}

// DestinationCommand is the decoded payload of ADD_DESTINATION / REMOVE_DESTINATION.
type DestinationCommand struct {
	ClientID       int64
	CorrelationID  int64
	RegistrationID int64
	ChannelURI     string
}

func DecodeDestination(payload []byte) (*DestinationCommand, error) {
	r := NewReader(payload)
	clientID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	correlationID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	regID, err := r.Int64()
	if err != nil {
		return nil, err
	}
	channel, err := r.String()
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, ErrMalformed
	}
	return &DestinationCommand{ClientID: clientID, CorrelationID: correlationID, RegistrationID: regID, ChannelURI: channel}, nil
}

func EncodeDestination(add bool, c *DestinationCommand) []byte {
	w := NewWriter().PutInt64(c.ClientID).PutInt64(c.CorrelationID).PutInt64(c.RegistrationID).PutString(c.ChannelURI)
	id := RemoveDestination
	if add {
		id = AddDestination
	}
	return Frame(id, w.Bytes())
}
