package command

import (
	"aeron-driver/internal/channeluri"
	"aeron-driver/internal/clock"
	"aeron-driver/internal/driverproxy"
	"aeron-driver/internal/endpoint"
	"aeron-driver/internal/events"
	"aeron-driver/internal/image"
	"aeron-driver/internal/publication"
	"aeron-driver/internal/rawlog"
	"aeron-driver/internal/registry"
	"aeron-driver/internal/subscription"
	"aeron-driver/internal/wire"
)

// ErrorCounter is invoked once per ON_ERROR emitted, wired to the
// conductor's metrics (spec.md §4.1 "each error increments the error
// counter").
type ErrorCounter func(code wire.ErrorCode)

// CommandCounter is invoked once per command with a recognized msgTypeId,
// before it is handled, wired to the conductor's per-command-type metric.
type CommandCounter func(msgTypeID int32)

// Dispatcher decodes, validates and applies client commands against the
// conductor's registries, the spec's "command handler" (§4.1).
type Dispatcher struct {
	Publications  *publication.Registry
	Images        *image.Registry
	Subscriptions *subscription.Registry
	Endpoints     *endpoint.Registry
	Broadcast     *events.Broadcast
	Sender        driverproxy.SenderProxy
	Receiver      driverproxy.ReceiverProxy
	RawLog        rawlog.Allocator
	IDs           *registry.IDSequence
	Sessions      *registry.SessionIDAllocator
	Counters      *registry.CounterAllocator
	Clock         clock.Clock
	Recorder      Recorder
	OnError       ErrorCounter
	OnCommand     CommandCounter
}

func (d *Dispatcher) emitError(correlationID int64, code wire.ErrorCode, message string) {
	if d.OnError != nil {
		d.OnError(code)
	}
	d.Broadcast.Error(&wire.ErrorEvent{CorrelationID: correlationID, Code: code, Message: message})
}

// Dispatch decodes one framed command and applies it. A malformed frame
// is counted and dropped: without a correlation id there is nowhere to
// route ON_ERROR, matching how the client library would never produce one.
func (d *Dispatcher) Dispatch(frame []byte) {
	msgTypeID, payload, err := wire.ParseHeader(frame)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}

	switch msgTypeID {
	case wire.AddPublication:
		d.countCommand(msgTypeID)
		d.handleAddPublication(payload, false)
	case wire.AddExclusivePublication:
		d.countCommand(msgTypeID)
		d.handleAddPublication(payload, true)
	case wire.RemovePublication:
		d.countCommand(msgTypeID)
		d.handleRemovePublication(payload)
	case wire.AddSubscription:
		d.countCommand(msgTypeID)
		d.handleAddSubscription(payload)
	case wire.RemoveSubscription:
		d.countCommand(msgTypeID)
		d.handleRemoveSubscription(payload)
	case wire.ClientKeepalive:
		d.countCommand(msgTypeID)
		d.handleClientKeepalive(payload)
	case wire.AddDestination:
		d.countCommand(msgTypeID)
		d.handleDestination(payload, true)
	case wire.RemoveDestination:
		d.countCommand(msgTypeID)
		d.handleDestination(payload, false)
	default:
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
	}
}

func (d *Dispatcher) countCommand(msgTypeID int32) {
	if d.OnCommand != nil {
		d.OnCommand(msgTypeID)
	}
}

func (d *Dispatcher) handleAddPublication(payload []byte, exclusive bool) {
	cmd, err := wire.DecodeAddPublication(payload, exclusive)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())

	parsed, perr := channeluri.Parse(cmd.ChannelURI)
	if perr != nil {
		d.emitError(cmd.CorrelationID, wire.ErrInvalidChannel, perr.Error())
		return
	}
	if parsed.HasReplayParams() && !exclusive {
		d.emitError(cmd.CorrelationID, wire.ErrInvalidChannel, "replay params require an exclusive publication")
		return
	}

	if parsed.Media == channeluri.MediaIPC {
		d.addIPCPublication(cmd, parsed, exclusive)
		return
	}
	d.addNetworkPublication(cmd, parsed, exclusive)
}

func (d *Dispatcher) addNetworkPublication(cmd *wire.AddPublicationCommand, parsed *channeluri.ChannelURI, exclusive bool) {
	sendKey := parsed.SendEndpointKey()

	if !exclusive {
		if existing, ok := d.Publications.FindActiveShared(sendKey, cmd.StreamID); ok {
			existing.Incref()
			d.Recorder.Registered(cmd.ClientID, RegNetworkPublication, existing.RegistrationID)
			d.Broadcast.PublicationReady(&wire.PublicationReadyEvent{
				CorrelationID:          cmd.CorrelationID,
				RegistrationID:         existing.RegistrationID,
				StreamID:               existing.Key.StreamID,
				SessionID:              existing.Key.SessionID,
				PositionLimitCounterID: d.Counters.Next(),
				LogFileName:            existing.LogFileName,
				IsExclusive:            false,
			})
			return
		}
	}

	sessionID := parsed.SessionID
	if parsed.HasSessionID {
		if _, taken := d.Publications.FindNetwork(publication.NetworkKey{Endpoint: sendKey, StreamID: cmd.StreamID, SessionID: sessionID}); taken {
			d.emitError(cmd.CorrelationID, wire.ErrGeneric, "requested session id already in use for this endpoint/stream")
			return
		}
	} else {
		sessionID = d.Sessions.Allocate(func(candidate int32) bool {
			_, taken := d.Publications.FindNetwork(publication.NetworkKey{Endpoint: sendKey, StreamID: cmd.StreamID, SessionID: candidate})
			return taken
		})
	}

	termLength := parsed.TermLength
	if termLength == 0 {
		termLength = defaultTermLength
	}
	logFileName, rerr := d.RawLog.Allocate(cmd.StreamID, sessionID, termLength)
	if rerr != nil {
		d.emitError(cmd.CorrelationID, wire.ErrResourceExhausted, rerr.Error())
		return
	}

	ep, _ := d.Endpoints.Ensure(endpoint.Send, sendKey)
	d.Endpoints.AddStream(ep)

	regID := d.IDs.Next()
	key := publication.NetworkKey{Endpoint: sendKey, StreamID: cmd.StreamID, SessionID: sessionID}
	n := publication.NewNetwork(regID, key, cmd.CorrelationID, exclusive)
	n.MTU = parsed.MTU
	n.TermLength = termLength
	n.InitTermID = parsed.InitTermID
	n.LogFileName = logFileName
	if exclusive && parsed.HasReplayParams() {
		pos := parsed.ReplayPosition()
		n.ProducerPosition = pos
		n.ConsumerPosition = pos
	}
	d.Publications.AddNetwork(n)
	d.Recorder.Registered(cmd.ClientID, RegNetworkPublication, regID)

	d.Sender.NewNetworkPublication(driverproxy.NewNetworkPublicationCmd{
		RegistrationID: regID, StreamID: cmd.StreamID, SessionID: sessionID, LogFileName: logFileName, Endpoint: sendKey,
	})

	d.Broadcast.PublicationReady(&wire.PublicationReadyEvent{
		CorrelationID:          cmd.CorrelationID,
		RegistrationID:         regID,
		StreamID:               cmd.StreamID,
		SessionID:              sessionID,
		PositionLimitCounterID: d.Counters.Next(),
		LogFileName:            logFileName,
		IsExclusive:            exclusive,
	})
}

func (d *Dispatcher) addIPCPublication(cmd *wire.AddPublicationCommand, parsed *channeluri.ChannelURI, exclusive bool) {
	if !exclusive {
		if existing, ok := d.Publications.FindActiveSharedIPC(cmd.StreamID); ok {
			existing.Incref()
			d.Recorder.Registered(cmd.ClientID, RegIPCPublication, existing.RegistrationID)
			d.Broadcast.PublicationReady(&wire.PublicationReadyEvent{
				CorrelationID:          cmd.CorrelationID,
				RegistrationID:         existing.RegistrationID,
				StreamID:               existing.StreamID,
				SessionID:              existing.SessionID,
				PositionLimitCounterID: d.Counters.Next(),
				LogFileName:            existing.LogFileName,
				IsExclusive:            false,
			})
			return
		}
	}

	sessionID := parsed.SessionID
	if !parsed.HasSessionID {
		sessionID = d.Sessions.Allocate(func(int32) bool { return false })
	}

	termLength := parsed.TermLength
	if termLength == 0 {
		termLength = defaultTermLength
	}
	logFileName, rerr := d.RawLog.Allocate(cmd.StreamID, sessionID, termLength)
	if rerr != nil {
		d.emitError(cmd.CorrelationID, wire.ErrResourceExhausted, rerr.Error())
		return
	}

	regID := d.IDs.Next()
	p := publication.NewIPC(regID, cmd.StreamID, sessionID, cmd.CorrelationID, exclusive)
	p.TermLength = termLength
	p.InitTermID = parsed.InitTermID
	p.LogFileName = logFileName
	if exclusive && parsed.HasReplayParams() {
		pos := parsed.ReplayPosition()
		p.ProducerPosition = pos
		p.ConsumerPosition = pos
	}
	d.Publications.AddIPC(p)
	d.Recorder.Registered(cmd.ClientID, RegIPCPublication, regID)

	d.Broadcast.PublicationReady(&wire.PublicationReadyEvent{
		CorrelationID:          cmd.CorrelationID,
		RegistrationID:         regID,
		StreamID:               cmd.StreamID,
		SessionID:              sessionID,
		PositionLimitCounterID: d.Counters.Next(),
		LogFileName:            logFileName,
		IsExclusive:            exclusive,
	})
}

const defaultTermLength int32 = 64 * 1024 * 1024

func (d *Dispatcher) handleRemovePublication(payload []byte) {
	cmd, err := wire.DecodeRemovePublication(payload)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())

	switch d.ReleasePublication(cmd.RegistrationID) {
	case RegNetworkPublication:
		d.Recorder.Removed(cmd.ClientID, RegNetworkPublication, cmd.RegistrationID)
		d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})
	case RegIPCPublication:
		d.Recorder.Removed(cmd.ClientID, RegIPCPublication, cmd.RegistrationID)
		d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})
	default:
		d.emitError(cmd.CorrelationID, wire.ErrUnknownPublication, "unknown publication registration id")
	}
}

// ReleasePublication decrements the refcount of the network or IPC
// publication identified by regID and returns which kind it was, or -1 if
// unknown. Shared by REMOVE_PUBLICATION and client-timeout release, which
// differ only in whether a client-facing reply is emitted.
func (d *Dispatcher) ReleasePublication(regID int64) RegKind {
	if n, ok := d.Publications.NetworkByRegistration(regID); ok {
		n.Decref()
		if n.RefCount == 0 {
			d.Publications.UnshareActive(n)
		}
		return RegNetworkPublication
	}
	if p, ok := d.Publications.IPCByRegistration(regID); ok {
		p.Decref()
		if p.RefCount == 0 {
			d.Publications.UnshareActiveIPC(p)
		}
		return RegIPCPublication
	}
	return unknownRegKind
}

const unknownRegKind RegKind = -1

func (d *Dispatcher) handleAddSubscription(payload []byte) {
	cmd, err := wire.DecodeAddSubscription(payload)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())

	parsed, perr := channeluri.Parse(cmd.ChannelURI)
	if perr != nil {
		d.emitError(cmd.CorrelationID, wire.ErrInvalidChannel, perr.Error())
		return
	}

	regID := d.IDs.Next()

	if parsed.Spy {
		d.addSpySubscription(cmd, parsed, regID)
		return
	}

	recvKey := parsed.ReceiveEndpointKey()
	groupKey := subscription.EndpointStreamKey{Endpoint: recvKey, StreamID: cmd.StreamID}

	s := &subscription.Subscription{
		RegistrationID: regID,
		ClientID:       cmd.ClientID,
		CorrelationID:  cmd.CorrelationID,
		StreamID:       cmd.StreamID,
		ChannelURI:     cmd.ChannelURI,
		Endpoint:       recvKey,
		Reliable:       parsed.Reliable,
		PositionID:     d.Counters.Next(),
	}
	wasEmpty := d.Subscriptions.GroupSize(groupKey) == 0
	if serr := d.Subscriptions.Add(s); serr != nil {
		d.emitError(cmd.CorrelationID, wire.ErrGeneric, serr.Error())
		return
	}

	ep, created := d.Endpoints.Ensure(endpoint.Receive, recvKey)
	if created {
		d.Receiver.RegisterReceiveEndpoint(driverproxy.RegisterReceiveEndpointCmd{Endpoint: recvKey})
	}
	if wasEmpty {
		d.Endpoints.AddStream(ep)
		d.Receiver.AddSubscription(driverproxy.AddSubscriptionCmd{Endpoint: recvKey, StreamID: cmd.StreamID, Reliable: s.Reliable})
	}
	d.Recorder.Registered(cmd.ClientID, RegSubscription, regID)

	d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})

	d.Images.Each(func(_ int64, img *image.Image) {
		if img.Key.Endpoint != recvKey || img.Key.StreamID != cmd.StreamID || img.State != image.Active {
			return
		}
		img.AttachSubscriber(s.PositionID)
		s.HasImage, s.ImageCorrelationID = true, img.CorrelationID
		d.Broadcast.AvailableImage(&wire.AvailableImageEvent{
			CorrelationID:         img.CorrelationID,
			SessionID:             img.Key.SessionID,
			StreamID:              img.Key.StreamID,
			SubscriberPositionIDs: []int32{s.PositionID},
			LogFileName:           img.LogFileName,
			SourceIdentity:        img.SourceIdentity,
		})
	})
}

func (d *Dispatcher) addSpySubscription(cmd *wire.AddSubscriptionCommand, parsed *channeluri.ChannelURI, regID int64) {
	sendKey := parsed.SendEndpointKey()
	s := &subscription.Subscription{
		RegistrationID: regID,
		ClientID:       cmd.ClientID,
		CorrelationID:  cmd.CorrelationID,
		StreamID:       cmd.StreamID,
		ChannelURI:     cmd.ChannelURI,
		Endpoint:       sendKey,
		Reliable:       true, // spies are always reliable; see DESIGN.md open-question resolution
		Spy:            true,
		PositionID:     d.Counters.Next(),
	}
	if err := d.Subscriptions.Add(s); err != nil {
		d.emitError(cmd.CorrelationID, wire.ErrGeneric, err.Error())
		return
	}
	d.Recorder.Registered(cmd.ClientID, RegSubscription, regID)
	d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})

	d.Publications.EachNetwork(func(_ int64, n *publication.Network) {
		if n.Key.Endpoint != sendKey || n.Key.StreamID != cmd.StreamID || n.State != publication.Active {
			return
		}
		d.Broadcast.AvailableImage(&wire.AvailableImageEvent{
			CorrelationID:         n.CorrelationID,
			SessionID:             n.Key.SessionID,
			StreamID:              n.Key.StreamID,
			SubscriberPositionIDs: []int32{s.PositionID},
			LogFileName:           n.LogFileName,
			SourceIdentity:        "spy",
		})
	})
}

func (d *Dispatcher) handleRemoveSubscription(payload []byte) {
	cmd, err := wire.DecodeRemoveSubscription(payload)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())

	if !d.ReleaseSubscription(cmd.RegistrationID) {
		d.emitError(cmd.CorrelationID, wire.ErrUnknownSubscription, "unknown subscription registration id")
		return
	}
	d.Recorder.Removed(cmd.ClientID, RegSubscription, cmd.RegistrationID)
	d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})
}

// ReleaseSubscription detaches regID from its image (if any), removes it
// from the registry, and tears down the shared receive endpoint once its
// last subscriber is gone. Shared by REMOVE_SUBSCRIPTION and
// client-timeout release.
func (d *Dispatcher) ReleaseSubscription(regID int64) bool {
	s, ok := d.Subscriptions.ByRegistration(regID)
	if !ok {
		return false
	}

	if s.HasImage {
		if img, ok := d.Images.ByCorrelation(s.ImageCorrelationID); ok {
			img.DetachSubscriber(s.PositionID)
		}
	}

	groupKey := s.Key()
	d.Subscriptions.Remove(regID)

	if !s.Spy && d.Subscriptions.GroupSize(groupKey) == 0 {
		d.Receiver.RemoveSubscription(driverproxy.RemoveSubscriptionCmd{Endpoint: groupKey.Endpoint, StreamID: groupKey.StreamID})
		if ep, found := d.Endpoints.Lookup(endpoint.Receive, groupKey.Endpoint); found {
			if d.Endpoints.ReleaseStream(endpoint.Receive, ep) {
				d.Receiver.CloseReceiveEndpoint(driverproxy.CloseReceiveEndpointCmd{Endpoint: groupKey.Endpoint})
			}
		}
	}
	return true
}

func (d *Dispatcher) handleClientKeepalive(payload []byte) {
	cmd, err := wire.DecodeClientKeepalive(payload)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())
}

func (d *Dispatcher) handleDestination(payload []byte, add bool) {
	cmd, err := wire.DecodeDestination(payload)
	if err != nil {
		if d.OnError != nil {
			d.OnError(wire.ErrMalformedCommand)
		}
		return
	}
	d.Recorder.Keepalive(cmd.ClientID, d.Clock.NowNS())

	if add {
		d.Sender.AddDestination(driverproxy.AddDestinationCmd{RegistrationID: cmd.RegistrationID, ChannelURI: cmd.ChannelURI})
	} else {
		d.Sender.RemoveDestination(driverproxy.RemoveDestinationCmd{RegistrationID: cmd.RegistrationID, ChannelURI: cmd.ChannelURI})
	}
	d.Broadcast.OperationSuccess(&wire.OperationSuccessEvent{CorrelationID: cmd.CorrelationID})
}
