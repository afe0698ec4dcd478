package command

import (
	"testing"

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

// fakeSender/fakeReceiver record every call the dispatcher makes so tests
// can assert on what it instructed the out-of-scope agents to do.
type fakeSender struct {
	newPub    []driverproxy.NewNetworkPublicationCmd
	removePub []driverproxy.RemoveNetworkPublicationCmd
	closeSend []driverproxy.CloseSendEndpointCmd
	addDest   []driverproxy.AddDestinationCmd
	removeDest []driverproxy.RemoveDestinationCmd
}

func (f *fakeSender) NewNetworkPublication(c driverproxy.NewNetworkPublicationCmd) { f.newPub = append(f.newPub, c) }
func (f *fakeSender) RemoveNetworkPublication(c driverproxy.RemoveNetworkPublicationCmd) {
	f.removePub = append(f.removePub, c)
}
func (f *fakeSender) CloseSendEndpoint(c driverproxy.CloseSendEndpointCmd) { f.closeSend = append(f.closeSend, c) }
func (f *fakeSender) AddDestination(c driverproxy.AddDestinationCmd)       { f.addDest = append(f.addDest, c) }
func (f *fakeSender) RemoveDestination(c driverproxy.RemoveDestinationCmd) { f.removeDest = append(f.removeDest, c) }

type fakeReceiver struct {
	register    []driverproxy.RegisterReceiveEndpointCmd
	closeRecv   []driverproxy.CloseReceiveEndpointCmd
	addSub      []driverproxy.AddSubscriptionCmd
	removeSub   []driverproxy.RemoveSubscriptionCmd
}

func (f *fakeReceiver) RegisterReceiveEndpoint(c driverproxy.RegisterReceiveEndpointCmd) {
	f.register = append(f.register, c)
}
func (f *fakeReceiver) CloseReceiveEndpoint(c driverproxy.CloseReceiveEndpointCmd) {
	f.closeRecv = append(f.closeRecv, c)
}
func (f *fakeReceiver) AddSubscription(c driverproxy.AddSubscriptionCmd) { f.addSub = append(f.addSub, c) }
func (f *fakeReceiver) RemoveSubscription(c driverproxy.RemoveSubscriptionCmd) {
	f.removeSub = append(f.removeSub, c)
}

type testHarness struct {
	d        *Dispatcher
	sender   *fakeSender
	receiver *fakeReceiver
	bcast    *events.Broadcast
	reader   *events.Reader
	errs     []wire.ErrorCode
	commands []int32
}

func newHarness() *testHarness {
	sender := &fakeSender{}
	receiver := &fakeReceiver{}
	bcast := events.NewBroadcast(256, nil, nil)
	h := &testHarness{sender: sender, receiver: receiver, bcast: bcast}
	h.reader = bcast.NewReader()
	h.d = &Dispatcher{
		Publications:  publication.NewRegistry(),
		Images:        image.NewRegistry(),
		Subscriptions: subscription.NewRegistry(),
		Endpoints:     endpoint.NewRegistry(),
		Broadcast:     bcast,
		Sender:        sender,
		Receiver:      receiver,
		RawLog:        rawlog.NewDirAllocator("/tmp/aeron-test", 0),
		IDs:           registry.NewIDSequence(),
		Sessions:      registry.NewSessionIDAllocator(1),
		Counters:      &registry.CounterAllocator{},
		Clock:         clock.NewManual(0),
		Recorder:      NoopRecorder{},
		OnError:       func(code wire.ErrorCode) { h.errs = append(h.errs, code) },
		OnCommand:     func(msgTypeID int32) { h.commands = append(h.commands, msgTypeID) },
	}
	return h
}

func (h *testHarness) drain() []int32 {
	var ids []int32
	for {
		id, _, ok := h.reader.Next()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// Scenario 1: a single network publication add succeeds and is announced.
func TestScenarioSingleNetworkPublication(t *testing.T) {
	h := newHarness()
	frame := wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 100, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123",
	})
	h.d.Dispatch(frame)

	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnPublicationReady {
		t.Fatalf("events = %v, want a single ON_PUBLICATION_READY", ids)
	}
	if h.d.Publications.LenNetwork() != 1 {
		t.Fatalf("LenNetwork() = %d, want 1", h.d.Publications.LenNetwork())
	}
	if len(h.sender.newPub) != 1 {
		t.Fatalf("expected the sender to be instructed to drive the new publication, got %d calls", len(h.sender.newPub))
	}
}

// Scenario 2: exclusive publication with replay params is accepted and seeds
// its producer/consumer position from the replay position.
func TestScenarioExclusiveWithReplayParams(t *testing.T) {
	h := newHarness()
	frame := wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 100, StreamID: 10,
		ChannelURI: "aeron:udp?endpoint=localhost:40123|term-length=65536|init-term-id=1|term-id=1|term-offset=128",
		Exclusive:  true,
	})
	h.d.Dispatch(frame)

	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnPublicationReady {
		t.Fatalf("events = %v, want ON_PUBLICATION_READY", ids)
	}
	var n *publication.Network
	h.d.Publications.EachNetwork(func(_ int64, p *publication.Network) { n = p })
	if n == nil {
		t.Fatal("expected a network publication to be registered")
	}
	if n.ProducerPosition != 128 || n.ConsumerPosition != 128 {
		t.Fatalf("ProducerPosition/ConsumerPosition = %d/%d, want both seeded to the replay position 128", n.ProducerPosition, n.ConsumerPosition)
	}
}

// Non-exclusive replay params must be rejected.
func TestReplayParamsRequireExclusive(t *testing.T) {
	h := newHarness()
	frame := wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 100, StreamID: 10,
		ChannelURI: "aeron:udp?endpoint=localhost:40123|init-term-id=1|term-id=1|term-offset=128",
		Exclusive:  false,
	})
	h.d.Dispatch(frame)

	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnError {
		t.Fatalf("events = %v, want a single ON_ERROR", ids)
	}
}

// Scenario 3: removing an unknown publication registration id surfaces
// UNKNOWN_PUBLICATION without touching any registry.
func TestScenarioRemoveUnknownPublication(t *testing.T) {
	h := newHarness()
	frame := wire.EncodeRemovePublication(&wire.RemovePublicationCommand{ClientID: 1, CorrelationID: 1, RegistrationID: 999})
	h.d.Dispatch(frame)

	if len(h.errs) != 1 || h.errs[0] != wire.ErrUnknownPublication {
		t.Fatalf("errs = %v, want a single ErrUnknownPublication", h.errs)
	}
	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnError {
		t.Fatalf("events = %v, want ON_ERROR", ids)
	}
}

// Scenario 4: a publication with no remaining references and nothing to
// drain (producer==consumer==0) reaches CLOSING within one linger window
// and is removed from the registry by the tick after that.
func TestScenarioPublicationTimeoutLifecycle(t *testing.T) {
	h := newHarness()
	addFrame := wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123",
	})
	h.d.Dispatch(addFrame)
	h.drain()

	var n *publication.Network
	h.d.Publications.EachNetwork(func(_ int64, p *publication.Network) { n = p })
	regID := n.RegistrationID

	removeFrame := wire.EncodeRemovePublication(&wire.RemovePublicationCommand{ClientID: 1, CorrelationID: 2, RegistrationID: regID})
	h.d.Dispatch(removeFrame)
	h.drain()

	timeouts := publication.Timeouts{PublicationLingerNS: 1000, PublicationConnectionTimeoutNS: 2000, ImageLivenessTimeoutNS: 5000}

	n.Tick(0, timeouts) // Active(refcount 0, drained) -> Linger
	if n.State != publication.Linger {
		t.Fatalf("State = %v, want Linger", n.State)
	}
	notify, deleted := n.Tick(timeouts.PublicationLingerNS, timeouts) // Linger -> Closing
	if !notify || deleted {
		t.Fatalf("expected linger-elapsed tick to request sender removal without deleting, got notify=%v deleted=%v", notify, deleted)
	}
	_, deleted = n.Tick(timeouts.PublicationLingerNS+1, timeouts) // Closing -> deleted
	if !deleted {
		t.Fatal("expected the publication to be deletable on the tick after CLOSING")
	}
}

// Scenario 5: a spy subscription against an already-ACTIVE network
// publication is immediately told about it via ON_AVAILABLE_IMAGE, and is
// always registered reliable regardless of the channel's own reliable param.
func TestScenarioSpySubscriptionSeesExistingPublication(t *testing.T) {
	h := newHarness()
	addFrame := wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123",
	})
	h.d.Dispatch(addFrame)
	h.drain()

	spyFrame := wire.EncodeAddSubscription(&wire.AddSubscriptionCommand{
		ClientID: 2, CorrelationID: 2, StreamID: 10,
		ChannelURI: "aeron-spy:aeron:udp?endpoint=localhost:40123|reliable=false",
	})
	h.d.Dispatch(spyFrame)

	ids := h.drain()
	sawSuccess, sawAvailable := false, false
	for _, id := range ids {
		if id == wire.OnOperationSuccess {
			sawSuccess = true
		}
		if id == wire.OnAvailableImage {
			sawAvailable = true
		}
	}
	if !sawSuccess || !sawAvailable {
		t.Fatalf("events = %v, want both ON_OPERATION_SUCCESS and ON_AVAILABLE_IMAGE", ids)
	}

	var spy *subscription.Subscription
	h.d.Subscriptions.EachAll(func(_ int64, s *subscription.Subscription) {
		if s.Spy {
			spy = s
		}
	})
	if spy == nil || !spy.Reliable {
		t.Fatal("expected the spy subscription to be registered reliable regardless of the channel's reliable=false param")
	}
}

// Scenario 6: two subscriptions with conflicting reliability on the same
// (endpoint, stream) must be rejected, and the second never reaches the
// receiver agent.
func TestScenarioConflictingReliabilitySubscription(t *testing.T) {
	h := newHarness()
	first := wire.EncodeAddSubscription(&wire.AddSubscriptionCommand{
		ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123|reliable=true",
	})
	h.d.Dispatch(first)
	h.drain()
	if len(h.receiver.register) != 1 {
		t.Fatalf("expected the first subscription to register the receive endpoint, got %d", len(h.receiver.register))
	}

	second := wire.EncodeAddSubscription(&wire.AddSubscriptionCommand{
		ClientID: 2, CorrelationID: 2, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123|reliable=false",
	})
	h.d.Dispatch(second)

	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnError {
		t.Fatalf("events = %v, want a single ON_ERROR for the conflicting add", ids)
	}
	// no second RegisterReceiveEndpoint call — the conflicting add never reached the receiver.
	if len(h.receiver.register) != 1 {
		t.Fatalf("expected no additional receiver registration from the rejected add, got %d total", len(h.receiver.register))
	}
}

func TestNonExclusiveSharesActivePublication(t *testing.T) {
	h := newHarness()
	channel := "aeron:udp?endpoint=localhost:40123"
	first := wire.EncodeAddPublication(&wire.AddPublicationCommand{ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: channel})
	h.d.Dispatch(first)
	h.drain()

	second := wire.EncodeAddPublication(&wire.AddPublicationCommand{ClientID: 2, CorrelationID: 2, StreamID: 10, ChannelURI: channel})
	h.d.Dispatch(second)
	h.drain()

	if h.d.Publications.LenNetwork() != 1 {
		t.Fatalf("LenNetwork() = %d, want 1 (second add should reuse the first)", h.d.Publications.LenNetwork())
	}
	var n *publication.Network
	h.d.Publications.EachNetwork(func(_ int64, p *publication.Network) { n = p })
	if n.RefCount != 2 {
		t.Fatalf("RefCount = %d, want 2", n.RefCount)
	}
	// only one sender instruction: the shared reuse path does not re-instruct the sender.
	if len(h.sender.newPub) != 1 {
		t.Fatalf("expected exactly one NewNetworkPublication call, got %d", len(h.sender.newPub))
	}
}

func TestDispatchMalformedFrameIsCountedAndDropped(t *testing.T) {
	h := newHarness()
	h.d.Dispatch([]byte{1, 2, 3})

	if len(h.errs) != 1 || h.errs[0] != wire.ErrMalformedCommand {
		t.Fatalf("errs = %v, want a single ErrMalformedCommand", h.errs)
	}
	if n := len(h.drain()); n != 0 {
		t.Fatalf("expected no broadcast event for a malformed frame (no correlation id to route to), got %d", n)
	}
}

func TestOnCommandCountsEachRecognizedCommandByType(t *testing.T) {
	h := newHarness()
	h.d.Dispatch(wire.EncodeAddPublication(&wire.AddPublicationCommand{
		ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: "aeron:udp?endpoint=localhost:40123",
	}))
	h.d.Dispatch(wire.EncodeClientKeepalive(&wire.ClientKeepaliveCommand{ClientID: 1}))
	h.d.Dispatch([]byte{1, 2, 3}) // malformed: never reaches a handler, so never counted

	if len(h.commands) != 2 {
		t.Fatalf("commands = %v, want exactly the 2 recognized dispatches counted", h.commands)
	}
	if h.commands[0] != wire.AddPublication || h.commands[1] != wire.ClientKeepalive {
		t.Fatalf("commands = %v, want [AddPublication, ClientKeepalive]", h.commands)
	}
}

func TestUnknownSessionIDCollisionIsRejected(t *testing.T) {
	h := newHarness()
	channel := "aeron:udp?endpoint=localhost:40123|session-id=7"
	first := wire.EncodeAddPublication(&wire.AddPublicationCommand{ClientID: 1, CorrelationID: 1, StreamID: 10, ChannelURI: channel, Exclusive: true})
	h.d.Dispatch(first)
	h.drain()

	second := wire.EncodeAddPublication(&wire.AddPublicationCommand{ClientID: 2, CorrelationID: 2, StreamID: 10, ChannelURI: channel, Exclusive: true})
	h.d.Dispatch(second)
	ids := h.drain()
	if len(ids) != 1 || ids[0] != wire.OnError {
		t.Fatalf("events = %v, want ON_ERROR for the colliding session id", ids)
	}
}
