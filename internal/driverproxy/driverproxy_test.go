package driverproxy

import "testing"

func TestMailboxSendAndPoll(t *testing.T) {
	m := NewMailbox[int](2, nil)
	m.Send(1)
	m.Send(2)

	if v, ok := m.Poll(); !ok || v != 1 {
		t.Fatalf("Poll() = %d, %v, want 1, true", v, ok)
	}
	if v, ok := m.Poll(); !ok || v != 2 {
		t.Fatalf("Poll() = %d, %v, want 2, true", v, ok)
	}
	if _, ok := m.Poll(); ok {
		t.Fatal("expected Poll on empty mailbox to return ok=false")
	}
}

func TestMailboxDropsWhenFull(t *testing.T) {
	drops := 0
	m := NewMailbox[int](1, func() { drops++ })
	m.Send(1)
	m.Send(2) // full, dropped

	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	if v, ok := m.Poll(); !ok || v != 1 {
		t.Fatalf("Poll() = %d, %v, want the first queued value", v, ok)
	}
}

func TestMailboxLen(t *testing.T) {
	m := NewMailbox[int](4, nil)
	m.Send(1)
	m.Send(2)
	if got := m.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestChannelSenderProxyRoutesToMailboxes(t *testing.T) {
	p := NewChannelSenderProxy(4, nil)
	p.NewNetworkPublication(NewNetworkPublicationCmd{RegistrationID: 7})
	p.RemoveNetworkPublication(RemoveNetworkPublicationCmd{RegistrationID: 7})
	p.AddDestination(AddDestinationCmd{RegistrationID: 7, ChannelURI: "aeron:udp?endpoint=x:1"})
	p.RemoveDestination(RemoveDestinationCmd{RegistrationID: 7, ChannelURI: "aeron:udp?endpoint=x:1"})

	if v, ok := p.NewPublication.Poll(); !ok || v.RegistrationID != 7 {
		t.Fatalf("NewPublication mailbox = %+v, %v", v, ok)
	}
	if v, ok := p.RemovePublication.Poll(); !ok || v.RegistrationID != 7 {
		t.Fatalf("RemovePublication mailbox = %+v, %v", v, ok)
	}
	if _, ok := p.AddDest.Poll(); !ok {
		t.Fatal("expected a queued AddDestination command")
	}
	if _, ok := p.RemoveDest.Poll(); !ok {
		t.Fatal("expected a queued RemoveDestination command")
	}
}

func TestChannelReceiverProxyRoutesToMailboxes(t *testing.T) {
	p := NewChannelReceiverProxy(4, nil)
	p.AddSubscription(AddSubscriptionCmd{StreamID: 10, Reliable: true})
	p.RemoveSubscription(RemoveSubscriptionCmd{StreamID: 10})

	if v, ok := p.AddSub.Poll(); !ok || v.StreamID != 10 || !v.Reliable {
		t.Fatalf("AddSub mailbox = %+v, %v", v, ok)
	}
	if v, ok := p.RemoveSub.Poll(); !ok || v.StreamID != 10 {
		t.Fatalf("RemoveSub mailbox = %+v, %v", v, ok)
	}
}
