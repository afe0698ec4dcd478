package publication

import (
	"aeron-driver/internal/channeluri"
	"testing"
)

var testTimeouts = Timeouts{
	PublicationLingerNS:            1000,
	PublicationConnectionTimeoutNS: 2000,
	ImageLivenessTimeoutNS:         5000,
}

func testNetworkKey() NetworkKey {
	return NetworkKey{Endpoint: channeluri.EndpointKey{Media: channeluri.MediaUDP, Endpoint: "x:1"}, StreamID: 10, SessionID: 1}
}

func TestNetworkActiveStaysActiveWhileReferenced(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	notify, deleted := n.Tick(0, testTimeouts)
	if notify || deleted {
		t.Fatal("expected an ACTIVE, still-referenced publication to stay put")
	}
	if n.State != Active {
		t.Fatalf("State = %v, want Active", n.State)
	}
}

func TestNetworkDrainedGoesDirectlyToLinger(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	n.Decref() // RefCount 0, already drained (producer == consumer == 0)
	n.Tick(100, testTimeouts)
	if n.State != Linger {
		t.Fatalf("State = %v, want Linger", n.State)
	}
}

func TestNetworkUndrainedGoesToDraining(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	n.ProducerPosition = 100
	n.Decref()
	n.Tick(0, testTimeouts)
	if n.State != Draining {
		t.Fatalf("State = %v, want Draining", n.State)
	}
}

func TestNetworkDrainingFallsBackToLingerOnConnectionTimeout(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	n.ProducerPosition = 100
	n.Decref()
	n.Tick(0, testTimeouts) // -> Draining at t=0

	n.Tick(testTimeouts.PublicationConnectionTimeoutNS, testTimeouts)
	if n.State != Linger {
		t.Fatalf("State = %v, want Linger after connection timeout elapses undrained", n.State)
	}
}

func TestNetworkDrainingExitsEarlyOnceDrained(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	n.ProducerPosition = 100
	n.Decref()
	n.Tick(0, testTimeouts) // -> Draining

	n.ConsumerPosition = 100 // now drained
	n.Tick(1, testTimeouts)
	if n.State != Linger {
		t.Fatalf("State = %v, want Linger once drain catches up", n.State)
	}
}

func TestNetworkLingerThenClosingThenDeletedOverTwoTicks(t *testing.T) {
	n := NewNetwork(1, testNetworkKey(), 1, false)
	n.Decref()
	n.Tick(0, testTimeouts) // -> Linger at t=0

	notify, deleted := n.Tick(testTimeouts.PublicationLingerNS, testTimeouts)
	if !notify || deleted {
		t.Fatalf("expected linger-elapsed tick to notify sender-remove without deleting yet, got notify=%v deleted=%v", notify, deleted)
	}
	if n.State != Closing {
		t.Fatalf("State = %v, want Closing", n.State)
	}

	notify, deleted = n.Tick(testTimeouts.PublicationLingerNS+1, testTimeouts)
	if notify || !deleted {
		t.Fatalf("expected the tick after CLOSING to delete without notifying again, got notify=%v deleted=%v", notify, deleted)
	}
}

func TestIPCHasNoConnectionTimeoutFallback(t *testing.T) {
	p := NewIPC(1, 10, 1, 1, false)
	p.ProducerPosition = 100
	p.Decref()
	p.Tick(0, testTimeouts, true) // -> Draining, subscribers attached

	// Far past the network connection timeout, IPC must still wait for a
	// real drain since it has no network-loss fallback.
	if deleted := p.Tick(testTimeouts.PublicationConnectionTimeoutNS*10, testTimeouts, true); deleted {
		t.Fatal("expected an undrained IPC publication to remain in DRAINING indefinitely")
	}
	if p.State != Draining {
		t.Fatalf("State = %v, want Draining", p.State)
	}
}

func TestIPCClosingDeletesOnNextTick(t *testing.T) {
	p := NewIPC(1, 10, 1, 1, false)
	p.Decref()
	p.Tick(0, testTimeouts, true) // -> Linger, subscribers attached

	p.Tick(testTimeouts.PublicationLingerNS, testTimeouts, true) // -> Closing
	if p.State != Closing {
		t.Fatalf("State = %v, want Closing", p.State)
	}
	if deleted := p.Tick(testTimeouts.PublicationLingerNS+1, testTimeouts, true); !deleted {
		t.Fatal("expected IPC publication to be deleted on the tick after CLOSING")
	}
}

func TestIPCWithNoSubscribersSkipsDrainingAndLingerStraightToClosing(t *testing.T) {
	p := NewIPC(1, 10, 1, 1, false)
	p.ProducerPosition = 100 // undrained; would force Draining if it had subscribers
	p.Decref()

	p.Tick(0, testTimeouts, false)
	if p.State != Closing {
		t.Fatalf("State = %v, want Closing directly, skipping DRAINING/LINGER", p.State)
	}

	if deleted := p.Tick(1, testTimeouts, false); !deleted {
		t.Fatal("expected deletion on the tick after CLOSING")
	}
}

func TestRegistryFindActiveSharedReuse(t *testing.T) {
	r := NewRegistry()
	key := testNetworkKey()
	n := NewNetwork(1, key, 1, false)
	r.AddNetwork(n)

	found, ok := r.FindActiveShared(key.Endpoint, key.StreamID)
	if !ok || found.RegistrationID != 1 {
		t.Fatalf("FindActiveShared = %+v, %v", found, ok)
	}
}

func TestRegistryExclusiveIsNotShared(t *testing.T) {
	r := NewRegistry()
	key := testNetworkKey()
	n := NewNetwork(1, key, 1, true)
	r.AddNetwork(n)

	if _, ok := r.FindActiveShared(key.Endpoint, key.StreamID); ok {
		t.Fatal("expected an exclusive publication not to be reusable")
	}
}

func TestRegistryUnshareActiveOnStateChange(t *testing.T) {
	r := NewRegistry()
	key := testNetworkKey()
	n := NewNetwork(1, key, 1, false)
	r.AddNetwork(n)

	n.Decref()
	n.Tick(0, testTimeouts) // leaves Active
	r.UnshareActive(n)

	if _, ok := r.FindActiveShared(key.Endpoint, key.StreamID); ok {
		t.Fatal("expected the publication to no longer be offered for reuse once it left ACTIVE")
	}
}

func TestRegistryDeleteNetworkRemovesAllIndexes(t *testing.T) {
	r := NewRegistry()
	key := testNetworkKey()
	n := NewNetwork(1, key, 1, false)
	r.AddNetwork(n)
	r.DeleteNetwork(1)

	if _, ok := r.NetworkByRegistration(1); ok {
		t.Fatal("expected registration index cleared")
	}
	if _, ok := r.FindNetwork(key); ok {
		t.Fatal("expected full-key index cleared")
	}
	if _, ok := r.FindActiveShared(key.Endpoint, key.StreamID); ok {
		t.Fatal("expected shared-active index cleared")
	}
	if r.LenNetwork() != 0 {
		t.Fatalf("LenNetwork() = %d, want 0", r.LenNetwork())
	}
}
