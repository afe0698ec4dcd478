// Package conductor ties the registries, proxies and broadcast buffer
// together into the single-threaded control-plane agent (spec.md §1, §2).
package conductor

import (
	"aeron-driver/internal/channeluri"
	"aeron-driver/internal/clock"
	"aeron-driver/internal/command"
	"aeron-driver/internal/driverproxy"
	"aeron-driver/internal/endpoint"
	"aeron-driver/internal/events"
	"aeron-driver/internal/image"
	"aeron-driver/internal/publication"
	"aeron-driver/internal/rawlog"
	"aeron-driver/internal/registry"
	"aeron-driver/internal/subscription"
	"aeron-driver/internal/wire"

	"golang.org/x/time/rate"
)

// Config bundles the conductor's tunables, normally sourced from
// internal/config (viper-backed).
type Config struct {
	Timeouts            publication.Timeouts
	ClientLivenessTimeoutNS int64
	TimerIntervalNS     int64
	MaxCommandsPerTick  int
}

// Conductor is the media driver's control-plane agent.
type Conductor struct {
	cfg Config

	clock clock.Clock
	idle  *IdleStrategy

	ring       *command.Ring
	dispatcher *command.Dispatcher
	clients    *ClientRegistry

	publications  *publication.Registry
	images        *image.Registry
	subscriptions *subscription.Registry
	endpoints     *endpoint.Registry
	broadcast     *events.Broadcast

	sender   driverproxy.SenderProxy
	receiver driverproxy.ReceiverProxy
	inbound  *driverproxy.ReceiverEvents

	limiter *rate.Limiter

	errorCount      int64
	lastMaintenance int64

	errHandler   ErrorHandler
	statsHandler func(networkPubs, ipcPubs, subs, images int)
}

// ErrorHandler is invoked for every counted error and every recovered
// panic inside a tick (spec.md §7); wired to zap in cmd/aeron-driverd.
type ErrorHandler func(code wire.ErrorCode, detail string)

// Deps bundles every collaborator the conductor is constructed from.
type Deps struct {
	Clock        clock.Clock
	Publications *publication.Registry
	Images       *image.Registry
	Subscriptions *subscription.Registry
	Endpoints    *endpoint.Registry
	Broadcast    *events.Broadcast
	Sender       driverproxy.SenderProxy
	Receiver     driverproxy.ReceiverProxy
	Inbound      *driverproxy.ReceiverEvents
	RawLog       rawlog.Allocator
	ErrHandler   ErrorHandler
	// StatsHandler, if set, is invoked once per maintenance tick from the
	// conductor's own goroutine with live entity counts — the only safe
	// way to observe the registries, which are unsynchronized (spec.md §5).
	StatsHandler func(networkPubs, ipcPubs, subs, images int)
	// OnCommand, if set, is invoked once per command drained off the ring
	// whose msgTypeId is recognized, keyed by that msgTypeId.
	OnCommand command.CommandCounter
}

// New wires a Conductor from its dependencies and configuration.
func New(cfg Config, deps Deps) *Conductor {
	clients := NewClientRegistry()
	c := &Conductor{
		cfg:           cfg,
		clock:         deps.Clock,
		idle:          DefaultIdleStrategy(),
		ring:          command.NewRing(),
		clients:       clients,
		publications:  deps.Publications,
		images:        deps.Images,
		subscriptions: deps.Subscriptions,
		endpoints:     deps.Endpoints,
		broadcast:     deps.Broadcast,
		sender:        deps.Sender,
		receiver:      deps.Receiver,
		inbound:       deps.Inbound,
		limiter:       rate.NewLimiter(rate.Limit(cfg.MaxCommandsPerTick)*rateHz, cfg.MaxCommandsPerTick),
		errHandler:    deps.ErrHandler,
		statsHandler:  deps.StatsHandler,
	}
	c.dispatcher = &command.Dispatcher{
		Publications:  deps.Publications,
		Images:        deps.Images,
		Subscriptions: deps.Subscriptions,
		Endpoints:     deps.Endpoints,
		Broadcast:     deps.Broadcast,
		Sender:        deps.Sender,
		Receiver:      deps.Receiver,
		RawLog:        deps.RawLog,
		IDs:           registry.NewIDSequence(),
		Sessions:      registry.NewSessionIDAllocator(sessionSeed),
		Counters:      &registry.CounterAllocator{},
		Clock:         deps.Clock,
		Recorder:      clients,
		OnCommand:     deps.OnCommand,
		OnError: func(code wire.ErrorCode) {
			c.errorCount++
			if c.errHandler != nil {
				c.errHandler(code, code.String())
			}
		},
	}
	return c
}

// rateHz assumes do_work is called roughly this often per second; the
// limiter's refill rate caps sustained command throughput across many
// ticks, while its burst (MaxCommandsPerTick) is what actually bounds a
// single tick's drain via the loop in drainCommandRing.
const rateHz = 1000

const sessionSeed = 0xA53A53A5

// Ring exposes the client command ring for the ingestion side (the
// client library's transport, out of scope) to push framed commands onto.
func (c *Conductor) Ring() *command.Ring { return c.ring }

// ErrorCount reports the cumulative error counter.
func (c *Conductor) ErrorCount() int64 { return c.errorCount }

// DoWork runs one non-blocking conductor tick and returns the amount of
// work done, for the idle strategy to act on (spec.md §2, §5).
func (c *Conductor) DoWork() int {
	work := 0
	work += c.drainCommandRing()
	work += c.serviceInboundEvents()
	if now := c.clock.NowNS(); now-c.lastMaintenance >= c.cfg.TimerIntervalNS {
		c.lastMaintenance = now
		work += c.runMaintenance(now)
	}
	return work
}

// Run drives DoWork forever behind the idle strategy until stop is closed.
func (c *Conductor) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		c.idle.Idle(c.safeDoWork())
	}
}

// safeDoWork recovers a panic inside a tick so one bad command never
// halts the conductor loop (spec.md §7).
func (c *Conductor) safeDoWork() (work int) {
	defer func() {
		if r := recover(); r != nil {
			c.errorCount++
			if c.errHandler != nil {
				c.errHandler(wire.ErrGeneric, "recovered panic in do_work")
			}
		}
	}()
	return c.DoWork()
}

func (c *Conductor) drainCommandRing() int {
	n := 0
	for n < c.cfg.MaxCommandsPerTick {
		if !c.limiter.Allow() {
			break
		}
		frame := c.ring.Pop()
		if frame == nil {
			break
		}
		c.dispatcher.Dispatch(frame)
		n++
	}
	return n
}

func (c *Conductor) serviceInboundEvents() int {
	n := 0
	for {
		cmd, ok := c.inbound.ImageCreated.Poll()
		if !ok {
			break
		}
		c.handleImageCreated(cmd)
		n++
	}
	for {
		cmd, ok := c.inbound.ImageInactive.Poll()
		if !ok {
			break
		}
		if img, found := c.images.ByCorrelation(cmd.CorrelationID); found {
			if img.MarkInactive(c.clock.NowNS()) {
				c.broadcast.UnavailableImage(&wire.UnavailableImageEvent{
					CorrelationID: img.CorrelationID,
					StreamID:      img.Key.StreamID,
				})
			}
		}
		n++
	}
	return n
}

func (c *Conductor) handleImageCreated(cmd driverproxy.ImageCreatedCmd) {
	key := image.Key{Endpoint: cmd.Endpoint, StreamID: cmd.StreamID, SessionID: cmd.SessionID}
	img := image.NewImage(cmd.CorrelationID, key, cmd.InitialTermID, cmd.ActiveTermID, cmd.TermOffset, cmd.LogFileName, cmd.SourceIdentity)
	img.Activate()
	c.images.Add(img)

	groupKey := subscription.EndpointStreamKey{Endpoint: cmd.Endpoint, StreamID: cmd.StreamID}
	c.subscriptions.Each(groupKey, func(s *subscription.Subscription) {
		if s.Spy || s.HasImage {
			return
		}
		img.AttachSubscriber(s.PositionID)
		s.HasImage, s.ImageCorrelationID = true, img.CorrelationID
		c.broadcast.AvailableImage(&wire.AvailableImageEvent{
			CorrelationID:         img.CorrelationID,
			SessionID:             key.SessionID,
			StreamID:              key.StreamID,
			SubscriberPositionIDs: []int32{s.PositionID},
			LogFileName:           img.LogFileName,
			SourceIdentity:        img.SourceIdentity,
		})
	})
}

func (c *Conductor) runMaintenance(now int64) int {
	work := 0
	work += c.releaseTimedOutClients(now)
	work += c.tickPublications(now)
	work += c.tickImages(now)
	if c.statsHandler != nil {
		c.statsHandler(c.publications.LenNetwork(), c.publications.LenIPC(), c.subscriptions.Len(), c.images.Len())
	}
	return work
}

func (c *Conductor) releaseTimedOutClients(now int64) int {
	n := 0
	for _, clientID := range c.clients.TimedOut(now, c.cfg.ClientLivenessTimeoutNS) {
		for _, regID := range c.clients.RegistrationsByKind(clientID, command.RegNetworkPublication) {
			c.dispatcher.ReleasePublication(regID)
			n++
		}
		for _, regID := range c.clients.RegistrationsByKind(clientID, command.RegIPCPublication) {
			c.dispatcher.ReleasePublication(regID)
			n++
		}
		for _, regID := range c.clients.RegistrationsByKind(clientID, command.RegSubscription) {
			c.dispatcher.ReleaseSubscription(regID)
			n++
		}
		c.clients.Drop(clientID)
	}
	return n
}

func (c *Conductor) tickPublications(now int64) int {
	n := 0
	var toDeleteNet []int64
	c.publications.EachNetwork(func(regID int64, pub *publication.Network) {
		notifyRemove, deleted := pub.Tick(now, c.cfg.Timeouts)
		if notifyRemove {
			c.sender.RemoveNetworkPublication(driverproxy.RemoveNetworkPublicationCmd{RegistrationID: regID})
			n++
		}
		if deleted {
			toDeleteNet = append(toDeleteNet, regID)
		}
	})
	for _, regID := range toDeleteNet {
		pub, ok := c.publications.NetworkByRegistration(regID)
		if ok {
			if ep, found := c.endpoints.Lookup(endpoint.Send, pub.Key.Endpoint); found {
				if c.endpoints.ReleaseStream(endpoint.Send, ep) {
					c.sender.CloseSendEndpoint(driverproxy.CloseSendEndpointCmd{Endpoint: pub.Key.Endpoint})
				}
			}
		}
		c.publications.DeleteNetwork(regID)
		n++
	}

	var toDeleteIPC []int64
	c.publications.EachIPC(func(regID int64, pub *publication.IPC) {
		key := subscription.EndpointStreamKey{
			Endpoint: channeluri.EndpointKey{Media: channeluri.MediaIPC},
			StreamID: pub.StreamID,
		}
		hasSubscribers := c.subscriptions.GroupSize(key) > 0
		if pub.Tick(now, c.cfg.Timeouts, hasSubscribers) {
			toDeleteIPC = append(toDeleteIPC, regID)
		}
	})
	for _, regID := range toDeleteIPC {
		c.publications.DeleteIPC(regID)
		n++
	}
	return n
}

func (c *Conductor) tickImages(now int64) int {
	n := 0
	var toDelete []int64
	c.images.Each(func(corrID int64, img *image.Image) {
		// ACTIVE->INACTIVE is driven by the receiver's ImageInactiveCmd
		// (status-message liveness lives in the receiver agent, out of
		// scope); maintenance only advances INACTIVE onward.
		if img.State == image.Active || img.State == image.Init {
			return
		}
		if img.Tick(now, c.cfg.Timeouts.ImageLivenessTimeoutNS, c.cfg.Timeouts.PublicationLingerNS) {
			toDelete = append(toDelete, corrID)
		}
	})
	for _, corrID := range toDelete {
		img, ok := c.images.ByCorrelation(corrID)
		if ok {
			c.images.Delete(corrID, img.Key)
			n++
		}
	}
	return n
}
