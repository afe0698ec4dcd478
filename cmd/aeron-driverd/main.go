// Command aeron-driverd runs the media driver's conductor agent, wiring
// configuration, logging, metrics, and the optional debug/export side
// channels together. Grounded on the teacher's cmd/main.go entrypoint and
// internal/server/server.go's HTTP bootstrap and graceful-shutdown
// pattern (signal handling, context-cancel, timed Shutdown).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "go.uber.org/automaxprocs"

	"aeron-driver/internal/clock"
	"aeron-driver/internal/conductor"
	"aeron-driver/internal/config"
	"aeron-driver/internal/debugws"
	"aeron-driver/internal/driverproxy"
	"aeron-driver/internal/endpoint"
	"aeron-driver/internal/events"
	"aeron-driver/internal/eventexport"
	"aeron-driver/internal/image"
	"aeron-driver/internal/logging"
	"aeron-driver/internal/metrics"
	"aeron-driver/internal/publication"
	"aeron-driver/internal/rawlog"
	"aeron-driver/internal/subscription"
	"aeron-driver/internal/sysstat"
	"aeron-driver/internal/wire"
)

const mailboxCapacity = 4096

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	m := metrics.New()

	endpoints := endpoint.NewRegistry()
	publications := publication.NewRegistry()
	images := image.NewRegistry()
	subscriptions := subscription.NewRegistry()
	broadcast := events.NewBroadcast(8192, m.OnBroadcastDrop, func(msgTypeID int32) {
		m.IncEvent(wire.EventName(msgTypeID))
	})
	rawLog := rawlog.NewDirAllocator(cfg.RawLog.Dir, cfg.RawLog.MaxFiles)

	sender := driverproxy.NewChannelSenderProxy(mailboxCapacity, func() { m.OnBroadcastDrop("sender_mailbox") })
	receiver := driverproxy.NewChannelReceiverProxy(mailboxCapacity, func() { m.OnBroadcastDrop("receiver_mailbox") })
	inbound := driverproxy.NewReceiverEvents(mailboxCapacity, func() { m.OnBroadcastDrop("receiver_events") })

	cond := conductor.New(conductor.Config{
		Timeouts: publication.Timeouts{
			PublicationLingerNS:            cfg.Conductor.PublicationLinger.Nanoseconds(),
			PublicationConnectionTimeoutNS: cfg.Conductor.PublicationConnectionTimeout.Nanoseconds(),
			ImageLivenessTimeoutNS:         cfg.Conductor.ImageLivenessTimeout.Nanoseconds(),
		},
		ClientLivenessTimeoutNS: cfg.Conductor.ClientLivenessTimeout.Nanoseconds(),
		TimerIntervalNS:         cfg.Conductor.TimerInterval.Nanoseconds(),
		MaxCommandsPerTick:      cfg.Conductor.MaxCommandsPerTick,
	}, conductor.Deps{
		Clock:         clock.System{},
		Publications:  publications,
		Images:        images,
		Subscriptions: subscriptions,
		Endpoints:     endpoints,
		Broadcast:     broadcast,
		Sender:        sender,
		Receiver:      receiver,
		Inbound:       inbound,
		RawLog:        rawLog,
		OnCommand: func(msgTypeID int32) {
			m.IncCommand(wire.CommandName(msgTypeID))
		},
		ErrHandler: func(code wire.ErrorCode, detail string) {
			m.IncError(code)
			log.Warn("conductor error", zap.String("code", code.String()), zap.String("detail", detail))
		},
		StatsHandler: func(networkPubs, ipcPubs, subs, images int) {
			m.SetPublicationsLive("network", float64(networkPubs))
			m.SetPublicationsLive("ipc", float64(ipcPubs))
			m.SetSubscriptionsLive(float64(subs))
			m.SetImagesLive(float64(images))
		},
	})

	sampler := sysstat.NewSampler()

	var exporter *eventexport.Exporter
	if url := os.Getenv("AERON_DRIVER_NATS_URL"); url != "" {
		exporter, err = eventexport.Connect(eventexport.Config{
			URL:             url,
			Subject:         "aeron-driver.events",
			MaxReconnects:   10,
			ReconnectWait:   time.Second,
			ReconnectJitter: 200 * time.Millisecond,
		}, log)
		if err != nil {
			log.Warn("eventexport connect failed, continuing without it", zap.Error(err))
		} else {
			defer exporter.Close()
		}
	}

	hub := debugws.NewHub(log)
	defer hub.Close()

	stopBroadcastTail := make(chan struct{})
	go tailBroadcast(broadcast.NewReader(), hub, exporter, stopBroadcastTail)
	defer close(stopBroadcastTail)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status": "healthy",
			"errors": cond.ErrorCount(),
			"system": map[string]interface{}{
				"goroutines":    sampler.Goroutines(),
				"heap_alloc_mb": sampler.HeapAllocMB(),
				"cpu_percent":   sampler.CPUPercent(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})
	mux.HandleFunc("/debugws", hub.ServeHTTP)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
	}

	httpServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", zap.Error(err))
		}
	}()

	sampleTicker := time.NewTicker(5 * time.Second)
	defer sampleTicker.Stop()
	stopSampling := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopSampling:
				return
			case <-sampleTicker.C:
				sampler.Sample()
			}
		}
	}()
	defer close(stopSampling)

	stop := make(chan struct{})
	go cond.Run(stop)

	waitForShutdown(log)
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
}

// tailBroadcast drains every broadcast event and fans it to the debug
// websocket hub and, if configured, the NATS exporter. Both sinks are
// non-blocking (debugws drops a full client, eventexport fire-and-forgets),
// so a slow consumer never backs up the broadcast buffer's readers.
func tailBroadcast(r *events.Reader, hub *debugws.Hub, exporter *eventexport.Exporter, stop <-chan struct{}) {
	idle := conductor.DefaultIdleStrategy()
	for {
		select {
		case <-stop:
			return
		default:
		}
		msgTypeID, payload, ok := r.Next()
		if !ok {
			idle.Idle(0)
			continue
		}
		idle.Idle(1)
		frame := wire.Frame(msgTypeID, payload)
		hub.Broadcast(frame)
		exporter.Mirror(frame)
	}
}

func waitForShutdown(log *zap.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("received signal, shutting down", zap.String("signal", s.String()))
}

