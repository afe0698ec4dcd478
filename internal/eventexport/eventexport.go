// Package eventexport optionally mirrors the conductor's broadcast
// events onto a NATS subject for out-of-process observability, adapted
// from the teacher's pkg/nats/client.go connection/reconnect handling.
// This never sits on the conductor's tick: Mirror is called by a
// separate poller goroutine reading the broadcast buffer, and every NATS
// publish is fire-and-forget.
package eventexport

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config configures the optional NATS connection.
type Config struct {
	URL             string
	Subject         string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
}

// Exporter publishes raw broadcast frames to NATS.
type Exporter struct {
	conn    *nats.Conn
	subject string
	log     *zap.Logger
}

// Connect dials NATS with the teacher's reconnect/jitter handling. A nil
// *Exporter with a nil error is never returned; callers that don't want
// export simply don't call Connect.
func Connect(cfg Config, log *zap.Logger) (*Exporter, error) {
	e := &Exporter{subject: cfg.Subject, log: log}
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.ConnectHandler(e.onConnect),
		nats.DisconnectErrHandler(e.onDisconnect),
		nats.ReconnectHandler(e.onReconnect),
		nats.ErrorHandler(e.onError),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventexport: connect: %w", err)
	}
	e.conn = conn
	return e, nil
}

func (e *Exporter) onConnect(conn *nats.Conn) {
	e.log.Info("eventexport connected", zap.String("url", conn.ConnectedUrl()))
}

func (e *Exporter) onDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		e.log.Warn("eventexport disconnected", zap.Error(err))
	}
}

func (e *Exporter) onReconnect(conn *nats.Conn) {
	e.log.Info("eventexport reconnected", zap.String("url", conn.ConnectedUrl()))
}

func (e *Exporter) onError(_ *nats.Conn, _ *nats.Subscription, err error) {
	e.log.Warn("eventexport error", zap.Error(err))
}

// Mirror publishes one already-framed broadcast event. It never blocks:
// nats.Conn.Publish only queues onto the client's own send buffer.
func (e *Exporter) Mirror(frame []byte) {
	if e == nil || e.conn == nil {
		return
	}
	_ = e.conn.Publish(e.subject, frame)
}

// Close drains and closes the NATS connection.
func (e *Exporter) Close() {
	if e == nil || e.conn == nil {
		return
	}
	_ = e.conn.Drain()
}
