package services

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	nc *nats.Conn
	js nats.JetStreamContext
)

// Subjects published by this service.
const (
	SubjectScanStored = "scans.stored"
	SubjectScanFailed = "scans.failed"
)

// ConnectNATS connects to NATS and initializes JetStream and the scan-events
// stream. It returns the underlying Conn and JetStreamContext for advanced
// usage.
func ConnectNATS(url string) (*nats.Conn, nats.JetStreamContext, error) {
	if nc != nil && nc.IsConnected() {
		return nc, js, nil
	}

	opts := []nats.Option{
		nats.Name("scan-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("[NATS] connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, err
	}
	nc = conn

	jsCtx, err := nc.JetStream()
	if err != nil {
		nc.Close()
		nc = nil
		return nil, nil, err
	}
	js = jsCtx

	if err := ensureStreams(); err != nil {
		log.Printf("[NATS] warning: failed to ensure streams: %v", err)
	}

	log.Println("[NATS] connected and JetStream initialized")
	return nc, js, nil
}

// ensureStreams creates the scan-events stream if it doesn't exist
func ensureStreams() error {
	_, err := js.StreamInfo("scan-events")
	if err == nil {
		log.Printf("[NATS] stream %s already exists", "scan-events")
		return nil
	}

	streamCfg := &nats.StreamConfig{
		Name:     "scan-events",
		Subjects: []string{"scans.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	}

	_, err = js.AddStream(streamCfg)
	return err
}

// PublishEvent publishes an event via JetStream (durable, stored).
// subject e.g. "scans.stored"
func PublishEvent(subject string, payload interface{}) error {
	if js == nil {
		return errors.New("jetstream not initialized")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Use a message ID for idempotency
	msgID := uuid.New().String()
	_, err = js.Publish(subject, data, nats.MsgId(msgID))
	if err != nil {
		log.Printf("[NATS] publish failed subject=%s err=%v", subject, err)
		return err
	}
	return nil
}

// SubscribeEvent creates a durable, ack-based consumer. The handler is
// responsible for Ack() when done. durableName should be unique per
// consumer (e.g. "scan-service-malware-consumer").
func SubscribeEvent(subject, durableName string, handler nats.MsgHandler) (*nats.Subscription, error) {
	if js == nil {
		return nil, errors.New("jetstream not initialized")
	}
	sub, err := js.Subscribe(subject, handler,
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.AckWait(2*time.Minute),
	)
	if err != nil {
		return nil, err
	}
	log.Printf("[NATS] subscribed durable=%s subject=%s", durableName, subject)
	return sub, nil
}

// NATSConnected reports connection health for the status endpoint.
func NATSConnected() bool {
	return nc != nil && nc.IsConnected()
}

// CloseNATS drains and closes the connection at shutdown.
func CloseNATS() {
	if nc != nil && nc.IsConnected() {
		if err := nc.Drain(); err != nil {
			log.Printf("[NATS] drain failed: %v", err)
		}
		nc = nil
		js = nil
	}
}
