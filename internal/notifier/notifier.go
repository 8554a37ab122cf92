// Package notifier publishes workflow events to NATS for consumption by
// downstream services, e.g. a notification or reporting service.
//
// Subject convention: procureflow.<resource_type>.<event_type>
//
// All publish operations are non-fatal. Errors are logged but never
// propagated to the caller, so notification failures never interrupt
// workflow operations.
package notifier

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Event is the JSON schema published to NATS.
type Event struct {
	EventType    string         `json:"event_type"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	Actor        string         `json:"actor,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Payload      map[string]any `json:"payload,omitempty"`
}

var conn *nats.Conn

// Connect establishes the NATS connection from the NATS_URL environment
// variable. When NATS_URL is unset, the notifier stays disabled and all
// publishes are no-ops.
func Connect() error {
	url, ok := os.LookupEnv("NATS_URL")
	if !ok || url == "" {
		log.Debug().Msg("NATS_URL not set, event publishing disabled")
		return nil
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("could not connect to NATS at %s: %w", url, err)
	}

	conn = nc
	log.Info().Str("url", url).Msg("connected to NATS")
	return nil
}

// Close drains the NATS connection.
func Close() {
	if conn == nil {
		return
	}

	_ = conn.Drain()
	conn = nil
}

// Publish sends a workflow event. It never returns an error, failures
// are logged and dropped.
func Publish(eventType, resourceType string, resourceID uuid.UUID, actor string, payload map[string]any) {
	if conn == nil {
		return
	}

	event := Event{
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Actor:        actor,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("notifier: could not marshal event")
		return
	}

	subject := fmt.Sprintf("procureflow.%s.%s", resourceType, eventType)
	if err := conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).
			Str("subject", subject).
			Str("resource_id", resourceID.String()).
			Msg("notifier: could not publish event")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("resource_id", resourceID.String()).
		Msg("notifier: event published")
}
