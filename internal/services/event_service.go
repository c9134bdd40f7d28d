package services

import (
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const generationEventsQueue = "generation_events"

// Generation event types published while the fan-out runs.
const (
	EventModuleStarted   = "module_started"
	EventModuleCompleted = "module_completed"
	EventModuleFailed    = "module_failed"
	EventRunCompleted    = "run_completed"
)

// EventService publishes generation progress events to RabbitMQ so external
// consumers (progress UIs, audit) can follow a run. Optional: a nil
// *EventService is safe to call and publishes nothing.
type EventService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewEventService connects to the broker and declares the events queue.
func NewEventService(url string) (*EventService, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		generationEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	logrus.Info("RabbitMQ event service initialized")
	return &EventService{conn: conn, channel: channel}, nil
}

// Publish sends one generation event. Failures are logged and swallowed:
// event delivery never affects the run itself.
func (s *EventService) Publish(sessionID, eventType, moduleID, detail string) {
	if s == nil || s.channel == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"event":      eventType,
		"module_id":  moduleID,
		"detail":     detail,
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logrus.Warnf("Failed to marshal event %s: %v", eventType, err)
		return
	}
	err = s.channel.Publish(
		"",
		generationEventsQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		logrus.Warnf("Failed to publish event %s for session %s: %v", eventType, sessionID, err)
	}
}

// Close closes the RabbitMQ connection.
func (s *EventService) Close() error {
	if s == nil {
		return nil
	}
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logrus.Warnf("Error closing channel: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logrus.Warnf("Error closing connection: %v", err)
		}
	}
	return nil
}
