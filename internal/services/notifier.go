package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const notificationQueue = "session.events"

// NotificationEvent is the message handed to the notification pipeline when
// a counsellor decides on a booking request. Delivery itself (email, push)
// is a downstream consumer's concern.
type NotificationEvent struct {
	Type         string    `json:"type"`
	SessionID    int64     `json:"session_id"`
	UserID       int64     `json:"user_id"`
	CounsellorID int64     `json:"counsellor_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Message      string    `json:"message,omitempty"`
}

const (
	EventSessionAccepted = "session.accepted"
	EventSessionRejected = "session.rejected"
)

// EventPublisher publishes notification events to RabbitMQ. Publishing is
// fire-and-forget from the caller's point of view: errors are logged and
// returned, never allowed to fail the booking flow.
type EventPublisher struct {
	url string
}

func NewEventPublisher(url string) *EventPublisher {
	return &EventPublisher{url: url}
}

func (p *EventPublisher) Publish(ctx context.Context, event NotificationEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("notifier: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notifier: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so decision events survive a broker restart.
	if _, err := ch.QueueDeclare(notificationQueue, true, false, false, false, nil); err != nil {
		log.Printf("notifier: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("notifier: marshal event failed: %v", err)
		return err
	}

	err = ch.PublishWithContext(ctx, "", notificationQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Printf("notifier: publish failed: %v", err)
		return err
	}
	return nil
}
