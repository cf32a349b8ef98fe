package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/mail"
)

// Publisher is a mail.Sender that enqueues messages on the mail.outbound
// queue.  Each Send dials, declares the queue and publishes one persistent
// message.
type Publisher struct {
	URL string
	Log logrus.FieldLogger

	// dial is amqp.Dial; tests replace it.
	dial func(url string) (*amqp.Connection, error)
}

func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{URL: url, Log: log, dial: amqp.Dial}
}

// Send implements mail.Sender.
func (p *Publisher) Send(ctx context.Context, msg mail.Message) error {
	ev := MailRequestedEvent{ID: uuid.NewString(), Message: msg, RequestedAt: time.Now().UTC()}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	conn, err := p.dial(p.URL)
	if err != nil {
		p.Log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(mailQueueName, true, false, false, false, nil); err != nil {
		p.Log.WithError(err).Error("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.RequestedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", mailQueueName, false, false, pub); err != nil {
		p.Log.WithError(err).Error("rabbitmq: publish failed")
		return err
	}
	p.Log.WithFields(logrus.Fields{"mail_id": ev.ID, "subject": msg.Subject}).Debug("mail enqueued")
	return nil
}
