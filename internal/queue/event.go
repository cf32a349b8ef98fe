// Package queue moves outbound mail through RabbitMQ so that request
// handlers never wait on an SMTP server.
package queue

import (
	"time"

	"github.com/iliyamo/school-admin/internal/mail"
)

const mailQueueName = "mail.outbound"

// MailRequestedEvent is published for every email the API wants sent.  It
// carries the fully rendered message so the consumer needs no database.
type MailRequestedEvent struct {
	ID          string       `json:"id"`
	Message     mail.Message `json:"message"`
	RequestedAt time.Time    `json:"requested_at"`
}
