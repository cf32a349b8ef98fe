// Package mail defines outbound email messages and the transports that
// deliver them.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

// Message is one outbound HTML email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail: empty recipient")
	}
	if strings.ContainsAny(m.To+m.Subject, "\r\n") {
		return errors.New("mail: header injection")
	}
	return nil
}

// Sender delivers a message.  Implementations: SMTPSender, LogSender and
// the AMQP publisher in package queue.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender relays mail through an SMTP server, upgrading to STARTTLS when
// the server offers it and using PLAIN auth when a user is configured.
type SMTPSender struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Timeout time.Duration
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Pass: pass, From: from, Timeout: 10 * time.Second}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) (*gomail.Msg, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	m := gomail.NewMsg()
	if err := m.From(s.From); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", s.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.Port),
		gomail.WithTimeout(s.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if s.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.User),
			gomail.WithPassword(s.Pass),
		)
	}
	return gomail.NewClient(s.Host, opts...)
}

// dialWithDeadline carries the dial context's deadline onto the connection so
// a server that accepts but never greets cannot hold the caller past it.
func dialWithDeadline(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// LogSender writes messages to the logger instead of delivering them.  It
// is the default transport in development.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("mail (log transport)")
	s.Log.Debug(msg.HTML)
	return nil
}
