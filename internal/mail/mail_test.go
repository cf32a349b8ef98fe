package mail

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderComposesHTMLMessage(t *testing.T) {
	s := NewSMTPSender("smtp.school.test", 587, "bot", "pw", "no-reply@school.test")

	m, err := s.compose(Message{To: "ann@school.test", Subject: "Verify account", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Subject: Verify account")
	assert.Contains(t, out, "<ann@school.test>")
	assert.Contains(t, out, "<no-reply@school.test>")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "<p>hi</p>")
}

func TestSMTPSenderRejectsBadMessages(t *testing.T) {
	s := NewSMTPSender("smtp.school.test", 25, "", "", "no-reply@school.test")

	assert.Error(t, s.Send(context.Background(), Message{To: ""}))
	assert.Error(t, s.Send(context.Background(), Message{To: "ann@school.test", Subject: "x\r\nBcc: evil@x"}))
	assert.Error(t, s.Send(context.Background(), Message{To: "not an address"}))
}

func TestSMTPSenderHonorsContextDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept connections and never send the 220 greeting.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s := NewSMTPSender("127.0.0.1", addr.Port, "", "", "no-reply@school.test")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Send(ctx, Message{To: "ann@school.test", Subject: "Verify account", HTML: "<p>hi</p>"}) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Send did not return after the context deadline")
	}
}

func TestLogSender(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	require.NoError(t, LogSender{Log: log}.Send(context.Background(), Message{To: "ann@school.test", Subject: "Setup"}))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "ann@school.test", hook.LastEntry().Data["to"])
}
