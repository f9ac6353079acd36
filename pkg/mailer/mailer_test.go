package mailer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/Adda-Baaj/news-digest/internal/domain"
)

type fakeSession struct {
	rcptErr  map[string]error
	dialed   Config
	rcpts    []string
	messages []string
	closed   bool
}

func (f *fakeSession) Send(msgs ...*gomail.Msg) error {
	for _, m := range msgs {
		rcpts, err := m.GetRecipients()
		if err != nil {
			return err
		}
		for _, r := range rcpts {
			if err := f.rcptErr[r]; err != nil {
				return err
			}
		}
		var buf bytes.Buffer
		if _, err := m.WriteTo(&buf); err != nil {
			return err
		}
		f.rcpts = append(f.rcpts, rcpts...)
		f.messages = append(f.messages, buf.String())
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func senderWith(sess *fakeSession, dialErr error) *Sender {
	cfg := Config{Host: "smtp.example.com", Port: 465, Password: "app-pass"}
	return NewSender(cfg, nil,
		WithDialer(func(ctx context.Context, c Config) (Session, error) {
			if sess != nil {
				sess.dialed = c
			}
			if dialErr != nil {
				return nil, dialErr
			}
			return sess, nil
		}),
		WithClock(func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
}

func digestMessage(to ...string) domain.EmailMessage {
	return domain.EmailMessage{
		From:     "news@example.com",
		To:       to,
		Subject:  "Daily News: January 02, 2025",
		TextBody: "1. A\n   u1\n",
		HTMLBody: "<p>A</p>",
	}
}

func TestSend_DeliversToEveryRecipient(t *testing.T) {
	sess := &fakeSession{}
	s := senderWith(sess, nil)

	err := s.Send(context.Background(), digestMessage("a@x.com", "b@x.com"))
	require.NoError(t, err)

	assert.Equal(t, "news@example.com", sess.dialed.Username, "username defaults to the sender address")
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, sess.rcpts)
	require.Len(t, sess.messages, 2)
	assert.Contains(t, sess.messages[0], "To: <a@x.com>")
	assert.NotContains(t, sess.messages[0], "b@x.com")
	assert.Contains(t, sess.messages[1], "To: <b@x.com>")
	assert.Contains(t, sess.messages[0], "From: <news@example.com>")
	assert.True(t, sess.closed)
}

func TestSend_AuthFailureIsDialError(t *testing.T) {
	sess := &fakeSession{}
	s := senderWith(sess, errors.New("535 bad credentials"))

	err := s.Send(context.Background(), digestMessage("a@x.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
	assert.Contains(t, err.Error(), "news@example.com")
	assert.Empty(t, sess.messages)
}

func TestSend_RecipientRejectionStopsRun(t *testing.T) {
	sess := &fakeSession{rcptErr: map[string]error{"a@x.com": errors.New("550 no such user")}}
	s := senderWith(sess, nil)

	err := s.Send(context.Background(), digestMessage("a@x.com", "b@x.com"))
	require.Error(t, err)

	var rerr *RecipientError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "a@x.com", rerr.Recipient)
	assert.Contains(t, rerr.Error(), "550")
	assert.Empty(t, sess.messages, "b@x.com must not be attempted after a@x.com failed")
	assert.True(t, sess.closed)
}

func TestSend_DialFailure(t *testing.T) {
	s := senderWith(nil, errors.New("connection refused"))

	err := s.Send(context.Background(), digestMessage("a@x.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.example.com:465")
}

func TestSend_ValidatesMessage(t *testing.T) {
	sess := &fakeSession{}
	s := senderWith(sess, nil)

	assert.Error(t, s.Send(context.Background(), digestMessage()))

	msg := digestMessage("a@x.com")
	msg.From = "not an address"
	assert.Error(t, s.Send(context.Background(), msg))
	assert.Empty(t, sess.dialed.Host, "nothing is dialed for an invalid message")
}

func TestSend_CancelledContext(t *testing.T) {
	sess := &fakeSession{}
	s := senderWith(sess, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, digestMessage("a@x.com"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.messages)
	assert.True(t, sess.closed)
}

func TestDefaultTLSMode(t *testing.T) {
	assert.Equal(t, TLSModeSSL, DefaultTLSMode(465))
	assert.Equal(t, TLSModeStartTLS, DefaultTLSMode(587))
	assert.Equal(t, TLSModeStartTLS, DefaultTLSMode(25))
}

// fakePlainServer speaks just enough SMTP to greet and answer EHLO without STARTTLS.
func fakePlainServer(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 fake ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				_, _ = conn.Write([]byte("250-fake\r\n250 AUTH PLAIN\r\n"))
			case strings.HasPrefix(cmd, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestDialSMTP_RefusesMissingStartTLS(t *testing.T) {
	host, port := fakePlainServer(t)

	_, err := dialSMTP(context.Background(), Config{
		Host:    host,
		Port:    port,
		TLSMode: TLSModeStartTLS,
		Timeout: 2 * time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestDialSMTP_UnknownMode(t *testing.T) {
	_, err := dialSMTP(context.Background(), Config{Host: "localhost", Port: 25, TLSMode: "plain"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain")
}

func TestClientOptions(t *testing.T) {
	for _, mode := range []string{TLSModeSSL, TLSModeStartTLS} {
		opts, err := clientOptions(Config{Host: "smtp.example.com", Port: 587, TLSMode: mode, Timeout: time.Second})
		require.NoError(t, err, mode)
		_, err = gomail.NewClient("smtp.example.com", opts...)
		assert.NoError(t, err, mode)
	}

	opts, err := clientOptions(Config{Host: "smtp.example.com", Port: 0, TLSMode: TLSModeSSL, Timeout: time.Second})
	require.NoError(t, err)
	_, err = gomail.NewClient("smtp.example.com", opts...)
	assert.Error(t, err, "port 0 is rejected")
}
