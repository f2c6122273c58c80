package mail

import (
	"bytes"
	"context"
	"net/smtp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	outbox := NewOutbox(client, "mail:outbox")
	msg := PasswordReset("a@x.com", "Alice", "http://app/reset-password?token=abc")
	require.NoError(t, outbox.Enqueue(context.Background(), msg))

	entries, err := client.XRange(context.Background(), "mail:outbox", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	decoded, err := FromValues(entries[0].Values)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
	assert.Contains(t, decoded.Body, "token=abc")
}

func TestFromValuesRequiresRecipient(t *testing.T) {
	_, err := FromValues(map[string]interface{}{"kind": KindPasswordReset})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(zerolog.New(&buf))

	require.NoError(t, sender.Send(context.Background(), Message{To: "a@x.com", Subject: "hi"}))
	assert.Contains(t, buf.String(), `"to":"a@x.com"`)
}

func TestSMTPSender(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotBody []byte
	)
	sender := NewSMTPSender("smtp.example.com:587", "no-reply@x.com", "user", "pass")
	sender.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, msg
		return nil
	}

	require.NoError(t, sender.Send(context.Background(), PasswordReset("a@x.com", "", "http://link")))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Reset your Expense Tracker password\r\n")
	assert.Contains(t, string(gotBody), "http://link")

	err := sender.Send(context.Background(), Message{To: "a@x.com\r\nBcc: evil@x.com", Subject: "x"})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
