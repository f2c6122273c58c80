package mail

import (
	"errors"
	"fmt"
)

const KindPasswordReset = "password_reset"

var ErrMalformedMessage = errors.New("malformed mail message")

type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Values flattens the message into stream entry fields.
func (m Message) Values() map[string]interface{} {
	return map[string]interface{}{
		"kind":    m.Kind,
		"to":      m.To,
		"subject": m.Subject,
		"body":    m.Body,
	}
}

// FromValues rebuilds a message from stream entry fields.
func FromValues(values map[string]interface{}) (Message, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}
	m := Message{
		Kind:    field("kind"),
		To:      field("to"),
		Subject: field("subject"),
		Body:    field("body"),
	}
	if m.To == "" {
		return Message{}, fmt.Errorf("%w: missing recipient", ErrMalformedMessage)
	}
	return m, nil
}

func PasswordReset(to, name, link string) Message {
	if name == "" {
		name = "there"
	}
	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: "Reset your Expense Tracker password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires soon and works once.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			name, link),
	}
}
