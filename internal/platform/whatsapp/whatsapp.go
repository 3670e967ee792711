// Package whatsapp sends WhatsApp messages through the Twilio API. The
// clinic stores Twilio credentials per user, so senders are built per
// request rather than once at startup.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrMissingCredentials = errors.New("missing whatsapp credentials")

// Credentials identify a Twilio account and its WhatsApp business number.
type Credentials struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c Credentials) Valid() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// Message is a single outbound WhatsApp message.
type Message struct {
	To   string
	Body string
}

// Sender delivers WhatsApp messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFactory builds a Sender for a set of credentials. Injected so the
// reminder service can be tested without touching the Twilio API.
type SenderFactory func(creds Credentials) (Sender, error)

const requestTimeout = 15 * time.Second

// TwilioSender sends messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender builds a sender bound to one account's credentials.
func NewTwilioSender(creds Credentials) (Sender, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.AccountSID,
		Password: creds.AuthToken,
	})
	client.SetTimeout(requestTimeout)
	return &TwilioSender{client: client, from: creds.FromNumber}, nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func (s *TwilioSender) Send(_ context.Context, msg Message) error {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(whatsappAddr(s.from))
	params.SetTo(whatsappAddr(msg.To))
	params.SetBody(msg.Body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send whatsapp message to %s: %w", msg.To, err)
	}
	return nil
}

// MockSender records messages in memory and can simulate per-number
// failures. Used in tests and development mode.
type MockSender struct {
	mu       sync.Mutex
	Messages []Message
	// FailFor maps recipient numbers to the error Send should return.
	FailFor map[string]error
}

func NewMockSender() *MockSender {
	return &MockSender{FailFor: make(map[string]error)}
}

func (s *MockSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailFor[msg.To]; ok {
		return err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}
