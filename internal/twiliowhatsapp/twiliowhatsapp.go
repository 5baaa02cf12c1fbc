// Package twiliowhatsapp sends WhatsApp messages through the Twilio REST API
// and verifies Twilio webhook signatures.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// Sender sends a text message to a canonical phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token, also used to verify webhooks.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client    *twilio.RestClient
	fromWhats string // "whatsapp:+1234567890"
}

// NewClient validates the credentials and builds the REST client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("twilio: sending number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client, fromWhats: WhatsAppAddress(cfg.FromWhats)}, nil
}

// WhatsAppAddress adds the "whatsapp:" channel prefix Twilio expects.
func WhatsAppAddress(number string) string {
	if len(number) >= 9 && number[:9] == "whatsapp:" {
		return number
	}
	if number != "" && number[0] != '+' {
		number = "+" + number
	}
	return "whatsapp:" + number
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(to))
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Twilio.SendMessage: sent", "to", to, "sid", sid)
	return nil
}

// Validator checks X-Twilio-Signature on inbound webhooks.
type Validator struct {
	rv twilioclient.RequestValidator
}

// NewValidator returns a validator for webhooks signed with authToken.
func NewValidator(authToken string) *Validator {
	return &Validator{rv: twilioclient.NewRequestValidator(authToken)}
}

// ValidateRequest verifies a parsed form request against publicURL, the
// exact URL Twilio was configured to call.
func (v *Validator) ValidateRequest(r *http.Request, publicURL string) bool {
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.rv.Validate(publicURL, params, r.Header.Get(SignatureHeader))
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records the message.
func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
