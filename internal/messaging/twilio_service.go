package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/twiliowhatsapp"
)

// WebhookValidator verifies that an inbound webhook came from Twilio.
type WebhookValidator interface {
	ValidateRequest(r *http.Request, publicURL string) bool
}

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through TwilioWebhookHandler.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	validator WebhookValidator // nil disables signature checks
	publicURL string
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a TwilioService. When validator is non-nil every
// webhook must carry a valid signature for publicURL.
func NewTwilioService(client twiliowhatsapp.Sender, validator WebhookValidator, publicURL string) *TwilioService {
	return &TwilioService{
		client:    client,
		validator: validator,
		publicURL: publicURL,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient implements Service.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start is a no-op; Twilio pushes messages to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the responses channel.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	return nil
}

// SendMessage implements Service.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Responses implements Service.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// TwilioWebhookHandler accepts Twilio's inbound message form post and queues
// it. Replies are sent asynchronously through the REST API, so the webhook
// answers with an empty TwiML document.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validator.ValidateRequest(r, s.publicURL) {
		slog.Warn("TwilioService.TwilioWebhookHandler: rejected unsigned webhook", "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	from := r.PostFormValue("From")
	if from == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	body := r.PostFormValue("Body")
	slog.Info("TwilioService.TwilioWebhookHandler: inbound message", "from", from, "body_length", len(body))

	if !s.emit(models.Response{From: from, Body: body, Time: time.Now().Unix(), MessageID: r.PostFormValue("MessageSid")}) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}

func (s *TwilioService) emit(r models.Response) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("TwilioService.emit: dropping inbound message, service stopped", "from", r.From)
		return false
	}
	select {
	case s.responses <- r:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService.emit: responses channel blocked, dropping message", "from", r.From)
		return false
	}
}
