package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/whatsapp"
)

// WhatsAppService implements Service on top of a linked WhatsApp account.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // set when events can be subscribed to
	responses chan models.Response

	mu      sync.RWMutex
	stopped bool
	handler uint32
}

// NewWhatsAppService creates a WhatsAppService. When client is a real
// *whatsapp.Client, Start subscribes to inbound messages.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	return s
}

// ValidateAndCanonicalizeRecipient implements Service.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the inbound message handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: no live client, inbound messages disabled")
		return nil
	}
	s.handler = s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Info("WhatsAppService.Start: listening for messages")
	return nil
}

// Stop unsubscribes and closes the responses channel.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.GetClient().RemoveEventHandler(s.handler)
		s.waClient.Disconnect()
	}
	close(s.responses)
	slog.Info("WhatsAppService.Stop: stopped")
	return nil
}

// SendMessage implements Service.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

// Responses implements Service.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleIncomingMessage forwards direct text messages. Group chats, our own
// messages and media are ignored; media gets an empty body so the handler can
// ask for text.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	var text string
	switch {
	case evt.Message.GetConversation() != "":
		text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		text = evt.Message.GetExtendedTextMessage().GetText()
	}

	s.emit(models.Response{
		From:      "+" + evt.Info.Sender.User,
		Body:      text,
		Time:      evt.Info.Timestamp.Unix(),
		MessageID: string(evt.Info.ID),
	})
}

func (s *WhatsAppService) emit(r models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("WhatsAppService.emit: dropping message, service stopped", "from", r.From)
		return
	}
	select {
	case s.responses <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService.emit: responses channel blocked, dropping message", "from", r.From)
	}
}
