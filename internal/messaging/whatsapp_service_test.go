package messaging

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wren-reads/wren/internal/whatsapp"
)

// Ensure both transports implement Service
func TestServicesImplementService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
}

func TestWhatsAppService_SendMessageCanonicalizes(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.SendMessage(context.Background(), "+44 7700 900123", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	sent := mockClient.Sent()
	if len(sent) != 1 || sent[0].To != "447700900123" {
		t.Fatalf("unexpected sent messages: %+v", sent)
	}
	if err := svc.SendMessage(context.Background(), "nope", "hello"); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

// Test Start and Stop do not error and close the responses channel
func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if response, ok := <-svc.Responses(); ok {
		t.Errorf("expected responses channel closed, got value %v", response)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "447700900123", "x"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func incoming(user string, msg *waE2E.Message, fromMe, group bool) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender:   types.NewJID(user, types.DefaultUserServer),
				IsFromMe: fromMe,
				IsGroup:  group,
			},
			ID:        "3EB0ABC",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: msg,
	}
}

func TestWhatsAppService_HandleIncomingMessage(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	svc.handleIncomingMessage(incoming("447700900123", &waE2E.Message{Conversation: proto.String("hello")}, false, false))
	svc.handleIncomingMessage(incoming("447700900123", &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted reply")},
	}, false, false))
	// Ignored: own message, group chat, empty event.
	svc.handleIncomingMessage(incoming("447700900123", &waE2E.Message{Conversation: proto.String("mine")}, true, false))
	svc.handleIncomingMessage(incoming("447700900123", &waE2E.Message{Conversation: proto.String("group")}, false, true))
	svc.handleIncomingMessage(incoming("447700900123", nil, false, false))
	// Media arrives with an empty body.
	svc.handleIncomingMessage(incoming("447700900123", &waE2E.Message{}, false, false))

	want := []string{"hello", "quoted reply", ""}
	for i, body := range want {
		select {
		case r := <-svc.Responses():
			if r.From != "+447700900123" || r.Body != body {
				t.Errorf("response %d = %+v, want body %q", i, r, body)
			}
			if r.MessageID != "3EB0ABC" || r.Time != 1700000000 {
				t.Errorf("response %d metadata = %+v", i, r)
			}
		default:
			t.Fatalf("response %d missing", i)
		}
	}
	select {
	case r := <-svc.Responses():
		t.Errorf("unexpected extra response %+v", r)
	default:
	}
}
