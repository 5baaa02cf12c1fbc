package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/store"
	"github.com/wren-reads/wren/internal/whatsapp"
)

// fakeInterviewer keeps sessions in memory and answers with canned text.
type fakeInterviewer struct {
	mu         sync.Mutex
	sessions   map[string]*models.Session
	advanced   []string
	advanceErr error
}

func newFakeInterviewer() *fakeInterviewer {
	return &fakeInterviewer{sessions: map[string]*models.Session{}}
}

func (f *fakeInterviewer) Start(ctx context.Context, id string) (*models.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = models.NewSession(id, time.Now())
	return &models.TurnResult{SessionID: id, Message: "What do you love to read?"}, nil
}

func (f *fakeInterviewer) Advance(ctx context.Context, id, text string) (*models.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanceErr != nil {
		return nil, f.advanceErr
	}
	f.advanced = append(f.advanced, text)
	s := f.sessions[id]
	s.TurnCount++
	return &models.TurnResult{SessionID: id, Message: "Tell me more.", TurnCount: s.TurnCount}, nil
}

func (f *fakeInterviewer) ForceComplete(ctx context.Context, id string) (*models.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	s.IsComplete = true
	s.Profile = &models.Profile{ReaderArchetype: "The Tide Watcher"}
	return &models.TurnResult{SessionID: id, Message: "Thanks! Reader type: The Tide Watcher", IsComplete: true, Profile: s.Profile}, nil
}

func (f *fakeInterviewer) Get(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func lastSent(t *testing.T, m *whatsapp.MockClient) whatsapp.SentMessage {
	t.Helper()
	sent := m.Sent()
	if len(sent) == 0 {
		t.Fatal("no message sent")
	}
	return sent[len(sent)-1]
}

func TestResponseHandler_InterviewLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := whatsapp.NewMockClient()
	iv := newFakeInterviewer()
	rh := NewResponseHandler(NewWhatsAppService(mock), iv)

	// Unknown sender: the session starts and the opening question is sent.
	if err := rh.ProcessResponse(ctx, models.Response{From: "+44 7700 900123", Body: "hi"}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	msg := lastSent(t, mock)
	if msg.To != "447700900123" || msg.Body != "What do you love to read?" {
		t.Errorf("unexpected opening: %+v", msg)
	}
	if _, ok := iv.sessions["wa:447700900123"]; !ok {
		t.Fatal("session not keyed by canonical phone")
	}

	// Ordinary answer advances.
	if err := rh.ProcessResponse(ctx, models.Response{From: "+447700900123", Body: "  Le Guin  "}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if got := lastSent(t, mock).Body; got != "Tell me more." {
		t.Errorf("reply = %q", got)
	}
	if len(iv.advanced) != 1 || iv.advanced[0] != "Le Guin" {
		t.Errorf("advanced with %q", iv.advanced)
	}

	// Empty body (e.g. a photo) asks for text without advancing.
	if err := rh.ProcessResponse(ctx, models.Response{From: "+447700900123", Body: ""}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if got := lastSent(t, mock).Body; got != textOnlyMessage {
		t.Errorf("reply = %q", got)
	}

	// /done ends early.
	if err := rh.ProcessResponse(ctx, models.Response{From: "+447700900123", Body: "/DONE"}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if got := lastSent(t, mock).Body; !strings.Contains(got, "The Tide Watcher") {
		t.Errorf("reply = %q", got)
	}

	// Finished interview: the profile summary comes back.
	if err := rh.ProcessResponse(ctx, models.Response{From: "+447700900123", Body: "hello again"}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if got := lastSent(t, mock).Body; !strings.Contains(got, "Reader type: The Tide Watcher") {
		t.Errorf("reply = %q", got)
	}
	if len(iv.advanced) != 1 {
		t.Errorf("completed session must not advance, got %v", iv.advanced)
	}
}

func TestResponseHandler_RetryableFailure(t *testing.T) {
	ctx := context.Background()
	mock := whatsapp.NewMockClient()
	iv := newFakeInterviewer()
	rh := NewResponseHandler(NewWhatsAppService(mock), iv)
	_, _ = iv.Start(ctx, "wa:447700900123")

	iv.advanceErr = &models.GenerationError{SessionID: "wa:447700900123", Err: errors.New("timeout")}
	err := rh.ProcessResponse(ctx, models.Response{From: "447700900123", Body: "answer"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if got := lastSent(t, mock).Body; got != retryMessage {
		t.Errorf("reply = %q, want retry prompt", got)
	}

	iv.advanceErr = errors.New("disk full")
	_ = rh.ProcessResponse(ctx, models.Response{From: "447700900123", Body: "answer"})
	if got := lastSent(t, mock).Body; got != failureMessage {
		t.Errorf("reply = %q, want failure message", got)
	}
}

func TestResponseHandler_InvalidSender(t *testing.T) {
	mock := whatsapp.NewMockClient()
	rh := NewResponseHandler(NewWhatsAppService(mock), newFakeInterviewer())
	if err := rh.ProcessResponse(context.Background(), models.Response{From: "abc", Body: "hi"}); err == nil {
		t.Fatal("expected invalid sender error")
	}
	if len(mock.Sent()) != 0 {
		t.Error("nothing should be sent to an invalid sender")
	}
}

func TestResponseHandler_StartConsumesChannel(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewTwilioService(mockSender{mock}, nil, "")
	rh := NewResponseHandler(svc, newFakeInterviewer())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rh.Start(ctx)

	if !svc.emit(models.Response{From: "whatsapp:+447700900123", Body: "hi"}) {
		t.Fatal("emit failed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(mock.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(mock.Sent()) != 1 {
		t.Fatalf("expected one reply, got %d", len(mock.Sent()))
	}
	_ = svc.Stop()
}

// mockSender adapts whatsapp.MockClient to the Twilio sender interface.
type mockSender struct{ m *whatsapp.MockClient }

func (s mockSender) SendMessage(ctx context.Context, to, body string) error {
	return s.m.SendMessage(ctx, to, body)
}

func TestCanonicalizePhone(t *testing.T) {
	got, err := CanonicalizePhone("whatsapp:+44 7700-900123")
	if err != nil || got != "447700900123" {
		t.Errorf("CanonicalizePhone = %q, %v", got, err)
	}
	for _, bad := range []string{"", "abc", "+1 23"} {
		if _, err := CanonicalizePhone(bad); err == nil {
			t.Errorf("CanonicalizePhone(%q) should fail", bad)
		}
	}
	if SessionIDForPhone("447700900123") != "wa:447700900123" {
		t.Error("unexpected session id format")
	}
}

func TestResponseHandler_DropsRedeliveredMessages(t *testing.T) {
	ctx := context.Background()
	mock := whatsapp.NewMockClient()
	iv := newFakeInterviewer()
	rh := NewResponseHandler(NewWhatsAppService(mock), iv, WithDeduper(store.NewInMemoryStore()))
	_, _ = iv.Start(ctx, "wa:447700900123")

	msg := models.Response{From: "447700900123", Body: "Le Guin", MessageID: "3EB0ABC"}
	if err := rh.ProcessResponse(ctx, msg); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if err := rh.ProcessResponse(ctx, msg); err != nil {
		t.Fatalf("ProcessResponse on redelivery: %v", err)
	}
	if len(iv.advanced) != 1 {
		t.Errorf("redelivered message advanced the interview: %v", iv.advanced)
	}
	if len(mock.Sent()) != 1 {
		t.Errorf("expected one reply, got %d", len(mock.Sent()))
	}

	// A failed message is forgotten so its redelivery is processed.
	iv.advanceErr = &models.GenerationError{SessionID: "wa:447700900123", Err: errors.New("timeout")}
	failing := models.Response{From: "447700900123", Body: "Woolf", MessageID: "3EB0DEF"}
	_ = rh.ProcessResponse(ctx, failing)
	iv.advanceErr = nil
	if err := rh.ProcessResponse(ctx, failing); err != nil {
		t.Fatalf("ProcessResponse after failure: %v", err)
	}
	if len(iv.advanced) != 2 || iv.advanced[1] != "Woolf" {
		t.Errorf("redelivery after failure not processed: %v", iv.advanced)
	}
}
