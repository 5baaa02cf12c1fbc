package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/profile"
)

// DoneCommand ends an interview early.
const DoneCommand = "/done"

// Replies sent when a turn cannot be completed.
const (
	retryMessage    = "Sorry, I lost my train of thought. Could you send that again?"
	failureMessage  = "Something went wrong on my side. Please try again in a little while."
	textOnlyMessage = "I can only read text messages. Could you type your answer?"
)

// Interviewer is the subset of the interview engine the handler drives.
type Interviewer interface {
	Start(ctx context.Context, sessionID string) (*models.TurnResult, error)
	Advance(ctx context.Context, sessionID, utterance string) (*models.TurnResult, error)
	ForceComplete(ctx context.Context, sessionID string) (*models.TurnResult, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
}

// Deduper remembers inbound message ids. store.Deduper satisfies it.
type Deduper interface {
	RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

// ResponseHandler routes inbound chat messages to interview sessions keyed
// by the sender's canonical phone number.
type ResponseHandler struct {
	msgService  Service
	interviewer Interviewer
	dedup       Deduper
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*ResponseHandler)

// WithDeduper drops messages whose id was already handled, so a redelivered
// message never answers a question twice.
func WithDeduper(d Deduper) HandlerOption {
	return func(rh *ResponseHandler) { rh.dedup = d }
}

// NewResponseHandler creates a ResponseHandler for one transport.
func NewResponseHandler(msgService Service, interviewer Interviewer, opts ...HandlerOption) *ResponseHandler {
	rh := &ResponseHandler{msgService: msgService, interviewer: interviewer}
	for _, opt := range opts {
		opt(rh)
	}
	return rh
}

// ProcessResponse handles one inbound message:
//   - an unknown sender gets a new session and the opening question;
//   - "/done" ends the interview and returns the profile summary;
//   - a finished interview answers with the profile summary again;
//   - anything else is the next answer.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: invalid sender", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}
	sessionID := SessionIDForPhone(canonicalFrom)
	text := strings.TrimSpace(response.Body)
	slog.Debug("ResponseHandler.ProcessResponse: message received", "sessionID", sessionID, "body_length", len(text))

	if !rh.firstDelivery(ctx, response.MessageID, sessionID) {
		slog.Info("ResponseHandler.ProcessResponse: duplicate message ignored", "sessionID", sessionID, "messageID", response.MessageID)
		return nil
	}

	reply, err := rh.reply(ctx, sessionID, text)
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: interview step failed", "sessionID", sessionID, "error", err)
		rh.forget(ctx, response.MessageID)
		reply = failureMessage
		if models.IsRetryable(err) {
			reply = retryMessage
		}
	}
	if sendErr := rh.msgService.SendMessage(ctx, canonicalFrom, reply); sendErr != nil {
		slog.Error("ResponseHandler.ProcessResponse: failed to send reply", "sessionID", sessionID, "error", sendErr)
		return errors.Join(err, fmt.Errorf("send reply: %w", sendErr))
	}
	return err
}

// firstDelivery records messageID and reports whether it is new. Messages
// without an id, or a failing deduper, are treated as new.
func (rh *ResponseHandler) firstDelivery(ctx context.Context, messageID, sessionID string) bool {
	if rh.dedup == nil || messageID == "" {
		return true
	}
	fresh, err := rh.dedup.RecordInbound(ctx, messageID, sessionID)
	if err != nil {
		slog.Warn("ResponseHandler.firstDelivery: dedup check failed, processing anyway", "messageID", messageID, "error", err)
		return true
	}
	return fresh
}

func (rh *ResponseHandler) forget(ctx context.Context, messageID string) {
	if rh.dedup == nil || messageID == "" {
		return
	}
	if err := rh.dedup.Forget(ctx, messageID); err != nil {
		slog.Warn("ResponseHandler.forget: failed to drop message id", "messageID", messageID, "error", err)
	}
}

func (rh *ResponseHandler) reply(ctx context.Context, sessionID, text string) (string, error) {
	sess, err := rh.interviewer.Get(ctx, sessionID)
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		res, err := rh.interviewer.Start(ctx, sessionID)
		if err != nil {
			return "", err
		}
		slog.Info("ResponseHandler.reply: interview started", "sessionID", sessionID)
		return res.Message, nil
	case err != nil:
		return "", err
	case sess.IsComplete:
		return profile.Summary(sess.Profile), nil
	}

	if strings.EqualFold(text, DoneCommand) {
		res, err := rh.interviewer.ForceComplete(ctx, sessionID)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	}
	if text == "" {
		return textOnlyMessage, nil
	}

	res, err := rh.interviewer.Advance(ctx, sessionID, text)
	if err != nil {
		if errors.Is(err, models.ErrMalformedInput) {
			return textOnlyMessage, nil
		}
		return "", err
	}
	return res.Message, nil
}

// Start begins processing responses from the messaging service. Messages are
// handled one at a time, so each sender's turns stay in arrival order.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler.Start: processing inbound messages")
	go func() {
		defer slog.Info("ResponseHandler.Start: stopped processing inbound messages")
		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler.Start: responses channel closed")
					return
				}
				if err := rh.ProcessResponse(ctx, response); err != nil {
					slog.Error("ResponseHandler.Start: failed to process response", "error", err, "from", response.From)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
