// Package messaging carries interviews over chat transports. A Service moves
// text to and from interviewees; the ResponseHandler routes each inbound
// message to the interview engine and sends back its reply.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/wren-reads/wren/internal/models"
)

// Constants for Service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the responses channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an inbound message waits for a slot
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneDigits is the shortest accepted canonical phone number
	MinPhoneDigits = 6
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., event subscriptions).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the responses channel.
	Stop() error

	// Responses returns a channel of incoming interviewee messages.
	Responses() <-chan models.Response
}

// CanonicalizePhone strips everything but digits and checks the length.
// "whatsapp:+44 7700-900123" becomes "447700900123".
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	return canonical, nil
}

// SessionIDForPhone maps a canonical phone number to its interview session id.
func SessionIDForPhone(canonical string) string {
	return "wa:" + canonical
}
