// Package whatsapp wraps the whatsmeow client so interviews can run over a
// linked WhatsApp account.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/wren-reads/wren/internal/store"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for the whatsmeow device database
	DefaultSQLitePath = "/var/lib/wren/whatsapp.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
)

// Sender sends a text message to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow device store connection string
	QRPath      string // path to write the login QR code
	NumericCode bool   // print the raw pairing code instead of a QR code
	LogLevel    string // whatsmeow log level
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow device store connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the raw pairing code instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// WithLogLevel sets the whatsmeow log level (DEBUG, INFO, WARN, ERROR).
func WithLogLevel(level string) Option {
	return func(o *Opts) {
		o.LogLevel = level
	}
}

// DriverFor returns the database/sql driver name for a device store DSN.
func DriverFor(dsn string) string {
	if store.DetectDSNType(dsn) == store.BackendPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// HasForeignKeys reports whether a SQLite DSN enables foreign keys, which
// whatsmeow relies on.
func HasForeignKeys(dsn string) bool {
	return strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "foreign_keys")
}

// Client wraps the whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// NewClient opens the device store, pairs the device if needed and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{DBDSN: DefaultSQLitePath, LogLevel: "INFO"}
	for _, opt := range opts {
		opt(&cfg)
	}

	driver := DriverFor(cfg.DBDSN)
	if driver == "sqlite3" && !HasForeignKeys(cfg.DBDSN) {
		slog.Warn("WhatsApp.NewClient: SQLite device store without foreign keys; add ?_foreign_keys=on",
			"dsn_example", "file:"+cfg.DBDSN+"?_foreign_keys=on")
	}

	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, waLog.Stdout("Database", cfg.LogLevel, true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}
	waClient := whatsmeow.NewClient(device, waLog.Stdout("Client", cfg.LogLevel, true))

	if waClient.Store.ID != nil {
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
		slog.Info("WhatsApp.NewClient: connected")
		return &Client{waClient: waClient}, nil
	}

	slog.Info("WhatsApp.NewClient: login required, starting pairing")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open WhatsApp pairing channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			waClient.Disconnect()
			return nil, fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
			continue
		}
		slog.Info("WhatsApp.NewClient: pairing event", "event", evt.Event)
	}
	slog.Info("WhatsApp.NewClient: connected")
	return &Client{waClient: waClient}, nil
}

// SendMessage sends a plain text message to a canonical phone number.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if c.waClient == nil || c.waClient.Store == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	jid := types.NewJID(to, JIDSuffix)
	if _, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body}); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsApp.SendMessage: sent", "to", to, "body_length", len(body))
	return nil
}

// GetClient returns the underlying whatsmeow client for event handling.
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// Disconnect closes the websocket.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records the message, or returns Err when set.
func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
