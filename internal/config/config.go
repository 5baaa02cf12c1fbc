// Package config loads wren's configuration from the environment and an
// optional .env file. Values are read once and passed explicitly to the
// components that need them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wren-reads/wren/internal/coverage"
	"github.com/wren-reads/wren/internal/genai"
	"github.com/wren-reads/wren/internal/interview"
	"github.com/wren-reads/wren/internal/store"
)

// Default configuration constants
const (
	DefaultStateDir       = "/var/lib/wren"
	DefaultAPIAddr        = ":8080"
	DefaultBaseURL        = "https://api.moonshot.ai/v1"
	DefaultProfileModel   = "kimi-k2-thinking"
	DefaultProfileTokens  = 3000
	DefaultProfileTemp    = 0.7
	DefaultWhatsAppDBName = "whatsapp.db"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel slog.Level
	Debug    bool
	StateDir string
	APIAddr  string

	// Language model
	APIKey            string
	BaseURL           string
	InterviewModel    string
	ProfileModel      string
	GenerationTimeout time.Duration
	RubricPath        string

	// Interview policy
	MaxTurns    int
	MinTurns    int
	MinCoverage float64

	// Checkpoints
	RedisURL       string
	DatabaseURL    string
	Namespace      string
	CheckpointTTL  time.Duration
	RequireDurable bool
	SweepSchedule  string

	// Telemetry
	OTLPEndpoint string
	OTLPInsecure bool

	// Chat transports
	WhatsAppDSN      string
	WhatsAppQRPath   string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioWebhookURL string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("Config.Load: no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	c := Config{
		Debug:          ParseBoolEnv("WREN_DEBUG", false),
		StateDir:       StringEnv("WREN_STATE_DIR", DefaultStateDir),
		APIAddr:        StringEnv("WREN_API_ADDR", DefaultAPIAddr),
		APIKey:         firstNonEmpty(os.Getenv("MOONSHOT_API_KEY"), os.Getenv("OPENAI_API_KEY")),
		BaseURL:        StringEnv("WREN_LLM_BASE_URL", DefaultBaseURL),
		InterviewModel: StringEnv("WREN_INTERVIEW_MODEL", genai.DefaultModel),
		ProfileModel:   StringEnv("WREN_PROFILE_MODEL", DefaultProfileModel),
		RubricPath:     os.Getenv("WREN_RUBRIC_PATH"),
		RedisURL:       os.Getenv("WREN_REDIS_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Namespace:      StringEnv("WREN_CHECKPOINT_NAMESPACE", store.DefaultNamespace),
		RequireDurable: ParseBoolEnv("WREN_REQUIRE_DURABLE_STORE", false),
		SweepSchedule:  StringEnv("WREN_SWEEP_SCHEDULE", store.DefaultSweepSchedule),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:   ParseBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false),
		WhatsAppDSN:    os.Getenv("WREN_WHATSAPP_DSN"),
		WhatsAppQRPath: os.Getenv("WREN_WHATSAPP_QR_PATH"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("WREN_TWILIO_WEBHOOK_URL"),
	}

	var err error
	c.LogLevel, err = ParseLevel(StringEnv("WREN_LOG_LEVEL", "info"))
	fail(err)
	c.GenerationTimeout, err = DurationEnv("WREN_GENERATION_TIMEOUT", interview.DefaultCallTimeout)
	fail(err)
	c.CheckpointTTL, err = DurationEnv("WREN_CHECKPOINT_TTL", store.DefaultTTL)
	fail(err)
	c.MaxTurns, err = IntEnv("WREN_MAX_TURNS", interview.DefaultMaxTurns)
	fail(err)
	c.MinTurns, err = IntEnv("WREN_READY_MIN_TURNS", coverage.DefaultMinTurns)
	fail(err)
	c.MinCoverage, err = FloatEnv("WREN_READY_MIN_COVERAGE", coverage.DefaultMinCoverage)
	fail(err)

	if len(errs) > 0 {
		return c, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return c, c.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.MaxTurns < 1 {
		return fmt.Errorf("config: WREN_MAX_TURNS must be at least 1, got %d", c.MaxTurns)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("config: readiness policy: %w", err)
	}
	if c.CheckpointTTL < 0 {
		return fmt.Errorf("config: WREN_CHECKPOINT_TTL must not be negative")
	}
	return nil
}

// Policy returns the readiness policy.
func (c Config) Policy() coverage.Policy {
	return coverage.Policy{MinTurns: c.MinTurns, MinCoverage: c.MinCoverage}
}

// TwilioEnabled reports whether Twilio credentials are complete.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// WhatsAppStoreDSN returns the whatsmeow device store DSN, defaulting to a
// SQLite file in the state directory.
func (c Config) WhatsAppStoreDSN() string {
	if c.WhatsAppDSN != "" {
		return c.WhatsAppDSN
	}
	return filepath.Join(c.StateDir, DefaultWhatsAppDBName)
}

// StoreOptions converts the checkpoint settings into store options.
func (c Config) StoreOptions() []store.Option {
	opts := []store.Option{
		store.WithNamespace(c.Namespace),
		store.WithTTL(c.CheckpointTTL),
		store.WithRequireDurable(c.RequireDurable),
	}
	if c.RedisURL != "" {
		opts = append(opts, store.WithRedisURL(c.RedisURL))
	}
	if c.DatabaseURL != "" {
		if store.DetectDSNType(c.DatabaseURL) == store.BackendPostgres {
			opts = append(opts, store.WithPostgresDSN(c.DatabaseURL))
		} else {
			opts = append(opts, store.WithSQLiteDSN(c.DatabaseURL))
		}
	}
	return opts
}

// InterviewGenAIOptions configures the question model.
func (c Config) InterviewGenAIOptions() []genai.Option {
	return []genai.Option{
		genai.WithAPIKey(c.APIKey),
		genai.WithBaseURL(c.BaseURL),
		genai.WithModel(c.InterviewModel),
		genai.WithDebugMode(c.Debug),
		genai.WithStateDir(c.StateDir),
	}
}

// ProfileGenAIOptions configures the synthesis model, which needs more room
// for the JSON profile.
func (c Config) ProfileGenAIOptions() []genai.Option {
	return []genai.Option{
		genai.WithAPIKey(c.APIKey),
		genai.WithBaseURL(c.BaseURL),
		genai.WithModel(c.ProfileModel),
		genai.WithTemperature(DefaultProfileTemp),
		genai.WithMaxTokens(DefaultProfileTokens),
		genai.WithDebugMode(c.Debug),
		genai.WithStateDir(c.StateDir),
	}
}

// ---- Environment helpers ----

// StringEnv returns the trimmed value of key or def when unset or blank.
func StringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// IntEnv parses an integer variable.
func IntEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

// FloatEnv parses a float variable.
func FloatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

// DurationEnv parses a Go duration such as "24h" or "90s".
func DurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("WREN_LOG_LEVEL: unknown level %q", s)
	}
	return l, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
