// Command wren runs the reading-taste interview service and its operator tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wren-reads/wren/internal/config"
	"github.com/wren-reads/wren/internal/coverage"
	"github.com/wren-reads/wren/internal/genai"
	"github.com/wren-reads/wren/internal/interview"
	"github.com/wren-reads/wren/internal/profile"
	"github.com/wren-reads/wren/internal/store"
)

var version = "dev" // set via ldflags at build time

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wren:", err)
		os.Exit(1)
	}
}

// deps builds the long-lived components. Tests replace them with in-memory
// versions.
type deps struct {
	loadConfig func() (config.Config, error)
	openStore  func(ctx context.Context, cfg config.Config) (store.Store, error)
	newEngine  func(cfg config.Config, st store.Store) (*interview.Engine, error)
}

func defaultDeps() *deps {
	return &deps{
		loadConfig: config.Load,
		openStore: func(ctx context.Context, cfg config.Config) (store.Store, error) {
			return store.Open(ctx, cfg.StoreOptions()...)
		},
		newEngine: buildEngine,
	}
}

// flagOverrides holds root flags that take precedence over the environment.
type flagOverrides struct {
	stateDir    string
	redisURL    string
	databaseURL string
	logLevel    string
	debug       bool
}

func (f flagOverrides) apply(cfg *config.Config) error {
	if f.stateDir != "" {
		cfg.StateDir = f.stateDir
	}
	if f.redisURL != "" {
		cfg.RedisURL = f.redisURL
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	if f.debug {
		cfg.Debug = true
		cfg.LogLevel = slog.LevelDebug
	}
	if f.logLevel != "" {
		level, err := config.ParseLevel(f.logLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	return nil
}

// cli carries the resolved configuration between the root and its subcommands.
type cli struct {
	deps  *deps
	flags flagOverrides
	cfg   config.Config
}

func newRootCmd(d *deps) *cobra.Command {
	c := &cli{deps: d}
	root := &cobra.Command{
		Use:   "wren",
		Short: "Conversational reading-taste interviews",
		Long: `Wren interviews a reader over a few chat turns and synthesizes a
structured reading profile from the conversation.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.deps.loadConfig()
			if err != nil {
				return err
			}
			if err := c.flags.apply(&cfg); err != nil {
				return err
			}
			c.cfg = cfg
			initializeLogger(cmd, cfg.LogLevel)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.stateDir, "state-dir", "", "state directory (overrides $WREN_STATE_DIR)")
	pf.StringVar(&c.flags.redisURL, "redis-url", "", "Redis checkpoint URL (overrides $WREN_REDIS_URL)")
	pf.StringVar(&c.flags.databaseURL, "database-url", "", "Postgres DSN or SQLite path (overrides $DATABASE_URL)")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides $WREN_LOG_LEVEL)")
	pf.BoolVar(&c.flags.debug, "debug", false, "debug logging and model call logs (overrides $WREN_DEBUG)")

	root.AddCommand(
		c.serveCmd(),
		c.chatCmd(),
		c.sessionsCmd(),
		c.showCmd(),
		c.profileCmd(),
	)
	return root
}

// initializeLogger sets up structured logging on stderr, leaving stdout to
// command output.
func initializeLogger(cmd *cobra.Command, level slog.Level) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// buildEngine wires the language model clients, synthesizer and policy into
// an interview engine over st.
func buildEngine(cfg config.Config, st store.Store) (*interview.Engine, error) {
	questionClient, err := genai.NewClient(cfg.InterviewGenAIOptions()...)
	if err != nil {
		return nil, fmt.Errorf("question model: %w", err)
	}
	profileClient, err := genai.NewClient(cfg.ProfileGenAIOptions()...)
	if err != nil {
		return nil, fmt.Errorf("profile model: %w", err)
	}
	synth := profile.NewSynthesizer(profileClient, profile.WithRubric(profile.LoadRubricOrDefault(cfg.RubricPath)))
	tracker, err := coverage.NewTracker(cfg.Policy())
	if err != nil {
		return nil, err
	}
	return interview.NewEngine(st,
		interview.NewLLMQuestionGenerator(questionClient, interview.DefaultHistoryLimit),
		synth,
		interview.WithTracker(tracker),
		interview.WithMaxTurns(cfg.MaxTurns),
		interview.WithCallTimeout(cfg.GenerationTimeout),
	)
}
