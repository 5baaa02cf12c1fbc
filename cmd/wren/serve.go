package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wren-reads/wren/internal/api"
	"github.com/wren-reads/wren/internal/config"
	"github.com/wren-reads/wren/internal/lockfile"
	"github.com/wren-reads/wren/internal/messaging"
	"github.com/wren-reads/wren/internal/profile"
	"github.com/wren-reads/wren/internal/store"
	"github.com/wren-reads/wren/internal/telemetry"
	"github.com/wren-reads/wren/internal/twiliowhatsapp"
	"github.com/wren-reads/wren/internal/whatsapp"
)

type serveFlags struct {
	addr        string
	whatsapp    bool
	qrOutput    string
	numericCode bool
}

func (c *cli) serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and any configured chat transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if f.addr != "" {
				c.cfg.APIAddr = f.addr
			}
			if f.qrOutput != "" {
				c.cfg.WhatsAppQRPath = f.qrOutput
			}
			return c.serve(ctx, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "API listen address (overrides $WREN_API_ADDR)")
	cmd.Flags().BoolVar(&f.whatsapp, "whatsapp", false, "link a WhatsApp account and interview over it")
	cmd.Flags().StringVar(&f.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code (overrides $WREN_WHATSAPP_QR_PATH)")
	cmd.Flags().BoolVar(&f.numericCode, "numeric-code", false, "print the WhatsApp pairing code instead of a QR code")
	return cmd
}

func (c *cli) serve(ctx context.Context, f serveFlags) error {
	cfg := c.cfg

	lock, err := lockfile.Acquire(cfg.StateDir, "wren serve")
	if err != nil {
		return err
	}
	defer lock.Release()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("serve: telemetry shutdown failed", "error", err)
		}
	}()

	st, err := c.deps.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if sweeper := store.SweeperFor(st, cfg.SweepSchedule); sweeper != nil {
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	engine, err := c.deps.newEngine(cfg, st)
	if err != nil {
		return err
	}

	apiOpts := []api.Option{api.WithAddr(cfg.APIAddr), api.WithBackend(st.Backend())}
	var services []messaging.Service

	if f.whatsapp {
		svc, err := startWhatsApp(ctx, cfg, f)
		if err != nil {
			return err
		}
		services = append(services, svc)
	}
	if cfg.TwilioEnabled() {
		svc, err := newTwilioService(cfg)
		if err != nil {
			return err
		}
		services = append(services, svc)
		apiOpts = append(apiOpts, api.WithTwilioWebhook(svc.TwilioWebhookHandler))
	}

	var handlerOpts []messaging.HandlerOption
	if d, ok := st.(store.Deduper); ok {
		handlerOpts = append(handlerOpts, messaging.WithDeduper(d))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if err := svc.Start(gctx); err != nil {
			return err
		}
		messaging.NewResponseHandler(svc, engine, handlerOpts...).Start(gctx)
	}

	if reloader, ok := engine.Synthesizer().(rubricReloader); ok && cfg.RubricPath != "" {
		g.Go(func() error {
			watchRubric(gctx, reloader, cfg.RubricPath)
			return nil
		})
	}

	server := api.NewServer(engine, apiOpts...)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		for _, svc := range services {
			if err := svc.Stop(); err != nil {
				slog.Warn("serve: failed to stop chat transport", "error", err)
			}
		}
		return nil
	})

	slog.Info("serve: wren started", "addr", cfg.APIAddr, "store", st.Backend(), "transports", len(services))
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("serve: wren exited")
	return nil
}

func startWhatsApp(ctx context.Context, cfg config.Config, f serveFlags) (*messaging.WhatsAppService, error) {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsAppStoreDSN())}
	if cfg.WhatsAppQRPath != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsAppQRPath))
	}
	if f.numericCode {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if cfg.Debug {
		opts = append(opts, whatsapp.WithLogLevel("DEBUG"))
	}
	client, err := whatsapp.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %w", err)
	}
	return messaging.NewWhatsAppService(client), nil
}

func newTwilioService(cfg config.Config) (*messaging.TwilioService, error) {
	client, err := twiliowhatsapp.NewClient(
		twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
		twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
		twiliowhatsapp.WithFromWhats(cfg.TwilioFrom),
	)
	if err != nil {
		return nil, err
	}
	var validator messaging.WebhookValidator
	if cfg.TwilioWebhookURL != "" {
		validator = twiliowhatsapp.NewValidator(cfg.TwilioAuthToken)
	} else {
		slog.Warn("serve: WREN_TWILIO_WEBHOOK_URL not set, Twilio webhook signatures are not checked")
	}
	return messaging.NewTwilioService(client, validator, cfg.TwilioWebhookURL), nil
}

type rubricReloader interface {
	ReloadRubric(path string) (*profile.Rubric, error)
}

// watchRubric reloads the scoring rubric from path on every SIGHUP. A rubric
// that fails validation is logged and the previous one stays in use.
func watchRubric(ctx context.Context, r rubricReloader, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := r.ReloadRubric(path); err != nil {
				slog.Error("serve: rubric reload failed", "path", path, "error", err)
			}
		}
	}
}
