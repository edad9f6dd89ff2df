package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/api"
	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/mail"
	"github.com/quantumdatasynergy/contact-api/pkg/notify"
	"github.com/quantumdatasynergy/contact-api/pkg/ratelimit"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
	"github.com/quantumdatasynergy/contact-api/pkg/version"
)

const (
	redisConnectTimeout = 3 * time.Second
	verifyTimeout       = 30 * time.Second
)

func runServe(ctx context.Context, opts *Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	zl, err := system.NewLogger(opts.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()
	log.With("version", version.GetBuildInfo().String()).Info("Starting contact API")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, opts.Debug, zl)
	if err != nil {
		return err
	}
	defer app.Close()

	go verifyTransport(ctx, app.sender, app.status, log)

	return app.server.Serve(ctx)
}

// app is everything serve wires together.
type app struct {
	server  *api.Server
	sender  mail.Sender
	status  *api.TransportStatus
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, debug bool, zl *zap.Logger) (*app, error) {
	log := zl.Sugar()
	a := &app{status: &api.TransportStatus{}}

	if cfg.AdminRecipient() == "" {
		log.Warn("No admin recipient configured (notification.adminEmail / ADMIN_EMAIL / MAIL_USER); admin copies will fail")
	}

	sender, err := mail.NewSender(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("creating mail transport: %w", err)
	}
	a.sender = sender

	renderer, err := mail.NewRenderer(cfg.Branding)
	if err != nil {
		return nil, fmt.Errorf("creating template renderer: %w", err)
	}

	store, closeStore := newStore(ctx, cfg.Redis, log)
	a.closers = append(a.closers, closeStore)

	limits := notify.Limits{
		Contact:    ratelimit.NewLimiter(ratelimit.ContactPolicy().WithWindow(cfg.RateLimit.Contact), store, log),
		Newsletter: ratelimit.NewLimiter(ratelimit.NewsletterPolicy().WithWindow(cfg.RateLimit.Newsletter), store, log),
	}
	dispatcher := notify.NewDispatcher(sender, renderer, cfg.AdminRecipient(), limits, cfg.Mail.SendTimeout, log)

	server, err := api.NewServer(zl, cfg, debug)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.server = server
	a.closers = append(a.closers, server.Close)

	err = server.RegisterAll([]api.APIController{
		api.NewHealthController(cfg, sender.GetHost(), a.status),
		api.NewContactController(dispatcher, cfg.DevelopmentMode, log),
		api.NewNewsletterController(dispatcher, cfg.DevelopmentMode, log),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("registering controllers: %w", err)
	}
	return a, nil
}

// newStore connects to Redis when configured and falls back to process
// memory when it is not configured or not reachable.
func newStore(ctx context.Context, cfg config.Redis, log *zap.SugaredLogger) (ratelimit.Store, func()) {
	if cfg.URL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.URL, redisConnectTimeout)
		if err == nil {
			log.Infow("Rate limit counters shared through Redis", "keyPrefix", cfg.KeyPrefix)
			return ratelimit.NewRedisStore(client, cfg.KeyPrefix), func() { _ = client.Close() }
		}
		log.Warnw("Redis unavailable, rate limit counters stay in memory", "error", err)
	}
	mem := ratelimit.NewMemoryStore(time.Minute)
	return mem, mem.Stop
}

// verifyTransport checks the mail transport once and records the outcome.
// Failures are logged; the server keeps accepting submissions.
func verifyTransport(ctx context.Context, sender mail.Sender, status *api.TransportStatus, log *zap.SugaredLogger) {
	v, ok := sender.(mail.Verifier)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	err := v.Verify(ctx)
	status.Record(err, time.Now())
	if err != nil {
		log.Warnw("Mail transport is not ready", "host", sender.GetHost(), "error", err)
		return
	}
	log.Infow("Mail transport is ready", "host", sender.GetHost())
}

func newVerifyMailCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-mail",
		Short: "Check that the configured mail transport accepts a connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			zl, err := system.NewLogger(opts.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			sender, err := mail.NewSender(cfg, zl.Sugar())
			if err != nil {
				return fmt.Errorf("creating mail transport: %w", err)
			}
			v, ok := sender.(mail.Verifier)
			if !ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mail transport %s has no connection check\n", sender.GetHost())
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
			defer cancel()
			if err := v.Verify(ctx); err != nil {
				return fmt.Errorf("mail transport %s is not ready: %w", sender.GetHost(), err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mail transport %s is ready\n", sender.GetHost())
			return nil
		},
	}
}
