package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/net/http/httpproxy"

	"github.com/sydlexius/hashscan/internal/batch"
	"github.com/sydlexius/hashscan/internal/config"
	"github.com/sydlexius/hashscan/internal/console"
	"github.com/sydlexius/hashscan/internal/event"
	"github.com/sydlexius/hashscan/internal/logging"
	"github.com/sydlexius/hashscan/internal/lookup"
	"github.com/sydlexius/hashscan/internal/notify"
	"github.com/sydlexius/hashscan/internal/queue"
	"github.com/sydlexius/hashscan/internal/report"
)

// app holds the wired components shared by scan and watch.
type app struct {
	cfg        *config.Config
	logManager *logging.Manager
	logger     *slog.Logger
	client     *lookup.Client
	bus        *event.Bus
	renderer   *console.Renderer
	queue      *queue.Queue
	runner     *batch.Runner
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}

	logManager, logger := logging.NewManager(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	lookupOpts := []lookup.Option{
		lookup.WithBaseURL(cfg.Lookup.BaseURL),
		lookup.WithRateLimit(cfg.Lookup.RequestsPerMinute),
		lookup.WithLogger(logger),
	}
	if cfg.Lookup.ProxyURL != "" {
		lookupOpts = append(lookupOpts, lookup.WithProxy(httpproxy.Config{
			HTTPProxy:  cfg.Lookup.ProxyURL,
			HTTPSProxy: cfg.Lookup.ProxyURL,
		}))
	}
	client, err := lookup.New(cfg.Lookup.APIKey, lookupOpts...)
	if err != nil {
		logManager.Close() //nolint:errcheck
		return nil, err
	}

	// An unrooted bound filesystem resolves relative report dirs against the
	// working directory and leaves absolute ones as they are.
	store, err := report.NewWriter(osfs.New("", osfs.WithBoundOS()), cfg.Reports.JSONDir, cfg.Reports.CSVDir)
	if err != nil {
		client.Close()     //nolint:errcheck
		logManager.Close() //nolint:errcheck
		return nil, err
	}

	bus := event.NewBus(logger, 256)
	renderer := console.New(os.Stdout, console.IsTerminal(os.Stdout))
	bus.Subscribe(renderer.Handle, event.BatchStarted, event.ItemFinished, event.FileQueued)
	go bus.Start()

	runnerOpts := []batch.Option{
		batch.WithTimeout(cfg.Lookup.Timeout),
		batch.WithPublisher(bus),
		batch.WithLogger(logger),
	}
	var notifiers notify.Multi
	if cfg.Notify.Enabled {
		mailer, err := notify.NewMailer(notify.SMTPConfig{
			Host:      cfg.Notify.SMTPHost,
			Port:      cfg.Notify.SMTPPort,
			Username:  cfg.Notify.Username,
			Password:  cfg.Notify.Password,
			From:      cfg.Notify.From,
			Recipient: cfg.Notify.Recipient,
			Subject:   cfg.Notify.Subject,
		}, logger)
		if err != nil {
			bus.Stop()
			client.Close()     //nolint:errcheck
			logManager.Close() //nolint:errcheck
			return nil, fmt.Errorf("setting up notifications: %w", err)
		}
		notifiers = append(notifiers, mailer)
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookType, logger))
	}
	if len(notifiers) > 0 {
		runnerOpts = append(runnerOpts, batch.WithNotifier(notifiers))
	}

	logger.Info("hashscan ready",
		slog.String("logging", cfg.Logging.String()),
		slog.String("json_dir", cfg.Reports.JSONDir),
		slog.String("csv_dir", cfg.Reports.CSVDir),
		slog.Bool("email", cfg.Notify.Enabled),
		slog.Bool("webhook", cfg.Notify.WebhookURL != ""),
	)

	return &app{
		cfg:        cfg,
		logManager: logManager,
		logger:     logger,
		client:     client,
		bus:        bus,
		renderer:   renderer,
		queue:      queue.New(),
		runner:     batch.NewRunner(client, store, runnerOpts...),
	}, nil
}

// close flushes pending progress output and releases the HTTP transport
// and log file.
func (a *app) close() {
	a.bus.Stop()
	if err := a.client.Close(); err != nil {
		a.logger.Warn("closing lookup client", slog.String("error", err.Error()))
	}
	a.logManager.Close() //nolint:errcheck
}
