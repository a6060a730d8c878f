package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sydlexius/hashscan/internal/config"
	"github.com/sydlexius/hashscan/internal/logging"
	"github.com/sydlexius/hashscan/internal/watcher"
)

func runWatch(args []string) error {
	if len(args) != 1 {
		return errors.New("watch: exactly one directory is required\n\n" + usage)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.logManager.ReloadOnSignal(ctx, a.logger, func() (logging.Config, error) {
		cfg, err := config.Load(configPath())
		if err != nil {
			return logging.Config{}, err
		}
		return cfg.Logging, nil
	})

	svc := watcher.NewService(args[0], a.queue, a.runner, a.logger,
		watcher.WithDebounce(a.cfg.Watch.Debounce),
		watcher.WithRetryInterval(a.cfg.Watch.RetryInterval),
		watcher.WithPublisher(a.bus),
	)
	return svc.Start(ctx)
}
