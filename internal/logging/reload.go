package logging

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// ReloadOnSignal reconfigures m from load each time the process receives
// SIGHUP, until ctx is done. A failing load keeps the current settings.
func (m *Manager) ReloadOnSignal(ctx context.Context, logger *slog.Logger, load func() (Config, error)) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	m.reloadLoop(ctx, ch, logger, load)
}

func (m *Manager) reloadLoop(ctx context.Context, ch <-chan os.Signal, logger *slog.Logger, load func() (Config, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			cfg, err := load()
			if err != nil {
				logger.Warn("reloading logging config", slog.String("error", err.Error()))
				continue
			}
			m.Reconfigure(cfg)
			logger.Info("logging reconfigured", slog.String("config", cfg.String()))
		}
	}
}
