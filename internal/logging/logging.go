// Package logging builds the process logger and lets long-running commands
// change its level, format or file output without restarting.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level          string `yaml:"level" validate:"oneof=debug info warn error"`
	Format         string `yaml:"format" validate:"oneof=text json"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb" validate:"gte=0"`
	FileMaxFiles   int    `yaml:"file_max_files" validate:"gte=0"`
	FileMaxAgeDays int    `yaml:"file_max_age_days" validate:"gte=0"`
}

// DefaultConfig returns text output at info level with rotation defaults
// for when a file is configured.
func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "text",
		FileMaxSizeMB:  100,
		FileMaxFiles:   3,
		FileMaxAgeDays: 30,
	}
}

func (c Config) String() string {
	s := fmt.Sprintf("level=%s format=%s", c.Level, c.Format)
	if c.FilePath != "" {
		s += fmt.Sprintf(" file=%s max_size=%dMB max_files=%d max_age=%dd",
			c.FilePath, c.FileMaxSizeMB, c.FileMaxFiles, c.FileMaxAgeDays)
	}
	return s
}

func (c Config) sameOutput(o Config) bool {
	return c.Format == o.Format &&
		c.FilePath == o.FilePath &&
		c.FileMaxSizeMB == o.FileMaxSizeMB &&
		c.FileMaxFiles == o.FileMaxFiles &&
		c.FileMaxAgeDays == o.FileMaxAgeDays
}

// SwappableHandler is a slog.Handler whose inner handler can be replaced
// while loggers derived from it are in use.
type SwappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.inner.Store(&h)
	return s
}

// Swap replaces the inner handler.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.inner.Store(&h)
}

func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.inner.Load()).Enabled(ctx, level)
}

func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return (*s.inner.Load()).Handle(ctx, r)
}

func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{root: s, attrs: attrs}
}

func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{root: s, group: name}
}

// derivedHandler replays attrs and groups onto whatever handler the root
// currently holds, so component loggers follow a Swap.
type derivedHandler struct {
	root   *SwappableHandler
	parent *derivedHandler
	attrs  []slog.Attr
	group  string
}

func (d *derivedHandler) resolve() slog.Handler {
	var h slog.Handler
	if d.parent != nil {
		h = d.parent.resolve()
	} else {
		h = *d.root.inner.Load()
	}
	if d.group != "" {
		return h.WithGroup(d.group)
	}
	return h.WithAttrs(d.attrs)
}

func (d *derivedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*d.root.inner.Load()).Enabled(ctx, level)
}

func (d *derivedHandler) Handle(ctx context.Context, r slog.Record) error {
	return d.resolve().Handle(ctx, r)
}

func (d *derivedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{root: d.root, parent: d, attrs: attrs}
}

func (d *derivedHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{root: d.root, parent: d, group: name}
}

// Manager owns the logger lifecycle.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler
	console  io.Writer
	config   Config
	mu       sync.Mutex
	closer   io.Closer // lumberjack writer, if any
}

// NewManager creates a Manager writing to console (and the configured file,
// if any) and returns it along with a ready-to-use logger.
func NewManager(cfg Config, console io.Writer) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(parseLevel(cfg.Level))

	writer, closer := buildWriter(cfg, console)
	m := &Manager{
		levelVar: lvl,
		handler:  NewSwappableHandler(buildHandler(writer, lvl, cfg.Format)),
		console:  console,
		config:   cfg,
		closer:   closer,
	}
	return m, slog.New(m.handler)
}

// Reconfigure applies cfg. Level-only changes take effect through the
// LevelVar; output changes rebuild the handler.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levelVar.Set(parseLevel(cfg.Level))
	if !cfg.sameOutput(m.config) {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := buildWriter(cfg, m.console)
		m.handler.Swap(buildHandler(writer, m.levelVar, cfg.Format))
		m.closer = closer
	}
	m.config = cfg
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Close releases the log file writer.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildWriter tees console output into a rotating file when one is
// configured.
func buildWriter(cfg Config, console io.Writer) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return console, nil
	}
	def := DefaultConfig()
	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    positiveOr(cfg.FileMaxSizeMB, def.FileMaxSizeMB),
		MaxBackups: positiveOr(cfg.FileMaxFiles, def.FileMaxFiles),
		MaxAge:     positiveOr(cfg.FileMaxAgeDays, def.FileMaxAgeDays),
	}
	return io.MultiWriter(console, lj), lj
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
