package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"bfx-lending-bot/internal/config"
	"bfx-lending-bot/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// Run executes the long-running bot: sockets, dispatch loop, ledger
// refresh, and the dashboard API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Bitfinex.APIKey == "" || a.Config.Bitfinex.APISecret == "" {
		a.Logger.Warn().Msg("bitfinex api credentials not configured; account channel will not authenticate")
	}

	svc := service.New(a.Config, a.Logger)

	a.Logger.Info().Str("symbol", a.Config.Bitfinex.Symbol).Msg("starting lending bot")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("bot terminated with error")
		return err
	}

	a.Logger.Info().Msg("lending bot stopped")
	return nil
}

// ExportOptions hold parameters for exporting the rate history from a
// running instance.
type ExportOptions struct {
	BaseURL   string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// InferOptions configure the one-shot rate inference command.
type InferOptions struct {
	Depth int
}
