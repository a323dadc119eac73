// Package service wires the exchange transports, the dispatch loop, the
// policy and reconciliation engines, and the dashboard API into one
// runnable bot.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/alerting"
	"bfx-lending-bot/internal/bfx"
	"bfx-lending-bot/internal/config"
	"bfx-lending-bot/internal/dispatch"
	"bfx-lending-bot/internal/logging"
	"bfx-lending-bot/internal/policy"
	"bfx-lending-bot/internal/reconcile"
	"bfx-lending-bot/internal/scheduler"
	"bfx-lending-bot/internal/server"
	"bfx-lending-bot/internal/state"
)

// rateHistoryCap bounds the in-memory inferred-rate history; at one
// sample per book change this covers roughly a day of active trading.
const rateHistoryCap = 2880

// Service owns every long-lived component of the bot.
type Service struct {
	cfg        *config.Config
	store      *state.Store
	rest       *bfx.RESTClient
	dispatcher *dispatch.Dispatcher
	publicWS   *bfx.PublicWS
	authWS     *bfx.AuthWS
	ledgerLoop *scheduler.Scheduler
	httpServer *http.Server
	logger     zerolog.Logger
}

// New assembles the bot from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Service {
	store := state.New(state.Options{
		WalletType: "funding",
		Currency:   cfg.Bitfinex.Currency(),
		HistoryCap: rateHistoryCap,
	}, seedBotConfig(cfg.Bot))

	rest := bfx.NewRESTClient(bfx.RESTOptions{
		BaseURL:       cfg.Bitfinex.RESTURL,
		PublicBaseURL: cfg.Bitfinex.PublicRESTURL,
		APIKey:        cfg.Bitfinex.APIKey,
		APISecret:     cfg.Bitfinex.APISecret,
		Timeout:       cfg.Bitfinex.RequestTimeout,
		UserAgent:     cfg.Bitfinex.UserAgent,
	}, logger)

	notifier := buildNotifier(cfg, logger)

	disp := dispatch.New(store, dispatch.Options{
		BookDepth: cfg.Bitfinex.BookDepth,
	}, logger)

	pol := policy.New(store, rest, policy.Options{
		Symbol: cfg.Bitfinex.Symbol,
		OnSubmitted: func(offer bfx.Offer) {
			disp.Publish(bfx.Event{Kind: bfx.EventOfferNew, Offer: &offer})
		},
		ScheduleCheck: disp.ScheduleCancelCheck,
	}, notifier, logger)

	recon := reconcile.New(rest, cfg.Bitfinex.Symbol, disp.Publish, notifier, logger)
	disp.Attach(pol, recon)

	publicWS := bfx.NewPublicWS(bfx.PublicWSOptions{
		URL:     cfg.Bitfinex.PublicWSURL,
		Symbol:  cfg.Bitfinex.Symbol,
		BookLen: cfg.Bitfinex.BookLength,
	}, logger)

	authWS := bfx.NewAuthWS(bfx.AuthWSOptions{
		URL:       cfg.Bitfinex.AuthWSURL,
		APIKey:    cfg.Bitfinex.APIKey,
		APISecret: cfg.Bitfinex.APISecret,
	}, logger)

	ledgerLoop := scheduler.New(scheduler.Options{
		Interval:    cfg.Ledger.RefreshInterval,
		Immediately: true,
	}, logger)

	handler := server.NewHandler(store, disp, rest, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(handler),
	}

	return &Service{
		cfg:        cfg,
		store:      store,
		rest:       rest,
		dispatcher: disp,
		publicWS:   publicWS,
		authWS:     authWS,
		ledgerLoop: ledgerLoop,
		httpServer: httpServer,
		logger:     logging.Component(logger, "service"),
	}
}

// Store exposes the shared state tree, mainly for the export command.
func (s *Service) Store() *state.Store {
	return s.store
}

// Run starts every component and blocks until ctx is cancelled or one
// of them fails fatally. The sockets reconnect internally, so the only
// fatal errors are startup ones.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 5)

	go func() {
		errs <- s.dispatcher.Run(ctx)
	}()
	go func() {
		errs <- s.publicWS.Run(ctx, s.dispatcher.Publish)
	}()
	go func() {
		errs <- s.authWS.Run(ctx, s.dispatcher.Publish)
	}()
	go func() {
		errs <- s.ledgerLoop.Run(ctx, s.refreshLedgers)
	}()
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("dashboard api listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	s.fetchUserInfo(ctx)

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errs:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http server shutdown failed")
	}

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return ctx.Err()
}

// refreshLedgers pulls the recent interest-payment ledger window and
// re-enters it through the dispatch queue.
func (s *Service) refreshLedgers(ctx context.Context, now time.Time) error {
	end := now.UnixMilli()
	start := now.AddDate(0, 0, -s.cfg.Ledger.WindowDays).UnixMilli()

	entries, err := s.rest.Ledgers(ctx, s.cfg.Bitfinex.Currency(), s.cfg.Ledger.Category, start, end, s.cfg.Ledger.Limit)
	if err != nil {
		return err
	}

	s.dispatcher.Publish(bfx.Event{Kind: bfx.EventLedgerSnapshot, Ledgers: entries})
	s.logger.Debug().Int("entries", len(entries)).Msg("ledger history refreshed")
	return nil
}

func (s *Service) fetchUserInfo(ctx context.Context) {
	info, err := s.rest.FetchUserInfo(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("user info fetch failed")
		return
	}
	s.dispatcher.Publish(bfx.Event{Kind: bfx.EventUserInfo, User: info})
}

func seedBotConfig(cfg config.BotConfig) state.BotConfig {
	return state.BotConfig{
		EnableBot:              cfg.EnableBot,
		AmountKeep:             decimal.NewFromFloat(cfg.AmountKeep),
		AmountMin:              decimal.NewFromFloat(cfg.AmountMin),
		AmountMax:              decimal.NewFromFloat(cfg.AmountMax),
		EnableFixedOfferRate:   cfg.EnableFixedOfferRate,
		FixedOfferRate:         decimal.NewFromFloat(cfg.FixedOfferRate),
		EnableFixedOfferPeriod: cfg.EnableFixedOfferPeriod,
		FixedOfferPeriod:       cfg.FixedOfferPeriod,
		RefreshOfferSeconds:    cfg.RefreshOfferSeconds,
		DefaultPeriodDays:      cfg.DefaultPeriodDays,
	}
}

func buildNotifier(cfg *config.Config, logger zerolog.Logger) alerting.Notifier {
	if !cfg.Alerting.Enabled || !cfg.Alerting.Telegram.Enabled {
		return alerting.Nop{}
	}
	return alerting.NewTelegramNotifier(
		cfg.Alerting.Telegram.BotToken,
		cfg.Alerting.Telegram.ChatID,
		cfg.Alerting.Telegram.APIBase,
		cfg.Bitfinex.RequestTimeout,
		logger,
	)
}
