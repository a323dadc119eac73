// Package reconcile recovers credit state after a trade. The push stream
// does not reliably emit a credit-created event alongside a funding
// trade, so the only consistent recovery is a full resync of active
// credits from the REST API.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bfx-lending-bot/internal/alerting"
	"bfx-lending-bot/internal/bfx"
)

// CreditFetcher fetches the authoritative active-credit set.
type CreditFetcher interface {
	ActiveCredits(ctx context.Context, symbol string) ([]bfx.Credit, error)
}

// Reconciler resyncs the credit map on every funding trade.
type Reconciler struct {
	fetcher CreditFetcher
	symbol  string
	publish func(bfx.Event)
	sink    alerting.Notifier
	logger  zerolog.Logger
}

// New constructs a reconciler. publish re-enters the result into the
// dispatch loop as a credit snapshot so the map replacement happens on
// the single mutation sequence.
func New(fetcher CreditFetcher, symbol string, publish func(bfx.Event), sink alerting.Notifier, logger zerolog.Logger) *Reconciler {
	if sink == nil {
		sink = alerting.Nop{}
	}
	return &Reconciler{
		fetcher: fetcher,
		symbol:  symbol,
		publish: publish,
		sink:    sink,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
}

// OnFundingTrade ignores the trade payload and fetches the full credit
// set. On fetch failure the credit map stays at its last-known state
// until the next trade retries the resync.
func (r *Reconciler) OnFundingTrade(ctx context.Context, trade *bfx.Trade) {
	logger := r.logger.With().Logger()
	if trade != nil {
		logger = r.logger.With().Int64("trade_id", trade.ID).Int64("offer_id", trade.OfferID).Logger()
		note := alerting.Notification{
			Kind:    alerting.KindFundingTrade,
			Time:    time.Now(),
			OfferID: trade.OfferID,
			Amount:  trade.Amount,
			Rate:    trade.Rate,
			Period:  trade.Period,
		}
		if err := r.sink.Notify(ctx, note); err != nil {
			logger.Warn().Err(err).Msg("trade notification delivery failed")
		}
	}

	logger.Info().Msg("funding trade received, resyncing credits")

	go func() {
		credits, err := r.fetcher.ActiveCredits(ctx, r.symbol)
		if err != nil {
			logger.Error().Err(err).Msg("credit resync failed, keeping last-known credits")
			if nerr := r.sink.Notify(ctx, alerting.Notification{
				Kind:   alerting.KindResyncFailed,
				Time:   time.Now(),
				Detail: err.Error(),
			}); nerr != nil {
				logger.Warn().Err(nerr).Msg("resync-failure notification delivery failed")
			}
			return
		}
		r.publish(bfx.Event{Kind: bfx.EventCreditSnapshot, Credits: credits})
	}()
}
