// Package policy implements the auto-offer decision engine: a pure
// decision procedure over the shared state store, re-run on every
// qualifying trigger, plus the deferred cancel-if-unmatched check.
package policy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/alerting"
	"bfx-lending-bot/internal/bfx"
	"bfx-lending-bot/internal/state"
)

// Remote covers the two mutating exchange operations the policy needs.
type Remote interface {
	SubmitOffer(ctx context.Context, req bfx.SubmitOfferRequest) (*bfx.Offer, error)
	CancelOffer(ctx context.Context, id int64) (*bfx.Offer, error)
}

// Options wire the policy into the dispatch loop. OnSubmitted re-enters
// the acknowledged offer as an event; ScheduleCheck arms the deferred
// cancellation timer.
type Options struct {
	Symbol        string
	OnSubmitted   func(offer bfx.Offer)
	ScheduleCheck func(offerID int64, delay time.Duration)
}

// Policy is the auto-offer decision engine.
type Policy struct {
	store  *state.Store
	remote Remote
	opts   Options
	sink   alerting.Notifier
	logger zerolog.Logger
}

// New constructs the policy engine.
func New(store *state.Store, remote Remote, opts Options, sink alerting.Notifier, logger zerolog.Logger) *Policy {
	if sink == nil {
		sink = alerting.Nop{}
	}
	return &Policy{
		store:  store,
		remote: remote,
		opts:   opts,
		sink:   sink,
		logger: logger.With().Str("component", "policy").Logger(),
	}
}

type decision struct {
	amount decimal.Decimal
	rate   decimal.Decimal
	period int
}

// Trigger re-evaluates the decision procedure against current state and,
// if an offer is warranted, submits it asynchronously so the dispatch
// loop keeps draining events while the call is in flight.
//
// Nothing here prevents two qualifying triggers from each submitting
// before the balance reflects the first reservation; the exchange is the
// arbiter of over-commitment.
func (p *Policy) Trigger(ctx context.Context) {
	d, ok := p.decide()
	if !ok {
		return
	}
	go p.submit(ctx, d)
}

// decide runs the decision procedure: gate on the enable flag, keep the
// configured reserve, respect the min threshold, clamp to [min, max],
// resolve rate and period from config or market inference.
func (p *Policy) decide() (decision, bool) {
	cfg := p.store.Config()
	if !cfg.EnableBot {
		return decision{}, false
	}

	offerable := p.store.AvailableBalance().Sub(cfg.AmountKeep)
	if offerable.LessThan(cfg.AmountMin) {
		return decision{}, false
	}

	amount := offerable
	if amount.LessThan(cfg.AmountMin) {
		amount = cfg.AmountMin
	}
	if amount.GreaterThan(cfg.AmountMax) {
		amount = cfg.AmountMax
	}

	rate := cfg.FixedOfferRate
	if !cfg.EnableFixedOfferRate || !rate.IsPositive() {
		inferred, ok := p.store.BestAskRate()
		if !ok {
			p.logger.Warn().Msg("no inferred rate yet, skipping offer")
			return decision{}, false
		}
		rate = inferred
	}

	period := cfg.FixedOfferPeriod
	if !cfg.EnableFixedOfferPeriod || period <= 0 {
		period = cfg.DefaultPeriodDays
	}
	if period <= 0 {
		period = 2
	}

	return decision{amount: amount, rate: rate, period: period}, true
}

func (p *Policy) submit(ctx context.Context, d decision) {
	attempt := uuid.NewString()
	cfg := p.store.Config()

	logger := p.logger.With().
		Str("attempt", attempt).
		Str("amount", d.amount.String()).
		Str("rate", d.rate.String()).
		Int("period", d.period).
		Logger()

	offer, err := p.remote.SubmitOffer(ctx, bfx.SubmitOfferRequest{
		Symbol: p.opts.Symbol,
		Amount: d.amount,
		Rate:   d.rate,
		Period: d.period,
	})
	if err != nil {
		// No retry: the next qualifying trigger re-evaluates from scratch.
		logger.Error().Err(err).Msg("offer submission failed")
		p.notify(ctx, alerting.Notification{
			Kind:   alerting.KindSubmitFailed,
			Time:   time.Now(),
			Amount: d.amount,
			Rate:   d.rate,
			Period: d.period,
			Detail: err.Error(),
		})
		return
	}

	logger.Info().Int64("offer_id", offer.ID).Msg("auto offer submitted")
	p.notify(ctx, alerting.Notification{
		Kind:    alerting.KindOfferSubmitted,
		Time:    time.Now(),
		OfferID: offer.ID,
		Amount:  d.amount,
		Rate:    d.rate,
		Period:  d.period,
	})

	if p.opts.OnSubmitted != nil {
		p.opts.OnSubmitted(*offer)
	}
	if p.opts.ScheduleCheck != nil {
		delay := time.Duration(cfg.RefreshOfferSeconds) * time.Second
		p.opts.ScheduleCheck(offer.ID, delay)
	}
}

// CancelIfOpen is the deferred check: re-read the authoritative offer map
// by id at fire time. A vanished id means the offer filled or was already
// closed, which is a no-op, not an error.
func (p *Policy) CancelIfOpen(ctx context.Context, offerID int64) {
	if !p.store.HasOffer(offerID) {
		p.logger.Debug().Int64("offer_id", offerID).Msg("deferred check: offer already gone")
		return
	}

	go func() {
		if _, err := p.remote.CancelOffer(ctx, offerID); err != nil {
			p.logger.Error().Err(err).Int64("offer_id", offerID).Msg("offer cancellation failed")
			p.notify(ctx, alerting.Notification{
				Kind:    alerting.KindCancelFailed,
				Time:    time.Now(),
				OfferID: offerID,
				Detail:  err.Error(),
			})
			return
		}
		p.logger.Info().Int64("offer_id", offerID).Msg("unmatched offer cancelled")
	}()
}

func (p *Policy) notify(ctx context.Context, note alerting.Notification) {
	if err := p.sink.Notify(ctx, note); err != nil {
		p.logger.Warn().Err(err).Str("kind", note.Kind).Msg("notification delivery failed")
	}
}
