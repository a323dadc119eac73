// Package dispatch owns the single logical event sequence. Every state
// mutation — push events, config updates, deferred cancellation checks —
// funnels through one ordered queue drained by one goroutine, so handlers
// never race each other. Remote calls are launched from handlers but
// complete asynchronously and re-enter the queue as events.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bfx-lending-bot/internal/bfx"
	"bfx-lending-bot/internal/book"
	"bfx-lending-bot/internal/state"
)

// PolicyEngine is the slice of the auto-offer policy the dispatcher
// drives.
type PolicyEngine interface {
	Trigger(ctx context.Context)
	CancelIfOpen(ctx context.Context, offerID int64)
}

// TradeReconciler handles funding-trade events.
type TradeReconciler interface {
	OnFundingTrade(ctx context.Context, trade *bfx.Trade)
}

// Options tune the dispatcher.
type Options struct {
	BookDepth int
	QueueSize int
}

type envelope struct {
	ev          *bfx.Event
	cancelCheck int64
	config      *state.BotConfig
}

// Dispatcher drains the ordered event queue into the state store and the
// policy engine.
type Dispatcher struct {
	store  *state.Store
	opts   Options
	queue  chan envelope
	logger zerolog.Logger

	policy PolicyEngine
	recon  TradeReconciler

	// after is swappable so tests can fire deferred checks manually.
	after func(d time.Duration, f func())
	now   func() time.Time
}

// New constructs a dispatcher around the store. Attach the policy and
// reconciler before Run.
func New(store *state.Store, opts Options, logger zerolog.Logger) *Dispatcher {
	if opts.BookDepth <= 0 {
		opts.BookDepth = 25
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Dispatcher{
		store:  store,
		opts:   opts,
		queue:  make(chan envelope, opts.QueueSize),
		logger: logger.With().Str("component", "dispatcher").Logger(),
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:    time.Now,
	}
}

// Attach wires the policy engine and reconciler.
func (d *Dispatcher) Attach(policy PolicyEngine, recon TradeReconciler) {
	d.policy = policy
	d.recon = recon
}

// Publish enqueues one push event in arrival order.
func (d *Dispatcher) Publish(ev bfx.Event) {
	d.queue <- envelope{ev: &ev}
}

// UpdateConfig enqueues a config swap; the policy re-evaluates once the
// swap has been applied in sequence.
func (d *Dispatcher) UpdateConfig(cfg state.BotConfig) {
	d.queue <- envelope{config: &cfg}
}

// ScheduleCancelCheck arms the deferred cancel-if-unmatched timer. The
// timer does not capture any decision state: at fire time it re-enters
// the queue and the handler re-reads the live offer map by id.
func (d *Dispatcher) ScheduleCancelCheck(offerID int64, delay time.Duration) {
	d.after(delay, func() {
		d.queue <- envelope{cancelCheck: offerID}
	})
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-d.queue:
			d.handle(ctx, env)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, env envelope) {
	switch {
	case env.config != nil:
		d.store.SetConfig(*env.config)
		d.logger.Info().Msg("bot config updated")
		if d.policy != nil {
			d.policy.Trigger(ctx)
		}

	case env.cancelCheck != 0:
		if d.policy != nil {
			d.policy.CancelIfOpen(ctx, env.cancelCheck)
		}

	case env.ev != nil:
		d.handleEvent(ctx, env.ev)
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev *bfx.Event) {
	switch ev.Kind {
	case bfx.EventConnected:
		d.store.SetConnected(true)

	case bfx.EventDisconnected:
		d.store.SetConnected(false)

	case bfx.EventWalletSnapshot:
		for _, w := range ev.Wallets {
			d.applyWallet(ctx, w)
		}

	case bfx.EventWalletUpdate:
		if ev.Wallet != nil {
			d.applyWallet(ctx, *ev.Wallet)
		}

	case bfx.EventOfferSnapshot:
		d.store.ReplaceOffers(ev.Offers)

	case bfx.EventOfferNew, bfx.EventOfferUpdate:
		if ev.Offer != nil {
			d.store.UpsertOffer(*ev.Offer)
		}

	case bfx.EventOfferClose:
		if ev.Offer != nil {
			d.logger.Info().Int64("offer_id", ev.Offer.ID).Str("status", ev.Offer.Status).Msg("offer closed")
			d.store.RemoveOffer(ev.Offer.ID)
		}

	case bfx.EventCreditSnapshot:
		d.store.ReplaceCredits(ev.Credits)

	case bfx.EventCreditUpdate:
		if ev.Credit != nil {
			d.store.UpsertCredit(*ev.Credit)
		}

	case bfx.EventCreditClose:
		if ev.Credit != nil {
			d.store.RemoveCredit(ev.Credit.ID)
		}

	case bfx.EventFundingTrade:
		if d.recon != nil {
			d.recon.OnFundingTrade(ctx, ev.Trade)
		}

	case bfx.EventBookChanged:
		d.applyBook(ev.Book)

	case bfx.EventLedgerSnapshot:
		d.store.ReplaceLedgers(ev.Ledgers)

	case bfx.EventUserInfo:
		if ev.User != nil {
			d.store.SetUserInfo(*ev.User)
		}
	}
}

// applyWallet routes tracked-wallet balance changes into the policy; this
// is the sole trigger point besides explicit config updates.
func (d *Dispatcher) applyWallet(ctx context.Context, w bfx.Wallet) {
	if !d.store.ApplyWallet(w) {
		return
	}
	if d.policy != nil {
		d.policy.Trigger(ctx)
	}
}

// applyBook stores the truncated book and recomputes the inferred rate
// over the full ask side. A too-shallow book keeps the last-known-good
// rate rather than publishing nothing.
func (d *Dispatcher) applyBook(b *bfx.Book) {
	if b == nil {
		return
	}
	d.store.SetBook(book.Truncate(b, d.opts.BookDepth))

	rate, err := book.InferBestAskRate(b.Asks)
	if err != nil {
		d.logger.Debug().Err(err).Msg("rate inference skipped")
		return
	}
	d.store.SetBestAskRate(rate, d.now())
}
