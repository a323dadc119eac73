// Package state holds the canonical in-memory account and market
// snapshot. The dispatch loop is the only writer; the API layer and the
// policy engine read through accessors or immutable snapshots. Nothing
// here is persisted: the whole tree is rebuilt from the exchange on
// (re)connect.
package state

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
)

// BotConfig is the operator-mutable policy configuration. The policy
// engine reads it fresh on every evaluation.
type BotConfig struct {
	EnableBot              bool            `json:"enableBot"`
	AmountKeep             decimal.Decimal `json:"amountKeep"`
	AmountMin              decimal.Decimal `json:"amountMin"`
	AmountMax              decimal.Decimal `json:"amountMax"`
	EnableFixedOfferRate   bool            `json:"enableFixedOfferRate"`
	FixedOfferRate         decimal.Decimal `json:"fixedOfferRate"`
	EnableFixedOfferPeriod bool            `json:"enableFixedOfferPeriod"`
	FixedOfferPeriod       int             `json:"fixedOfferPeriod"`
	RefreshOfferSeconds    int             `json:"refreshOfferWhenNotMatchedInSecond"`
	DefaultPeriodDays      int             `json:"defaultPeriodDays"`
}

// RatePoint is one observation of the inferred best ask rate.
type RatePoint struct {
	Time time.Time       `json:"time"`
	Rate decimal.Decimal `json:"rate"`
}

// Options fix which wallet the store tracks and how much derived history
// it retains.
type Options struct {
	WalletType string
	Currency   string
	HistoryCap int
}

// Store is the single shared account/book state tree.
type Store struct {
	mu   sync.RWMutex
	opts Options

	connected bool
	user      bfx.UserInfo
	balance   decimal.Decimal
	available decimal.Decimal
	offers    map[int64]bfx.Offer
	credits   map[int64]bfx.Credit
	ledgers   []bfx.LedgerEntry
	book      bfx.Book
	cfg       BotConfig

	bestAskRate decimal.Decimal
	hasRate     bool
	history     []RatePoint
}

// New constructs an empty store tracking one funding wallet.
func New(opts Options, cfg BotConfig) *Store {
	if opts.WalletType == "" {
		opts.WalletType = "funding"
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 2880
	}
	return &Store{
		opts:    opts,
		offers:  make(map[int64]bfx.Offer),
		credits: make(map[int64]bfx.Credit),
		cfg:     cfg,
	}
}

// SetConnected flags stream connectivity.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// SetUserInfo records the authenticated identity.
func (s *Store) SetUserInfo(info bfx.UserInfo) {
	s.mu.Lock()
	s.user = info
	s.mu.Unlock()
}

// ApplyWallet updates balances if the wallet is the tracked one and
// reports whether it was. Updates for other wallets are ignored.
func (s *Store) ApplyWallet(w bfx.Wallet) bool {
	if w.Type != s.opts.WalletType || w.Currency != s.opts.Currency {
		return false
	}
	s.mu.Lock()
	s.balance = w.Balance
	s.available = w.BalanceAvailable
	s.mu.Unlock()
	return true
}

// AvailableBalance reads the tracked wallet's available balance.
func (s *Store) AvailableBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// ReplaceOffers swaps in the full offer set from a snapshot event. Stale
// ids absent from the snapshot are dropped, never merged.
func (s *Store) ReplaceOffers(offers []bfx.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = make(map[int64]bfx.Offer, len(offers))
	for _, o := range offers {
		s.offers[o.ID] = o
	}
}

// UpsertOffer inserts or overwrites one offer by id. Applying the same
// update twice is a no-op by construction.
func (s *Store) UpsertOffer(o bfx.Offer) {
	s.mu.Lock()
	s.offers[o.ID] = o
	s.mu.Unlock()
}

// RemoveOffer deletes a closed offer. Removing an absent id is fine.
func (s *Store) RemoveOffer(id int64) {
	s.mu.Lock()
	delete(s.offers, id)
	s.mu.Unlock()
}

// HasOffer reports whether an offer id is still open. The deferred
// cancellation check consults this at fire time.
func (s *Store) HasOffer(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.offers[id]
	return ok
}

// ReplaceCredits swaps in the full credit set (snapshot or resync).
func (s *Store) ReplaceCredits(credits []bfx.Credit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = make(map[int64]bfx.Credit, len(credits))
	for _, c := range credits {
		s.credits[c.ID] = c
	}
}

// UpsertCredit inserts or overwrites one credit by id.
func (s *Store) UpsertCredit(c bfx.Credit) {
	s.mu.Lock()
	s.credits[c.ID] = c
	s.mu.Unlock()
}

// RemoveCredit deletes a closed credit.
func (s *Store) RemoveCredit(id int64) {
	s.mu.Lock()
	delete(s.credits, id)
	s.mu.Unlock()
}

// ReplaceLedgers swaps the ledger window wholesale; refreshes never merge.
func (s *Store) ReplaceLedgers(entries []bfx.LedgerEntry) {
	s.mu.Lock()
	s.ledgers = append([]bfx.LedgerEntry(nil), entries...)
	s.mu.Unlock()
}

// SetBook stores the truncated book for the dashboard.
func (s *Store) SetBook(b *bfx.Book) {
	if b == nil {
		return
	}
	s.mu.Lock()
	s.book = *b
	s.mu.Unlock()
}

// SetBestAskRate publishes a freshly inferred rate and records it in the
// rolling history when it moved.
func (s *Store) SetBestAskRate(rate decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.hasRate || !s.bestAskRate.Equal(rate)
	s.bestAskRate = rate
	s.hasRate = true
	if changed {
		s.history = append(s.history, RatePoint{Time: at, Rate: rate})
		if len(s.history) > s.opts.HistoryCap {
			s.history = s.history[len(s.history)-s.opts.HistoryCap:]
		}
	}
}

// BestAskRate reads the last-known-good inferred rate.
func (s *Store) BestAskRate() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bestAskRate, s.hasRate
}

// RateHistory copies the inferred-rate history.
func (s *Store) RateHistory() []RatePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RatePoint(nil), s.history...)
}

// Config reads the current policy configuration.
func (s *Store) Config() BotConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig swaps the policy configuration atomically.
func (s *Store) SetConfig(cfg BotConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Currency returns the tracked currency code.
func (s *Store) Currency() string {
	return s.opts.Currency
}
