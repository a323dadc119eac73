package state

import (
	"strconv"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
)

// Snapshot is the read-only state tree served to the dashboard. It is a
// deep copy: mutating it never touches the live store.
type Snapshot struct {
	Connected   bool        `json:"connected"`
	OrderBook   bfx.Book    `json:"orderBook"`
	Infer       InferState  `json:"infer"`
	User        UserState   `json:"user"`
	RateHistory []RatePoint `json:"rateHistory"`
}

// InferState carries the derived rate; nil until the first inference.
type InferState struct {
	BestAskRate *decimal.Decimal `json:"bestAskRate"`
}

// UserState groups account-scoped state.
type UserState struct {
	Info             bfx.UserInfo          `json:"info"`
	Config           BotConfig             `json:"config"`
	Wallet           WalletTree            `json:"wallet"`
	FundingOfferMap  map[string]bfx.Offer  `json:"fundingOfferMap"`
	FundingCreditMap map[string]bfx.Credit `json:"fundingCreditMap"`
	Ledgers          []bfx.LedgerEntry     `json:"ledgers"`
}

// WalletTree mirrors the wallet-type/currency nesting the dashboard
// expects; only the tracked funding wallet is populated.
type WalletTree struct {
	Funding map[string]WalletBalance `json:"funding"`
}

// WalletBalance carries the two balance fields the bot tracks.
type WalletBalance struct {
	Balance          decimal.Decimal `json:"balance"`
	BalanceAvailable decimal.Decimal `json:"balanceAvailable"`
}

// Snapshot deep-copies the state tree.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Connected: s.connected,
		OrderBook: bfx.Book{
			Bids: append([]bfx.BookLevel(nil), s.book.Bids...),
			Asks: append([]bfx.BookLevel(nil), s.book.Asks...),
		},
		User: UserState{
			Info:             s.user,
			Config:           s.cfg,
			FundingOfferMap:  make(map[string]bfx.Offer, len(s.offers)),
			FundingCreditMap: make(map[string]bfx.Credit, len(s.credits)),
			Ledgers:          append([]bfx.LedgerEntry(nil), s.ledgers...),
			Wallet: WalletTree{
				Funding: map[string]WalletBalance{
					s.opts.Currency: {Balance: s.balance, BalanceAvailable: s.available},
				},
			},
		},
		RateHistory: append([]RatePoint(nil), s.history...),
	}

	if s.hasRate {
		rate := s.bestAskRate
		snap.Infer.BestAskRate = &rate
	}

	for id, offer := range s.offers {
		snap.User.FundingOfferMap[formatID(id)] = offer
	}
	for id, credit := range s.credits {
		snap.User.FundingCreditMap[formatID(id)] = credit
	}

	return snap
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
