package bfx

import (
	"github.com/shopspring/decimal"
)

// Wallet is a single exchange wallet row. Only funding wallets in the
// tracked currency matter to the bot; everything else passes through.
type Wallet struct {
	Type             string          `json:"type"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	BalanceAvailable decimal.Decimal `json:"balanceAvailable"`
}

// Offer is an open funding offer as reported by the exchange.
type Offer struct {
	ID         int64           `json:"id"`
	Symbol     string          `json:"symbol"`
	MTSCreated int64           `json:"mtsCreate"`
	MTSUpdated int64           `json:"mtsUpdate"`
	Amount     decimal.Decimal `json:"amount"`
	AmountOrig decimal.Decimal `json:"amountOrig"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Rate       decimal.Decimal `json:"rate"`
	Period     int             `json:"period"`
}

// Credit is an active funding credit (currency already lent out).
type Credit struct {
	ID           int64           `json:"id"`
	Symbol       string          `json:"symbol"`
	PositionPair string          `json:"positionPair"`
	Side         int             `json:"side"`
	MTSCreated   int64           `json:"mtsCreate"`
	MTSUpdated   int64           `json:"mtsUpdate"`
	MTSOpening   int64           `json:"mtsOpening"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Rate         decimal.Decimal `json:"rate"`
	Period       int             `json:"period"`
}

// Trade is a funding trade execution notice. The reconciler only cares
// that one happened; the payload is informational.
type Trade struct {
	ID         int64           `json:"id"`
	Currency   string          `json:"currency"`
	MTSCreated int64           `json:"mtsCreate"`
	OfferID    int64           `json:"offerId"`
	Amount     decimal.Decimal `json:"amount"`
	Rate       decimal.Decimal `json:"rate"`
	Period     int             `json:"period"`
	Maker      int             `json:"maker"`
}

// LedgerEntry is one historical balance movement.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Currency    string          `json:"currency"`
	MTS         int64           `json:"mts"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
}

// UserInfo identifies the authenticated account.
type UserInfo struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// BookLevel is one raw (R0) funding book entry. Amount sign encodes the
// side: positive amounts are asks, negative amounts are bids.
type BookLevel struct {
	ID     int64           `json:"id"`
	Period int             `json:"period"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Book is a full two-sided funding book, asks ordered by ascending rate
// and bids by descending rate.
type Book struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// EventKind enumerates the push events the dispatcher understands.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventWalletSnapshot
	EventWalletUpdate
	EventOfferSnapshot
	EventOfferNew
	EventOfferUpdate
	EventOfferClose
	EventCreditSnapshot
	EventCreditUpdate
	EventCreditClose
	EventFundingTrade
	EventBookChanged
	EventLedgerSnapshot
	EventUserInfo
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventWalletSnapshot:
		return "wallet_snapshot"
	case EventWalletUpdate:
		return "wallet_update"
	case EventOfferSnapshot:
		return "offer_snapshot"
	case EventOfferNew:
		return "offer_new"
	case EventOfferUpdate:
		return "offer_update"
	case EventOfferClose:
		return "offer_close"
	case EventCreditSnapshot:
		return "credit_snapshot"
	case EventCreditUpdate:
		return "credit_update"
	case EventCreditClose:
		return "credit_close"
	case EventFundingTrade:
		return "funding_trade"
	case EventBookChanged:
		return "book_changed"
	case EventLedgerSnapshot:
		return "ledger_snapshot"
	case EventUserInfo:
		return "user_info"
	}
	return "unknown"
}

// Event carries one typed push event into the dispatch loop. Exactly the
// fields relevant for Kind are populated.
type Event struct {
	Kind    EventKind
	Wallets []Wallet
	Wallet  *Wallet
	Offers  []Offer
	Offer   *Offer
	Credits []Credit
	Credit  *Credit
	Trade   *Trade
	Ledgers []LedgerEntry
	Book    *Book
	User    *UserInfo
}
