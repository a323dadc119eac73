package bfx

// Bitfinex v2 serialises every entity as a positional JSON array. The
// indices below follow the published v2 layouts; fields the bot does not
// use are skipped, not named.

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func fieldFloat(raw []any, idx int) (decimal.Decimal, error) {
	if idx >= len(raw) || raw[idx] == nil {
		return decimal.Decimal{}, fmt.Errorf("field %d missing", idx)
	}
	f, ok := raw[idx].(float64)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("field %d: expected number, got %T", idx, raw[idx])
	}
	return decimal.NewFromFloat(f), nil
}

func fieldInt(raw []any, idx int) (int64, error) {
	d, err := fieldFloat(raw, idx)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func fieldString(raw []any, idx int) (string, error) {
	if idx >= len(raw) || raw[idx] == nil {
		return "", fmt.Errorf("field %d missing", idx)
	}
	s, ok := raw[idx].(string)
	if !ok {
		return "", fmt.Errorf("field %d: expected string, got %T", idx, raw[idx])
	}
	return s, nil
}

func fieldStringOrEmpty(raw []any, idx int) string {
	s, err := fieldString(raw, idx)
	if err != nil {
		return ""
	}
	return s
}

// ParseWallet decodes [WALLET_TYPE, CURRENCY, BALANCE, UNSETTLED_INTEREST,
// AVAILABLE_BALANCE, ...].
func ParseWallet(raw []any) (*Wallet, error) {
	typ, err := fieldString(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("wallet type: %w", err)
	}
	ccy, err := fieldString(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("wallet currency: %w", err)
	}
	balance, err := fieldFloat(raw, 2)
	if err != nil {
		return nil, fmt.Errorf("wallet balance: %w", err)
	}
	// AVAILABLE_BALANCE arrives null on some frames until the exchange
	// has calculated it; treat null as zero rather than failing.
	available, err := fieldFloat(raw, 4)
	if err != nil {
		available = decimal.Zero
	}
	return &Wallet{Type: typ, Currency: ccy, Balance: balance, BalanceAvailable: available}, nil
}

// ParseOffer decodes [ID, SYMBOL, MTS_CREATED, MTS_UPDATED, AMOUNT,
// AMOUNT_ORIG, TYPE, _, _, FLAGS, STATUS, _, _, _, RATE, PERIOD, ...].
func ParseOffer(raw []any) (*Offer, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("offer id: %w", err)
	}
	symbol, err := fieldString(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("offer symbol: %w", err)
	}
	amount, err := fieldFloat(raw, 4)
	if err != nil {
		return nil, fmt.Errorf("offer amount: %w", err)
	}
	rate, err := fieldFloat(raw, 14)
	if err != nil {
		return nil, fmt.Errorf("offer rate: %w", err)
	}
	period, err := fieldInt(raw, 15)
	if err != nil {
		return nil, fmt.Errorf("offer period: %w", err)
	}

	o := &Offer{
		ID:     id,
		Symbol: symbol,
		Amount: amount,
		Rate:   rate,
		Period: int(period),
		Type:   fieldStringOrEmpty(raw, 6),
		Status: fieldStringOrEmpty(raw, 10),
	}
	o.MTSCreated, _ = fieldInt(raw, 2)
	o.MTSUpdated, _ = fieldInt(raw, 3)
	if orig, err := fieldFloat(raw, 5); err == nil {
		o.AmountOrig = orig
	}
	return o, nil
}

// ParseCredit decodes [ID, SYMBOL, SIDE, MTS_CREATED, MTS_UPDATED, AMOUNT,
// FLAGS, STATUS, _, _, _, RATE, PERIOD, MTS_OPENING, MTS_LAST_PAYOUT,
// NOTIFY, HIDDEN, _, RENEW, RATE_REAL, NO_CLOSE, POSITION_PAIR].
func ParseCredit(raw []any) (*Credit, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("credit id: %w", err)
	}
	symbol, err := fieldString(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("credit symbol: %w", err)
	}
	amount, err := fieldFloat(raw, 5)
	if err != nil {
		return nil, fmt.Errorf("credit amount: %w", err)
	}
	rate, err := fieldFloat(raw, 11)
	if err != nil {
		return nil, fmt.Errorf("credit rate: %w", err)
	}
	period, err := fieldInt(raw, 12)
	if err != nil {
		return nil, fmt.Errorf("credit period: %w", err)
	}

	c := &Credit{
		ID:           id,
		Symbol:       symbol,
		Amount:       amount,
		Rate:         rate,
		Period:       int(period),
		Status:       fieldStringOrEmpty(raw, 7),
		PositionPair: fieldStringOrEmpty(raw, 21),
	}
	if side, err := fieldInt(raw, 2); err == nil {
		c.Side = int(side)
	}
	c.MTSCreated, _ = fieldInt(raw, 3)
	c.MTSUpdated, _ = fieldInt(raw, 4)
	c.MTSOpening, _ = fieldInt(raw, 13)
	return c, nil
}

// ParseTrade decodes [ID, CURRENCY, MTS_CREATED, OFFER_ID, AMOUNT, RATE,
// PERIOD, MAKER].
func ParseTrade(raw []any) (*Trade, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("trade id: %w", err)
	}
	ccy, err := fieldString(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("trade currency: %w", err)
	}
	t := &Trade{ID: id, Currency: ccy}
	t.MTSCreated, _ = fieldInt(raw, 2)
	t.OfferID, _ = fieldInt(raw, 3)
	if amount, err := fieldFloat(raw, 4); err == nil {
		t.Amount = amount
	}
	if rate, err := fieldFloat(raw, 5); err == nil {
		t.Rate = rate
	}
	if period, err := fieldInt(raw, 6); err == nil {
		t.Period = int(period)
	}
	if maker, err := fieldInt(raw, 7); err == nil {
		t.Maker = int(maker)
	}
	return t, nil
}

// ParseLedgerEntry decodes [ID, CURRENCY, _, MTS, _, AMOUNT, BALANCE, _,
// DESCRIPTION].
func ParseLedgerEntry(raw []any) (*LedgerEntry, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("ledger id: %w", err)
	}
	ccy, err := fieldString(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("ledger currency: %w", err)
	}
	mts, err := fieldInt(raw, 3)
	if err != nil {
		return nil, fmt.Errorf("ledger mts: %w", err)
	}
	amount, err := fieldFloat(raw, 5)
	if err != nil {
		return nil, fmt.Errorf("ledger amount: %w", err)
	}
	balance, err := fieldFloat(raw, 6)
	if err != nil {
		return nil, fmt.Errorf("ledger balance: %w", err)
	}
	return &LedgerEntry{
		ID:          id,
		Currency:    ccy,
		MTS:         mts,
		Amount:      amount,
		Balance:     balance,
		Description: fieldStringOrEmpty(raw, 8),
	}, nil
}

// ParseBookLevel decodes a raw (R0) funding book entry
// [OFFER_ID, PERIOD, RATE, AMOUNT].
func ParseBookLevel(raw []any) (*BookLevel, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("book level id: %w", err)
	}
	period, err := fieldInt(raw, 1)
	if err != nil {
		return nil, fmt.Errorf("book level period: %w", err)
	}
	rate, err := fieldFloat(raw, 2)
	if err != nil {
		return nil, fmt.Errorf("book level rate: %w", err)
	}
	amount, err := fieldFloat(raw, 3)
	if err != nil {
		return nil, fmt.Errorf("book level amount: %w", err)
	}
	return &BookLevel{ID: id, Period: int(period), Rate: rate, Amount: amount}, nil
}

// ParseUserInfo decodes the first fields of the auth/r/info/user response.
func ParseUserInfo(raw []any) (*UserInfo, error) {
	id, err := fieldInt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &UserInfo{
		ID:       id,
		Email:    fieldStringOrEmpty(raw, 1),
		Username: fieldStringOrEmpty(raw, 2),
	}, nil
}

func decodeArray(data []byte) ([]any, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeNestedArrays(v any) ([][]any, error) {
	rows, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array of arrays, got %T", v)
	}
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array row, got %T", r)
		}
		out = append(out, row)
	}
	return out, nil
}
