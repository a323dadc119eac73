package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/state"
)

// Patch is a partial runtime configuration update. Values may arrive as
// their native JSON type or as strings (dashboard form inputs submit
// strings); each is coerced to the target field's type. Any value that
// fails coercion rejects the whole patch.
type Patch map[string]json.RawMessage

// Apply coerces the patch onto cfg. cfg is only modified when every
// entry is valid.
func (p Patch) Apply(cfg *state.BotConfig) error {
	next := *cfg
	for key, raw := range p {
		var err error
		switch key {
		case "enableBot":
			next.EnableBot, err = coerceBool(raw)
		case "amountKeep":
			next.AmountKeep, err = coerceDecimal(raw)
		case "amountMin":
			next.AmountMin, err = coerceDecimal(raw)
		case "amountMax":
			next.AmountMax, err = coerceDecimal(raw)
		case "enableFixedOfferRate":
			next.EnableFixedOfferRate, err = coerceBool(raw)
		case "fixedOfferRate":
			next.FixedOfferRate, err = coerceDecimal(raw)
		case "enableFixedOfferPeriod":
			next.EnableFixedOfferPeriod, err = coerceBool(raw)
		case "fixedOfferPeriod":
			next.FixedOfferPeriod, err = coerceInt(raw)
		case "refreshOfferWhenNotMatchedInSecond":
			next.RefreshOfferSeconds, err = coerceInt(raw)
		case "defaultPeriodDays":
			next.DefaultPeriodDays, err = coerceInt(raw)
		default:
			return fmt.Errorf("unknown config field %q", key)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	*cfg = next
	return nil
}

func coerceDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	s := unquote(raw)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number: %s", raw)
	}
	return d, nil
}

func coerceInt(raw json.RawMessage) (int, error) {
	s := unquote(raw)
	n, err := strconv.Atoi(s)
	if err != nil {
		// Accept float-typed JSON numbers that are whole.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("not an integer: %s", raw)
		}
		return int(f), nil
	}
	return n, nil
}

func coerceBool(raw json.RawMessage) (bool, error) {
	switch strings.ToLower(unquote(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %s", raw)
	}
}

func unquote(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
