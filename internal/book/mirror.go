// Package book derives the target lending rate from the mirrored funding
// order book.
package book

import (
	"errors"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
)

// ErrNoLiquidity indicates the ask side is too shallow to run the
// inference heuristic (fewer than two levels).
var ErrNoLiquidity = errors.New("book: insufficient ask depth for rate inference")

// Truncate returns a copy of the book cut to at most depth levels per
// side. The dashboard only ever needs the top of the book.
func Truncate(b *bfx.Book, depth int) *bfx.Book {
	if b == nil {
		return &bfx.Book{}
	}
	out := &bfx.Book{
		Bids: append([]bfx.BookLevel(nil), b.Bids...),
		Asks: append([]bfx.BookLevel(nil), b.Asks...),
	}
	if depth > 0 {
		if len(out.Bids) > depth {
			out.Bids = out.Bids[:depth]
		}
		if len(out.Asks) > depth {
			out.Asks = out.Asks[:depth]
		}
	}
	return out
}

// InferBestAskRate picks the rate to quote from the ask side: find the
// deepest level beyond the top of book (the liquidity wall) and price one
// level inside it, floored at the top level. Ties keep the level closest
// to the top.
func InferBestAskRate(asks []bfx.BookLevel) (decimal.Decimal, error) {
	if len(asks) < 2 {
		return decimal.Decimal{}, ErrNoLiquidity
	}

	maxAmount := decimal.Zero
	maxIndex := -1
	for i := 1; i < len(asks); i++ {
		if asks[i].Amount.GreaterThan(maxAmount) {
			maxAmount = asks[i].Amount
			maxIndex = i
		}
	}

	target := maxIndex - 1
	if target < 0 {
		target = 0
	}
	return asks[target].Rate, nil
}
