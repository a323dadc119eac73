package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
	"bfx-lending-bot/internal/book"
)

var aprFactor = decimal.NewFromInt(365 * 100)

// Infer performs a one-shot rate inference from the public REST book,
// without touching authenticated endpoints.
func (a *App) Infer(ctx context.Context, opts InferOptions) error {
	rest := bfx.NewRESTClient(bfx.RESTOptions{
		BaseURL:       a.Config.Bitfinex.RESTURL,
		PublicBaseURL: a.Config.Bitfinex.PublicRESTURL,
		Timeout:       a.Config.Bitfinex.RequestTimeout,
		UserAgent:     a.Config.Bitfinex.UserAgent,
	}, a.Logger)

	fullBook, err := rest.PublicBook(ctx, a.Config.Bitfinex.Symbol, a.Config.Bitfinex.BookLength)
	if err != nil {
		return fmt.Errorf("fetch public book: %w", err)
	}

	rate, err := book.InferBestAskRate(fullBook.Asks)
	if err != nil {
		if errors.Is(err, book.ErrNoLiquidity) {
			a.Logger.Warn().Int("asks", len(fullBook.Asks)).Msg("book too shallow to infer a rate")
			return nil
		}
		return err
	}

	apr := rate.Mul(aprFactor)
	fmt.Printf("symbol:        %s\n", a.Config.Bitfinex.Symbol)
	fmt.Printf("asks observed: %d\n", len(fullBook.Asks))
	fmt.Printf("best ask rate: %s (daily)\n", rate.String())
	fmt.Printf("apr:           %s%%\n", apr.StringFixed(2))

	depth := opts.Depth
	if depth <= 0 {
		depth = 5
	}
	if depth > len(fullBook.Asks) {
		depth = len(fullBook.Asks)
	}
	fmt.Println("top asks:")
	for i := 0; i < depth; i++ {
		level := fullBook.Asks[i]
		fmt.Printf("  %2d. rate=%s period=%dd amount=%s\n", i+1, level.Rate, level.Period, level.Amount)
	}

	return nil
}
