package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
)

func ask(rate string, amount int64) bfx.BookLevel {
	r, _ := decimal.NewFromString(rate)
	return bfx.BookLevel{Rate: r, Amount: decimal.NewFromInt(amount)}
}

func TestInferBestAskRatePricesInsideTheWall(t *testing.T) {
	// Deepest level beyond top of book is index 2 (amount 500); the
	// inferred rate is one level closer to the top, index 1.
	asks := []bfx.BookLevel{
		ask("0.0001", 100),
		ask("0.0002", 50),
		ask("0.0003", 500),
		ask("0.0004", 10),
	}

	rate, err := InferBestAskRate(asks)
	if err != nil {
		t.Fatalf("InferBestAskRate: %v", err)
	}
	if !rate.Equal(asks[1].Rate) {
		t.Fatalf("期望 rate %s, 实际 %s", asks[1].Rate, rate)
	}
}

func TestInferBestAskRateWallAtIndexOne(t *testing.T) {
	asks := []bfx.BookLevel{
		ask("0.0001", 5),
		ask("0.0002", 900),
		ask("0.0003", 10),
	}

	rate, err := InferBestAskRate(asks)
	if err != nil {
		t.Fatalf("InferBestAskRate: %v", err)
	}
	// Target index floors at the top level.
	if !rate.Equal(asks[0].Rate) {
		t.Fatalf("期望 rate %s, 实际 %s", asks[0].Rate, rate)
	}
}

func TestInferBestAskRateTieKeepsFirst(t *testing.T) {
	asks := []bfx.BookLevel{
		ask("0.0001", 5),
		ask("0.0002", 10),
		ask("0.0003", 300),
		ask("0.0004", 300),
	}

	rate, err := InferBestAskRate(asks)
	if err != nil {
		t.Fatalf("InferBestAskRate: %v", err)
	}
	if !rate.Equal(asks[1].Rate) {
		t.Fatalf("并列时应保留首个最大层, 期望 %s, 实际 %s", asks[1].Rate, rate)
	}
}

func TestInferBestAskRateNoLiquidity(t *testing.T) {
	if _, err := InferBestAskRate(nil); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("空盘口应返回 ErrNoLiquidity, 实际 %v", err)
	}
	if _, err := InferBestAskRate([]bfx.BookLevel{ask("0.0001", 1)}); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("单层盘口应返回 ErrNoLiquidity, 实际 %v", err)
	}
}

func TestTruncate(t *testing.T) {
	full := &bfx.Book{
		Bids: []bfx.BookLevel{ask("0.0005", -1), ask("0.0004", -2), ask("0.0003", -3)},
		Asks: []bfx.BookLevel{ask("0.0001", 1), ask("0.0002", 2), ask("0.0003", 3)},
	}

	cut := Truncate(full, 2)
	if len(cut.Bids) != 2 || len(cut.Asks) != 2 {
		t.Fatalf("截断后应各保留 2 层, 实际 bids=%d asks=%d", len(cut.Bids), len(cut.Asks))
	}

	// The truncated copy must not alias the source book.
	cut.Asks[0].Amount = decimal.NewFromInt(999)
	if full.Asks[0].Amount.Equal(decimal.NewFromInt(999)) {
		t.Fatal("Truncate 应返回副本")
	}
}
