package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/bfx"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	credits []bfx.Credit
	err     error
	called  chan struct{}
}

func newFakeFetcher(credits []bfx.Credit, err error) *fakeFetcher {
	return &fakeFetcher{credits: credits, err: err, called: make(chan struct{}, 8)}
}

func (f *fakeFetcher) ActiveCredits(context.Context, string) ([]bfx.Credit, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.called <- struct{}{}
	return f.credits, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFundingTradeTriggersExactlyOneFetch(t *testing.T) {
	credits := []bfx.Credit{{ID: 1, Symbol: "fUSD", Amount: decimal.NewFromInt(100)}}
	fetcher := newFakeFetcher(credits, nil)

	published := make(chan bfx.Event, 1)
	r := New(fetcher, "fUSD", func(ev bfx.Event) { published <- ev }, nil, zerolog.Nop())

	// Payload 内容无关紧要, 只有事件本身触发重同步。
	r.OnFundingTrade(context.Background(), &bfx.Trade{ID: 555, OfferID: 7})

	select {
	case ev := <-published:
		if ev.Kind != bfx.EventCreditSnapshot {
			t.Fatalf("应发布 credit snapshot, 实际 %s", ev.Kind)
		}
		if len(ev.Credits) != 1 || ev.Credits[0].ID != 1 {
			t.Fatalf("snapshot 应携带抓取结果, 实际 %+v", ev.Credits)
		}
	case <-time.After(time.Second):
		t.Fatal("应发布重同步结果")
	}

	if fetcher.callCount() != 1 {
		t.Fatalf("一次 trade 应只抓取一次, 实际 %d", fetcher.callCount())
	}
}

func TestFundingTradeNilPayloadStillResyncs(t *testing.T) {
	fetcher := newFakeFetcher(nil, nil)
	published := make(chan bfx.Event, 1)
	r := New(fetcher, "fUSD", func(ev bfx.Event) { published <- ev }, nil, zerolog.Nop())

	r.OnFundingTrade(context.Background(), nil)

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("payload 缺失也应重同步")
	}
}

func TestFetchErrorKeepsLastKnownState(t *testing.T) {
	fetcher := newFakeFetcher(nil, errors.New("rest down"))
	published := make(chan bfx.Event, 1)
	r := New(fetcher, "fUSD", func(ev bfx.Event) { published <- ev }, nil, zerolog.Nop())

	r.OnFundingTrade(context.Background(), &bfx.Trade{ID: 9})

	<-fetcher.called
	select {
	case ev := <-published:
		t.Fatalf("抓取失败不应发布快照, 实际 %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
