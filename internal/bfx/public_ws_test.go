package bfx

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func feedFrames(t *testing.T, frames ...string) []Event {
	t.Helper()
	ws := NewPublicWS(PublicWSOptions{Symbol: "fUSD"}, zerolog.Nop())
	var events []Event
	for _, frame := range frames {
		if err := ws.handleMessage([]byte(frame), func(ev Event) {
			events = append(events, ev)
		}); err != nil {
			t.Fatalf("处理帧失败: %v", err)
		}
	}
	return events
}

func TestBookSnapshotBuildsFullBook(t *testing.T) {
	events := feedFrames(t, `[93, [[1,2,0.0003,500],[2,2,0.0001,100],[3,2,0.0002,-400]]]`)
	if len(events) != 1 || events[0].Kind != EventBookChanged {
		t.Fatalf("快照应推送一次完整盘口, 实际 %v", events)
	}

	book := events[0].Book
	if len(book.Asks) != 2 || len(book.Bids) != 1 {
		t.Fatalf("分边不符: asks=%d bids=%d", len(book.Asks), len(book.Bids))
	}
	if !book.Asks[0].Rate.Equal(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("asks 应按利率升序, 首位 %s", book.Asks[0].Rate)
	}
}

func TestBookUpdateAndRemove(t *testing.T) {
	events := feedFrames(t,
		`[93, [[1,2,0.0003,500],[2,2,0.0001,100]]]`,
		`[93, [4,2,0.0002,200]]`,
		`[93, [1,2,0,1]]`,
	)
	if len(events) != 3 {
		t.Fatalf("每次盘口变化都应推送完整盘口, 实际 %d 次", len(events))
	}

	final := events[2].Book
	if len(final.Asks) != 2 {
		t.Fatalf("rate 为 0 的帧应删除对应档位, 剩余 %d", len(final.Asks))
	}
	for _, level := range final.Asks {
		if level.ID == 1 {
			t.Fatal("档位 1 应已被删除")
		}
	}
}

func TestBookHeartbeatAndAcksIgnored(t *testing.T) {
	events := feedFrames(t,
		`{"event":"subscribed","channel":"book","chanId":93}`,
		`[93,"hb"]`,
	)
	if len(events) != 0 {
		t.Fatalf("心跳与订阅确认不应产生盘口事件, 实际 %v", events)
	}
}

func TestBookSnapshotSupersedesPrevious(t *testing.T) {
	events := feedFrames(t,
		`[93, [[1,2,0.0003,500]]]`,
		`[93, [[7,2,0.0004,50]]]`,
	)
	final := events[1].Book
	if len(final.Asks) != 1 || final.Asks[0].ID != 7 {
		t.Fatalf("新快照应整体替换旧盘口, 实际 %v", final.Asks)
	}
}
