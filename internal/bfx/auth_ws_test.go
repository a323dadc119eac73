package bfx

import (
	"testing"

	"github.com/rs/zerolog"
)

func collectFrames(t *testing.T, frames ...string) []Event {
	t.Helper()
	ws := NewAuthWS(AuthWSOptions{}, zerolog.Nop())
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

func TestHandleAuthOK(t *testing.T) {
	events := collectFrames(t, `{"event":"auth","status":"OK","chanId":0,"userId":42}`)
	if len(events) != 1 || events[0].Kind != EventConnected {
		t.Fatalf("认证成功应推送 connected 事件, 实际 %v", events)
	}
}

func TestHandleAuthFailed(t *testing.T) {
	ws := NewAuthWS(AuthWSOptions{}, zerolog.Nop())
	err := ws.handleMessage([]byte(`{"event":"auth","status":"FAILED","code":10100,"msg":"apikey: invalid"}`), func(Event) {
		t.Fatal("认证失败不应推送事件")
	})
	if err == nil {
		t.Fatal("认证失败应报错以触发重连")
	}
}

func TestHandleWalletSnapshot(t *testing.T) {
	events := collectFrames(t, `[0,"ws",[["funding","USD",1000,0,800],["exchange","BTC",1,0,1]]]`)
	if len(events) != 1 || events[0].Kind != EventWalletSnapshot {
		t.Fatalf("应推送钱包快照事件, 实际 %v", events)
	}
	if len(events[0].Wallets) != 2 {
		t.Fatalf("快照应含 2 个钱包, 实际 %d", len(events[0].Wallets))
	}
}

func TestHandleOfferLifecycleFrames(t *testing.T) {
	offerRow := `[3001,"fUSD",0,0,300,300,"LIMIT",null,null,0,"ACTIVE",null,null,null,0.0002,2]`
	events := collectFrames(t,
		`[0,"fon",`+offerRow+`]`,
		`[0,"fou",`+offerRow+`]`,
		`[0,"foc",`+offerRow+`]`,
	)
	if len(events) != 3 {
		t.Fatalf("应推送 3 个事件, 实际 %d", len(events))
	}
	wantKinds := []EventKind{EventOfferNew, EventOfferUpdate, EventOfferClose}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Fatalf("第 %d 个事件类型应为 %s, 实际 %s", i, kind, events[i].Kind)
		}
		if events[i].Offer == nil || events[i].Offer.ID != 3001 {
			t.Fatalf("第 %d 个事件缺少 offer 负载", i)
		}
	}
}

func TestHandleFundingTrade(t *testing.T) {
	events := collectFrames(t, `[0,"ftu",[8801,"fUSD",1700000000000,3001,300,0.0002,2,1]]`)
	if len(events) != 1 || events[0].Kind != EventFundingTrade {
		t.Fatalf("应推送成交事件, 实际 %v", events)
	}
	if events[0].Trade.OfferID != 3001 {
		t.Fatalf("成交应关联订单 3001, 实际 %d", events[0].Trade.OfferID)
	}
}

func TestHeartbeatDropped(t *testing.T) {
	events := collectFrames(t, `[0,"hb"]`, `[0,"bu",[1000,800]]`)
	if len(events) != 0 {
		t.Fatalf("心跳与余额汇总帧应被丢弃, 实际 %v", events)
	}
}
