package bfx

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func mustRow(t *testing.T, payload string) []any {
	t.Helper()
	var raw []any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("测试数据不是合法 JSON: %v", err)
	}
	return raw
}

func TestParseWallet(t *testing.T) {
	w, err := ParseWallet(mustRow(t, `["funding","USD",1250.5,0,990.25]`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if w.Type != "funding" || w.Currency != "USD" {
		t.Fatalf("钱包标识不符: %s/%s", w.Type, w.Currency)
	}
	if !w.Balance.Equal(decimal.NewFromFloat(1250.5)) {
		t.Fatalf("balance 不符: %s", w.Balance)
	}
	if !w.BalanceAvailable.Equal(decimal.NewFromFloat(990.25)) {
		t.Fatalf("available 不符: %s", w.BalanceAvailable)
	}
}

func TestParseWalletNullAvailable(t *testing.T) {
	w, err := ParseWallet(mustRow(t, `["funding","USD",1250.5,0,null]`))
	if err != nil {
		t.Fatalf("available 为 null 时不应失败: %v", err)
	}
	if !w.BalanceAvailable.IsZero() {
		t.Fatalf("null available 应按零处理, 实际 %s", w.BalanceAvailable)
	}
}

func TestParseOffer(t *testing.T) {
	row := mustRow(t, `[3001,"fUSD",1700000000000,1700000001000,300,300,"LIMIT",null,null,0,"ACTIVE",null,null,null,0.0002,2]`)
	o, err := ParseOffer(row)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if o.ID != 3001 || o.Symbol != "fUSD" {
		t.Fatalf("标识不符: %d/%s", o.ID, o.Symbol)
	}
	if !o.Rate.Equal(decimal.NewFromFloat(0.0002)) {
		t.Fatalf("rate 应取第 14 位, 实际 %s", o.Rate)
	}
	if o.Period != 2 {
		t.Fatalf("period 应取第 15 位, 实际 %d", o.Period)
	}
	if o.Status != "ACTIVE" || o.Type != "LIMIT" {
		t.Fatalf("状态字段不符: %s/%s", o.Status, o.Type)
	}
}

func TestParseCredit(t *testing.T) {
	row := mustRow(t, `[9001,"fUSD",1,1700000000000,1700000001000,250,0,"ACTIVE",null,null,null,0.00025,30,1700000002000,null,0,0,null,0,null,0,"tBTCUSD"]`)
	c, err := ParseCredit(row)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if c.ID != 9001 {
		t.Fatalf("id 不符: %d", c.ID)
	}
	if !c.Rate.Equal(decimal.NewFromFloat(0.00025)) {
		t.Fatalf("rate 应取第 11 位, 实际 %s", c.Rate)
	}
	if c.Period != 30 {
		t.Fatalf("period 应取第 12 位, 实际 %d", c.Period)
	}
	if c.MTSOpening != 1700000002000 {
		t.Fatalf("mtsOpening 应取第 13 位, 实际 %d", c.MTSOpening)
	}
	if c.PositionPair != "tBTCUSD" {
		t.Fatalf("positionPair 应取第 21 位, 实际 %s", c.PositionPair)
	}
}

func TestParseBookLevel(t *testing.T) {
	level, err := ParseBookLevel(mustRow(t, `[645902785,2,0.00018,500]`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if level.ID != 645902785 || level.Period != 2 {
		t.Fatalf("标识不符: %d/%d", level.ID, level.Period)
	}
	if !level.Rate.Equal(decimal.NewFromFloat(0.00018)) {
		t.Fatalf("rate 不符: %s", level.Rate)
	}
	if !level.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("amount 不符: %s", level.Amount)
	}
}

func TestParseLedgerEntry(t *testing.T) {
	row := mustRow(t, `[7001,"USD",null,1700000000000,null,0.031,1250.53,null,"Margin Funding Payment on wallet funding"]`)
	entry, err := ParseLedgerEntry(row)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if entry.ID != 7001 || entry.MTS != 1700000000000 {
		t.Fatalf("标识不符: %d/%d", entry.ID, entry.MTS)
	}
	if !entry.Amount.Equal(decimal.NewFromFloat(0.031)) {
		t.Fatalf("amount 不符: %s", entry.Amount)
	}
	if entry.Description == "" {
		t.Fatal("description 不应为空")
	}
}

func TestParseOfferMissingRate(t *testing.T) {
	row := mustRow(t, `[3001,"fUSD",0,0,300]`)
	if _, err := ParseOffer(row); err == nil {
		t.Fatal("缺少 rate 字段应报错")
	}
}
