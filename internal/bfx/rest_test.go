package bfx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestClient(serverURL string) *RESTClient {
	return NewRESTClient(RESTOptions{
		BaseURL:       serverURL,
		PublicBaseURL: serverURL,
		APIKey:        "test-key",
		APISecret:     "test-secret",
		Timeout:       5 * time.Second,
	}, zerolog.Nop())
}

func TestSubmitOffer(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/auth/w/funding/offer/submit" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("请求体不是合法 JSON: %v", err)
		}
		w.Write([]byte(`[1700000000000,"fon-req",null,null,[3001,"fUSD",1700000000000,1700000000000,300,300,"LIMIT",null,null,0,"ACTIVE",null,null,null,0.0002,2],null,"SUCCESS","Submitting funding offer"]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	offer, err := client.SubmitOffer(context.Background(), SubmitOfferRequest{
		Symbol: "fUSD",
		Amount: decimal.NewFromInt(300),
		Rate:   decimal.NewFromFloat(0.0002),
		Period: 2,
	})
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	if offer.ID != 3001 {
		t.Fatalf("应返回交易所分配的 id 3001, 实际 %d", offer.ID)
	}
	if gotBody["type"] != "LIMIT" || gotBody["symbol"] != "fUSD" {
		t.Fatalf("请求体不符: %v", gotBody)
	}
	if gotBody["amount"] != "300" || gotBody["rate"] != "0.0002" {
		t.Fatalf("金额与利率应以字符串发送: %v", gotBody)
	}

	if gotHeaders.Get("bfx-apikey") != "test-key" {
		t.Fatalf("缺少 bfx-apikey 头")
	}
	if gotHeaders.Get("bfx-nonce") == "" || gotHeaders.Get("bfx-signature") == "" {
		t.Fatal("缺少签名头")
	}
}

func TestSubmitOfferRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1700000000000,"fon-req",null,null,null,null,"ERROR","Invalid offer: not enough balance"]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SubmitOffer(context.Background(), SubmitOfferRequest{Symbol: "fUSD"})
	if err == nil {
		t.Fatal("状态非 SUCCESS 时应报错")
	}
}

func TestCancelOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/auth/w/funding/offer/cancel" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		if body["id"] != float64(3001) {
			t.Errorf("撤销 id 不符: %v", body["id"])
		}
		w.Write([]byte(`[1700000000000,"foc-req",null,null,[3001,"fUSD",1700000000000,1700000000000,300,300,"LIMIT",null,null,0,"CANCELED",null,null,null,0.0002,2],null,"SUCCESS","Offer cancelled"]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	offer, err := client.CancelOffer(context.Background(), 3001)
	if err != nil {
		t.Fatalf("撤销失败: %v", err)
	}
	if offer.Status != "CANCELED" {
		t.Fatalf("应返回撤销后的状态, 实际 %s", offer.Status)
	}
}

func TestActiveCredits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/auth/r/funding/credits/fUSD" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		w.Write([]byte(`[[9001,"fUSD",1,0,0,250,0,"ACTIVE",null,null,null,0.00025,30,0,null,0,0,null,0,null,0,"tBTCUSD"]]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	credits, err := client.ActiveCredits(context.Background(), "fUSD")
	if err != nil {
		t.Fatalf("拉取失败: %v", err)
	}
	if len(credits) != 1 || credits[0].ID != 9001 {
		t.Fatalf("应返回一条 credit 9001, 实际 %v", credits)
	}
}

func TestPublicBookSplitsSides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/book/fUSD/R0" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		if r.URL.Query().Get("len") != "100" {
			t.Errorf("len 参数不符: %s", r.URL.Query().Get("len"))
		}
		w.Write([]byte(`[[1,2,0.0003,500],[2,2,0.0002,-400],[3,2,0.0001,100]]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	book, err := client.PublicBook(context.Background(), "fUSD", 100)
	if err != nil {
		t.Fatalf("拉取失败: %v", err)
	}
	if len(book.Asks) != 2 || len(book.Bids) != 1 {
		t.Fatalf("应按 amount 符号分边: asks=%d bids=%d", len(book.Asks), len(book.Bids))
	}
	if !book.Asks[0].Rate.Equal(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("asks 应按利率升序, 首位 %s", book.Asks[0].Rate)
	}
}

func TestAuthRequestWithoutCredentials(t *testing.T) {
	client := NewRESTClient(RESTOptions{}, zerolog.Nop())
	if _, err := client.SubmitOffer(context.Background(), SubmitOfferRequest{Symbol: "fUSD"}); err == nil {
		t.Fatal("缺少密钥时应报错")
	}
}

func TestAPIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`["error",10100,"apikey: invalid"]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ActiveCredits(context.Background(), "fUSD")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("应返回 APIError, 实际 %T: %v", err, err)
	}
	if apiErr.Code != 10100 {
		t.Fatalf("错误码应为 10100, 实际 %d", apiErr.Code)
	}
}
