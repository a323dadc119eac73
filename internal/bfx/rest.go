package bfx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultRESTURL       = "https://api.bitfinex.com"
	defaultPublicRESTURL = "https://api-pub.bitfinex.com"

	// OfferTypeLimit is the only offer type the bot submits.
	OfferTypeLimit = "LIMIT"
)

// RESTOptions parameterise the REST client.
type RESTOptions struct {
	BaseURL       string
	PublicBaseURL string
	APIKey        string
	APISecret     string
	Timeout       time.Duration
	UserAgent     string
}

// RESTClient talks to the Bitfinex v2 REST API. It covers exactly the
// five authenticated operations the bot needs plus the public book read.
type RESTClient struct {
	opts    RESTOptions
	client  *http.Client
	logger  zerolog.Logger
	baseURL string
	pubURL  string
	nonce   atomic.Int64
}

// NewRESTClient constructs a REST client.
func NewRESTClient(opts RESTOptions, logger zerolog.Logger) *RESTClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultRESTURL
	}
	pubURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if pubURL == "" {
		pubURL = defaultPublicRESTURL
	}

	c := &RESTClient{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "bfx_rest").Logger(),
		baseURL: baseURL,
		pubURL:  pubURL,
	}
	c.nonce.Store(time.Now().UnixMicro())
	return c
}

// SubmitOfferRequest carries the terms of a new limit funding offer.
type SubmitOfferRequest struct {
	Symbol string
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Period int
}

// SubmitOffer places a limit funding offer and returns the acknowledged
// offer, including its exchange-assigned id.
func (c *RESTClient) SubmitOffer(ctx context.Context, req SubmitOfferRequest) (*Offer, error) {
	body := map[string]any{
		"type":   OfferTypeLimit,
		"symbol": req.Symbol,
		"amount": req.Amount.String(),
		"rate":   req.Rate.String(),
		"period": req.Period,
	}
	payload, err := c.authRequest(ctx, "v2/auth/w/funding/offer/submit", body)
	if err != nil {
		return nil, err
	}
	return parseOfferNotification(payload)
}

// CancelOffer cancels an open funding offer by id.
func (c *RESTClient) CancelOffer(ctx context.Context, id int64) (*Offer, error) {
	payload, err := c.authRequest(ctx, "v2/auth/w/funding/offer/cancel", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return parseOfferNotification(payload)
}

// ActiveCredits fetches all active funding credits for the symbol.
func (c *RESTClient) ActiveCredits(ctx context.Context, symbol string) ([]Credit, error) {
	payload, err := c.authRequest(ctx, "v2/auth/r/funding/credits/"+symbol, map[string]any{})
	if err != nil {
		return nil, err
	}
	raw, err := decodeArray(payload)
	if err != nil {
		return nil, fmt.Errorf("decode credits: %w", err)
	}
	credits := make([]Credit, 0, len(raw))
	for _, row := range raw {
		arr, ok := row.([]any)
		if !ok {
			return nil, fmt.Errorf("credit row: expected array, got %T", row)
		}
		credit, err := ParseCredit(arr)
		if err != nil {
			return nil, err
		}
		credits = append(credits, *credit)
	}
	return credits, nil
}

// Ledgers fetches ledger history for the currency restricted to one
// category within [start, end], newest first, capped at limit.
func (c *RESTClient) Ledgers(ctx context.Context, currency string, category int, start, end int64, limit int) ([]LedgerEntry, error) {
	body := map[string]any{
		"category": category,
		"start":    start,
		"end":      end,
		"limit":    limit,
	}
	payload, err := c.authRequest(ctx, "v2/auth/r/ledgers/"+currency+"/hist", body)
	if err != nil {
		return nil, err
	}
	raw, err := decodeArray(payload)
	if err != nil {
		return nil, fmt.Errorf("decode ledgers: %w", err)
	}
	entries := make([]LedgerEntry, 0, len(raw))
	for _, row := range raw {
		arr, ok := row.([]any)
		if !ok {
			return nil, fmt.Errorf("ledger row: expected array, got %T", row)
		}
		entry, err := ParseLedgerEntry(arr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// FetchUserInfo fetches identity fields for the authenticated account.
func (c *RESTClient) FetchUserInfo(ctx context.Context) (*UserInfo, error) {
	payload, err := c.authRequest(ctx, "v2/auth/r/info/user", map[string]any{})
	if err != nil {
		return nil, err
	}
	raw, err := decodeArray(payload)
	if err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return ParseUserInfo(raw)
}

// PublicBook fetches the raw public funding book once over REST. Used by
// the one-shot infer command; the live path uses the websocket feed.
func (c *RESTClient) PublicBook(ctx context.Context, symbol string, length int) (*Book, error) {
	url := fmt.Sprintf("%s/v2/book/%s/R0?len=%d", c.pubURL, symbol, length)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}

	raw, err := decodeArray(payload)
	if err != nil {
		return nil, fmt.Errorf("decode public book: %w", err)
	}
	rows, err := decodeNestedArrays(raw)
	if err != nil {
		return nil, fmt.Errorf("decode public book rows: %w", err)
	}

	book := &Book{}
	for _, row := range rows {
		level, err := ParseBookLevel(row)
		if err != nil {
			return nil, err
		}
		if level.Amount.Sign() < 0 {
			book.Bids = append(book.Bids, *level)
		} else {
			book.Asks = append(book.Asks, *level)
		}
	}
	SortBook(book)
	return book, nil
}

func (c *RESTClient) authRequest(ctx context.Context, path string, body any) ([]byte, error) {
	if c.opts.APIKey == "" || c.opts.APISecret == "" {
		return nil, errors.New("api key and secret required")
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	nonce := fmt.Sprintf("%d", c.nonce.Add(1))
	sigPayload := "/api/" + path + nonce + string(raw)
	mac := hmac.New(sha512.New384, []byte(c.opts.APISecret))
	mac.Write([]byte(sigPayload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("bfx-nonce", nonce)
	req.Header.Set("bfx-apikey", c.opts.APIKey)
	req.Header.Set("bfx-signature", signature)
	c.setUserAgent(req)

	return c.do(req)
}

func (c *RESTClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, payload)
	}
	return payload, nil
}

func (c *RESTClient) setUserAgent(req *http.Request) {
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "lendingbot/1.0")
	}
}

// parseOfferNotification unwraps the notification envelope
// [MTS, TYPE, MESSAGE_ID, null, [offer fields], CODE, STATUS, TEXT]
// returned by offer submit/cancel.
func parseOfferNotification(payload []byte) (*Offer, error) {
	raw, err := decodeArray(payload)
	if err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("notification too short: %d fields", len(raw))
	}

	status, _ := fieldString(raw, 6)
	if !strings.EqualFold(status, "SUCCESS") {
		text := fieldStringOrEmpty(raw, 7)
		return nil, fmt.Errorf("exchange rejected request: %s (%s)", status, text)
	}

	offerRaw, ok := raw[4].([]any)
	if !ok {
		return nil, fmt.Errorf("notification payload: expected array, got %T", raw[4])
	}
	return ParseOffer(offerRaw)
}

// SortBook orders asks by ascending and bids by descending rate, the
// orientation the inference heuristic expects.
func SortBook(book *Book) {
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Rate.LessThan(book.Asks[j].Rate) })
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Rate.GreaterThan(book.Bids[j].Rate) })
}
