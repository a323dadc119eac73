package bfx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultPublicWSURL = "wss://api-pub.bitfinex.com/ws/2"
	reconnectDelay     = 5 * time.Second
)

// PublicWSOptions parameterise the public market-data socket.
type PublicWSOptions struct {
	URL       string
	Symbol    string
	BookLen   int
	Precision string
}

// PublicWS subscribes to the raw funding book and maintains the full book
// locally, emitting a rebuilt Book event on every change. Book
// maintenance lives here so the core only ever sees whole books.
type PublicWS struct {
	opts   PublicWSOptions
	logger zerolog.Logger

	mu     sync.Mutex
	levels map[int64]BookLevel
}

// NewPublicWS constructs the public socket client.
func NewPublicWS(opts PublicWSOptions, logger zerolog.Logger) *PublicWS {
	if opts.URL == "" {
		opts.URL = defaultPublicWSURL
	}
	if opts.BookLen <= 0 {
		opts.BookLen = 100
	}
	if opts.Precision == "" {
		opts.Precision = "R0"
	}
	return &PublicWS{
		opts:   opts,
		logger: logger.With().Str("component", "bfx_public_ws").Logger(),
		levels: make(map[int64]BookLevel),
	}
}

// Run dials, subscribes, and reads until ctx is cancelled, reconnecting on
// failure. Every book change is pushed as an EventBookChanged.
func (w *PublicWS) Run(ctx context.Context, push func(Event)) error {
	for {
		if err := w.session(ctx, push); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Msg("public websocket session ended, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *PublicWS) session(ctx context.Context, push func(Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial public websocket: %w", err)
	}
	defer conn.Close()

	closeOnDone := make(chan struct{})
	defer close(closeOnDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closeOnDone:
		}
	}()

	sub := map[string]any{
		"event":   "subscribe",
		"channel": "book",
		"symbol":  w.opts.Symbol,
		"prec":    w.opts.Precision,
		"len":     fmt.Sprintf("%d", w.opts.BookLen),
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe book: %w", err)
	}

	w.resetBook()
	w.logger.Info().Str("symbol", w.opts.Symbol).Msg("public websocket connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read public websocket: %w", err)
		}
		if err := w.handleMessage(message, push); err != nil {
			w.logger.Warn().Err(err).Msg("skipping malformed book frame")
		}
	}
}

func (w *PublicWS) handleMessage(message []byte, push func(Event)) error {
	if len(message) == 0 {
		return nil
	}
	if message[0] == '{' {
		// Subscription acks and info events carry nothing the book needs.
		return nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if len(frame) < 2 {
		return nil
	}

	var hb string
	if err := json.Unmarshal(frame[1], &hb); err == nil && hb == "hb" {
		return nil
	}

	var payload []any
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		return fmt.Errorf("decode book payload: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}

	if _, ok := payload[0].([]any); ok {
		// Snapshot: full set of raw levels supersedes the local book.
		rows, err := decodeNestedArrays(payload)
		if err != nil {
			return err
		}
		w.resetBook()
		for _, row := range rows {
			level, err := ParseBookLevel(row)
			if err != nil {
				return err
			}
			w.applyLevel(*level)
		}
	} else {
		level, err := ParseBookLevel(payload)
		if err != nil {
			return err
		}
		w.applyLevel(*level)
	}

	push(Event{Kind: EventBookChanged, Book: w.buildBook()})
	return nil
}

func (w *PublicWS) resetBook() {
	w.mu.Lock()
	w.levels = make(map[int64]BookLevel)
	w.mu.Unlock()
}

// applyLevel upserts one raw level. A zero rate removes the offer id,
// per the R0 book semantics.
func (w *PublicWS) applyLevel(level BookLevel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if level.Rate.IsZero() {
		delete(w.levels, level.ID)
		return
	}
	w.levels[level.ID] = level
}

func (w *PublicWS) buildBook() *Book {
	w.mu.Lock()
	defer w.mu.Unlock()

	book := &Book{}
	for _, level := range w.levels {
		if level.Amount.Sign() < 0 {
			book.Bids = append(book.Bids, level)
		} else {
			book.Asks = append(book.Asks, level)
		}
	}
	SortBook(book)
	return book
}
