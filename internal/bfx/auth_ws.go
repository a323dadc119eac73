package bfx

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultAuthWSURL = "wss://api.bitfinex.com/ws/2"

// AuthWSOptions parameterise the authenticated account socket.
type AuthWSOptions struct {
	URL       string
	APIKey    string
	APISecret string
}

// AuthWS streams the authenticated account channel: wallets, funding
// offers, funding credits, funding trades. Frames are decoded into typed
// events and handed to the dispatcher untouched.
type AuthWS struct {
	opts   AuthWSOptions
	logger zerolog.Logger
}

// NewAuthWS constructs the authenticated socket client.
func NewAuthWS(opts AuthWSOptions, logger zerolog.Logger) *AuthWS {
	if opts.URL == "" {
		opts.URL = defaultAuthWSURL
	}
	return &AuthWS{
		opts:   opts,
		logger: logger.With().Str("component", "bfx_auth_ws").Logger(),
	}
}

// Run dials, authenticates, and reads until ctx is cancelled, reconnecting
// on failure. The exchange re-sends full snapshots after every auth, so a
// reconnect organically rebuilds the account state.
func (w *AuthWS) Run(ctx context.Context, push func(Event)) error {
	for {
		if err := w.session(ctx, push); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Msg("auth websocket session ended, reconnecting")
			push(Event{Kind: EventDisconnected})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *AuthWS) session(ctx context.Context, push func(Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial auth websocket: %w", err)
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

	if err := w.authenticate(conn); err != nil {
		return err
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read auth websocket: %w", err)
		}
		if err := w.handleMessage(message, push); err != nil {
			w.logger.Warn().Err(err).Msg("skipping malformed account frame")
		}
	}
}

func (w *AuthWS) authenticate(conn *websocket.Conn) error {
	nonce := fmt.Sprintf("%d", time.Now().UnixMicro())
	payload := "AUTH" + nonce
	mac := hmac.New(sha512.New384, []byte(w.opts.APISecret))
	mac.Write([]byte(payload))

	auth := map[string]any{
		"event":       "auth",
		"apiKey":      w.opts.APIKey,
		"authSig":     hex.EncodeToString(mac.Sum(nil)),
		"authNonce":   nonce,
		"authPayload": payload,
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("send auth request: %w", err)
	}
	return nil
}

type wsEvent struct {
	Event  string `json:"event"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
	Code   int    `json:"code"`
}

func (w *AuthWS) handleMessage(message []byte, push func(Event)) error {
	if len(message) == 0 {
		return nil
	}

	if message[0] == '{' {
		var ev wsEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			return fmt.Errorf("decode event frame: %w", err)
		}
		switch ev.Event {
		case "auth":
			if ev.Status != "OK" {
				return fmt.Errorf("auth failed: %s (%d)", ev.Msg, ev.Code)
			}
			w.logger.Info().Msg("auth websocket authenticated")
			push(Event{Kind: EventConnected})
		case "error":
			w.logger.Error().Int("code", ev.Code).Str("msg", ev.Msg).Msg("auth websocket error event")
		}
		return nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if len(frame) < 3 {
		return nil
	}

	var msgType string
	if err := json.Unmarshal(frame[1], &msgType); err != nil {
		return nil
	}

	ev, err := decodeAccountFrame(msgType, frame[2])
	if err != nil {
		return err
	}
	if ev != nil {
		push(*ev)
	}
	return nil
}

// decodeAccountFrame maps one Bitfinex account message onto a typed event.
// Unknown and heartbeat message types are dropped.
func decodeAccountFrame(msgType string, payload json.RawMessage) (*Event, error) {
	switch msgType {
	case "hb", "bu", "n":
		return nil, nil

	case "ws":
		rows, err := rawRows(payload)
		if err != nil {
			return nil, fmt.Errorf("wallet snapshot: %w", err)
		}
		ev := &Event{Kind: EventWalletSnapshot}
		for _, row := range rows {
			wallet, err := ParseWallet(row)
			if err != nil {
				return nil, fmt.Errorf("wallet snapshot: %w", err)
			}
			ev.Wallets = append(ev.Wallets, *wallet)
		}
		return ev, nil

	case "wu":
		row, err := rawRow(payload)
		if err != nil {
			return nil, fmt.Errorf("wallet update: %w", err)
		}
		wallet, err := ParseWallet(row)
		if err != nil {
			return nil, fmt.Errorf("wallet update: %w", err)
		}
		return &Event{Kind: EventWalletUpdate, Wallet: wallet}, nil

	case "fos":
		rows, err := rawRows(payload)
		if err != nil {
			return nil, fmt.Errorf("offer snapshot: %w", err)
		}
		ev := &Event{Kind: EventOfferSnapshot, Offers: make([]Offer, 0, len(rows))}
		for _, row := range rows {
			offer, err := ParseOffer(row)
			if err != nil {
				return nil, fmt.Errorf("offer snapshot: %w", err)
			}
			ev.Offers = append(ev.Offers, *offer)
		}
		return ev, nil

	case "fon", "fou", "foc":
		row, err := rawRow(payload)
		if err != nil {
			return nil, fmt.Errorf("offer %s: %w", msgType, err)
		}
		offer, err := ParseOffer(row)
		if err != nil {
			return nil, fmt.Errorf("offer %s: %w", msgType, err)
		}
		kind := EventOfferNew
		switch msgType {
		case "fou":
			kind = EventOfferUpdate
		case "foc":
			kind = EventOfferClose
		}
		return &Event{Kind: kind, Offer: offer}, nil

	case "fcs":
		rows, err := rawRows(payload)
		if err != nil {
			return nil, fmt.Errorf("credit snapshot: %w", err)
		}
		ev := &Event{Kind: EventCreditSnapshot, Credits: make([]Credit, 0, len(rows))}
		for _, row := range rows {
			credit, err := ParseCredit(row)
			if err != nil {
				return nil, fmt.Errorf("credit snapshot: %w", err)
			}
			ev.Credits = append(ev.Credits, *credit)
		}
		return ev, nil

	case "fcn", "fcu", "fcc":
		row, err := rawRow(payload)
		if err != nil {
			return nil, fmt.Errorf("credit %s: %w", msgType, err)
		}
		credit, err := ParseCredit(row)
		if err != nil {
			return nil, fmt.Errorf("credit %s: %w", msgType, err)
		}
		kind := EventCreditUpdate
		if msgType == "fcc" {
			kind = EventCreditClose
		}
		return &Event{Kind: kind, Credit: credit}, nil

	case "ftu":
		row, err := rawRow(payload)
		if err != nil {
			return nil, fmt.Errorf("funding trade: %w", err)
		}
		trade, err := ParseTrade(row)
		if err != nil {
			return nil, fmt.Errorf("funding trade: %w", err)
		}
		return &Event{Kind: EventFundingTrade, Trade: trade}, nil
	}

	return nil, nil
}

func rawRow(payload json.RawMessage) ([]any, error) {
	var row []any
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func rawRows(payload json.RawMessage) ([][]any, error) {
	var outer []any
	if err := json.Unmarshal(payload, &outer); err != nil {
		return nil, err
	}
	return decodeNestedArrays(outer)
}
