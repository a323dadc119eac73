package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification kinds pushed by the bot.
const (
	KindOfferSubmitted = "offer_submitted"
	KindSubmitFailed   = "submit_failed"
	KindCancelFailed   = "cancel_failed"
	KindFundingTrade   = "funding_trade"
	KindResyncFailed   = "credit_resync_failed"
)

// Notification 封装一次需要告警的机器人事件。
type Notification struct {
	Kind    string
	Time    time.Time
	OfferID int64
	Amount  decimal.Decimal
	Rate    decimal.Decimal
	Period  int
	Detail  string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Nop discards notifications; used when no channel is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("kind", note.Kind).Int64("offer_id", note.OfferID).Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[LendingBot]\n")
	builder.WriteString(fmt.Sprintf("Event: %s\n", note.Kind))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.Time.UTC().Format(time.RFC3339)))
	if note.OfferID != 0 {
		builder.WriteString(fmt.Sprintf("Offer: %d\n", note.OfferID))
	}
	if !note.Amount.IsZero() {
		builder.WriteString(fmt.Sprintf("Amount: %s\n", note.Amount.String()))
	}
	if !note.Rate.IsZero() {
		// Rates are daily; the APR reads better in a chat message.
		apr := note.Rate.Mul(decimal.NewFromInt(365)).Mul(decimal.NewFromInt(100))
		builder.WriteString(fmt.Sprintf("Rate: %s (APR %s%%)\n", note.Rate.String(), apr.StringFixed(2)))
	}
	if note.Period > 0 {
		builder.WriteString(fmt.Sprintf("Period: %d days\n", note.Period))
	}
	if note.Detail != "" {
		builder.WriteString(note.Detail)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
var _ Notifier = Nop{}
