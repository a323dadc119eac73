package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"bfx-lending-bot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Bitfinex BitfinexConfig `mapstructure:"bitfinex"`
	Bot      BotConfig      `mapstructure:"bot"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the dashboard API listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BitfinexConfig covers exchange connectivity.
type BitfinexConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	RESTURL        string        `mapstructure:"rest_url"`
	PublicRESTURL  string        `mapstructure:"public_rest_url"`
	PublicWSURL    string        `mapstructure:"public_ws_url"`
	AuthWSURL      string        `mapstructure:"auth_ws_url"`
	Symbol         string        `mapstructure:"symbol"`
	BookLength     int           `mapstructure:"book_length"`
	BookDepth      int           `mapstructure:"book_depth"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// Currency derives the wallet currency from the funding symbol
// (fUSD tracks the USD funding wallet).
func (c BitfinexConfig) Currency() string {
	return strings.TrimPrefix(c.Symbol, "f")
}

// BotConfig seeds the operator-mutable offer policy. Runtime changes
// arrive through the API and never write back to this file.
type BotConfig struct {
	EnableBot              bool    `mapstructure:"enable_bot"`
	AmountKeep             float64 `mapstructure:"amount_keep"`
	AmountMin              float64 `mapstructure:"amount_min"`
	AmountMax              float64 `mapstructure:"amount_max"`
	EnableFixedOfferRate   bool    `mapstructure:"enable_fixed_offer_rate"`
	FixedOfferRate         float64 `mapstructure:"fixed_offer_rate"`
	EnableFixedOfferPeriod bool    `mapstructure:"enable_fixed_offer_period"`
	FixedOfferPeriod       int     `mapstructure:"fixed_offer_period"`
	RefreshOfferSeconds    int     `mapstructure:"refresh_offer_when_not_matched_in_second"`
	DefaultPeriodDays      int     `mapstructure:"default_period_days"`
}

// LedgerConfig governs the periodic ledger history refresh.
type LedgerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	WindowDays      int           `mapstructure:"window_days"`
	Limit           int           `mapstructure:"limit"`
	Category        int           `mapstructure:"category"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LENDINGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lendingbot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":7000")

	v.SetDefault("bitfinex.rest_url", "https://api.bitfinex.com")
	v.SetDefault("bitfinex.public_rest_url", "https://api-pub.bitfinex.com")
	v.SetDefault("bitfinex.public_ws_url", "wss://api-pub.bitfinex.com/ws/2")
	v.SetDefault("bitfinex.auth_ws_url", "wss://api.bitfinex.com/ws/2")
	v.SetDefault("bitfinex.symbol", "fUSD")
	v.SetDefault("bitfinex.book_length", 100)
	v.SetDefault("bitfinex.book_depth", 25)
	v.SetDefault("bitfinex.request_timeout", "30s")
	v.SetDefault("bitfinex.user_agent", "lendingbot/1.0")

	v.SetDefault("bot.enable_bot", false)
	v.SetDefault("bot.amount_keep", 160.0)
	v.SetDefault("bot.amount_min", 250.0)
	v.SetDefault("bot.amount_max", 300.0)
	v.SetDefault("bot.enable_fixed_offer_rate", false)
	v.SetDefault("bot.fixed_offer_rate", 0.0)
	v.SetDefault("bot.enable_fixed_offer_period", false)
	v.SetDefault("bot.fixed_offer_period", 0)
	v.SetDefault("bot.refresh_offer_when_not_matched_in_second", 300)
	v.SetDefault("bot.default_period_days", 2)

	v.SetDefault("ledger.refresh_interval", "20m")
	v.SetDefault("ledger.window_days", 30)
	v.SetDefault("ledger.limit", 25)
	// Category 28: margin swap interest payment entries.
	v.SetDefault("ledger.category", 28)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Bitfinex.Symbol, "f") {
		return fmt.Errorf("bitfinex.symbol must be a funding symbol (fXXX)")
	}
	if c.Bitfinex.BookDepth <= 0 {
		return fmt.Errorf("bitfinex.book_depth must be greater than zero")
	}
	if c.Bitfinex.BookLength < c.Bitfinex.BookDepth {
		return fmt.Errorf("bitfinex.book_length must be at least book_depth")
	}
	if c.Bot.RefreshOfferSeconds <= 0 {
		return fmt.Errorf("bot.refresh_offer_when_not_matched_in_second must be greater than zero")
	}
	if c.Bot.DefaultPeriodDays <= 0 {
		return fmt.Errorf("bot.default_period_days must be greater than zero")
	}
	if c.Ledger.RefreshInterval <= 0 {
		return fmt.Errorf("ledger.refresh_interval must be greater than zero")
	}
	if c.Ledger.Limit <= 0 {
		return fmt.Errorf("ledger.limit must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
