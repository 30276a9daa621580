package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultTelegramBaseURL is the Telegram Bot API host.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramConfig holds the bot credentials and transport options.
type TelegramConfig struct {
	BotToken  string
	ChatID    string
	Proxy     string
	BaseURL   string
	ParseMode string // defaults to Markdown
	Timeout   time.Duration
}

// Enabled reports whether both credentials are present.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	cfg    TelegramConfig
	client *resty.Client
	log    logrus.FieldLogger

	pollTimeout time.Duration
	pollBackoff time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(cfg TelegramConfig, log logrus.FieldLogger) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramBaseURL
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	// The client timeout must outlast the long-poll window.
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout+10*time.Second).
		SetPathParam("token", cfg.BotToken)
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}

	return &TelegramNotifier{
		cfg:         cfg,
		client:      client,
		log:         log.WithField("notifier", "telegram"),
		pollTimeout: cfg.Timeout,
		pollBackoff: 5 * time.Second,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	var out apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.cfg.ChatID,
			"text":       text,
			"parse_mode": t.cfg.ParseMode,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram API error: status %d, description: %s", resp.StatusCode(), out.Description)
	}
	t.log.Debug("message sent")
	return nil
}
