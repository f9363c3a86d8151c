package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgrelay/internal/metrics"
)

const telegramMaxMsgLen = 4000

// TelegramConfig configures the Telegram client.
type TelegramConfig struct {
	Token        string
	APIEndpoint  string // format with token and method (default: tgbotapi.APIEndpoint)
	FileEndpoint string // format with token and file path (default: tgbotapi.FileEndpoint)
	ParseMode    string
	Client       *http.Client
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Telegram talks to the Bot API: it sends notifications, resolves file ids to
// download links and manages the webhook registration.
type Telegram struct {
	token        string
	fileEndpoint string
	parseMode    string

	bot     *tgbotapi.BotAPI
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewTelegram connects to the Bot API and verifies the token with getMe.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return &Telegram{
		token:        cfg.Token,
		fileEndpoint: cfg.FileEndpoint,
		parseMode:    cfg.ParseMode,
		bot:          bot,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}, nil
}

// Username returns the bot's @username as reported by getMe.
func (t *Telegram) Username() string { return t.bot.Self.UserName }

// Notify sends text to the chat. Failures are logged and counted, never returned.
func (t *Telegram) Notify(ctx context.Context, chatID string, text string) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		t.metrics.ObserveNotification(false)
		t.logger.Error("invalid chat ID for telegram notification", "chat_id", chatID, "err", err)
		return
	}
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		if ctx.Err() != nil {
			t.logger.Warn("notification abandoned", "chat_id", chatID, "err", ctx.Err())
			return
		}
		t.metrics.ObserveNotification(t.sendChunk(id, chunk))
	}
}

// sendChunk sends one message. A Markdown rejection is resent once as plain
// text; any other error is logged and dropped.
func (t *Telegram) sendChunk(chatID int64, text string) bool {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = t.parseMode

	_, err := t.bot.Send(msg)
	if err == nil {
		return true
	}

	if msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		t.logger.Warn("telegram markdown parse error, resending as plain text",
			"err", err, "parseMode", t.parseMode,
		)
		if _, err = t.bot.Send(tgbotapi.NewMessage(chatID, text)); err == nil {
			return true
		}
	}

	t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
	return false
}

// FileURL resolves a file id via getFile and builds the transient download link.
func (t *Telegram) FileURL(ctx context.Context, fileID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("telegram getFile: %w", err)
	}
	if file.FilePath == "" {
		return "", errors.New("telegram getFile: empty file_path")
	}
	return fmt.Sprintf(t.fileEndpoint, t.token, file.FilePath), nil
}

// SetWebhook registers link as the bot's webhook URL.
func (t *Telegram) SetWebhook(link string) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	t.logger.Info("webhook set", "url", link)
	return nil
}

// DeleteWebhook removes the webhook registration.
func (t *Telegram) DeleteWebhook(dropPending bool) error {
	if _, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("telegram deleteWebhook: %w", err)
	}
	t.logger.Info("webhook deleted", "drop_pending", dropPending)
	return nil
}

// WebhookInfo returns the current webhook registration.
func (t *Telegram) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	info, err := t.bot.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("telegram getWebhookInfo: %w", err)
	}
	return info, nil
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring to
// break on a newline in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := strings.LastIndex(text[:maxLen], "\n")
		if cutAt < maxLen/2 {
			cutAt = maxLen
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}
