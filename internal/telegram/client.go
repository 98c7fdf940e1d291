// Package telegram adapts the Bot API to the controller and the purge
// scheduler: outbound sends, update dispatch and long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/models"
)

var tracer = otel.Tracer("mediadrop-telegram")

// Messenger is the outbound side of the bot as the dispatcher sees it.
// markup may be nil or any Bot API reply markup.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, markup any) (int, error)
	SendAttachment(ctx context.Context, chatID int64, att models.Attachment) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	Username() string
}

// Client is the single live Bot API connection of the process.
type Client struct {
	bot      *tgbotapi.BotAPI
	linkHost string
	logger   *slog.Logger
}

// ClientConfig holds what NewClient needs to reach the Bot API.
type ClientConfig struct {
	Token    string
	Timeout  time.Duration
	LinkHost string
	// Endpoint overrides tgbotapi.APIEndpoint; used by tests.
	Endpoint string
	Logger   *slog.Logger
}

// NewClient connects to the Bot API and resolves the bot's own username.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bot api: %w", err)
	}

	return &Client{
		bot:      bot,
		linkHost: cfg.LinkHost,
		logger:   logger.With("component", "telegram"),
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendText sends an HTML message and returns its message id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	ctx, span := tracer.Start(ctx, "telegram.send_text",
		trace.WithAttributes(attribute.Int64("chat_id", chatID)),
	)
	defer span.End()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := c.send(ctx, msg)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// SendAttachment re-delivers att by its Telegram file id.
func (c *Client) SendAttachment(ctx context.Context, chatID int64, att models.Attachment) (int, error) {
	ctx, span := tracer.Start(ctx, "telegram.send_attachment",
		trace.WithAttributes(
			attribute.Int64("chat_id", chatID),
			attribute.String("category", att.Type.String()),
		),
	)
	defer span.End()

	cfg, err := sendConfig(chatID, att)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	sent, err := c.send(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to send %s: %w", att.Type, err)
	}
	return sent.MessageID, nil
}

// DeleteMessage removes one message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, span := tracer.Start(ctx, "telegram.delete_message",
		trace.WithAttributes(
			attribute.Int64("chat_id", chatID),
			attribute.Int("message_id", messageID),
		),
	)
	defer span.End()

	if err := c.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// NotifyPurged tells chatID its copies are gone and links back to tok.
func (c *Client) NotifyPurged(ctx context.Context, chatID int64, tok string) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(textRestoreButton, ShareLink(c.linkHost, c.Username(), tok)),
		),
	)
	_, err := c.SendText(ctx, chatID, textPurged, keyboard)
	return err
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := c.request(ctx, tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// SetWebhook registers url as the update endpoint.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	// one connection keeps Telegram delivering a chat's updates in order
	wh.MaxConnections = 1
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	c.logger.Info("webhook registered", "url", url)
	return nil
}

// RemoveWebhook clears any webhook so getUpdates can be used.
func (c *Client) RemoveWebhook() error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// send and request bound a Bot API call by ctx. The library takes no
// context, so on expiry the call is abandoned and finishes in the background
// under the HTTP client timeout.
func (c *Client) send(ctx context.Context, cfg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}
	type result struct {
		msg tgbotapi.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.bot.Send(cfg)
		done <- result{msg, err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

func (c *Client) request(ctx context.Context, cfg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Request(cfg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.bot.GetUpdatesChan(cfg)
}

func (c *Client) StopReceivingUpdates() {
	c.bot.StopReceivingUpdates()
}
