package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/bridgelet/bridgelet/internal/config"
	"github.com/bridgelet/bridgelet/internal/relay"
	"github.com/bridgelet/bridgelet/internal/telegram"
)

// ReplySender sends canned replies back through the channel.
type ReplySender interface {
	SendText(ctx context.Context, botToken string, chatID int64, text string) error
}

// WebhookHandler receives Telegram webhook deliveries. The bot retries
// deliveries that do not get a 200, so the handler acknowledges every decoded
// update even when a downstream step failed; failures are logged and the
// channel-side retry is declined.
type WebhookHandler struct {
	relay   *relay.Service
	sender  ReplySender
	replies config.RepliesConfig
	// accounts maps the route's business-account suffix to a bot token.
	accounts map[string]string
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, relayService *relay.Service, sender ReplySender, cfg config.Config) *WebhookHandler {
	return &WebhookHandler{
		relay:    relayService,
		sender:   sender,
		replies:  cfg.Replies,
		accounts: cfg.Telegram.Accounts,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/telegram/:account", h.Receive)
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	account := c.Param("account")
	botToken, ok := h.accounts[account]
	if !ok {
		h.logger.Warn("unknown business account", slog.String("account", account))
		return h.ack(c)
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		h.logger.Warn("malformed webhook body", slog.Any("error", err))
		return h.ack(c)
	}

	ctx := c.Request().Context()
	event, err := telegram.Normalize(update, account, h.replies)
	if err != nil {
		h.skip(ctx, botToken, update, err)
		return h.ack(c)
	}

	if err := h.relay.HandleInbound(ctx, botToken, event); err != nil {
		var skip *telegram.SkipError
		if errors.As(err, &skip) {
			h.skip(ctx, botToken, update, err)
			return h.ack(c)
		}
		h.logger.Error("inbound relay failed",
			slog.String("account", account),
			slog.String("conversation_id", event.ExternalConversationID),
			slog.Any("error", err),
		)
	}
	return h.ack(c)
}

// skip logs a dropped update and sends its canned reply, when one is set.
func (h *WebhookHandler) skip(ctx context.Context, botToken string, update tgbotapi.Update, err error) {
	var skipErr *telegram.SkipError
	if !errors.As(err, &skipErr) {
		h.logger.Warn("update skipped", slog.Any("error", err))
		return
	}
	h.logger.Debug("update skipped", slog.String("reason", skipErr.Reason))
	if skipErr.Reply == "" || update.Message == nil || update.Message.Chat == nil {
		return
	}
	if err := h.sender.SendText(ctx, botToken, update.Message.Chat.ID, skipErr.Reply); err != nil {
		h.logger.Warn("canned reply failed", slog.Any("error", err))
	}
}

func (h *WebhookHandler) ack(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
