package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/bridgelet/bridgelet/internal/chatroom"
	"github.com/bridgelet/bridgelet/internal/config"
	"github.com/bridgelet/bridgelet/internal/relay"
)

// OutboundHandler accepts operator messages from the support platform and
// relays them to the channel.
type OutboundHandler struct {
	relay    *relay.Service
	validate *validator.Validate
	apiKey   string
	logger   *slog.Logger
}

func NewOutboundHandler(log *slog.Logger, relayService *relay.Service, cfg config.OutboundConfig) *OutboundHandler {
	return &OutboundHandler{
		relay:    relayService,
		validate: validator.New(),
		apiKey:   cfg.APIKey,
		logger:   log.With(slog.String("handler", "outbound")),
	}
}

func (h *OutboundHandler) Register(e *echo.Echo) {
	e.POST("/messages/outbound", h.Send)
}

func (h *OutboundHandler) Send(c echo.Context) error {
	if h.apiKey != "" {
		key := c.Request().Header.Get("x-api-key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
		}
	}

	var req relay.OutboundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.relay.HandleOutbound(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, chatroom.ErrRoomNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "chat room not found")
		}
		h.logger.Error("outbound relay failed",
			slog.String("chat_room_id", req.ChatRoomID),
			slog.String("message_id", req.MessageID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "relay failed")
	}
	return c.JSON(http.StatusOK, msg)
}
