package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bridgelet/bridgelet/internal/content"
	"github.com/bridgelet/bridgelet/internal/coreapi"
)

// OutboundRequest is an operator-side message the platform wants delivered
// to the channel. The message is already persisted by the application core;
// the relay only delivers it and flips the delivery flag.
type OutboundRequest struct {
	ChatRoomID string         `json:"chatRoomId" validate:"required,uuid4"`
	MessageID  string         `json:"messageId" validate:"required"`
	Text       string         `json:"messageText"`
	Content    []content.Item `json:"messageContent" validate:"dive"`
}

// HandleOutbound delivers one operator message to the channel conversation
// behind the room. Dispatch shape follows the content count: no items sends
// plain text, one item uses its category endpoint, 2..10 items go out as one
// grouped call, and anything larger is dropped with a warning.
func (s *Service) HandleOutbound(ctx context.Context, req OutboundRequest) (coreapi.Message, error) {
	route, err := s.routes.TelegramRoute(ctx, req.ChatRoomID)
	if err != nil {
		return coreapi.Message{}, fmt.Errorf("resolve route: %w", err)
	}
	chatID, err := parseChatID(route.ExternalConversationID)
	if err != nil {
		return coreapi.Message{}, err
	}

	if len(req.Content) > maxGroupSize {
		s.logger.Warn("outbound content dropped, group too large",
			slog.String("chat_room_id", req.ChatRoomID),
			slog.String("message_id", req.MessageID),
			slog.Int("items", len(req.Content)),
		)
		return coreapi.Message{}, nil
	}

	items, err := s.presignAll(ctx, req.Content)
	if err != nil {
		return coreapi.Message{}, err
	}

	switch {
	case len(items) == 0:
		err = s.sender.SendText(ctx, route.BotToken, chatID, req.Text)
	case len(items) == 1:
		err = s.sender.SendItem(ctx, route.BotToken, chatID, items[0], req.Text)
	default:
		err = s.sender.SendGroup(ctx, route.BotToken, chatID, items, req.Text)
	}
	if err != nil {
		return coreapi.Message{}, fmt.Errorf("dispatch: %w", err)
	}

	delivered := true
	msg, err := s.core.UpdateMessageData(ctx, coreapi.UpdateMessageDataInput{
		ChatRoomID:  req.ChatRoomID,
		MessageID:   req.MessageID,
		IsDelivered: &delivered,
	})
	if err != nil {
		return coreapi.Message{}, fmt.Errorf("mark delivered: %w", err)
	}

	s.logger.Info("outbound relayed",
		slog.String("chat_room_id", req.ChatRoomID),
		slog.String("message_id", req.MessageID),
		slog.Int("items", len(items)),
	)
	return msg, nil
}

// presignAll swaps each item's canonical storage URL for a time-limited
// download URL. The permanent URL never reaches the channel.
func (s *Service) presignAll(ctx context.Context, items []content.Item) ([]content.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]content.Item, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, item := range items {
		group.Go(func() error {
			if !item.IsFileBacked() {
				out[i] = item
				return nil
			}
			url, err := s.presigner.PresignDownload(groupCtx, item.URL)
			if err != nil {
				return fmt.Errorf("presign %s: %w", item.FileName, err)
			}
			item.URL = url
			out[i] = item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseChatID extracts the numeric chat id from a
// "{businessAccount}:{chatId}" conversation id.
func parseChatID(externalConversationID string) (int64, error) {
	idx := strings.LastIndex(externalConversationID, ":")
	if idx < 0 || idx == len(externalConversationID)-1 {
		return 0, fmt.Errorf("malformed conversation id %q", externalConversationID)
	}
	chatID, err := strconv.ParseInt(externalConversationID[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chat id: %w", err)
	}
	return chatID, nil
}
