package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bridgelet/bridgelet/internal/chatroom"
	"github.com/bridgelet/bridgelet/internal/content"
	"github.com/bridgelet/bridgelet/internal/coreapi"
	"github.com/bridgelet/bridgelet/internal/identity"
	"github.com/bridgelet/bridgelet/internal/telegram"
)

// HandleInbound runs the inbound pipeline for one normalized webhook event:
// resolve the client, resolve or create the room, classify and store media,
// persist the message through the core, append it to the message log,
// refresh the room summary and mark the message sent.
//
// A returned *telegram.SkipError means the event was dropped on purpose; the
// handler sends the canned reply it carries. Any other error is an internal
// failure after the webhook was accepted.
func (s *Service) HandleInbound(ctx context.Context, botToken string, event telegram.InboundEvent) error {
	clientID, err := s.clients.ResolveClient(ctx, identity.Profile{
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Username:  event.Username,
		Metadata:  event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}

	room, err := s.rooms.Resolve(ctx, chatroom.ResolveInput{
		ChannelTechnicalID:     botToken,
		ExternalConversationID: event.ExternalConversationID,
		ClientID:               clientID,
		CreateIfAbsent:         !event.HasMedia(),
	})
	if errors.Is(err, chatroom.ErrRoomNotFound) {
		// Media cannot open a case; the client must describe the issue in
		// text first.
		return &telegram.SkipError{Reason: "media before first text", Reply: s.replies.TextFirst}
	}
	if err != nil {
		return fmt.Errorf("resolve room: %w", err)
	}

	text, items, err := s.classifier.Classify(ctx, botToken, room.ID, event.Message)
	if errors.Is(err, content.ErrUnsupported) {
		return &telegram.SkipError{Reason: "unsupported content", Reply: s.replies.UnsupportedFormat}
	}
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	serialized := ""
	if len(items) > 0 {
		encoded, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshal content: %w", err)
		}
		serialized = string(encoded)
	}

	msg, err := s.core.CreateChatRoomMessage(ctx, coreapi.CreateMessageInput{
		ChatRoomID:  room.ID,
		AuthorID:    clientID,
		ChannelID:   room.ChannelID,
		MessageType: messageType(items),
		Text:        text,
		Content:     serialized,
		Quoted:      quotedOf(event),
	})
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	if err := s.log.Append(ctx, msg); err != nil {
		return fmt.Errorf("log message: %w", err)
	}

	if room.Status == chatroom.StatusAccepted {
		if err := s.rooms.TouchSummary(ctx, room, preview(text, items), time.Now().UTC()); err != nil {
			// The summary is a denormalized convenience; the message itself
			// is already durable.
			s.logger.Warn("summary update failed",
				slog.String("chat_room_id", room.ID),
				slog.Any("error", err),
			)
		}
	}

	sent := true
	if _, err := s.core.UpdateMessageData(ctx, coreapi.UpdateMessageDataInput{
		ChatRoomID: room.ID,
		MessageID:  msg.MessageID,
		IsSent:     &sent,
	}); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	s.logger.Info("inbound relayed",
		slog.String("chat_room_id", room.ID),
		slog.String("message_id", msg.MessageID),
		slog.String("message_type", msg.MessageType),
	)
	return nil
}

// quotedOf maps a channel-side reply onto the quoted-message backlink. Only
// the quoted text survives the channel boundary; the core owns the relation
// to the original log entry.
func quotedOf(event telegram.InboundEvent) *coreapi.QuotedMessage {
	if event.Message == nil || event.Message.ReplyToMessage == nil {
		return nil
	}
	quoted := event.Message.ReplyToMessage
	text := quoted.Text
	if text == "" {
		text = quoted.Caption
	}
	if text == "" {
		return nil
	}
	return &coreapi.QuotedMessage{Text: text}
}

// messageType names the payload shape persisted with the message.
func messageType(items []content.Item) string {
	if len(items) == 0 {
		return "text"
	}
	return string(items[0].Category)
}

// preview is the short line shown in the operator's room list.
func preview(text string, items []content.Item) string {
	if text != "" {
		return text
	}
	if len(items) > 0 {
		return "[" + string(items[0].Category) + "]"
	}
	return ""
}
