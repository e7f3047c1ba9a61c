package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bridgelet/bridgelet/internal/config"
)

const startCommand = "/start"

// Normalize converts a channel webhook body into an InboundEvent. It returns
// a SkipError for payloads the relay refuses: bot-originated messages,
// unsupported kinds (polls, animated stickers), and the /start command,
// which only triggers the canned greeting.
func Normalize(update tgbotapi.Update, businessAccount string, replies config.RepliesConfig) (InboundEvent, error) {
	msg := update.Message
	if msg == nil {
		return InboundEvent{}, &SkipError{Reason: "no message payload"}
	}
	if msg.From == nil {
		return InboundEvent{}, &SkipError{Reason: "no sender metadata"}
	}
	if msg.From.IsBot {
		return InboundEvent{}, &SkipError{Reason: "bot sender", Reply: replies.BotSender}
	}
	if msg.Chat == nil {
		return InboundEvent{}, &SkipError{Reason: "no chat metadata"}
	}
	if msg.Poll != nil {
		return InboundEvent{}, &SkipError{Reason: "poll payload", Reply: replies.UnsupportedFormat}
	}
	if msg.Sticker != nil && msg.Sticker.IsAnimated {
		return InboundEvent{}, &SkipError{Reason: "animated sticker", Reply: replies.UnsupportedFormat}
	}

	text := strings.TrimSpace(msg.Text)
	if text == startCommand {
		return InboundEvent{}, &SkipError{Reason: "start command", Reply: greeting(replies.Greeting, msg.From.FirstName)}
	}

	event := InboundEvent{
		BusinessAccount:        businessAccount,
		ChatID:                 msg.Chat.ID,
		ExternalConversationID: fmt.Sprintf("%s:%d", businessAccount, msg.Chat.ID),
		FirstName:              msg.From.FirstName,
		LastName:               msg.From.LastName,
		Username:               msg.From.UserName,
		Metadata: map[string]any{
			"id":         msg.From.ID,
			"first_name": msg.From.FirstName,
			"last_name":  msg.From.LastName,
			"username":   msg.From.UserName,
			"is_bot":     msg.From.IsBot,
		},
		Text:    text,
		Message: msg,
	}

	// Precedence mirrors the classifier: only one kind should be set per
	// update, the order is defensive.
	switch {
	case msg.Contact != nil:
		event.Kind = KindContact
	case msg.Location != nil:
		event.Kind = KindLocation
	case msg.Document != nil:
		event.Kind = KindDocument
	case msg.Animation != nil:
		event.Kind = KindGIF
	case msg.Video != nil:
		event.Kind = KindVideo
	case msg.Voice != nil:
		event.Kind = KindVoice
	case msg.Audio != nil:
		event.Kind = KindAudio
	case msg.Sticker != nil:
		event.Kind = KindSticker
	case len(msg.Photo) > 0:
		event.Kind = KindPhoto
	case text != "":
		event.Kind = KindText
	default:
		return InboundEvent{}, &SkipError{Reason: "unsupported payload", Reply: replies.UnsupportedFormat}
	}
	return event, nil
}

// greeting personalises the configured greeting with the sender's first
// name when the template has a slot for it.
func greeting(template, firstName string) string {
	if !strings.Contains(template, "%s") {
		return template
	}
	suffix := ""
	if strings.TrimSpace(firstName) != "" {
		suffix = ", " + strings.TrimSpace(firstName)
	}
	return fmt.Sprintf(template, suffix)
}
