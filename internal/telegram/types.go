package telegram

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PayloadKind is the single recognized payload kind of an inbound event.
type PayloadKind string

const (
	KindText     PayloadKind = "text"
	KindContact  PayloadKind = "contact"
	KindLocation PayloadKind = "location"
	KindDocument PayloadKind = "document"
	KindGIF      PayloadKind = "gif"
	KindVideo    PayloadKind = "video"
	KindVoice    PayloadKind = "voice"
	KindAudio    PayloadKind = "audio"
	KindSticker  PayloadKind = "sticker"
	KindPhoto    PayloadKind = "photo"
)

// ErrSkip marks webhook updates the relay drops without mutating state.
var ErrSkip = errors.New("update skipped")

// SkipError carries the reason an update was dropped and, optionally, a
// canned reply to send back through the channel.
type SkipError struct {
	Reason string
	Reply  string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip: %s", e.Reason)
}

func (e *SkipError) Unwrap() error {
	return ErrSkip
}

// InboundEvent is the normalized view of one channel webhook delivery.
type InboundEvent struct {
	BusinessAccount string
	ChatID          int64
	// ExternalConversationID is "{businessAccount}:{chatId}".
	ExternalConversationID string

	FirstName string
	LastName  string
	Username  string
	Metadata  map[string]any

	Kind PayloadKind
	Text string
	// Message is the raw channel payload, kept for the media classifier.
	Message *tgbotapi.Message
}

// HasMedia reports whether the event carries a non-text payload.
func (e InboundEvent) HasMedia() bool {
	return e.Kind != KindText
}
