package telegram_test

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bridgelet/bridgelet/internal/config"
	"github.com/bridgelet/bridgelet/internal/telegram"
)

var testReplies = config.RepliesConfig{
	Greeting:          "Hello%s!",
	BotSender:         "no bots please",
	UnsupportedFormat: "cannot process this",
	TextFirst:         "text first",
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{ID: 7, FirstName: "Ada", UserName: "ada"},
			Chat: &tgbotapi.Chat{ID: 42},
		},
	}
}

func TestNormalize_Text(t *testing.T) {
	t.Parallel()
	event, err := telegram.Normalize(textUpdate("hi there"), "support", testReplies)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.Kind != telegram.KindText {
		t.Fatalf("Kind = %q, want %q", event.Kind, telegram.KindText)
	}
	if event.ExternalConversationID != "support:42" {
		t.Fatalf("ExternalConversationID = %q, want %q", event.ExternalConversationID, "support:42")
	}
	if event.Username != "ada" {
		t.Fatalf("Username = %q, want %q", event.Username, "ada")
	}
	if event.HasMedia() {
		t.Fatalf("HasMedia() = true for a text event")
	}
}

func TestNormalize_Skips(t *testing.T) {
	t.Parallel()

	bot := textUpdate("hi")
	bot.Message.From.IsBot = true

	poll := textUpdate("")
	poll.Message.Poll = &tgbotapi.Poll{Question: "?"}

	animated := textUpdate("")
	animated.Message.Sticker = &tgbotapi.Sticker{FileID: "f", IsAnimated: true}

	empty := textUpdate("")

	tests := []struct {
		name      string
		update    tgbotapi.Update
		wantReply string
	}{
		{name: "no message", update: tgbotapi.Update{}, wantReply: ""},
		{name: "bot sender", update: bot, wantReply: testReplies.BotSender},
		{name: "poll", update: poll, wantReply: testReplies.UnsupportedFormat},
		{name: "animated sticker", update: animated, wantReply: testReplies.UnsupportedFormat},
		{name: "empty payload", update: empty, wantReply: testReplies.UnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := telegram.Normalize(tt.update, "support", testReplies)
			if !errors.Is(err, telegram.ErrSkip) {
				t.Fatalf("Normalize() error = %v, want ErrSkip", err)
			}
			var skip *telegram.SkipError
			if !errors.As(err, &skip) {
				t.Fatalf("Normalize() error is not a *SkipError: %v", err)
			}
			if skip.Reply != tt.wantReply {
				t.Fatalf("Reply = %q, want %q", skip.Reply, tt.wantReply)
			}
		})
	}
}

func TestNormalize_StartCommandGreets(t *testing.T) {
	t.Parallel()
	_, err := telegram.Normalize(textUpdate("/start"), "support", testReplies)
	var skip *telegram.SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("Normalize(/start) error = %v, want *SkipError", err)
	}
	if skip.Reply != "Hello, Ada!" {
		t.Fatalf("greeting = %q, want %q", skip.Reply, "Hello, Ada!")
	}
}

func TestNormalize_StartCommandNoName(t *testing.T) {
	t.Parallel()
	update := textUpdate("/start")
	update.Message.From.FirstName = ""
	_, err := telegram.Normalize(update, "support", testReplies)
	var skip *telegram.SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("Normalize(/start) error = %v, want *SkipError", err)
	}
	if skip.Reply != "Hello!" {
		t.Fatalf("greeting = %q, want %q", skip.Reply, "Hello!")
	}
}

func TestNormalize_KindPrecedence(t *testing.T) {
	t.Parallel()

	// A contact wins over any other payload on the same message.
	update := textUpdate("")
	update.Message.Contact = &tgbotapi.Contact{PhoneNumber: "+1", FirstName: "Ada"}
	update.Message.Photo = []tgbotapi.PhotoSize{{FileID: "p", Width: 1, Height: 1}}

	event, err := telegram.Normalize(update, "support", testReplies)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.Kind != telegram.KindContact {
		t.Fatalf("Kind = %q, want %q", event.Kind, telegram.KindContact)
	}
	if !event.HasMedia() {
		t.Fatalf("HasMedia() = false for a contact event")
	}
}

func TestNormalize_Kinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  func(msg *tgbotapi.Message)
		want telegram.PayloadKind
	}{
		{name: "location", set: func(m *tgbotapi.Message) { m.Location = &tgbotapi.Location{} }, want: telegram.KindLocation},
		{name: "document", set: func(m *tgbotapi.Message) { m.Document = &tgbotapi.Document{FileID: "d"} }, want: telegram.KindDocument},
		{name: "gif", set: func(m *tgbotapi.Message) { m.Animation = &tgbotapi.Animation{FileID: "a"} }, want: telegram.KindGIF},
		{name: "video", set: func(m *tgbotapi.Message) { m.Video = &tgbotapi.Video{FileID: "v"} }, want: telegram.KindVideo},
		{name: "voice", set: func(m *tgbotapi.Message) { m.Voice = &tgbotapi.Voice{FileID: "v"} }, want: telegram.KindVoice},
		{name: "audio", set: func(m *tgbotapi.Message) { m.Audio = &tgbotapi.Audio{FileID: "a"} }, want: telegram.KindAudio},
		{name: "sticker", set: func(m *tgbotapi.Message) { m.Sticker = &tgbotapi.Sticker{FileID: "s"} }, want: telegram.KindSticker},
		{name: "photo", set: func(m *tgbotapi.Message) { m.Photo = []tgbotapi.PhotoSize{{FileID: "p"}} }, want: telegram.KindPhoto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			update := textUpdate("")
			tt.set(update.Message)
			event, err := telegram.Normalize(update, "support", testReplies)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if event.Kind != tt.want {
				t.Fatalf("Kind = %q, want %q", event.Kind, tt.want)
			}
		})
	}
}
