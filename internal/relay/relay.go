package relay

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bridgelet/bridgelet/internal/chatroom"
	"github.com/bridgelet/bridgelet/internal/config"
	"github.com/bridgelet/bridgelet/internal/content"
	"github.com/bridgelet/bridgelet/internal/coreapi"
	"github.com/bridgelet/bridgelet/internal/identity"
)

// maxGroupSize is the channel's hard cap on grouped media items.
const maxGroupSize = 10

// ClientResolver maps a channel sender onto an internal client user.
type ClientResolver interface {
	ResolveClient(ctx context.Context, profile identity.Profile) (string, error)
}

// RoomService is the state-machine surface the relay drives.
type RoomService interface {
	Resolve(ctx context.Context, in chatroom.ResolveInput) (chatroom.Room, error)
	TouchSummary(ctx context.Context, room chatroom.Room, preview string, at time.Time) error
}

// RouteStore resolves a room back to its channel conversation.
type RouteStore interface {
	TelegramRoute(ctx context.Context, roomID string) (chatroom.TelegramRoute, error)
}

// MessageClassifier turns a raw channel message into (text, content).
type MessageClassifier interface {
	Classify(ctx context.Context, botToken, roomID string, msg *tgbotapi.Message) (string, []content.Item, error)
}

// CoreMessages is the message slice of the application core.
type CoreMessages interface {
	CreateChatRoomMessage(ctx context.Context, in coreapi.CreateMessageInput) (coreapi.Message, error)
	UpdateMessageData(ctx context.Context, in coreapi.UpdateMessageDataInput) (coreapi.Message, error)
}

// MessageLog appends persisted messages to the wide-column log.
type MessageLog interface {
	Append(ctx context.Context, msg coreapi.Message) error
}

// Presigner exchanges canonical object URLs for time-limited download URLs.
type Presigner interface {
	PresignDownload(ctx context.Context, objectURL string) (string, error)
}

// ChannelSender delivers outbound payloads to the channel.
type ChannelSender interface {
	SendText(ctx context.Context, botToken string, chatID int64, text string) error
	SendItem(ctx context.Context, botToken string, chatID int64, item content.Item, caption string) error
	SendGroup(ctx context.Context, botToken string, chatID int64, items []content.Item, caption string) error
}

// Service relays messages in both directions between the channel and the
// support platform.
type Service struct {
	clients    ClientResolver
	rooms      RoomService
	routes     RouteStore
	classifier MessageClassifier
	core       CoreMessages
	log        MessageLog
	presigner  Presigner
	sender     ChannelSender
	replies    config.RepliesConfig
	logger     *slog.Logger
}

func NewService(
	logg *slog.Logger,
	clients ClientResolver,
	rooms RoomService,
	routes RouteStore,
	classifier MessageClassifier,
	core CoreMessages,
	messageLog MessageLog,
	presigner Presigner,
	sender ChannelSender,
	replies config.RepliesConfig,
) *Service {
	if logg == nil {
		logg = slog.Default()
	}
	return &Service{
		clients:    clients,
		rooms:      rooms,
		routes:     routes,
		classifier: classifier,
		core:       core,
		log:        messageLog,
		presigner:  presigner,
		sender:     sender,
		replies:    replies,
		logger:     logg.With(slog.String("component", "relay")),
	}
}
