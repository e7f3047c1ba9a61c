package chatroom

import "errors"

// Status is the lifecycle state of a chat room. Transitions are
// absent → non_accepted → accepted → completed, plus the
// completed → non_accepted reopen edge. No other edges exist.
type Status string

const (
	StatusNone        Status = "none"
	StatusNonAccepted Status = "non_accepted"
	StatusAccepted    Status = "accepted"
	StatusCompleted   Status = "completed"
)

var (
	// ErrRoomNotFound reports that no room exists for a conversation.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrNoOperator reports a room with no operator-kind member.
	ErrNoOperator = errors.New("no operator in room")
)

// Room is the routing view of a chat room.
type Room struct {
	ID        string
	ChannelID string
	Status    Status
	ClientID  string
}

// TelegramRoute holds what the channel needs to address a room's conversation.
type TelegramRoute struct {
	ExternalConversationID string
	BotToken               string
}

// ResolveInput identifies the conversation behind an inbound message.
type ResolveInput struct {
	// ChannelTechnicalID is the bot token identifying the channel.
	ChannelTechnicalID string
	// ExternalConversationID is "{businessAccount}:{chatId}".
	ExternalConversationID string
	ClientID               string
	// CreateIfAbsent is false for media payloads: media cannot open a new
	// case, the client must first describe the issue in text.
	CreateIfAbsent bool
}
