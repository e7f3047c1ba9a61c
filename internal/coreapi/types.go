package coreapi

// ChatRoom is the room aggregate returned by the application core.
type ChatRoom struct {
	ChatRoomID       string   `json:"chatRoomId"`
	ChannelID        string   `json:"channelId"`
	ChatRoomStatus   string   `json:"chatRoomStatus"`
	OrganizationsIDs []string `json:"organizationsIds"`
}

// CreateChatRoomInput opens a new room for a channel-native conversation.
type CreateChatRoomInput struct {
	ChannelTechnicalID     string
	ChannelTypeName        string
	ClientID               string
	ExternalConversationID string
}

// QuotedMessage is the optional backlink carried by a message. It is a
// relation only; the quoted message is owned by its own log entry.
type QuotedMessage struct {
	MessageID   string `json:"messageId,omitempty"`
	AuthorID    string `json:"messageAuthorId,omitempty"`
	ChannelID   string `json:"messageChannelId,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Text        string `json:"messageText,omitempty"`
	Content     string `json:"messageContent,omitempty"`
}

// Message is the message aggregate returned by the core mutations.
type Message struct {
	MessageID   string         `json:"messageId"`
	ChatRoomID  string         `json:"chatRoomId"`
	AuthorID    string         `json:"messageAuthorId"`
	ChannelID   string         `json:"messageChannelId"`
	MessageType string         `json:"messageType"`
	Text        string         `json:"messageText"`
	Content     string         `json:"messageContent"`
	Quoted      *QuotedMessage `json:"quotedMessage"`
	CreatedAt   string         `json:"messageCreatedDateTime"`
	IsSent      bool           `json:"messageIsSent"`
	IsDelivered bool           `json:"messageIsDelivered"`
	IsRead      bool           `json:"messageIsRead"`
}

// CreateMessageInput appends a message to a room through the core.
// Content carries the serialized content-item list, empty for pure text.
type CreateMessageInput struct {
	ChatRoomID  string
	AuthorID    string
	ChannelID   string
	MessageType string
	Text        string
	Content     string
	Quoted      *QuotedMessage
}

// UpdateMessageDataInput mutates only the delivery flags of a message.
type UpdateMessageDataInput struct {
	ChatRoomID  string
	MessageID   string
	IsSent      *bool
	IsDelivered *bool
	IsRead      *bool
}
