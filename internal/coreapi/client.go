package coreapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/machinebox/graphql"

	"github.com/bridgelet/bridgelet/internal/config"
)

// Client is the GraphQL client for the application core. Every mutation uses
// typed variables; identifiers are never interpolated into query text.
type Client struct {
	gql    *graphql.Client
	apiKey string
	logger *slog.Logger
}

func New(log *slog.Logger, cfg config.CoreConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		gql:    graphql.NewClient(cfg.URL),
		apiKey: cfg.APIKey,
		logger: log.With(slog.String("component", "coreapi")),
	}
}

const createChatRoomMutation = `
mutation CreateChatRoom(
	$channelTechnicalId: String!,
	$channelTypeName: String!,
	$clientId: String!,
	$telegramChatId: String!
) {
	createChatRoom(input: {
		channelTechnicalId: $channelTechnicalId,
		channelTypeName: $channelTypeName,
		clientId: $clientId,
		telegramChatId: $telegramChatId
	}) {
		chatRoomId
		channelId
		chatRoomStatus
		organizationsIds
	}
}`

const activateClosedChatRoomMutation = `
mutation ActivateClosedChatRoom($chatRoomId: String!, $clientId: String!) {
	activateClosedChatRoom(input: {
		chatRoomId: $chatRoomId,
		clientId: $clientId
	}) {
		chatRoomId
		channelId
		chatRoomStatus
		organizationsIds
	}
}`

const createChatRoomMessageMutation = `
mutation CreateChatRoomMessage(
	$chatRoomId: String!,
	$messageAuthorId: String!,
	$messageChannelId: String!,
	$messageType: String!,
	$messageText: String,
	$messageContent: String,
	$quotedMessage: QuotedMessageInput
) {
	createChatRoomMessage(input: {
		chatRoomId: $chatRoomId,
		messageAuthorId: $messageAuthorId,
		messageChannelId: $messageChannelId,
		messageType: $messageType,
		messageText: $messageText,
		messageContent: $messageContent,
		quotedMessage: $quotedMessage
	}) {
		messageId
		chatRoomId
		messageAuthorId
		messageChannelId
		messageType
		messageText
		messageContent
		messageCreatedDateTime
		messageIsSent
		messageIsDelivered
		messageIsRead
		quotedMessage {
			messageId
			messageAuthorId
			messageChannelId
			messageType
			messageText
			messageContent
		}
	}
}`

const updateMessageDataMutation = `
mutation UpdateMessageData(
	$chatRoomId: String!,
	$messageId: String!,
	$messageIsSent: Boolean,
	$messageIsDelivered: Boolean,
	$messageIsRead: Boolean
) {
	updateMessageData(input: {
		chatRoomId: $chatRoomId,
		messageId: $messageId,
		messageIsSent: $messageIsSent,
		messageIsDelivered: $messageIsDelivered,
		messageIsRead: $messageIsRead
	}) {
		messageId
		chatRoomId
		messageIsSent
		messageIsDelivered
		messageIsRead
	}
}`

// CreateChatRoom opens a room in the core and returns the aggregate,
// including the organizations authorized to serve the channel.
func (c *Client) CreateChatRoom(ctx context.Context, in CreateChatRoomInput) (ChatRoom, error) {
	req := graphql.NewRequest(createChatRoomMutation)
	req.Var("channelTechnicalId", in.ChannelTechnicalID)
	req.Var("channelTypeName", in.ChannelTypeName)
	req.Var("clientId", in.ClientID)
	req.Var("telegramChatId", in.ExternalConversationID)

	var resp struct {
		CreateChatRoom ChatRoom `json:"createChatRoom"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return ChatRoom{}, fmt.Errorf("createChatRoom: %w", err)
	}
	return resp.CreateChatRoom, nil
}

// ActivateClosedChatRoom reopens a completed room when its client writes again.
func (c *Client) ActivateClosedChatRoom(ctx context.Context, chatRoomID, clientID string) (ChatRoom, error) {
	req := graphql.NewRequest(activateClosedChatRoomMutation)
	req.Var("chatRoomId", chatRoomID)
	req.Var("clientId", clientID)

	var resp struct {
		ActivateClosedChatRoom ChatRoom `json:"activateClosedChatRoom"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return ChatRoom{}, fmt.Errorf("activateClosedChatRoom: %w", err)
	}
	return resp.ActivateClosedChatRoom, nil
}

// CreateChatRoomMessage persists a message in the core, which assigns the
// time-ordered message id.
func (c *Client) CreateChatRoomMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	req := graphql.NewRequest(createChatRoomMessageMutation)
	req.Var("chatRoomId", in.ChatRoomID)
	req.Var("messageAuthorId", in.AuthorID)
	req.Var("messageChannelId", in.ChannelID)
	req.Var("messageType", in.MessageType)
	req.Var("messageText", in.Text)
	req.Var("messageContent", in.Content)
	req.Var("quotedMessage", in.Quoted)

	var resp struct {
		CreateChatRoomMessage Message `json:"createChatRoomMessage"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return Message{}, fmt.Errorf("createChatRoomMessage: %w", err)
	}
	return resp.CreateChatRoomMessage, nil
}

// UpdateMessageData updates the delivery flags of a persisted message.
func (c *Client) UpdateMessageData(ctx context.Context, in UpdateMessageDataInput) (Message, error) {
	req := graphql.NewRequest(updateMessageDataMutation)
	req.Var("chatRoomId", in.ChatRoomID)
	req.Var("messageId", in.MessageID)
	req.Var("messageIsSent", in.IsSent)
	req.Var("messageIsDelivered", in.IsDelivered)
	req.Var("messageIsRead", in.IsRead)

	var resp struct {
		UpdateMessageData Message `json:"updateMessageData"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return Message{}, fmt.Errorf("updateMessageData: %w", err)
	}
	return resp.UpdateMessageData, nil
}

func (c *Client) run(ctx context.Context, req *graphql.Request, out any) error {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.gql.Run(ctx, req, out)
}
