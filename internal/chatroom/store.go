package chatroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridgelet/bridgelet/internal/db"
)

const findByConversationQuery = `
select
	chat_rooms.chat_room_id,
	chat_rooms.channel_id,
	chat_rooms.chat_room_status,
	(
		select
			users.user_id
		from
			chat_rooms_users_relationship
		left join users on
			chat_rooms_users_relationship.user_id = users.user_id
		where
			chat_rooms_users_relationship.chat_room_id = chat_rooms.chat_room_id
		and
			users.internal_user_id is null
		and
			(users.identified_user_id is not null or users.unidentified_user_id is not null)
		limit 1
	) as client_id
from
	chat_rooms
left join telegram_chat_rooms on
	chat_rooms.chat_room_id = telegram_chat_rooms.chat_room_id
where
	telegram_chat_rooms.telegram_chat_id = $1
limit 1`

const lastOperatorQuery = `
select
	users.user_id
from
	chat_rooms_users_relationship
left join users on
	chat_rooms_users_relationship.user_id = users.user_id
where
	chat_rooms_users_relationship.chat_room_id = $1
and
	users.internal_user_id is not null
order by
	chat_rooms_users_relationship.entry_created_date_time desc
limit 1`

const telegramRouteQuery = `
select
	telegram_chat_rooms.telegram_chat_id,
	channels.channel_technical_id
from
	chat_rooms
left join telegram_chat_rooms on
	chat_rooms.chat_room_id = telegram_chat_rooms.chat_room_id
left join channels on
	chat_rooms.channel_id = channels.channel_id
where
	chat_rooms.chat_room_id = $1
limit 1`

// PGStore reads room identity and routing state from Postgres. The schema is
// consumed, not owned; every statement is parameterized and read-only.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// FindByConversation resolves the channel-native conversation id to a room.
func (s *PGStore) FindByConversation(ctx context.Context, externalConversationID string) (Room, error) {
	var (
		roomID   string
		channel  string
		status   string
		clientID pgtype.Text
	)
	err := s.pool.QueryRow(ctx, findByConversationQuery, externalConversationID).
		Scan(&roomID, &channel, &status, &clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("find room: %w", err)
	}
	return Room{
		ID:        roomID,
		ChannelID: channel,
		Status:    Status(status),
		ClientID:  db.TextToString(clientID),
	}, nil
}

// LastOperator returns the most recently joined operator-kind member of a
// room, ordering membership rows by join time descending.
func (s *PGStore) LastOperator(ctx context.Context, roomID string) (string, error) {
	var operatorID string
	err := s.pool.QueryRow(ctx, lastOperatorQuery, roomID).Scan(&operatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoOperator
	}
	if err != nil {
		return "", fmt.Errorf("last operator: %w", err)
	}
	return operatorID, nil
}

// TelegramRoute returns the conversation id and bot token serving a room.
func (s *PGStore) TelegramRoute(ctx context.Context, roomID string) (TelegramRoute, error) {
	var route TelegramRoute
	err := s.pool.QueryRow(ctx, telegramRouteQuery, roomID).
		Scan(&route.ExternalConversationID, &route.BotToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return TelegramRoute{}, ErrRoomNotFound
	}
	if err != nil {
		return TelegramRoute{}, fmt.Errorf("telegram route: %w", err)
	}
	return route, nil
}
