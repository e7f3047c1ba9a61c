package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/bridgelet/bridgelet/internal/coreapi"
)

const appendMessageStmt = `
insert into chat_rooms_messages (
	chat_room_id, message_id, message_author_id, message_channel_id,
	message_type, message_text, message_content,
	message_created_date_time, message_is_sent, message_is_delivered, message_is_read
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CQLMessageLog appends persisted messages to the wide-column message log.
// The core assigns message ids as time uuids, so rows within a room cluster
// in send order.
type CQLMessageLog struct {
	session *gocql.Session
}

func NewCQLMessageLog(session *gocql.Session) *CQLMessageLog {
	return &CQLMessageLog{session: session}
}

// Append writes one message row. The message id must already be assigned by
// the application core.
func (l *CQLMessageLog) Append(ctx context.Context, msg coreapi.Message) error {
	roomID, err := gocql.ParseUUID(msg.ChatRoomID)
	if err != nil {
		return fmt.Errorf("parse chat room id: %w", err)
	}
	messageID, err := gocql.ParseUUID(msg.MessageID)
	if err != nil {
		return fmt.Errorf("parse message id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, msg.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	err = l.session.Query(appendMessageStmt,
		roomID, messageID, msg.AuthorID, msg.ChannelID,
		msg.MessageType, msg.Text, msg.Content,
		createdAt, msg.IsSent, msg.IsDelivered, msg.IsRead,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
