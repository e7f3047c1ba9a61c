package chatroom

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

const putNonAcceptedStmt = `
insert into non_accepted_chat_rooms (organization_id, channel_id, chat_room_id, client_id)
values (?, ?, ?, ?)`

const updateAcceptedStmt = `
update accepted_chat_rooms
set last_message_content = ?, last_message_date_time = ?
where operator_id = ? and channel_id = ? and chat_room_id = ?
if exists`

const deleteCompletedStmt = `
delete from completed_chat_rooms
where operator_id = ? and channel_id = ? and chat_room_id = ?`

// CQLQueue is the wide-column store behind the per-organization pending
// queues and the per-operator room summaries.
type CQLQueue struct {
	session *gocql.Session
}

func NewCQLQueue(session *gocql.Session) *CQLQueue {
	return &CQLQueue{session: session}
}

// PutNonAccepted enqueues a room into one organization's pending backlog.
func (q *CQLQueue) PutNonAccepted(ctx context.Context, organizationID, channelID, roomID, clientID string) error {
	err := q.session.Query(putNonAcceptedStmt, organizationID, channelID, roomID, clientID).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("put non-accepted: %w", err)
	}
	return nil
}

// UpdateAcceptedLastMessage refreshes the last-message summary of an
// accepted room. The update is conditional: a missing summary row is a
// no-op, reported through applied, not an error.
func (q *CQLQueue) UpdateAcceptedLastMessage(ctx context.Context, operatorID, channelID, roomID, preview string, at time.Time) (bool, error) {
	applied, err := q.session.Query(updateAcceptedStmt, preview, at, operatorID, channelID, roomID).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, fmt.Errorf("update accepted summary: %w", err)
	}
	return applied, nil
}

// DeleteCompleted removes a room's entry from the completed index.
func (q *CQLQueue) DeleteCompleted(ctx context.Context, operatorID, channelID, roomID string) error {
	err := q.session.Query(deleteCompletedStmt, operatorID, channelID, roomID).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("delete completed: %w", err)
	}
	return nil
}
