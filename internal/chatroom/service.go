package chatroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bridgelet/bridgelet/internal/coreapi"
	"github.com/bridgelet/bridgelet/internal/events"
)

const channelTypeName = "telegram"

// RoomStore reads room state from the relational store.
type RoomStore interface {
	FindByConversation(ctx context.Context, externalConversationID string) (Room, error)
	LastOperator(ctx context.Context, roomID string) (string, error)
}

// QueueStore mutates the per-organization and per-operator queue tables.
type QueueStore interface {
	PutNonAccepted(ctx context.Context, organizationID, channelID, roomID, clientID string) error
	UpdateAcceptedLastMessage(ctx context.Context, operatorID, channelID, roomID, preview string, at time.Time) (bool, error)
	DeleteCompleted(ctx context.Context, operatorID, channelID, roomID string) error
}

// CoreClient is the slice of the application core the state machine needs.
type CoreClient interface {
	CreateChatRoom(ctx context.Context, in coreapi.CreateChatRoomInput) (coreapi.ChatRoom, error)
	ActivateClosedChatRoom(ctx context.Context, chatRoomID, clientID string) (coreapi.ChatRoom, error)
}

// EventPublisher emits reconciliation events for partial fan-out failures.
type EventPublisher interface {
	PublishRoomFanoutFailed(ctx context.Context, event events.RoomFanoutFailed) error
}

// Service owns room status transitions and the routing of rooms into the
// organizations' pending queues.
type Service struct {
	rooms  RoomStore
	queue  QueueStore
	core   CoreClient
	events EventPublisher
	logger *slog.Logger
}

func NewService(log *slog.Logger, rooms RoomStore, queue QueueStore, core CoreClient, publisher EventPublisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		rooms:  rooms,
		queue:  queue,
		core:   core,
		events: publisher,
		logger: log.With(slog.String("component", "chatroom")),
	}
}

// Resolve maps a conversation to its room, creating or reopening one when
// the state machine requires it. Lookups are idempotent: with no
// status-changing event in between, two calls yield the same room.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (Room, error) {
	room, err := s.rooms.FindByConversation(ctx, in.ExternalConversationID)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		if !in.CreateIfAbsent {
			return Room{}, ErrRoomNotFound
		}
		return s.create(ctx, in)
	case err != nil:
		return Room{}, err
	}
	if room.ClientID == "" {
		room.ClientID = in.ClientID
	}
	if room.Status == StatusCompleted {
		return s.reopen(ctx, room)
	}
	return room, nil
}

// TouchSummary refreshes the accepted-room last-message summary keyed by
// the most recently joined operator. Rooms without an operator, or without
// a summary row yet, are left untouched.
func (s *Service) TouchSummary(ctx context.Context, room Room, preview string, at time.Time) error {
	operatorID, err := s.rooms.LastOperator(ctx, room.ID)
	if errors.Is(err, ErrNoOperator) {
		s.logger.Debug("summary skipped, no operator", slog.String("chat_room_id", room.ID))
		return nil
	}
	if err != nil {
		return err
	}
	applied, err := s.queue.UpdateAcceptedLastMessage(ctx, operatorID, room.ChannelID, room.ID, preview, at)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debug("summary skipped, no row",
			slog.String("chat_room_id", room.ID),
			slog.String("operator_id", operatorID),
		)
	}
	return nil
}

func (s *Service) create(ctx context.Context, in ResolveInput) (Room, error) {
	aggregate, err := s.core.CreateChatRoom(ctx, coreapi.CreateChatRoomInput{
		ChannelTechnicalID:     in.ChannelTechnicalID,
		ChannelTypeName:        channelTypeName,
		ClientID:               in.ClientID,
		ExternalConversationID: in.ExternalConversationID,
	})
	if err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	room := Room{
		ID:        aggregate.ChatRoomID,
		ChannelID: aggregate.ChannelID,
		Status:    StatusNonAccepted,
		ClientID:  in.ClientID,
	}
	s.logger.Info("room created",
		slog.String("chat_room_id", room.ID),
		slog.String("channel_id", room.ChannelID),
		slog.Int("organizations", len(aggregate.OrganizationsIDs)),
	)
	if err := s.fanOut(ctx, room, aggregate.OrganizationsIDs); err != nil {
		return room, err
	}
	return room, nil
}

func (s *Service) reopen(ctx context.Context, room Room) (Room, error) {
	aggregate, err := s.core.ActivateClosedChatRoom(ctx, room.ID, room.ClientID)
	if err != nil {
		return Room{}, fmt.Errorf("reopen room: %w", err)
	}
	room.Status = StatusNonAccepted

	// The stale completed entry is keyed by the operator who closed the room.
	operatorID, err := s.rooms.LastOperator(ctx, room.ID)
	switch {
	case errors.Is(err, ErrNoOperator):
		// Nothing to clean up.
	case err != nil:
		return room, err
	default:
		if err := s.queue.DeleteCompleted(ctx, operatorID, room.ChannelID, room.ID); err != nil {
			return room, err
		}
	}

	s.logger.Info("room reopened",
		slog.String("chat_room_id", room.ID),
		slog.Int("organizations", len(aggregate.OrganizationsIDs)),
	)
	if err := s.fanOut(ctx, room, aggregate.OrganizationsIDs); err != nil {
		return room, err
	}
	return room, nil
}

// fanOut enqueues the room into every authorized organization's pending
// queue. The fan-out is not transactional with the room creation: a partial
// failure leaves the room under-routed, so the failed organizations are
// published as a reconciliation event before the error propagates.
func (s *Service) fanOut(ctx context.Context, room Room, organizationIDs []string) error {
	if len(organizationIDs) == 0 {
		return nil
	}
	failures := make([]error, len(organizationIDs))
	var group errgroup.Group
	for i, organizationID := range organizationIDs {
		group.Go(func() error {
			err := s.queue.PutNonAccepted(ctx, organizationID, room.ChannelID, room.ID, room.ClientID)
			failures[i] = err
			return err
		})
	}
	err := group.Wait()
	if err == nil {
		return nil
	}

	pending := make([]string, 0, len(organizationIDs))
	for i, failure := range failures {
		if failure != nil {
			pending = append(pending, organizationIDs[i])
		}
	}
	s.logger.Error("room fan-out incomplete",
		slog.String("chat_room_id", room.ID),
		slog.Any("pending_organizations", pending),
		slog.Any("error", err),
	)
	if s.events != nil {
		publishErr := s.events.PublishRoomFanoutFailed(ctx, events.RoomFanoutFailed{
			ChatRoomID:           room.ID,
			ChannelID:            room.ChannelID,
			ClientID:             room.ClientID,
			PendingOrganizations: pending,
			Reason:               err.Error(),
			OccurredAt:           time.Now().UTC(),
		})
		if publishErr != nil {
			s.logger.Error("publish reconciliation event failed", slog.Any("error", publishErr))
		}
	}
	return fmt.Errorf("fan-out: %w", err)
}
