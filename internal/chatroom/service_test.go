package chatroom_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bridgelet/bridgelet/internal/chatroom"
	"github.com/bridgelet/bridgelet/internal/coreapi"
	"github.com/bridgelet/bridgelet/internal/events"
)

type fakeRoomStore struct {
	room       chatroom.Room
	findErr    error
	operatorID string
	opErr      error
}

func (f *fakeRoomStore) FindByConversation(ctx context.Context, externalConversationID string) (chatroom.Room, error) {
	if f.findErr != nil {
		return chatroom.Room{}, f.findErr
	}
	return f.room, nil
}

func (f *fakeRoomStore) LastOperator(ctx context.Context, roomID string) (string, error) {
	if f.opErr != nil {
		return "", f.opErr
	}
	return f.operatorID, nil
}

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  []string
	failOrgs  map[string]bool
	deleted   []string
	applied   bool
	summaries []string
}

func (f *fakeQueue) PutNonAccepted(ctx context.Context, organizationID, channelID, roomID, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOrgs[organizationID] {
		return errors.New("queue unavailable")
	}
	f.enqueued = append(f.enqueued, organizationID)
	return nil
}

func (f *fakeQueue) UpdateAcceptedLastMessage(ctx context.Context, operatorID, channelID, roomID, preview string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, preview)
	return f.applied, nil
}

func (f *fakeQueue) DeleteCompleted(ctx context.Context, operatorID, channelID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, operatorID)
	return nil
}

type fakeCore struct {
	created   int
	activated int
	aggregate coreapi.ChatRoom
}

func (f *fakeCore) CreateChatRoom(ctx context.Context, in coreapi.CreateChatRoomInput) (coreapi.ChatRoom, error) {
	f.created++
	return f.aggregate, nil
}

func (f *fakeCore) ActivateClosedChatRoom(ctx context.Context, chatRoomID, clientID string) (coreapi.ChatRoom, error) {
	f.activated++
	return f.aggregate, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.RoomFanoutFailed
}

func (f *fakePublisher) PublishRoomFanoutFailed(ctx context.Context, event events.RoomFanoutFailed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func TestResolve_AbsentWithoutCreate(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{findErr: chatroom.ErrRoomNotFound}
	core := &fakeCore{}
	svc := chatroom.NewService(nil, rooms, &fakeQueue{}, core, nil)

	_, err := svc.Resolve(context.Background(), chatroom.ResolveInput{
		ExternalConversationID: "acc:1",
		ClientID:               "client-1",
		CreateIfAbsent:         false,
	})
	if !errors.Is(err, chatroom.ErrRoomNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrRoomNotFound", err)
	}
	if core.created != 0 {
		t.Fatalf("created %d rooms, want 0", core.created)
	}
}

func TestResolve_CreatesAndFansOut(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{findErr: chatroom.ErrRoomNotFound}
	queue := &fakeQueue{}
	core := &fakeCore{aggregate: coreapi.ChatRoom{
		ChatRoomID:       "room-1",
		ChannelID:        "chan-1",
		ChatRoomStatus:   string(chatroom.StatusNonAccepted),
		OrganizationsIDs: []string{"org-a", "org-b", "org-c"},
	}}
	svc := chatroom.NewService(nil, rooms, queue, core, nil)

	room, err := svc.Resolve(context.Background(), chatroom.ResolveInput{
		ExternalConversationID: "acc:1",
		ClientID:               "client-1",
		CreateIfAbsent:         true,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if room.ID != "room-1" || room.Status != chatroom.StatusNonAccepted {
		t.Fatalf("room = %+v", room)
	}
	if core.created != 1 {
		t.Fatalf("created %d rooms, want 1", core.created)
	}
	sort.Strings(queue.enqueued)
	if len(queue.enqueued) != 3 {
		t.Fatalf("enqueued %v, want all three organizations", queue.enqueued)
	}
}

func TestResolve_ExistingRoomIsIdempotent(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{room: chatroom.Room{ID: "room-1", ChannelID: "chan-1", Status: chatroom.StatusAccepted, ClientID: "client-1"}}
	core := &fakeCore{}
	queue := &fakeQueue{}
	svc := chatroom.NewService(nil, rooms, queue, core, nil)

	for i := 0; i < 2; i++ {
		room, err := svc.Resolve(context.Background(), chatroom.ResolveInput{
			ExternalConversationID: "acc:1",
			ClientID:               "client-1",
			CreateIfAbsent:         true,
		})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if room.ID != "room-1" || room.Status != chatroom.StatusAccepted {
			t.Fatalf("room = %+v", room)
		}
	}
	if core.created != 0 || core.activated != 0 {
		t.Fatalf("core mutations = %d/%d, want none", core.created, core.activated)
	}
	if len(queue.enqueued) != 0 {
		t.Fatalf("enqueued %v, want none", queue.enqueued)
	}
}

func TestResolve_ReopensCompletedRoom(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{
		room:       chatroom.Room{ID: "room-1", ChannelID: "chan-1", Status: chatroom.StatusCompleted, ClientID: "client-1"},
		operatorID: "op-9",
	}
	queue := &fakeQueue{}
	core := &fakeCore{aggregate: coreapi.ChatRoom{
		ChatRoomID:       "room-1",
		ChannelID:        "chan-1",
		ChatRoomStatus:   string(chatroom.StatusNonAccepted),
		OrganizationsIDs: []string{"org-a"},
	}}
	svc := chatroom.NewService(nil, rooms, queue, core, nil)

	room, err := svc.Resolve(context.Background(), chatroom.ResolveInput{
		ExternalConversationID: "acc:1",
		ClientID:               "client-1",
		CreateIfAbsent:         false,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if room.Status != chatroom.StatusNonAccepted {
		t.Fatalf("Status = %q, want non_accepted", room.Status)
	}
	if core.activated != 1 {
		t.Fatalf("activated %d times, want 1", core.activated)
	}
	if len(queue.deleted) != 1 || queue.deleted[0] != "op-9" {
		t.Fatalf("deleted = %v, want the closing operator's entry", queue.deleted)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "org-a" {
		t.Fatalf("enqueued = %v, want org-a", queue.enqueued)
	}
}

func TestResolve_PartialFanoutPublishesEvent(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{findErr: chatroom.ErrRoomNotFound}
	queue := &fakeQueue{failOrgs: map[string]bool{"org-b": true}}
	core := &fakeCore{aggregate: coreapi.ChatRoom{
		ChatRoomID:       "room-1",
		ChannelID:        "chan-1",
		OrganizationsIDs: []string{"org-a", "org-b"},
	}}
	publisher := &fakePublisher{}
	svc := chatroom.NewService(nil, rooms, queue, core, publisher)

	_, err := svc.Resolve(context.Background(), chatroom.ResolveInput{
		ExternalConversationID: "acc:1",
		ClientID:               "client-1",
		CreateIfAbsent:         true,
	})
	if err == nil {
		t.Fatalf("Resolve() error = nil, want fan-out failure")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	if event.ChatRoomID != "room-1" {
		t.Fatalf("event room = %q", event.ChatRoomID)
	}
	if len(event.PendingOrganizations) != 1 || event.PendingOrganizations[0] != "org-b" {
		t.Fatalf("pending = %v, want [org-b]", event.PendingOrganizations)
	}
}

func TestTouchSummary_NoOperatorIsNoop(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{opErr: chatroom.ErrNoOperator}
	queue := &fakeQueue{}
	svc := chatroom.NewService(nil, rooms, queue, &fakeCore{}, nil)

	err := svc.TouchSummary(context.Background(), chatroom.Room{ID: "room-1"}, "hi", time.Now())
	if err != nil {
		t.Fatalf("TouchSummary() error = %v", err)
	}
	if len(queue.summaries) != 0 {
		t.Fatalf("summaries = %v, want none", queue.summaries)
	}
}

func TestTouchSummary_MissingRowIsNoop(t *testing.T) {
	t.Parallel()
	rooms := &fakeRoomStore{operatorID: "op-1"}
	queue := &fakeQueue{applied: false}
	svc := chatroom.NewService(nil, rooms, queue, &fakeCore{}, nil)

	err := svc.TouchSummary(context.Background(), chatroom.Room{ID: "room-1", ChannelID: "chan-1"}, "hi", time.Now())
	if err != nil {
		t.Fatalf("TouchSummary() error = %v", err)
	}
	if len(queue.summaries) != 1 {
		t.Fatalf("summaries = %v, want one attempt", queue.summaries)
	}
}
