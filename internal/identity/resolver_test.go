package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bridgelet/bridgelet/internal/identity"
)

type fakeStore struct {
	finds      []string
	findQueue  []findResult
	createID   string
	created    bool
	createErr  error
	createHits int
}

type findResult struct {
	id  string
	err error
}

func (f *fakeStore) FindClientByUsername(ctx context.Context, username string) (string, error) {
	f.finds = append(f.finds, username)
	if len(f.findQueue) == 0 {
		return "", identity.ErrNotFound
	}
	next := f.findQueue[0]
	f.findQueue = f.findQueue[1:]
	return next.id, next.err
}

func (f *fakeStore) CreateIdentifiedClient(ctx context.Context, profile identity.Profile) (string, bool, error) {
	f.createHits++
	return f.createID, f.created, f.createErr
}

func TestResolveClient_Existing(t *testing.T) {
	t.Parallel()
	store := &fakeStore{findQueue: []findResult{{id: "user-1"}}}
	resolver := identity.NewResolver(nil, store)

	userID, err := resolver.ResolveClient(context.Background(), identity.Profile{Username: "ada"})
	if err != nil {
		t.Fatalf("ResolveClient() error = %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("userID = %q, want user-1", userID)
	}
	if store.createHits != 0 {
		t.Fatalf("created %d times, want 0", store.createHits)
	}
}

func TestResolveClient_FirstContactCreates(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		findQueue: []findResult{{err: identity.ErrNotFound}},
		createID:  "user-2",
		created:   true,
	}
	resolver := identity.NewResolver(nil, store)

	userID, err := resolver.ResolveClient(context.Background(), identity.Profile{Username: "ada", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("ResolveClient() error = %v", err)
	}
	if userID != "user-2" {
		t.Fatalf("userID = %q, want user-2", userID)
	}
	if store.createHits != 1 {
		t.Fatalf("created %d times, want 1", store.createHits)
	}
}

func TestResolveClient_ConflictRereadsWinner(t *testing.T) {
	t.Parallel()
	// A concurrent request created the same username between the miss and
	// the insert: the insert applies nothing and the winner's id is re-read.
	store := &fakeStore{
		findQueue: []findResult{
			{err: identity.ErrNotFound},
			{id: "user-3"},
		},
		created: false,
	}
	resolver := identity.NewResolver(nil, store)

	userID, err := resolver.ResolveClient(context.Background(), identity.Profile{Username: "ada"})
	if err != nil {
		t.Fatalf("ResolveClient() error = %v", err)
	}
	if userID != "user-3" {
		t.Fatalf("userID = %q, want the winner's user-3", userID)
	}
	if len(store.finds) != 2 {
		t.Fatalf("find called %d times, want 2", len(store.finds))
	}
}

func TestResolveClient_RequiresUsername(t *testing.T) {
	t.Parallel()
	resolver := identity.NewResolver(nil, &fakeStore{})
	if _, err := resolver.ResolveClient(context.Background(), identity.Profile{}); err == nil {
		t.Fatalf("ResolveClient() error = nil, want username required")
	}
}

func TestResolveClient_CreateFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		findQueue: []findResult{{err: identity.ErrNotFound}},
		createErr: errors.New("db down"),
	}
	resolver := identity.NewResolver(nil, store)
	if _, err := resolver.ResolveClient(context.Background(), identity.Profile{Username: "ada"}); err == nil {
		t.Fatalf("ResolveClient() error = nil, want create failure")
	}
}
