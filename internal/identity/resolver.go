package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound reports that no client user exists for a username.
var ErrNotFound = errors.New("client not found")

// Profile carries the channel-provided identity fields for a client.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
	Metadata  map[string]any
}

// Store is the persistence surface the resolver needs. The Postgres
// implementation lives in store.go.
type Store interface {
	// FindClientByUsername returns the user id for an identified client,
	// excluding internal (operator) users. ErrNotFound when absent.
	FindClientByUsername(ctx context.Context, username string) (string, error)
	// CreateIdentifiedClient inserts the identified-user profile and its
	// user row in one transaction. created is false when the username
	// uniqueness constraint was hit by a concurrent writer; in that case
	// no rows were written and userID is empty.
	CreateIdentifiedClient(ctx context.Context, profile Profile) (userID string, created bool, err error)
}

// Resolver maps a channel-native sender onto an internal client user,
// creating one on first contact. At most one account exists per username:
// concurrent creators converge on the store's uniqueness constraint, and
// the loser re-reads the winner's id instead of propagating a null.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(log *slog.Logger, store Store) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: log.With(slog.String("component", "identity")),
	}
}

// ResolveClient returns the user id for the sender, creating the identified
// user when this is the first contact.
func (r *Resolver) ResolveClient(ctx context.Context, profile Profile) (string, error) {
	if profile.Username == "" {
		return "", fmt.Errorf("username is required")
	}

	userID, err := r.store.FindClientByUsername(ctx, profile.Username)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("find client: %w", err)
	}

	userID, created, err := r.store.CreateIdentifiedClient(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}
	if created {
		r.logger.Info("client created",
			slog.String("username", profile.Username),
			slog.String("user_id", userID),
		)
		return userID, nil
	}

	// Lost the race: a concurrent request created the account first.
	userID, err = r.store.FindClientByUsername(ctx, profile.Username)
	if err != nil {
		return "", fmt.Errorf("re-read after conflict: %w", err)
	}
	return userID, nil
}
