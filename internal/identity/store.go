package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const findClientQuery = `
select
	users.user_id
from
	users
left join identified_users on
	users.identified_user_id = identified_users.identified_user_id
where
	identified_users.telegram_username = $1
and
	users.internal_user_id is null
and
	users.unidentified_user_id is null
limit 1`

const insertIdentifiedUserQuery = `
insert into identified_users (
	identified_user_first_name,
	identified_user_last_name,
	metadata,
	telegram_username
) values ($1, $2, $3, $4)
on conflict (telegram_username) do nothing
returning identified_user_id`

const insertUserQuery = `
insert into users (identified_user_id)
values ($1)
returning user_id`

// PGStore is the Postgres-backed identity store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) FindClientByUsername(ctx context.Context, username string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, findClientQuery, username).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PGStore) CreateIdentifiedClient(ctx context.Context, profile Profile) (string, bool, error) {
	metadata, err := json.Marshal(profile.Metadata)
	if err != nil {
		return "", false, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var identifiedUserID string
	err = tx.QueryRow(ctx, insertIdentifiedUserQuery,
		profile.FirstName,
		profile.LastName,
		metadata,
		profile.Username,
	).Scan(&identifiedUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict on username: the concurrent writer owns the account.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("insert identified user: %w", err)
	}

	var userID string
	if err := tx.QueryRow(ctx, insertUserQuery, identifiedUserID).Scan(&userID); err != nil {
		return "", false, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return userID, true, nil
}
