package postgres

import (
	"context"
	"errors"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	displayName := u.DisplayName
	if displayName == "" {
		displayName = u.Username
	}

	var out model.User
	err := s.pool.QueryRow(ctx, `
		insert into public.users (username, password_hash, display_name, avatar_url)
		values ($1, $2, $3, nullif($4, ''))
		returning id::text, username, password_hash, display_name, coalesce(avatar_url, ''),
		          is_online, last_seen_at, created_at, updated_at
	`, u.Username, u.PasswordHash, displayName, u.AvatarURL).Scan(
		&out.ID,
		&out.Username,
		&out.PasswordHash,
		&out.DisplayName,
		&out.AvatarURL,
		&out.IsOnline,
		&out.LastSeenAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		select id::text, username, password_hash, display_name, coalesce(avatar_url, ''),
		       is_online, last_seen_at, created_at, updated_at
		from public.users
		where lower(username) = lower($1)
	`, username).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.DisplayName,
		&u.AvatarURL,
		&u.IsOnline,
		&u.LastSeenAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		select id::text, username, password_hash, display_name, coalesce(avatar_url, ''),
		       is_online, last_seen_at, created_at, updated_at
		from public.users
		where id = $1::uuid
	`, id).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.DisplayName,
		&u.AvatarURL,
		&u.IsOnline,
		&u.LastSeenAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) SetUserPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	cmdTag, err := s.pool.Exec(ctx, `
		update public.users
		set is_online = $2,
		    last_seen_at = $3,
		    updated_at = now()
		where id = $1::uuid
	`, userID, online, at)
	if err != nil {
		return mapPgErr(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
