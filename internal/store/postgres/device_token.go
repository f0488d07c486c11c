package postgres

import (
	"context"
	"errors"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateDeviceCode(ctx context.Context, t model.DeviceToken) (model.DeviceToken, error) {
	// Drop any older unverified codes first. Not run in a transaction with
	// the insert: a stale, already-deleted code cannot be exchanged anyway.
	_, err := s.pool.Exec(ctx, `
		delete from public.device_tokens
		where user_id = $1::uuid
		  and is_verified = false
	`, t.UserID)
	if err != nil {
		return model.DeviceToken{}, mapPgErr(err)
	}

	var out model.DeviceToken
	err = s.pool.QueryRow(ctx, `
		insert into public.device_tokens (user_id, code, is_verified, expires_at)
		values ($1::uuid, $2, false, $3)
		returning id::text, user_id::text, coalesce(code, ''), coalesce(access_token, ''),
		          coalesce(device_name, ''), is_verified, expires_at, last_used_at, created_at
	`, t.UserID, t.Code, t.ExpiresAt).Scan(
		&out.ID,
		&out.UserID,
		&out.Code,
		&out.AccessToken,
		&out.DeviceName,
		&out.IsVerified,
		&out.ExpiresAt,
		&out.LastUsedAt,
		&out.CreatedAt,
	)
	if err != nil {
		return model.DeviceToken{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) ExchangeDeviceCode(ctx context.Context, req store.ExchangeDeviceCodeRequest) (*model.DeviceToken, error) {
	var t model.DeviceToken
	err := s.pool.QueryRow(ctx, `
		update public.device_tokens
		set access_token = $2,
		    is_verified = true,
		    device_name = $3,
		    last_used_at = now(),
		    expires_at = $4
		where code = $1
		  and is_verified = false
		  and expires_at > now()
		returning id::text, user_id::text, coalesce(code, ''), coalesce(access_token, ''),
		          coalesce(device_name, ''), is_verified, expires_at, last_used_at, created_at
	`, req.Code, req.AccessToken, req.DeviceName, req.ExpiresAt).Scan(
		&t.ID,
		&t.UserID,
		&t.Code,
		&t.AccessToken,
		&t.DeviceName,
		&t.IsVerified,
		&t.ExpiresAt,
		&t.LastUsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Opportunistic cleanup of a code that missed only on expiry.
			_, _ = s.pool.Exec(ctx, `
				delete from public.device_tokens
				where code = $1
				  and is_verified = false
				  and expires_at <= now()
			`, req.Code)
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &t, nil
}

func (s *Store) GetDeviceTokenByAccessToken(ctx context.Context, accessToken string) (*model.DeviceToken, error) {
	var t model.DeviceToken
	err := s.pool.QueryRow(ctx, `
		select id::text, user_id::text, coalesce(code, ''), coalesce(access_token, ''),
		       coalesce(device_name, ''), is_verified, expires_at, last_used_at, created_at
		from public.device_tokens
		where access_token = $1
		  and is_verified = true
	`, accessToken).Scan(
		&t.ID,
		&t.UserID,
		&t.Code,
		&t.AccessToken,
		&t.DeviceName,
		&t.IsVerified,
		&t.ExpiresAt,
		&t.LastUsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &t, nil
}

func (s *Store) TouchDeviceToken(ctx context.Context, accessToken string, at time.Time) error {
	cmdTag, err := s.pool.Exec(ctx, `
		update public.device_tokens
		set last_used_at = $2
		where access_token = $1
		  and is_verified = true
	`, accessToken, at)
	if err != nil {
		return mapPgErr(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	rows, err := s.pool.Query(ctx, `
		select id::text, user_id::text, coalesce(code, ''), coalesce(access_token, ''),
		       coalesce(device_name, ''), is_verified, expires_at, last_used_at, created_at
		from public.device_tokens
		where user_id = $1::uuid
		  and is_verified = true
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	var out []model.DeviceToken
	for rows.Next() {
		var t model.DeviceToken
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Code,
			&t.AccessToken,
			&t.DeviceName,
			&t.IsVerified,
			&t.ExpiresAt,
			&t.LastUsedAt,
			&t.CreatedAt,
		); err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) PurgeExpiredDeviceCodes(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		with d as (
		  delete from public.device_tokens
		  where is_verified = false
		    and expires_at < $1
		  returning 1
		)
		select count(*) from d
	`, before).Scan(&n)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}
