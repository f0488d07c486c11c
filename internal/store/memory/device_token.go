package memory

import (
	"context"
	"sort"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"
)

func (s *Store) CreateDeviceCode(_ context.Context, t model.DeviceToken) (model.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.UserID == "" {
		return model.DeviceToken{}, errWithCode("user_id_required")
	}
	if t.Code == "" {
		return model.DeviceToken{}, errWithCode("code_required")
	}

	// One unverified code per user: superseded codes are dropped.
	for id, existing := range s.tokens {
		if existing.UserID == t.UserID && !existing.IsVerified {
			delete(s.tokens, id)
		}
	}

	t.ID = newID()
	t.IsVerified = false
	t.AccessToken = ""
	t.CreatedAt = time.Now().UTC()
	s.tokens[t.ID] = t
	return t, nil
}

func (s *Store) ExchangeDeviceCode(_ context.Context, req store.ExchangeDeviceCodeRequest) (*model.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.Code != req.Code || t.IsVerified {
			continue
		}

		if t.Expired(time.Now().UTC()) {
			delete(s.tokens, id)
			return nil, store.ErrNotFound
		}

		now := time.Now().UTC()
		t.AccessToken = req.AccessToken
		t.IsVerified = true
		t.DeviceName = req.DeviceName
		t.LastUsedAt = &now
		t.ExpiresAt = req.ExpiresAt
		s.tokens[id] = t
		return &t, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetDeviceTokenByAccessToken(_ context.Context, accessToken string) (*model.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if accessToken == "" {
		return nil, store.ErrNotFound
	}

	for _, t := range s.tokens {
		if t.IsVerified && t.AccessToken == accessToken {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) TouchDeviceToken(_ context.Context, accessToken string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.IsVerified && t.AccessToken == accessToken {
			t.LastUsedAt = &at
			s.tokens[id] = t
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListDeviceTokens(_ context.Context, userID string) ([]model.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.DeviceToken, 0)
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsVerified {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) PurgeExpiredDeviceCodes(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, t := range s.tokens {
		if !t.IsVerified && t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}
