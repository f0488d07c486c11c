package model

import "time"

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	IsOnline     bool       `json:"is_online"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DeviceToken is both a short-lived pairing code and, once verified, a
// long-lived bearer credential for the desktop app. The code is only
// meaningful while IsVerified is false; after a successful exchange the
// record is looked up exclusively by AccessToken.
type DeviceToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Code        string     `json:"-"`
	AccessToken string     `json:"-"`
	DeviceName  string     `json:"device_name"`
	IsVerified  bool       `json:"is_verified"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the token's expiry has passed at the given time.
// An expired token is treated as absent by every lookup path.
func (t DeviceToken) Expired(at time.Time) bool {
	return t.ExpiresAt.Before(at)
}
