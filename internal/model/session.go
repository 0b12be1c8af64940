package model

import "time"

type Session struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Token      string    `json:"token"`
	DeviceInfo string    `json:"device_info"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExpiredAt reports whether the session is expired at the given instant.
// A session is valid strictly before its expiry.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
