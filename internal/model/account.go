package model

import "time"

type Role string

const (
	RoleGuardian  Role = "guardian"
	RoleDependent Role = "dependent"
)

type Account struct {
	ID           int64      `json:"id"`
	TelegramID   *int64     `json:"telegram_id,omitempty"`
	Login        string     `json:"login"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	Role         Role       `json:"role"`
	ParentID     *int64     `json:"parent_id,omitempty"`
	Age          *int       `json:"age,omitempty"`
	PhotoURL     *string    `json:"photo_url,omitempty"`
	Coins        int64      `json:"coins"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// RegisteredAccount is the result of guardian registration. Password is the
// plaintext credential, set only when the account was just created; it is
// never persisted and never returned again.
type RegisteredAccount struct {
	Account  *Account `json:"account"`
	Password string   `json:"password,omitempty"`
	IsNew    bool     `json:"is_new"`
}

// Dependent bundles a freshly created child account with its one-time
// plaintext password.
type Dependent struct {
	Account  *Account `json:"account"`
	Password string   `json:"password,omitempty"`
}
