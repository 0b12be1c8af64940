package auth

import (
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/credential"
	"github.com/pingvi/pingvi/internal/model"
	"github.com/pingvi/pingvi/internal/store"
)

// DefaultSessionTTL is the absolute session lifetime from authentication.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionManager owns token issuance, validation, refresh, and revocation.
// Expiry is enforced lazily at validation time; no background sweep is
// required for correctness.
type SessionManager struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionManager(accounts *store.AccountStore, sessions *store.SessionStore) *SessionManager {
	return &SessionManager{
		accounts: accounts,
		sessions: sessions,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
}

// SetTTL overrides the session lifetime.
func (m *SessionManager) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl = ttl
	}
}

// SetClock overrides the time source. Tests use this to cross the expiry
// boundary without sleeping.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// AccountContext is the result of a successful token validation.
type AccountContext struct {
	Account *model.Account
	Session *model.Session
}

// Authenticate verifies login credentials and issues a fresh session,
// invalidating any prior ones for the account. Missing account, inactive
// account, and wrong password are indistinguishable to the caller.
func (m *SessionManager) Authenticate(login, password, deviceInfo string) (*model.Account, *model.Session, error) {
	account, err := m.accounts.GetByLogin(login)
	if err != nil {
		return nil, nil, err
	}
	if account == nil || account.PasswordHash != credential.Hash(password) {
		return nil, nil, fmt.Errorf("authenticate: invalid credentials: %w", store.ErrUnauthorized)
	}

	token, err := credential.GenerateToken()
	if err != nil {
		return nil, nil, err
	}

	session, err := m.sessions.Replace(account.ID, token, deviceInfo, m.now().Add(m.ttl))
	if err != nil {
		return nil, nil, err
	}

	if err := m.accounts.UpdateLastLogin(account.ID, m.now()); err != nil {
		return nil, nil, err
	}

	return account, session, nil
}

// Validate resolves a bearer token to its account. Unknown, expired, and
// orphaned tokens all fail the same way; expired rows encountered here are
// deleted opportunistically.
func (m *SessionManager) Validate(token string) (*AccountContext, error) {
	if token == "" {
		return nil, fmt.Errorf("validate: empty token: %w", store.ErrUnauthorized)
	}

	session, err := m.sessions.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("validate: %w", store.ErrUnauthorized)
	}
	if session.ExpiredAt(m.now()) {
		// Lazy sweep; deletion failure is irrelevant to the outcome.
		_ = m.sessions.DeleteByToken(token)
		return nil, fmt.Errorf("validate: %w", store.ErrUnauthorized)
	}

	account, err := m.accounts.GetByID(session.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("validate: %w", store.ErrUnauthorized)
	}

	return &AccountContext{Account: account, Session: session}, nil
}

// Refresh validates the current token and swaps in a new token and expiry.
// The swap is a single statement, so a concurrent validate of the old token
// either still resolves this session or fails; it can never see another
// account.
func (m *SessionManager) Refresh(token string) (*model.Session, error) {
	ac, err := m.Validate(token)
	if err != nil {
		return nil, err
	}

	newToken, err := credential.GenerateToken()
	if err != nil {
		return nil, err
	}

	session, err := m.sessions.Rotate(ac.Session.ID, newToken, m.now().Add(m.ttl))
	if err != nil {
		return nil, err
	}
	if session == nil {
		// The session vanished between validate and rotate (logout race).
		return nil, fmt.Errorf("refresh: %w", store.ErrUnauthorized)
	}
	return session, nil
}

// Revoke deletes the session for the token. Revoking an unknown token is
// not an error.
func (m *SessionManager) Revoke(token string) error {
	return m.sessions.DeleteByToken(token)
}

// RevokeAll deletes every session for the account.
func (m *SessionManager) RevokeAll(accountID int64) error {
	return m.sessions.DeleteByAccountID(accountID)
}
