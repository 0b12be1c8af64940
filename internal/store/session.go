package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.AccountID, &s.Token, &s.DeviceInfo, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, account_id, token, device_info, expires_at, created_at`

// Replace deletes every prior session for the account and inserts a new one
// in a single transaction: a successful login always leaves exactly one
// session for the account.
func (s *SessionStore) Replace(accountID int64, token, deviceInfo string, expiresAt time.Time) (*model.Session, error) {
	var id int64
	err := retryBusy(context.Background(), func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM sessions WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("delete prior sessions: %w", err)
		}

		result, err := tx.Exec(
			`INSERT INTO sessions (account_id, token, device_info, expires_at) VALUES (?, ?, ?, ?)`,
			accountID, token, deviceInfo, expiresAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetByToken returns the session for the token regardless of expiry, or nil
// if no such session exists. Expiry policy is the session manager's concern.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// Rotate swaps the session's token and expiry in one statement, so a
// concurrent lookup sees either the old session or the new one, never an
// in-between state.
func (s *SessionStore) Rotate(id int64, token string, expiresAt time.Time) (*model.Session, error) {
	result, err := s.db.Exec(
		`UPDATE sessions SET token = ?, expires_at = ? WHERE id = ?`,
		token, expiresAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// DeleteByToken removes the session if it exists. Idempotent.
func (s *SessionStore) DeleteByToken(token string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByAccountID(accountID int64) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete sessions by account: %w", err)
	}
	return nil
}

// DeleteExpired sweeps sessions that expired before the given instant.
// Correctness never depends on this running; validation rejects expired
// sessions on its own.
func (s *SessionStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// CountByAccount returns the number of stored sessions for the account.
func (s *SessionStore) CountByAccount(accountID int64) (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE account_id = ?`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
