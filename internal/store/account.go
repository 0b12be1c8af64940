package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/credential"
	"github.com/pingvi/pingvi/internal/model"
)

const (
	welcomeBonus     = 5000
	loginAttempts    = 5
	guardianPassword = 8
	childPassword    = 10
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var telegramID, parentID sql.NullInt64
	var age sql.NullInt64
	var photoURL sql.NullString
	var lastLogin sql.NullTime
	var active int

	err := scanner.Scan(
		&a.ID, &telegramID, &a.Login, &a.PasswordHash, &a.DisplayName,
		&a.Role, &parentID, &age, &photoURL, &a.Coins, &active,
		&a.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}

	if telegramID.Valid {
		a.TelegramID = &telegramID.Int64
	}
	if parentID.Valid {
		a.ParentID = &parentID.Int64
	}
	if age.Valid {
		v := int(age.Int64)
		a.Age = &v
	}
	if photoURL.Valid {
		a.PhotoURL = &photoURL.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}
	a.Active = active != 0
	return &a, nil
}

const accountCols = `id, telegram_id, login, password_hash, display_name, role, parent_id, age, photo_url, coins, active, created_at, last_login`

// RegisterGuardian creates a guardian account for the given external chat
// identity, or returns the existing one. Registration is idempotent by
// telegram id; the generated plaintext password is only present on first
// creation. New guardians receive a welcome bonus recorded as an adjusted
// ledger entry in the same transaction, so the balance stays reconciled
// with the entry sum from the first row on.
func (s *AccountStore) RegisterGuardian(telegramID int64, displayName string) (*model.RegisteredAccount, error) {
	existing, err := s.GetByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &model.RegisteredAccount{Account: existing, IsNew: false}, nil
	}

	password, err := credential.GeneratePassword(guardianPassword)
	if err != nil {
		return nil, err
	}
	hash := credential.Hash(password)

	login := credential.GuardianLogin(time.Now())
	var id int64
	for attempt := 0; ; attempt++ {
		id, err = s.insertGuardian(telegramID, login, hash, displayName)
		if err == nil {
			break
		}
		if isUniqueViolation(err) {
			// A concurrent register for the same telegram id wins the race;
			// fall back to the idempotent path.
			if existing, lookupErr := s.GetByTelegramID(telegramID); lookupErr == nil && existing != nil {
				return &model.RegisteredAccount{Account: existing, IsNew: false}, nil
			}
			if attempt+1 < loginAttempts {
				suffix, sfxErr := credential.LoginSuffix()
				if sfxErr != nil {
					return nil, sfxErr
				}
				login = credential.GuardianLogin(time.Now()) + "_" + suffix
				continue
			}
			return nil, fmt.Errorf("register guardian: %w", ErrConflict)
		}
		return nil, fmt.Errorf("register guardian: %w", err)
	}

	account, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &model.RegisteredAccount{Account: account, Password: password, IsNew: true}, nil
}

func (s *AccountStore) insertGuardian(telegramID int64, login, hash, displayName string) (int64, error) {
	var id int64
	err := retryBusy(context.Background(), func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.Exec(
			`INSERT INTO accounts (telegram_id, login, password_hash, display_name, role, coins) VALUES (?, ?, ?, ?, ?, ?)`,
			telegramID, login, hash, displayName, model.RoleGuardian, welcomeBonus,
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if _, err := tx.Exec(
			`INSERT INTO ledger_entries (account_id, amount, kind, description) VALUES (?, ?, ?, ?)`,
			id, welcomeBonus, model.EntryAdjusted, "Welcome bonus",
		); err != nil {
			return fmt.Errorf("insert welcome bonus: %w", err)
		}

		return tx.Commit()
	})
	return id, err
}

// CreateDependent creates a child account under the given guardian. Children
// never self-register: login and password are generated here and the
// plaintext password is returned exactly once.
func (s *AccountStore) CreateDependent(guardianID int64, name string, age *int) (*model.Dependent, error) {
	guardian, err := s.GetByID(guardianID)
	if err != nil {
		return nil, err
	}
	if guardian == nil || guardian.Role != model.RoleGuardian {
		return nil, fmt.Errorf("create dependent: guardian %d: %w", guardianID, ErrNotFound)
	}

	password, err := credential.GeneratePassword(childPassword)
	if err != nil {
		return nil, err
	}
	hash := credential.Hash(password)

	login := credential.DependentLogin(guardian.Login, time.Now())
	var id int64
	for attempt := 0; ; attempt++ {
		var result sql.Result
		err = retryBusy(context.Background(), func() error {
			var execErr error
			result, execErr = s.db.Exec(
				`INSERT INTO accounts (login, password_hash, display_name, role, parent_id, age, coins) VALUES (?, ?, ?, ?, ?, ?, 0)`,
				login, hash, name, model.RoleDependent, guardianID, nullInt(age),
			)
			return execErr
		})
		if err == nil {
			id, err = result.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("last insert id: %w", err)
			}
			break
		}
		if isUniqueViolation(err) && attempt+1 < loginAttempts {
			suffix, sfxErr := credential.LoginSuffix()
			if sfxErr != nil {
				return nil, sfxErr
			}
			login = credential.DependentLogin(guardian.Login, time.Now()) + "_" + suffix
			continue
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create dependent: %w", ErrConflict)
		}
		return nil, fmt.Errorf("create dependent: %w", err)
	}

	account, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &model.Dependent{Account: account, Password: password}, nil
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ? AND active = 1`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByLogin(login string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE login = ? AND active = 1`, login)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by login: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByTelegramID(telegramID int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE telegram_id = ? AND active = 1`, telegramID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by telegram id: %w", err)
	}
	return a, nil
}

// ListDependents returns the guardian's active children, newest first.
func (s *AccountStore) ListDependents(guardianID int64) ([]model.Account, error) {
	rows, err := s.db.Query(
		`SELECT `+accountCols+` FROM accounts WHERE parent_id = ? AND role = ? AND active = 1 ORDER BY created_at DESC, id DESC`,
		guardianID, model.RoleDependent,
	)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// GetDependent returns the child account only if it belongs to the guardian.
func (s *AccountStore) GetDependent(guardianID, childID int64) (*model.Account, error) {
	child, err := s.GetByID(childID)
	if err != nil {
		return nil, err
	}
	if child == nil || child.ParentID == nil || *child.ParentID != guardianID {
		return nil, nil
	}
	return child, nil
}

// IsDependentOf reports whether childID is an active dependent of guardianID.
func (s *AccountStore) IsDependentOf(childID, guardianID int64) (bool, error) {
	child, err := s.GetDependent(guardianID, childID)
	if err != nil {
		return false, err
	}
	return child != nil, nil
}

// UpdateProfile updates the mutable profile fields. Login, role and the
// parent link are immutable after creation.
func (s *AccountStore) UpdateProfile(id int64, displayName, photoURL *string) (*model.Account, error) {
	if displayName == nil && photoURL == nil {
		return s.GetByID(id)
	}
	// Nil pointers bind as NULL, so COALESCE keeps the stored value and both
	// fields change in one statement.
	if _, err := s.db.Exec(
		`UPDATE accounts SET display_name = COALESCE(?, display_name), photo_url = COALESCE(?, photo_url) WHERE id = ?`,
		displayName, photoURL, id,
	); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

// UpdateLastLogin records a successful authentication.
func (s *AccountStore) UpdateLastLogin(id int64, at time.Time) error {
	if _, err := s.db.Exec(`UPDATE accounts SET last_login = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Deactivate soft-deletes the account and revokes its sessions in one
// transaction. Rows are never hard-deleted so ledger history stays intact.
func (s *AccountStore) Deactivate(id int64) error {
	return retryBusy(context.Background(), func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.Exec(`UPDATE accounts SET active = 0 WHERE id = ? AND active = 1`, id)
		if err != nil {
			return fmt.Errorf("deactivate account: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("deactivate account %d: %w", id, ErrNotFound)
		}

		if _, err := tx.Exec(`DELETE FROM sessions WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}

		return tx.Commit()
	})
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
