package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/model"
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var taskID sql.NullInt64

	err := scanner.Scan(&e.ID, &e.AccountID, &taskID, &e.Amount, &e.Kind, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		e.TaskID = &taskID.Int64
	}
	return &e, nil
}

const entryCols = `id, account_id, task_id, amount, kind, description, created_at`

// AwardResult reports the outcome of a completion. Awarded is false when the
// task had already been completed and the prior entry is returned instead.
type AwardResult struct {
	Task    *model.Task
	Entry   *model.LedgerEntry
	Awarded bool
}

// Award completes the task and credits its reward in one transaction: the
// status flip, the earned entry, and the balance increment commit together
// or not at all. Completing an already-completed task is a no-op success
// returning the original entry, so retries and concurrent duplicates can
// never pay twice.
func (s *LedgerStore) Award(taskID, requesterID int64) (*AwardResult, error) {
	var res *AwardResult
	err := retryBusy(context.Background(), func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		row := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, taskID)
		t, err := scanTask(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("award: task %d: %w", taskID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("award: get task: %w", err)
		}

		if t.CreatorID != requesterID && (t.AssigneeID == nil || *t.AssigneeID != requesterID) {
			return fmt.Errorf("award: requester %d: %w", requesterID, ErrForbidden)
		}

		switch t.Status {
		case model.StatusCompleted:
			res, err = completedResultTx(tx, t)
			if err != nil {
				return err
			}
			return tx.Commit()
		case model.StatusCancelled:
			return fmt.Errorf("award: task %d is cancelled: %w", taskID, ErrInvalidInput)
		}

		now := time.Now().UTC()
		result, err := tx.Exec(
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
			model.StatusCompleted, now, taskID, model.StatusTodo, model.StatusInProgress,
		)
		if err != nil {
			return fmt.Errorf("award: complete task: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			// Another writer moved the task between the read and the guarded
			// update. Re-read and report the state that won: a completion
			// yields its entry, a cancellation is rejected as above.
			row := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, taskID)
			cur, err := scanTask(row)
			if err != nil {
				return fmt.Errorf("award: reread task: %w", err)
			}
			if cur.Status != model.StatusCompleted {
				return fmt.Errorf("award: task %d is %s: %w", taskID, cur.Status, ErrInvalidInput)
			}
			res, err = completedResultTx(tx, cur)
			if err != nil {
				return err
			}
			return tx.Commit()
		}

		beneficiary := t.Beneficiary()
		description := "Task completed: " + t.Title

		entryResult, err := tx.Exec(
			`INSERT INTO ledger_entries (account_id, task_id, amount, kind, description) VALUES (?, ?, ?, ?, ?)`,
			beneficiary, taskID, t.Reward, model.EntryEarned, description,
		)
		if err != nil {
			return fmt.Errorf("award: insert entry: %w", err)
		}
		entryID, err := entryResult.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if _, err := tx.Exec(`UPDATE accounts SET coins = coins + ? WHERE id = ?`, t.Reward, beneficiary); err != nil {
			return fmt.Errorf("award: increment balance: %w", err)
		}

		entryRow := tx.QueryRow(`SELECT `+entryCols+` FROM ledger_entries WHERE id = ?`, entryID)
		entry, err := scanEntry(entryRow)
		if err != nil {
			return fmt.Errorf("award: read entry: %w", err)
		}

		taskRow := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, taskID)
		updated, err := scanTask(taskRow)
		if err != nil {
			return fmt.Errorf("award: read task: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("award: commit: %w", err)
		}
		res = &AwardResult{Task: updated, Entry: entry, Awarded: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Adjust appends a signed administrative entry and moves the balance by the
// same amount in one transaction. Adjustments that would push the balance
// negative are rejected.
func (s *LedgerStore) Adjust(accountID, amount int64, description string) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := retryBusy(context.Background(), func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		var balance int64
		err = tx.QueryRow(`SELECT coins FROM accounts WHERE id = ? AND active = 1`, accountID).Scan(&balance)
		if err == sql.ErrNoRows {
			return fmt.Errorf("adjust: account %d: %w", accountID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("adjust: get balance: %w", err)
		}
		if balance+amount < 0 {
			return fmt.Errorf("adjust: balance would go negative: %w", ErrInvalidInput)
		}

		result, err := tx.Exec(
			`INSERT INTO ledger_entries (account_id, amount, kind, description) VALUES (?, ?, ?, ?)`,
			accountID, amount, model.EntryAdjusted, description,
		)
		if err != nil {
			return fmt.Errorf("adjust: insert entry: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if _, err := tx.Exec(`UPDATE accounts SET coins = coins + ? WHERE id = ?`, amount, accountID); err != nil {
			return fmt.Errorf("adjust: move balance: %w", err)
		}

		row := tx.QueryRow(`SELECT `+entryCols+` FROM ledger_entries WHERE id = ?`, id)
		entry, err = scanEntry(row)
		if err != nil {
			return fmt.Errorf("adjust: read entry: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// History returns the account's entries, most recent first. Each call is a
// fresh snapshot of the latest state.
func (s *LedgerStore) History(accountID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM ledger_entries WHERE account_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// EntryForTask returns the earned entry recorded for the task, or nil.
func (s *LedgerStore) EntryForTask(taskID int64) (*model.LedgerEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM ledger_entries WHERE task_id = ? AND kind = ?`,
		taskID, model.EntryEarned,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entry for task: %w", err)
	}
	return e, nil
}

// SumEntries computes the entry sum for an account. Together with Balance it
// backs the reconciliation check: the two must always agree.
func (s *LedgerStore) SumEntries(accountID int64) (int64, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = ?`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return sum.Int64, nil
}

// Balance reads the denormalized balance column.
func (s *LedgerStore) Balance(accountID int64) (int64, error) {
	var coins int64
	err := s.db.QueryRow(`SELECT coins FROM accounts WHERE id = ?`, accountID).Scan(&coins)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("balance: account %d: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return coins, nil
}

// completedResultTx builds the no-op award outcome for a task that is
// already completed: the original earned entry, Awarded false.
func completedResultTx(tx *sql.Tx, t *model.Task) (*AwardResult, error) {
	entry, err := entryForTaskTx(tx, t.ID)
	if err != nil {
		return nil, err
	}
	return &AwardResult{Task: t, Entry: entry, Awarded: false}, nil
}

func entryForTaskTx(tx *sql.Tx, taskID int64) (*model.LedgerEntry, error) {
	row := tx.QueryRow(
		`SELECT `+entryCols+` FROM ledger_entries WHERE task_id = ? AND kind = ?`,
		taskID, model.EntryEarned,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entry for task: %w", err)
	}
	return e, nil
}
