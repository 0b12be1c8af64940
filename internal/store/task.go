package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/model"
	"github.com/pingvi/pingvi/internal/task"
)

type TaskStore struct {
	db       *sql.DB
	accounts *AccountStore
}

func NewTaskStore(db *sql.DB, accounts *AccountStore) *TaskStore {
	return &TaskStore{db: db, accounts: accounts}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assigneeID sql.NullInt64
	var repeating int

	err := scanner.Scan(
		&t.ID, &t.CreatorID, &assigneeID, &t.Title, &t.Description,
		&t.Kind, &t.Status, &t.Reward, &t.StartDate, &t.EndDate,
		&repeating, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	t.Repeating = repeating != 0
	return &t, nil
}

const taskCols = `id, creator_id, assignee_id, title, description, kind, status, reward, start_date, end_date, repeating, created_at, updated_at`

// TaskFields carries the caller-supplied attributes for task creation.
type TaskFields struct {
	Title       string
	Description string
	Kind        model.TaskKind
	Reward      int64
	StartDate   time.Time
	EndDate     time.Time
	Repeating   bool
	AssigneeID  *int64
}

// Create inserts a new task in todo status. Delegated tasks must name an
// assignee that is an active dependent of the creator.
func (s *TaskStore) Create(creatorID int64, f TaskFields) (*model.Task, error) {
	if f.Title == "" {
		return nil, fmt.Errorf("create task: title required: %w", ErrInvalidInput)
	}
	if f.Reward < 0 {
		return nil, fmt.Errorf("create task: negative reward: %w", ErrInvalidInput)
	}
	if f.EndDate.Before(f.StartDate) {
		return nil, fmt.Errorf("create task: end date before start date: %w", ErrInvalidInput)
	}

	var assignee sql.NullInt64
	switch f.Kind {
	case model.TaskDelegated:
		if f.AssigneeID == nil {
			return nil, fmt.Errorf("create task: delegated task needs an assignee: %w", ErrInvalidInput)
		}
		owned, err := s.accounts.IsDependentOf(*f.AssigneeID, creatorID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, fmt.Errorf("create task: assignee %d is not a dependent of creator %d: %w", *f.AssigneeID, creatorID, ErrForbidden)
		}
		assignee = sql.NullInt64{Int64: *f.AssigneeID, Valid: true}
	case model.TaskPersonal:
		// Personal tasks are always the creator's own.
	default:
		return nil, fmt.Errorf("create task: unknown kind %q: %w", f.Kind, ErrInvalidInput)
	}

	var id int64
	err := retryBusy(context.Background(), func() error {
		result, err := s.db.Exec(
			`INSERT INTO tasks (creator_id, assignee_id, title, description, kind, status, reward, start_date, end_date, repeating)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			creatorID, assignee, f.Title, f.Description, f.Kind, model.StatusTodo,
			f.Reward, f.StartDate.UTC(), f.EndDate.UTC(), boolToInt(f.Repeating),
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// TaskFilters narrows List results. Zero values mean "no filter".
type TaskFilters struct {
	Kind   model.TaskKind
	Status model.TaskStatus
	Date   *time.Time
}

// List returns tasks the account created or is assigned to, newest first.
func (s *TaskStore) List(accountID int64, f TaskFilters) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE (creator_id = ? OR assignee_id = ?)`
	args := []any{accountID, accountID}

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Date != nil {
		query += ` AND DATE(start_date) = DATE(?)`
		args = append(args, f.Date.UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateStatus moves a task to a non-completed status. Completion goes
// through LedgerStore.Award so the status flip and the coin award commit
// together; this method rejects it.
func (s *TaskStore) UpdateStatus(taskID, requesterID int64, next model.TaskStatus) (*model.Task, error) {
	if next == model.StatusCompleted {
		return nil, fmt.Errorf("update status: completion must go through the ledger award: %w", ErrInvalidInput)
	}
	if !task.Valid(next) {
		return nil, fmt.Errorf("update status: unknown status %q: %w", next, ErrInvalidInput)
	}

	t, err := s.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("update status: task %d: %w", taskID, ErrNotFound)
	}
	if !s.mayAct(t, requesterID) {
		return nil, fmt.Errorf("update status: requester %d: %w", requesterID, ErrForbidden)
	}
	if !task.CanTransition(t.Status, next) {
		return nil, fmt.Errorf("update status: %s -> %s: %w", t.Status, next, ErrInvalidInput)
	}

	err = retryBusy(context.Background(), func() error {
		// Guard on the current status so a concurrent transition loses
		// cleanly instead of overwriting a terminal state.
		result, err := s.db.Exec(
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			next, time.Now().UTC(), taskID, t.Status,
		)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("update status: task %d changed concurrently: %w", taskID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(taskID)
}

// UpdateFields updates title and description. Creator only.
func (s *TaskStore) UpdateFields(taskID, requesterID int64, title, description *string) (*model.Task, error) {
	t, err := s.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("update task: task %d: %w", taskID, ErrNotFound)
	}
	if t.CreatorID != requesterID {
		return nil, fmt.Errorf("update task: requester %d: %w", requesterID, ErrForbidden)
	}

	if title != nil {
		if *title == "" {
			return nil, fmt.Errorf("update task: title required: %w", ErrInvalidInput)
		}
		if _, err := s.db.Exec(`UPDATE tasks SET title = ?, updated_at = ? WHERE id = ?`, *title, time.Now().UTC(), taskID); err != nil {
			return nil, fmt.Errorf("update task title: %w", err)
		}
	}
	if description != nil {
		if _, err := s.db.Exec(`UPDATE tasks SET description = ?, updated_at = ? WHERE id = ?`, *description, time.Now().UTC(), taskID); err != nil {
			return nil, fmt.Errorf("update task description: %w", err)
		}
	}
	return s.GetByID(taskID)
}

// Delete removes a task. Creator only, any status. The award record, if one
// exists, stays in the ledger: entries are never deleted.
func (s *TaskStore) Delete(taskID, requesterID int64) error {
	t, err := s.GetByID(taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("delete task: task %d: %w", taskID, ErrNotFound)
	}
	if t.CreatorID != requesterID {
		return fmt.Errorf("delete task: requester %d: %w", requesterID, ErrForbidden)
	}

	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) mayAct(t *model.Task, requesterID int64) bool {
	if t.CreatorID == requesterID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == requesterID
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
