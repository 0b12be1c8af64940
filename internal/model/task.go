package model

import "time"

type TaskKind string

const (
	TaskPersonal  TaskKind = "personal"
	TaskDelegated TaskKind = "delegated"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

type Task struct {
	ID          int64      `json:"id"`
	CreatorID   int64      `json:"creator_id"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Kind        TaskKind   `json:"kind"`
	Status      TaskStatus `json:"status"`
	Reward      int64      `json:"reward"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Repeating   bool       `json:"repeating"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Beneficiary is the account credited when the task completes: the assignee
// for delegated tasks, otherwise the creator.
func (t *Task) Beneficiary() int64 {
	if t.AssigneeID != nil {
		return *t.AssigneeID
	}
	return t.CreatorID
}
