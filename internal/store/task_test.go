package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pingvi/pingvi/internal/database"
	"github.com/pingvi/pingvi/internal/model"
)

func setupTaskTestDB(t *testing.T) (*TaskStore, *AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	as := NewAccountStore(db)
	return NewTaskStore(db, as), as
}

func personalFields(title string, reward int64) TaskFields {
	now := time.Now().UTC()
	return TaskFields{
		Title:     title,
		Kind:      model.TaskPersonal,
		Reward:    reward,
		StartDate: now,
		EndDate:   now,
	}
}

func TestCreatePersonalTask(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")

	task, err := ts.Create(reg.Account.ID, personalFields("Water the plants", 50))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != model.StatusTodo {
		t.Errorf("status = %q, want todo", task.Status)
	}
	if task.CreatorID != reg.Account.ID {
		t.Errorf("creator = %d, want %d", task.CreatorID, reg.Account.ID)
	}
	if task.AssigneeID != nil {
		t.Error("personal task should have no assignee")
	}
	if task.Reward != 50 {
		t.Errorf("reward = %d, want 50", task.Reward)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")

	f := personalFields("", 10)
	if _, err := ts.Create(reg.Account.ID, f); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty title: err = %v, want ErrInvalidInput", err)
	}

	f = personalFields("Task", -5)
	if _, err := ts.Create(reg.Account.ID, f); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative reward: err = %v, want ErrInvalidInput", err)
	}

	f = personalFields("Task", 10)
	f.EndDate = f.StartDate.Add(-48 * time.Hour)
	if _, err := ts.Create(reg.Account.ID, f); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("end before start: err = %v, want ErrInvalidInput", err)
	}

	f = personalFields("Task", 10)
	f.Kind = "weekly"
	if _, err := ts.Create(reg.Account.ID, f); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown kind: err = %v, want ErrInvalidInput", err)
	}

	// Zero reward is allowed.
	if _, err := ts.Create(reg.Account.ID, personalFields("Free chore", 0)); err != nil {
		t.Errorf("zero reward rejected: %v", err)
	}
}

func TestCreateDelegatedTask(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	f := personalFields("Clean the room", 100)
	f.Kind = model.TaskDelegated
	f.AssigneeID = &dep.Account.ID

	task, err := ts.Create(reg.Account.ID, f)
	if err != nil {
		t.Fatalf("create delegated task: %v", err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != dep.Account.ID {
		t.Error("assignee not persisted")
	}

	// No assignee at all.
	f.AssigneeID = nil
	if _, err := ts.Create(reg.Account.ID, f); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing assignee: err = %v, want ErrInvalidInput", err)
	}

	// Another guardian cannot delegate to someone else's child.
	other, _ := as.RegisterGuardian(222, "Sam")
	f.AssigneeID = &dep.Account.ID
	if _, err := ts.Create(other.Account.ID, f); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign child: err = %v, want ErrForbidden", err)
	}
}

func TestListTasks(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	ts.Create(reg.Account.ID, personalFields("Own task", 10))

	f := personalFields("Chore for Mia", 100)
	f.Kind = model.TaskDelegated
	f.AssigneeID = &dep.Account.ID
	ts.Create(reg.Account.ID, f)

	// Guardian sees both; the child only the delegated one.
	got, err := ts.List(reg.Account.ID, TaskFilters{})
	if err != nil {
		t.Fatalf("list guardian: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("guardian sees %d tasks, want 2", len(got))
	}

	got, err = ts.List(dep.Account.ID, TaskFilters{})
	if err != nil {
		t.Fatalf("list child: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("child sees %d tasks, want 1", len(got))
	}
	if got[0].Title != "Chore for Mia" {
		t.Errorf("child sees %q", got[0].Title)
	}

	// Kind filter.
	got, err = ts.List(reg.Account.ID, TaskFilters{Kind: model.TaskDelegated})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("kind filter returned %d tasks, want 1", len(got))
	}

	// Date filter: nothing scheduled last week.
	lastWeek := time.Now().UTC().Add(-7 * 24 * time.Hour)
	got, err = ts.List(reg.Account.ID, TaskFilters{Date: &lastWeek})
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("date filter returned %d tasks, want 0", len(got))
	}
}

func TestUpdateStatus(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")

	task, _ := ts.Create(reg.Account.ID, personalFields("Task", 10))

	updated, err := ts.UpdateStatus(task.ID, reg.Account.ID, model.StatusInProgress)
	if err != nil {
		t.Fatalf("move to in_progress: %v", err)
	}
	if updated.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}

	// Completion is the ledger's job.
	if _, err := ts.UpdateStatus(task.ID, reg.Account.ID, model.StatusCompleted); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("direct completion: err = %v, want ErrInvalidInput", err)
	}

	// Strangers cannot touch the task.
	other, _ := as.RegisterGuardian(222, "Sam")
	if _, err := ts.UpdateStatus(task.ID, other.Account.ID, model.StatusCancelled); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}

	// Cancel, then verify terminal.
	if _, err := ts.UpdateStatus(task.ID, reg.Account.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := ts.UpdateStatus(task.ID, reg.Account.ID, model.StatusInProgress); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("leave cancelled: err = %v, want ErrInvalidInput", err)
	}
}

func TestAssigneeCanMoveStatus(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	f := personalFields("Chore", 100)
	f.Kind = model.TaskDelegated
	f.AssigneeID = &dep.Account.ID
	task, _ := ts.Create(reg.Account.ID, f)

	updated, err := ts.UpdateStatus(task.ID, dep.Account.ID, model.StatusInProgress)
	if err != nil {
		t.Fatalf("assignee move: %v", err)
	}
	if updated.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}
}

func TestUpdateFields(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	f := personalFields("Chore", 100)
	f.Kind = model.TaskDelegated
	f.AssigneeID = &dep.Account.ID
	task, _ := ts.Create(reg.Account.ID, f)

	title := "Chore, revised"
	updated, err := ts.UpdateFields(task.ID, reg.Account.ID, &title, nil)
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}

	// Assignee may move status but not edit fields.
	if _, err := ts.UpdateFields(task.ID, dep.Account.ID, &title, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("assignee edit: err = %v, want ErrForbidden", err)
	}

	empty := ""
	if _, err := ts.UpdateFields(task.ID, reg.Account.ID, &empty, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty title: err = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteTask(t *testing.T) {
	ts, as := setupTaskTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	f := personalFields("Chore", 100)
	f.Kind = model.TaskDelegated
	f.AssigneeID = &dep.Account.ID
	task, _ := ts.Create(reg.Account.ID, f)

	if err := ts.Delete(task.ID, dep.Account.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("assignee delete: err = %v, want ErrForbidden", err)
	}

	if err := ts.Delete(task.ID, reg.Account.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}

	got, err := ts.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("task still present after delete")
	}

	if err := ts.Delete(task.ID, reg.Account.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat delete: err = %v, want ErrNotFound", err)
	}
}
