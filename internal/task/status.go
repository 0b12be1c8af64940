// Package task holds the pure task status rules, kept separate from the
// store so transitions can be reasoned about and tested without a database.
package task

import "github.com/pingvi/pingvi/internal/model"

// transitions lists the allowed next statuses for each state. Completed and
// cancelled are terminal.
var transitions = map[model.TaskStatus][]model.TaskStatus{
	model.StatusTodo:       {model.StatusInProgress, model.StatusCompleted, model.StatusCancelled},
	model.StatusInProgress: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted:  {},
	model.StatusCancelled:  {},
}

// Valid reports whether s is a known task status.
func Valid(s model.TaskStatus) bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leads out of s.
func Terminal(s model.TaskStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to model.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
