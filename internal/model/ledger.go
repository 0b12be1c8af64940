package model

import "time"

type EntryKind string

const (
	EntryEarned   EntryKind = "earned"
	EntryAdjusted EntryKind = "adjusted"
)

// LedgerEntry is an immutable record of a coin balance change. Entries are
// only ever appended; an account's balance must equal the sum of its entries.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	TaskID      *int64    `json:"task_id,omitempty"`
	Amount      int64     `json:"amount"`
	Kind        EntryKind `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
