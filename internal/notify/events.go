// Package notify delivers domain events to the external chat-bot layer.
// Events are queued in-process after the owning transaction commits and
// published to durable broker queues by a background worker, so request
// handlers never block on the broker.
package notify

import "time"

// Queue names consumed by the bot layer.
const (
	QueueCredentialIssued = "credential.issued"
	QueueCoinsAwarded     = "coins.awarded"
)

// CredentialIssued carries login details for a freshly created account.
// Password is the one-time plaintext credential: it is never persisted and
// this event is its only delivery.
type CredentialIssued struct {
	AccountID   int64     `json:"account_id"`
	DisplayName string    `json:"display_name"`
	Login       string    `json:"login"`
	Password    string    `json:"password"`
	Role        string    `json:"role"`
	IssuedAt    time.Time `json:"issued_at"`
}

// CoinsAwarded notifies a beneficiary that a task completion paid out.
type CoinsAwarded struct {
	AccountID   int64     `json:"account_id"`
	TaskID      int64     `json:"task_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	AwardedAt   time.Time `json:"awarded_at"`
}
