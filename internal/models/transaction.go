package models

import "time"

// Transaction action types.
const (
	TransactionActionIssue  = "issue"
	TransactionActionReturn = "return"
)

// Transaction is an append-only audit entry for the circulation desk. The
// coordinator only ever writes these; reporting views read them.
type Transaction struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	BookID     string    `db:"book_id" json:"book_id"`
	ActionType string    `db:"action_type" json:"action_type"`
	Note       string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TransactionFilter captures listing criteria for the audit log view.
type TransactionFilter struct {
	StudentID string
	BookID    string
	Action    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
