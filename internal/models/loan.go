package models

import "time"

// Loan return statuses. A loan transitions issued -> returned exactly once.
const (
	LoanStatusIssued   = "issued"
	LoanStatusReturned = "returned"
)

// Loan is one instance of a book held by a student. It references the
// student's roll number and the book's tag ID, not surrogate keys, matching
// the joins the desk views need.
type Loan struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	BookID       string     `db:"book_id" json:"book_id"`
	IssueDate    time.Time  `db:"issue_date" json:"issue_date"`
	ReturnDate   *time.Time `db:"return_date" json:"return_date,omitempty"`
	ReturnStatus string     `db:"return_status" json:"return_status"`
}

// LoanDetail is a loan joined with its book row.
type LoanDetail struct {
	Loan
	Book Book `json:"book"`
}
