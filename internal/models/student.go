package models

import "time"

// Student represents a department member registered at the library desk.
// RollNo is the natural key; loans and transactions reference it directly.
type Student struct {
	ID         string    `db:"id" json:"id"`
	RollNo     string    `db:"roll_no" json:"roll_no"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	Batch      string    `db:"batch" json:"batch"`
	Email      string    `db:"email" json:"email"`
	PhotoURL   *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentSummary extends a student row with loan counters for list views.
type StudentSummary struct {
	Student
	TotalLoans  int `db:"total_loans" json:"total_loans"`
	ActiveLoans int `db:"active_loans" json:"active_loans"`
}

// StudentProfile bundles a student with their full loan history.
type StudentProfile struct {
	Student  Student      `json:"student"`
	Issued   []LoanDetail `json:"issued"`
	Returned []LoanDetail `json:"returned"`
}

// RollNoClassification is the derived registration autofill for a roll number.
type RollNoClassification struct {
	Department string `json:"department"`
	Batch      string `json:"batch"`
}
