package models

import "time"

// Book represents a catalogued title. BookID is the natural key printed on
// the RFID tag; AvailableCount moves with every issue and return.
type Book struct {
	ID             string    `db:"id" json:"id"`
	BookID         string    `db:"book_id" json:"book_id"`
	Name           string    `db:"book_name" json:"book_name"`
	Author         string    `db:"author" json:"author"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url,omitempty"`
	TotalCount     int       `db:"total_count" json:"total_count"`
	AvailableCount int       `db:"available_count" json:"available_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BookFilter encapsulates search parameters for listing books.
type BookFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// BookHolder identifies a student currently holding a copy.
type BookHolder struct {
	RollNo    string    `db:"roll_no" json:"roll_no"`
	Name      string    `db:"name" json:"name"`
	IssueDate time.Time `db:"issue_date" json:"issue_date"`
}

// BookDetail combines a book with its current holders for the overview page.
type BookDetail struct {
	Book    Book         `json:"book"`
	Holders []BookHolder `json:"holders"`
}
