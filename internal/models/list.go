package models

import "time"

// JoinCodeLength is the number of characters in a list join code.
const JoinCodeLength = 6

// List represents a shared checklist
type List struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	JoinCode  string    `json:"join_code" db:"join_code"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListWithItems is a list together with its items ordered by position
type ListWithItems struct {
	List
	Items []Item `json:"items"`
}
