package models

import "time"

// Item represents a single entry of a checklist
type Item struct {
	ID        string    `json:"id" db:"id"`
	ListID    string    `json:"list_id" db:"list_id"`
	Text      string    `json:"text" db:"text"`
	Checked   bool      `json:"checked" db:"checked"`
	Position  int       `json:"position" db:"position"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Position assigns a new sort position to an item
type Position struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}
