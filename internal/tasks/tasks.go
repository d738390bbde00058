// Package tasks defines the board entities the query engine works over:
// lists, statuses, priorities, users, tags and tasks.
package tasks

import (
	"time"
)

// List scopes tasks, custom fields and dependency locks.
type List struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Status is a workflow column. Position orders statuses for sorting.
type Status struct {
	ID       string `json:"id" yaml:"id"`
	ListID   string `json:"list_id" yaml:"list_id"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

// Priority is a ranked importance level. Lower Position sorts first.
type Priority struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

// User can be assigned to tasks.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Tag labels tasks.
type Tag struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Task is a unit of work within a list.
type Task struct {
	ID            string    `json:"id"`
	ListID        string    `json:"list_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StatusID      *string   `json:"status_id,omitempty"`
	PriorityID    *string   `json:"priority_id,omitempty"`
	DueDate       *Date     `json:"due_date,omitempty"`
	OrderPosition int       `json:"order_position"`
	Archived      bool      `json:"archived"`
	AssigneeIDs   []string  `json:"assignee_ids,omitempty"`
	TagIDs        []string  `json:"tag_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IDs returns the identities of ts in order.
func IDs(ts []Task) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
