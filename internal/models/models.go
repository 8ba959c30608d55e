package models

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a task into one of a fixed set of buckets.
type Category string

// Priority ranks how soon a task needs attention.
type Priority string

const (
	CategoryPersonal  Category = "Personal"
	CategoryWork      Category = "Work"
	CategoryShopping  Category = "Shopping"
	CategoryHealth    Category = "Health"
	CategoryFinance   Category = "Finance"
	CategoryImportant Category = "Important"

	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ValidCategories enumerates the categories a task may carry.
var ValidCategories = map[Category]struct{}{
	CategoryPersonal:  {},
	CategoryWork:      {},
	CategoryShopping:  {},
	CategoryHealth:    {},
	CategoryFinance:   {},
	CategoryImportant: {},
}

// ValidPriorities enumerates the priorities a task may carry.
var ValidPriorities = map[Priority]struct{}{
	PriorityHigh:   {},
	PriorityMedium: {},
	PriorityLow:    {},
}

// Valid reports whether the category is a member of the closed set.
func (c Category) Valid() bool {
	_, ok := ValidCategories[c]
	return ok
}

// Valid reports whether the priority is a member of the closed set.
func (p Priority) Valid() bool {
	_, ok := ValidPriorities[p]
	return ok
}

// ParseCategory matches raw text against the category set, ignoring case.
func ParseCategory(raw string) (Category, bool) {
	for c := range ValidCategories {
		if strings.EqualFold(string(c), strings.TrimSpace(raw)) {
			return c, true
		}
	}
	return "", false
}

// ParsePriority matches raw text against the priority set, ignoring case.
func ParsePriority(raw string) (Priority, bool) {
	for p := range ValidPriorities {
		if strings.EqualFold(string(p), strings.TrimSpace(raw)) {
			return p, true
		}
	}
	return "", false
}

// Task represents a single task record, identical in shape whether it lives
// in the on-device guest store or behind the server API. Server-assigned IDs
// are positive; guest IDs are negative and never leave the device.
type Task struct {
	ID        int64     `json:"id"`
	OwnerKey  string    `json:"owner_key"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	Priority  Priority  `json:"priority"`
	Completed bool      `json:"completed"`
	DueDate   string    `json:"due_date,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is the partial task shape used as create input and as the transfer
// format for migration. It carries no identity or timestamps; the receiving
// store assigns those.
type Draft struct {
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Priority Priority `json:"priority"`
	DueDate  string   `json:"due_date,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// ValidationError reports which field of a draft or update failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the draft against the record invariants: non-empty title
// and enum membership for category and priority.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !d.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a known category", d.Category)}
	}
	if !d.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not a known priority", d.Priority)}
	}
	return nil
}

// Changes describes a partial update to an existing task. Nil fields are
// left untouched.
type Changes struct {
	Title     *string   `json:"title,omitempty"`
	Category  *Category `json:"category,omitempty"`
	Priority  *Priority `json:"priority,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	DueDate   *string   `json:"due_date,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
}

// Validate rejects changes that would leave a task in an invalid state.
func (c Changes) Validate() error {
	if c.Title != nil && strings.TrimSpace(*c.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if c.Category != nil && !c.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a known category", *c.Category)}
	}
	if c.Priority != nil && !c.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not a known priority", *c.Priority)}
	}
	return nil
}

// Apply merges the changes into the task and refreshes UpdatedAt.
func (c Changes) Apply(t *Task, now time.Time) {
	if c.Title != nil {
		t.Title = strings.TrimSpace(*c.Title)
	}
	if c.Category != nil {
		t.Category = *c.Category
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.Completed != nil {
		t.Completed = *c.Completed
	}
	if c.DueDate != nil {
		t.DueDate = *c.DueDate
	}
	if c.Notes != nil {
		t.Notes = *c.Notes
	}
	t.UpdatedAt = now
}

// Export strips identity and timestamps from a task, producing the draft
// used for guest-to-account transfer.
func Export(t Task) Draft {
	return Draft{
		Title:    t.Title,
		Category: t.Category,
		Priority: t.Priority,
		DueDate:  t.DueDate,
		Notes:    t.Notes,
	}
}
