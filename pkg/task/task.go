package task

import (
	"context"
	"time"
)

// Status is the workflow column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Field length limits, counted in runes.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// Task represents a unit of work on the board.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Column names understood by Store.UpdateFields.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldUpdatedAt   = "updated_at"
)

// Store is the contract for task persistence.
//
// SelectByID returns ErrNotFound when the id is absent. UpdateFields and
// DeleteByID report the number of rows affected; zero is not an error.
// UpdateFields values are string for title/description, Status for status
// and time.Time for updated_at.
type Store interface {
	Insert(ctx context.Context, t Task) error
	SelectAll(ctx context.Context) ([]Task, error)
	SelectByID(ctx context.Context, id string) (*Task, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) (int64, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	EnsureTable(ctx context.Context) error
}
