package task

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Service validates and applies task mutations against a Store.
type Service struct {
	store Store
	clock *Clock
}

// NewService creates a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, clock: NewClock()}
}

// Create persists a new task in the todo column.
func (s *Service) Create(ctx context.Context, title, description string) (*Task, error) {
	if err := validateText(FieldTitle, title, MaxTitleLen); err != nil {
		return nil, err
	}
	if err := validateText(FieldDescription, description, MaxDescriptionLen); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := Task{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       title,
		Description: description,
		Status:      StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, &StoreError{Op: "insert", Err: err}
	}
	return &t, nil
}

// List returns every task in store order.
func (s *Service) List(ctx context.Context) ([]Task, error) {
	tasks, err := s.store.SelectAll(ctx)
	if err != nil {
		return nil, &StoreError{Op: "select all", Err: err}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Get returns a single task or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	t, err := s.store.SelectByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "select", Err: err}
	}
	return t, nil
}

// Update applies the fields present in p and bumps updated_at.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Task, error) {
	fields := make(map[string]any, 4)
	if p.Title != nil {
		if err := validateText(FieldTitle, *p.Title, MaxTitleLen); err != nil {
			return nil, err
		}
		fields[FieldTitle] = *p.Title
	}
	if p.Description != nil {
		if err := validateText(FieldDescription, *p.Description, MaxDescriptionLen); err != nil {
			return nil, err
		}
		fields[FieldDescription] = *p.Description
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, &ValidationError{Field: FieldStatus, Reason: "must be one of todo, in_progress, done"}
		}
		fields[FieldStatus] = *p.Status
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	fields[FieldUpdatedAt] = now

	n, err := s.store.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, &StoreError{Op: "update", Err: err}
	}
	if n == 0 {
		// deleted between the read and the write
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a task and reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return false, &StoreError{Op: "delete", Err: err}
	}
	return n > 0, nil
}

func validateText(field, v string, max int) error {
	if v == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if !utf8.ValidString(v) {
		return &ValidationError{Field: field, Reason: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(v) > max {
		return &ValidationError{Field: field, Reason: "too long"}
	}
	return nil
}
