package task

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-process task store. Tasks are returned in insertion order.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
	order []string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]Task)}
}

// EnsureTable is a no-op.
func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Insert stores t. Inserting an existing id is an error.
func (s *MemStore) Insert(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("insert task %s: duplicate id", t.ID)
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

// SelectAll returns copies of every task.
func (s *MemStore) SelectAll(context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]Task, 0, len(s.tasks))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks, nil
}

// SelectByID returns a copy of the task with the given id.
func (s *MemStore) SelectByID(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// UpdateFields sets the given columns on one task.
func (s *MemStore) UpdateFields(_ context.Context, id string, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return 0, nil
	}
	for k, v := range fields {
		var ok bool
		switch k {
		case FieldTitle:
			t.Title, ok = v.(string)
		case FieldDescription:
			t.Description, ok = v.(string)
		case FieldStatus:
			t.Status, ok = v.(Status)
		case FieldUpdatedAt:
			t.UpdatedAt, ok = v.(time.Time)
		default:
			return 0, fmt.Errorf("update task %s: unknown field %q", id, k)
		}
		if !ok {
			return 0, fmt.Errorf("update task %s: bad value for %s: %T", id, k, v)
		}
	}
	s.tasks[id] = t
	return 1, nil
}

// DeleteByID removes one task.
func (s *MemStore) DeleteByID(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return 0, nil
	}
	delete(s.tasks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return 1, nil
}
