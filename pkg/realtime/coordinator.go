package realtime

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/metrics"
	"taskboard/pkg/task"
)

// TaskService is the task API the coordinator decorates.
type TaskService interface {
	Create(ctx context.Context, title, description string) (*task.Task, error)
	List(ctx context.Context) ([]task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	Update(ctx context.Context, id string, p task.Patch) (*task.Task, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Coordinator wraps a TaskService with real-time fan-out. Every successful
// mutation is committed first and then broadcast exactly once; failed
// mutations broadcast nothing.
type Coordinator struct {
	TaskService
	registry *Registry

	// mu spans commit and broadcast so events leave in commit order.
	mu sync.Mutex
}

// NewCoordinator creates a Coordinator broadcasting through registry.
func NewCoordinator(svc TaskService, registry *Registry) *Coordinator {
	return &Coordinator{TaskService: svc, registry: registry}
}

// Registry returns the registry events are broadcast through.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Create delegates to the service, then broadcasts task_created.
func (c *Coordinator) Create(ctx context.Context, title, description string) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.TaskService.Create(ctx, title, description)
	observe("create", err)
	if err != nil {
		return nil, err
	}
	c.publish(TaskCreated{Task: *t})
	return t, nil
}

// Update delegates to the service, then broadcasts task_updated.
func (c *Coordinator) Update(ctx context.Context, id string, p task.Patch) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.TaskService.Update(ctx, id, p)
	observe("update", err)
	if err != nil {
		return nil, err
	}
	c.publish(TaskUpdated{Task: *t})
	return t, nil
}

// Delete delegates to the service and broadcasts task_deleted only when a
// task was actually removed.
func (c *Coordinator) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.TaskService.Delete(ctx, id)
	observe("delete", err)
	if err != nil || !removed {
		return false, err
	}
	c.publish(TaskDeleted{TaskID: id})
	return true, nil
}

// Join registers cl with a snapshot of the current tasks queued ahead of
// any later broadcast. Mutations wait while the snapshot is taken, so the
// client sees exactly the events committed after it.
func (c *Coordinator) Join(ctx context.Context, cl *Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.List(ctx)
	if err != nil {
		cl.close()
		return err
	}
	data, err := Encode(Snapshot{Tasks: tasks})
	if err != nil {
		cl.close()
		return err
	}
	return c.registry.Register(cl, data)
}

// Serve joins cl and blocks until it disconnects.
func (c *Coordinator) Serve(ctx context.Context, cl *Client) error {
	if err := c.Join(ctx, cl); err != nil {
		return err
	}
	cl.logger.Info("client connected")
	cl.Run(c.registry)
	cl.logger.Info("client disconnected")
	return nil
}

// Resync broadcasts the full task list to every client.
func (c *Coordinator) Resync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.List(ctx)
	if err != nil {
		return err
	}
	return c.registry.Broadcast(TasksUpdate{Tasks: tasks})
}

func (c *Coordinator) publish(e Event) {
	if err := c.registry.Broadcast(e); err != nil {
		log.WithError(err).WithField("event", e.Type()).Error("broadcast")
	}
}

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, task.ErrNotFound):
		outcome = "not_found"
	case task.IsValidation(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	metrics.TaskMutations.WithLabelValues(op, outcome).Inc()
}
