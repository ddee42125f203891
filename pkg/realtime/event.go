package realtime

import (
	"encoding/json"
	"fmt"

	"taskboard/pkg/task"
)

// Wire message types.
const (
	TypeSnapshot    = "snapshot"
	TypeTasksUpdate = "tasks_update"
	TypeTaskCreated = "task_created"
	TypeTaskUpdated = "task_updated"
	TypeTaskDeleted = "task_deleted"
	TypePing        = "ping"
	TypePong        = "pong"
)

// Event is a change notification sent to clients. The set of
// implementations is closed; each one serializes to a single wire message.
type Event interface {
	Type() string
	isEvent()
}

// TaskCreated announces a newly created task.
type TaskCreated struct{ Task task.Task }

// TaskUpdated carries the post-update task.
type TaskUpdated struct{ Task task.Task }

// TaskDeleted names the removed task.
type TaskDeleted struct{ TaskID string }

// Snapshot is the full task list sent to a newly joined client.
type Snapshot struct{ Tasks []task.Task }

// TasksUpdate is a full task list broadcast to everyone on resync.
type TasksUpdate struct{ Tasks []task.Task }

// Heartbeat answers a client ping.
type Heartbeat struct{}

func (TaskCreated) Type() string { return TypeTaskCreated }
func (TaskUpdated) Type() string { return TypeTaskUpdated }
func (TaskDeleted) Type() string { return TypeTaskDeleted }
func (Snapshot) Type() string    { return TypeSnapshot }
func (TasksUpdate) Type() string { return TypeTasksUpdate }
func (Heartbeat) Type() string   { return TypePong }

func (TaskCreated) isEvent() {}
func (TaskUpdated) isEvent() {}
func (TaskDeleted) isEvent() {}
func (Snapshot) isEvent()    {}
func (TasksUpdate) isEvent() {}
func (Heartbeat) isEvent()   {}

// Message is the wire record exchanged over the real-time channel.
type Message struct {
	Type   string      `json:"type"`
	Task   *task.Task  `json:"task,omitempty"`
	Tasks  []task.Task `json:"tasks,omitempty"`
	TaskID string      `json:"task_id,omitempty"`
}

type taskMessage struct {
	Type string    `json:"type"`
	Task task.Task `json:"task"`
}

type listMessage struct {
	Type  string      `json:"type"`
	Tasks []task.Task `json:"tasks"`
}

type deletedMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
}

type bareMessage struct {
	Type string `json:"type"`
}

// Encode serializes e to its wire form.
func Encode(e Event) ([]byte, error) {
	var v any
	switch e := e.(type) {
	case TaskCreated:
		v = taskMessage{Type: e.Type(), Task: e.Task}
	case TaskUpdated:
		v = taskMessage{Type: e.Type(), Task: e.Task}
	case TaskDeleted:
		v = deletedMessage{Type: e.Type(), TaskID: e.TaskID}
	case Snapshot:
		v = listMessage{Type: e.Type(), Tasks: nonNil(e.Tasks)}
	case TasksUpdate:
		v = listMessage{Type: e.Type(), Tasks: nonNil(e.Tasks)}
	case Heartbeat:
		v = bareMessage{Type: e.Type()}
	default:
		return nil, fmt.Errorf("encode: unknown event %T", e)
	}
	return json.Marshal(v)
}

// Decode parses a wire message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode message: missing type")
	}
	return m, nil
}

// nonNil makes an empty list encode as [] rather than null.
func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
