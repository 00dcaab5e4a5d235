// Package session holds spoq's process-lifetime SessionState: skills,
// context token usage, the at-most-one pending permission prompt, the
// at-most-one queued steering request, and the session's todo list.
package session

import (
	"encoding/json"
	"time"
)

// TodoStatus is a Todo's lifecycle state. An unrecognized wire value
// defaults to Pending rather than being rejected.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// ParseTodoStatus maps a wire status string to a TodoStatus, defaulting to
// Pending for anything unrecognized.
func ParseTodoStatus(s string) TodoStatus {
	switch TodoStatus(s) {
	case TodoPending, TodoInProgress, TodoCompleted:
		return TodoStatus(s)
	default:
		return TodoPending
	}
}

// Todo is one entry in the session's todo list. ActiveForm is shown while
// the todo is in_progress; it defaults to Content when the backend omits it.
type Todo struct {
	Content    string
	ActiveForm string
	Status     TodoStatus
}

// NewTodo constructs a Todo, defaulting ActiveForm to Content when empty.
func NewTodo(content, activeForm string, status TodoStatus) Todo {
	if activeForm == "" {
		activeForm = content
	}
	return Todo{Content: content, ActiveForm: activeForm, Status: status}
}

// PendingPermission is the at-most-one in-flight permission prompt.
type PendingPermission struct {
	PermissionID string
	ToolName     string
	Description  string
	ToolInput    json.RawMessage
	ReceivedAt   time.Time
}

// SteeringState is a QueuedSteering's lifecycle state.
type SteeringState string

const (
	SteeringQueued        SteeringState = "queued"
	SteeringSent          SteeringState = "sent"
	SteeringInterrupting  SteeringState = "interrupting"
	SteeringResuming      SteeringState = "resuming"
	SteeringCompleted     SteeringState = "completed"
	SteeringFailed        SteeringState = "failed"
)

// QueuedSteering is a soft-interrupt instruction queued against an active
// stream. While its state is active, a new steer request is rejected.
type QueuedSteering struct {
	ThreadID       string
	Instruction    string
	QueuedAt       time.Time
	State          SteeringState
	FailureMessage string
}

// IsActive reports whether this steering slot still blocks new steer requests.
func (q *QueuedSteering) IsActive() bool {
	switch q.State {
	case SteeringQueued, SteeringSent, SteeringInterrupting, SteeringResuming:
		return true
	default:
		return false
	}
}
