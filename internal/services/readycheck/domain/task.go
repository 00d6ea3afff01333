// Package domain holds the core ready-check entities and their validation
// rules: tasks, participants, users, and friendship edges.
package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyOwnerID indicates a task requires an owning user.
	ErrEmptyOwnerID = errors.New("owner user id is required")
	// ErrEmptyTitle indicates a task requires a title.
	ErrEmptyTitle = errors.New("task title is required")
	// ErrInvalidGroupSize indicates a task group size must be at least one.
	ErrInvalidGroupSize = errors.New("task group size must be at least one")
	// ErrInvalidTaskStatus indicates an unknown task status value.
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// TaskStatus is the lifecycle state of one task.
type TaskStatus string

const (
	TaskWaiting    TaskStatus = "waiting"
	TaskReady      TaskStatus = "ready"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCanceled   TaskStatus = "canceled"
)

// Recalculable reports whether the readiness calculator may rewrite this
// status. Tasks past the waiting/ready pair keep whatever state they reached.
func (s TaskStatus) Recalculable() bool {
	return s == TaskWaiting || s == TaskReady
}

// ParseTaskStatus validates a wire-level task status value.
func ParseTaskStatus(value string) (TaskStatus, error) {
	switch status := TaskStatus(strings.TrimSpace(value)); status {
	case TaskWaiting, TaskReady, TaskInProgress, TaskDone, TaskCanceled:
		return status, nil
	default:
		return "", ErrInvalidTaskStatus
	}
}

// Task is one group activity whose readiness is derived from its
// participants' responses and presence.
type Task struct {
	ID          string
	OwnerUserID string
	Title       string
	GroupSize   int
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTaskInput describes one task creation request.
type NewTaskInput struct {
	OwnerUserID string
	Title       string
	GroupSize   int
}

// NewTask validates input and constructs a waiting task.
func NewTask(input NewTaskInput, clock func() time.Time, newID func() (string, error)) (Task, error) {
	ownerUserID := strings.TrimSpace(input.OwnerUserID)
	if ownerUserID == "" {
		return Task{}, ErrEmptyOwnerID
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}
	if input.GroupSize < 1 {
		return Task{}, ErrInvalidGroupSize
	}

	taskID, err := newID()
	if err != nil {
		return Task{}, err
	}
	now := clock().UTC()
	return Task{
		ID:          taskID,
		OwnerUserID: ownerUserID,
		Title:       title,
		GroupSize:   input.GroupSize,
		Status:      TaskWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
