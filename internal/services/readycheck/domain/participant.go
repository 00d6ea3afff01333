package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyTaskID indicates a participant requires a task.
	ErrEmptyTaskID = errors.New("task id is required")
	// ErrEmptyUserID indicates a participant requires a user.
	ErrEmptyUserID = errors.New("user id is required")
	// ErrInvalidResponse indicates an unknown participant response value.
	ErrInvalidResponse = errors.New("invalid participant response")
)

// Response is one participant's answer to a ready check. The zero value
// means the participant has not responded yet.
type Response string

const (
	ResponseNone Response = ""
	ResponseYes  Response = "yes"
	ResponseNo   Response = "no"
)

// ParseResponse validates a wire-level response value.
func ParseResponse(value string) (Response, error) {
	switch response := Response(strings.TrimSpace(value)); response {
	case ResponseYes, ResponseNo:
		return response, nil
	default:
		return "", ErrInvalidResponse
	}
}

// Participant ties exactly one user to exactly one task. At most one
// participant exists per (task, user) pair.
type Participant struct {
	ID        string
	TaskID    string
	UserID    string
	Response  Response
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewParticipantInput describes one invitation request.
type NewParticipantInput struct {
	TaskID string
	UserID string
}

// NewParticipant validates input and constructs an unanswered participant.
func NewParticipant(input NewParticipantInput, clock func() time.Time, newID func() (string, error)) (Participant, error) {
	taskID := strings.TrimSpace(input.TaskID)
	if taskID == "" {
		return Participant{}, ErrEmptyTaskID
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return Participant{}, ErrEmptyUserID
	}

	participantID, err := newID()
	if err != nil {
		return Participant{}, err
	}
	now := clock().UTC()
	return Participant{
		ID:        participantID,
		TaskID:    taskID,
		UserID:    userID,
		Response:  ResponseNone,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
