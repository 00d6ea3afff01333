package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyUserName indicates a user requires a display name.
	ErrEmptyUserName = errors.New("user name is required")
	// ErrInvalidUserStatus indicates an unknown user presence value.
	ErrInvalidUserStatus = errors.New("invalid user status")
	// ErrCurrentTaskRequiresFlow indicates current task id is only valid in flow.
	ErrCurrentTaskRequiresFlow = errors.New("current task id requires flow status")
)

// UserStatus is one user's presence state.
type UserStatus string

const (
	UserIdle UserStatus = "idle"
	UserFlow UserStatus = "flow"
	UserAway UserStatus = "away"
)

// ParseUserStatus validates a wire-level user status value.
func ParseUserStatus(value string) (UserStatus, error) {
	switch status := UserStatus(strings.TrimSpace(value)); status {
	case UserIdle, UserFlow, UserAway:
		return status, nil
	default:
		return "", ErrInvalidUserStatus
	}
}

// User is one account participating in ready checks.
//
// CurrentTaskID is set only while the user is in flow on a task; everywhere
// else it is empty.
type User struct {
	ID            string
	Name          string
	Status        UserStatus
	CurrentTaskID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUserInput describes one user creation request.
type NewUserInput struct {
	Name string
}

// NewUser validates input and constructs an idle user.
func NewUser(input NewUserInput, clock func() time.Time, newID func() (string, error)) (User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return User{}, ErrEmptyUserName
	}

	userID, err := newID()
	if err != nil {
		return User{}, err
	}
	now := clock().UTC()
	return User{
		ID:        userID,
		Name:      name,
		Status:    UserIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidatePresence checks a presence change before it is persisted.
func ValidatePresence(status UserStatus, currentTaskID string) error {
	switch status {
	case UserIdle, UserFlow, UserAway:
	default:
		return ErrInvalidUserStatus
	}
	if strings.TrimSpace(currentTaskID) != "" && status != UserFlow {
		return ErrCurrentTaskRequiresFlow
	}
	return nil
}
