// Package storage defines persistence contracts for ready-check state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/musterhq/muster/internal/services/readycheck/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalidTransition indicates a lifecycle update found the task in a state
// the transition does not apply to.
var ErrInvalidTransition = errors.New("invalid task status transition")

// Keyset is one keyset list window: the public id of the anchor row
// (inclusive), the fetch direction, and the over-fetch limit. A missing
// anchor row yields an empty result, not an error.
type Keyset struct {
	AnchorID string
	Backward bool
	Limit    int
}

// TaskParticipant pairs one task with one participating user, as resolved by
// a batched fan-out lookup.
type TaskParticipant struct {
	TaskID string
	UserID string
}

// FriendPair is one directed half of a symmetric friendship edge.
type FriendPair struct {
	UserID   string
	FriendID string
}

// Friend is one friendship edge scoped to its owning user.
type Friend struct {
	UserID    string
	FriendID  string
	CreatedAt time.Time
}

// UserStore persists user accounts and presence.
type UserStore interface {
	PutUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// SetUserStatus updates presence; currentTaskID must be empty unless the
	// status is flow.
	SetUserStatus(ctx context.Context, userID string, status domain.UserStatus, currentTaskID string, at time.Time) error
}

// FriendStore persists symmetric friendship edges. Pair writes create and
// remove both directed rows atomically so friendship is always mutual.
type FriendStore interface {
	PutFriendPair(ctx context.Context, userID, friendID string, at time.Time) error
	DeleteFriendPair(ctx context.Context, userID, friendID string) error
	ListFriends(ctx context.Context, userID string, window Keyset) ([]Friend, error)
	// FriendsOfUsers resolves every pending user id to its friend edges in a
	// single batched query.
	FriendsOfUsers(ctx context.Context, userIDs []string) ([]FriendPair, error)
}

// TaskStore persists tasks and their derived readiness status.
type TaskStore interface {
	PutTask(ctx context.Context, task domain.Task) error
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	// GetRecalculableTasks returns the subset of the given tasks still in the
	// waiting/ready pair.
	GetRecalculableTasks(ctx context.Context, taskIDs []string) ([]domain.Task, error)
	// ReadyCounts returns, per task, the number of participants who answered
	// yes and whose user is currently idle. Tasks with no such participants
	// are absent from the map.
	ReadyCounts(ctx context.Context, taskIDs []string) (map[string]int, error)
	// TransitionTaskStatus applies a readiness transition with an
	// update-if-different predicate restricted to the waiting/ready pair. It
	// reports whether a row actually changed.
	TransitionTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, at time.Time) (bool, error)
	// StartTask moves a ready task to in_progress.
	StartTask(ctx context.Context, taskID string, at time.Time) error
	// CancelTask moves a waiting, ready, or in_progress task to canceled.
	CancelTask(ctx context.Context, taskID string, at time.Time) error
	ListTasksByOwner(ctx context.Context, ownerUserID string, window Keyset) ([]domain.Task, error)
	ListTasksByParticipant(ctx context.Context, userID string, window Keyset) ([]domain.Task, error)
}

// ParticipantStore persists task membership and responses.
type ParticipantStore interface {
	PutParticipant(ctx context.Context, participant domain.Participant) error
	GetParticipant(ctx context.Context, taskID, userID string) (domain.Participant, error)
	SetParticipantResponse(ctx context.Context, taskID, userID string, response domain.Response, at time.Time) error
	ListParticipantsByTask(ctx context.Context, taskID string, window Keyset) ([]domain.Participant, error)
	// ListInvitations lists one user's unanswered participant rows.
	ListInvitations(ctx context.Context, userID string, window Keyset) ([]domain.Participant, error)
	// ParticipantsByTasks resolves every pending task id to its participating
	// users in a single batched query.
	ParticipantsByTasks(ctx context.Context, taskIDs []string) ([]TaskParticipant, error)
	// TaskIDsForUsers returns the distinct task ids any of the given users
	// participate in.
	TaskIDsForUsers(ctx context.Context, userIDs []string) ([]string, error)
}
