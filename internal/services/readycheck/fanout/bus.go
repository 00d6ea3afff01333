// Package fanout accumulates entity-level status deltas during one unit of
// work and routes them, coalesced per recipient, through the push transport.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/musterhq/muster/internal/services/readycheck/domain"
	"github.com/musterhq/muster/internal/services/readycheck/push"
	"github.com/musterhq/muster/internal/services/readycheck/storage"
)

var (
	// ErrResolverNotConfigured indicates the bus is missing its graph lookups.
	ErrResolverNotConfigured = errors.New("fanout resolver is not configured")
	// ErrPusherNotConfigured indicates the bus is missing its transport.
	ErrPusherNotConfigured = errors.New("fanout pusher is not configured")
)

// Resolver maps pending deltas to interested recipients. Both lookups are
// batched: one query per delta kind per drain, regardless of how many ids are
// pending.
type Resolver interface {
	ParticipantsByTasks(ctx context.Context, taskIDs []string) ([]storage.TaskParticipant, error)
	FriendsOfUsers(ctx context.Context, userIDs []string) ([]storage.FriendPair, error)
}

// Bus buffers status deltas for one unit of work.
//
// A Bus is created at request start and discarded at request end; it is not
// shared across units of work and needs no locking. Recording the same id
// twice before a drain keeps the last status.
type Bus struct {
	resolver Resolver
	pusher   push.Pusher

	pendingTasks map[string]domain.TaskStatus
	pendingUsers map[string]domain.UserStatus
}

// NewBus constructs an empty bus for one unit of work.
func NewBus(resolver Resolver, pusher push.Pusher) *Bus {
	return &Bus{
		resolver:     resolver,
		pusher:       pusher,
		pendingTasks: make(map[string]domain.TaskStatus),
		pendingUsers: make(map[string]domain.UserStatus),
	}
}

// RecordTaskStatus buffers one task status delta. Last write wins.
func (b *Bus) RecordTaskStatus(taskID string, status domain.TaskStatus) {
	if b == nil {
		return
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return
	}
	if b.pendingTasks == nil {
		b.pendingTasks = make(map[string]domain.TaskStatus)
	}
	b.pendingTasks[taskID] = status
}

// RecordUserStatus buffers one user status delta. Last write wins.
func (b *Bus) RecordUserStatus(userID string, status domain.UserStatus) {
	if b == nil {
		return
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	if b.pendingUsers == nil {
		b.pendingUsers = make(map[string]domain.UserStatus)
	}
	b.pendingUsers[userID] = status
}

// PendingCount returns how many deltas are buffered, for observability.
func (b *Bus) PendingCount() int {
	if b == nil {
		return 0
	}
	return len(b.pendingTasks) + len(b.pendingUsers)
}

// Drain resolves every pending delta to its recipients and dispatches one
// push per recipient carrying all of that recipient's deltas.
//
// Task deltas reach the task's participants; user deltas reach the user's
// friends and the user themself. When resolution fails the pending maps are
// left intact so a later drain can retry the same snapshots. Individual push
// failures are logged and do not abort the remaining dispatches; the maps
// are cleared once resolution has succeeded.
func (b *Bus) Drain(ctx context.Context) error {
	if b == nil || len(b.pendingTasks)+len(b.pendingUsers) == 0 {
		return nil
	}
	if b.resolver == nil {
		return ErrResolverNotConfigured
	}
	if b.pusher == nil {
		return ErrPusherNotConfigured
	}

	taskIDs := make([]string, 0, len(b.pendingTasks))
	for taskID := range b.pendingTasks {
		taskIDs = append(taskIDs, taskID)
	}
	userIDs := make([]string, 0, len(b.pendingUsers))
	for userID := range b.pendingUsers {
		userIDs = append(userIDs, userID)
	}

	var (
		participants []storage.TaskParticipant
		friends      []storage.FriendPair
	)
	group, groupCtx := errgroup.WithContext(ctx)
	if len(taskIDs) > 0 {
		group.Go(func() error {
			var err error
			participants, err = b.resolver.ParticipantsByTasks(groupCtx, taskIDs)
			if err != nil {
				return fmt.Errorf("resolve task participants: %w", err)
			}
			return nil
		})
	}
	if len(userIDs) > 0 {
		group.Go(func() error {
			var err error
			friends, err = b.resolver.FriendsOfUsers(groupCtx, userIDs)
			if err != nil {
				return fmt.Errorf("resolve user friends: %w", err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		// Pending maps survive for a retry with the same snapshots.
		return err
	}

	aggregates := make(map[string]push.Payload)
	addTaskDelta := func(recipientID, taskID string) {
		payload := aggregates[recipientID]
		if payload.TaskStatus == nil {
			payload.TaskStatus = make(map[string]domain.TaskStatus)
		}
		payload.TaskStatus[taskID] = b.pendingTasks[taskID]
		aggregates[recipientID] = payload
	}
	addUserDelta := func(recipientID, userID string) {
		payload := aggregates[recipientID]
		if payload.UserStatus == nil {
			payload.UserStatus = make(map[string]domain.UserStatus)
		}
		payload.UserStatus[userID] = b.pendingUsers[userID]
		aggregates[recipientID] = payload
	}

	for _, participant := range participants {
		addTaskDelta(participant.UserID, participant.TaskID)
	}
	// A user's own client hears about its own presence change.
	for _, userID := range userIDs {
		addUserDelta(userID, userID)
	}
	for _, pair := range friends {
		addUserDelta(pair.FriendID, pair.UserID)
	}

	var wg sync.WaitGroup
	for recipientID, payload := range aggregates {
		if payload.Empty() {
			continue
		}
		wg.Add(1)
		go func(recipientID string, payload push.Payload) {
			defer wg.Done()
			if err := b.pusher.Push(ctx, recipientID, payload); err != nil {
				log.Printf("fanout: push to %s: %v", recipientID, err)
			}
		}(recipientID, payload)
	}
	wg.Wait()

	b.pendingTasks = make(map[string]domain.TaskStatus)
	b.pendingUsers = make(map[string]domain.UserStatus)
	return nil
}
