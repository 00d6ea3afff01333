// Package readiness recomputes the derived ready-to-start status of tasks
// from participant responses and user presence.
package readiness

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/musterhq/muster/internal/services/readycheck/domain"
)

var (
	// ErrStoreNotConfigured indicates the calculator is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("readiness store is not configured")
)

// Store is the persistence boundary the calculator recomputes against.
type Store interface {
	GetRecalculableTasks(ctx context.Context, taskIDs []string) ([]domain.Task, error)
	ReadyCounts(ctx context.Context, taskIDs []string) (map[string]int, error)
	TransitionTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, at time.Time) (bool, error)
	TaskIDsForUsers(ctx context.Context, userIDs []string) ([]string, error)
}

// Recorder accumulates task status deltas for later fan-out. The calculator
// records every transition it persists.
type Recorder interface {
	RecordTaskStatus(taskID string, status domain.TaskStatus)
}

// Transition is one persisted task status change.
type Transition struct {
	TaskID string            `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
}

// Calculator derives task readiness. It is scoped to one unit of work
// together with its recorder.
type Calculator struct {
	store    Store
	recorder Recorder
	clock    func() time.Time
}

// NewCalculator constructs a calculator recording transitions into recorder.
// A nil recorder disables delta recording; a nil clock falls back to wall time.
func NewCalculator(store Store, recorder Recorder, clock func() time.Time) *Calculator {
	if clock == nil {
		clock = time.Now
	}
	return &Calculator{
		store:    store,
		recorder: recorder,
		clock:    clock,
	}
}

// Recalculate recomputes the status of each given task still in the
// waiting/ready pair and returns the transitions that were persisted.
//
// A task is ready iff the count of participants who answered yes and whose
// user is idle reaches the task's group size. Re-running with no underlying
// change persists nothing and returns no transitions: the update predicate
// skips rows already at the computed status.
func (c *Calculator) Recalculate(ctx context.Context, taskIDs []string) ([]Transition, error) {
	if c == nil || c.store == nil {
		return nil, ErrStoreNotConfigured
	}

	taskIDs = dedupe(taskIDs)
	if len(taskIDs) == 0 {
		return nil, nil
	}

	tasks, err := c.store.GetRecalculableTasks(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	candidateIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		candidateIDs = append(candidateIDs, task.ID)
	}
	counts, err := c.store.ReadyCounts(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	now := c.clock().UTC()
	var transitions []Transition
	for _, task := range tasks {
		target := domain.TaskWaiting
		if counts[task.ID] >= task.GroupSize {
			target = domain.TaskReady
		}
		changed, err := c.store.TransitionTaskStatus(ctx, task.ID, target, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		if c.recorder != nil {
			c.recorder.RecordTaskStatus(task.ID, target)
		}
		transitions = append(transitions, Transition{TaskID: task.ID, Status: target})
	}
	return transitions, nil
}

// RecalculateForUsers resolves the given users to the distinct tasks they
// participate in and recalculates those.
func (c *Calculator) RecalculateForUsers(ctx context.Context, userIDs []string) ([]Transition, error) {
	if c == nil || c.store == nil {
		return nil, ErrStoreNotConfigured
	}

	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return nil, nil
	}

	taskIDs, err := c.store.TaskIDsForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	return c.Recalculate(ctx, taskIDs)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
