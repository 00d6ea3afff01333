// Package push defines the outbound transport contract for coalesced status
// notifications.
package push

import (
	"context"

	"github.com/musterhq/muster/internal/services/readycheck/domain"
)

// Payload carries every status delta destined for one recipient in one
// message. Both maps are sparse; an absent map means no deltas of that kind.
type Payload struct {
	TaskStatus map[string]domain.TaskStatus `json:"taskStatus,omitempty"`
	UserStatus map[string]domain.UserStatus `json:"userStatus,omitempty"`
}

// Empty reports whether the payload carries no deltas at all.
func (p Payload) Empty() bool {
	return len(p.TaskStatus) == 0 && len(p.UserStatus) == 0
}

// Pusher delivers one payload to one recipient. Delivery is fire-and-forget
// from the engine's perspective; the transport owns its own timeouts.
type Pusher interface {
	Push(ctx context.Context, recipientID string, payload Payload) error
}
