// Package session tracks live streaming sessions. A session binds a caller's
// identity and a snapshot of their permission record to an outbound delivery
// channel for the lifetime of one connection.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagegate/pagegate/pkg/access"
)

// Channel delivers server-to-client payloads for one session. Send may block
// until the transport drains or the context is cancelled. Close releases the
// transport and must be safe to call more than once.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Session is one live connection. The permission record is snapshotted at
// creation and never refreshed; directory edits apply to new sessions only.
type Session struct {
	ID          string
	User        string
	Permissions access.PermissionRecord
	CreatedAt   time.Time

	channel   Channel
	closeOnce sync.Once
}

// Send delivers a payload on the session's channel.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	return s.channel.Send(ctx, payload)
}

// release closes the channel exactly once.
func (s *Session) release() {
	s.closeOnce.Do(func() {
		if s.channel != nil {
			s.channel.Close()
		}
	})
}

func newID() string {
	return uuid.NewString()
}
