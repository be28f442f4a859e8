package repository

import (
	"context"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

// Snapshot is a session as read at a specific version.
type Snapshot struct {
	Session *domain.Session
	Version int64
}

// SessionStore is the shared document store behind every room.
//
// Writes are conditional: CompareAndSwap commits only if the stored
// version still equals expected, SwapCell only if the stored cell still
// equals expected and the game is playing. Both report committed=false on
// a lost race and never return an error for it. Every commit bumps the
// version by one. Failures reaching the backend wrap
// domain.ErrStoreUnavailable.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) (Snapshot, error)
	Load(ctx context.Context, id string) (Snapshot, error)
	CompareAndSwap(ctx context.Context, id string, expected int64, next *domain.Session) (bool, error)
	SwapCell(ctx context.Context, id string, row, col int, expected, next domain.Cell) (bool, error)
	// Subscribe delivers the latest committed snapshot after every commit,
	// starting with the current one. Slow readers only see the newest
	// snapshot. The channel closes when ctx ends or the room goes away.
	Subscribe(ctx context.Context, id string) (<-chan Snapshot, error)
	// DeleteIfVersion removes the room only while its version still equals
	// expected. A missing room or a newer version reports deleted=false.
	DeleteIfVersion(ctx context.Context, id string, expected int64) (bool, error)
}

// offer hands snap to a subscriber without blocking, replacing a snapshot
// the reader has not picked up yet.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
