package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"
)

// MemorySessionStore keeps rooms in process. It serves single-node
// deployments and tests.
type MemorySessionStore struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
	ttl   time.Duration
}

type memoryRoom struct {
	session *domain.Session
	version int64
	touched time.Time
	subs    map[chan Snapshot]struct{}
}

// NewMemorySessionStore returns an empty store. Rooms untouched for ttl are
// dropped by StartCleanup; ttl <= 0 keeps them forever.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		rooms: make(map[string]*memoryRoom),
		ttl:   ttl,
	}
}

func (m *MemorySessionStore) Create(ctx context.Context, s *domain.Session) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[s.ID]; ok {
		return Snapshot{}, fmt.Errorf("%w: %s", domain.ErrRoomExists, s.ID)
	}
	room := &memoryRoom{
		session: s.Clone(),
		version: 1,
		touched: time.Now(),
		subs:    make(map[chan Snapshot]struct{}),
	}
	m.rooms[s.ID] = room
	return room.snapshot(), nil
}

func (m *MemorySessionStore) Load(ctx context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	return room.snapshot(), nil
}

func (m *MemorySessionStore) CompareAndSwap(ctx context.Context, id string, expected int64, next *domain.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	if room.version != expected {
		return false, nil
	}
	room.session = next.Clone()
	room.commit()
	return true, nil
}

func (m *MemorySessionStore) SwapCell(ctx context.Context, id string, row, col int, expected, next domain.Cell) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	s := room.session
	if s.State != domain.StatePlaying || s.Board == nil || !s.Board.InBounds(row, col) {
		return false, nil
	}
	if *s.Board.At(row, col) != expected {
		return false, nil
	}
	*s.Board.At(row, col) = next
	room.commit()
	return true, nil
}

func (m *MemorySessionStore) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	ch := make(chan Snapshot, 1)
	room.subs[ch] = struct{}{}
	ch <- room.snapshot()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := room.subs[ch]; ok {
			delete(room.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (m *MemorySessionStore) DeleteIfVersion(ctx context.Context, id string, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok || room.version != expected {
		return false, nil
	}
	room.closeSubs()
	delete(m.rooms, id)
	return true, nil
}

// StartCleanup drops idle rooms every interval until ctx ends.
func (m *MemorySessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.cleanupStaleRooms(now)
			}
		}
	}()
}

func (m *MemorySessionStore) cleanupStaleRooms(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, room := range m.rooms {
		if now.Sub(room.touched) <= m.ttl {
			continue
		}
		room.closeSubs()
		delete(m.rooms, id)
		removed++
		logger.Info("cleaned up stale room", "room_id", id)
	}
	return removed
}

// snapshot clones the current session. Sessions are replaced, never edited
// in place, but callers are free to mutate what they get.
func (r *memoryRoom) snapshot() Snapshot {
	return Snapshot{Session: r.session.Clone(), Version: r.version}
}

func (r *memoryRoom) commit() {
	r.version++
	r.touched = time.Now()
	for ch := range r.subs {
		offer(ch, r.snapshot())
	}
}

func (r *memoryRoom) closeSubs() {
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
}
