package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/game"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/repository"
)

// mineRing is a 3x3 board with one mine in the middle: every other cell
// shows 1, so each reveal opens exactly one cell.
func mineRing() *domain.Board {
	b := domain.NewBoard(3, 3)
	b.At(1, 1).IsMine = true
	game.ComputeNeighbors(b)
	return b
}

func seedRoom(t *testing.T, store repository.SessionStore, b *domain.Board, players ...string) {
	t.Helper()
	s := domain.NewSession("ROOM01", time.Now())
	for i, p := range players {
		s.Players[p] = domain.Player{Name: p, Color: game.Palette[i], IsHost: i == 0}
	}
	s.Host = players[0]
	s.Board = b
	s.State = domain.StatePlaying
	s.Lives = s.MaxLives
	if _, err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

type fakeResults struct {
	saved chan *domain.GameRecord
}

func newFakeResults() *fakeResults {
	return &fakeResults{saved: make(chan *domain.GameRecord, 4)}
}

func (f *fakeResults) Create(ctx context.Context, rec *domain.GameRecord) error {
	f.saved <- rec
	return nil
}

func (f *fakeResults) GetByRoom(ctx context.Context, roomID string, limit int) ([]*domain.GameRecord, error) {
	return nil, nil
}

func (f *fakeResults) GetRecent(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	return nil, errors.New("db down")
}

func TestConcurrentRevealsOfDifferentCells(t *testing.T) {
	store := repository.NewMemorySessionStore(0)
	players := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"}
	seedRoom(t, store, mineRing(), players...)
	results := newFakeResults()
	svc := NewRoomService(store, results)

	var cells []domain.Coord
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if r != 1 || c != 1 {
				cells = append(cells, domain.Coord{Row: r, Col: c})
			}
		}
	}
	var wg sync.WaitGroup
	for i, c := range cells {
		wg.Add(1)
		go func(player string, c domain.Coord) {
			defer wg.Done()
			out, err := svc.Reveal(context.Background(), "ROOM01", player, c.Row, c.Col)
			if err != nil {
				t.Errorf("reveal %v: %v", c, err)
				return
			}
			if !out.Applied {
				t.Errorf("reveal %v by %s was not applied", c, player)
			}
		}(players[i], c)
	}
	wg.Wait()

	snap, err := svc.Get(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i, c := range cells {
		if got := snap.Session.Board.At(c.Row, c.Col).RevealedBy; got != players[i] {
			t.Fatalf("%v: expected revealedBy %s, got %q", c, players[i], got)
		}
	}
	if snap.Session.State != domain.StateWon {
		t.Fatalf("expected won, got %s", snap.Session.State)
	}

	select {
	case rec := <-results.saved:
		if rec.Outcome != domain.OutcomeWon || rec.Mines != 1 || len(rec.Players) != 8 {
			t.Fatalf("unexpected record %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("finished game not recorded")
	}
}

func TestConcurrentHitsOnOneMineCostOneLife(t *testing.T) {
	store := repository.NewMemorySessionStore(0)
	players := []string{"p0", "p1", "p2", "p3", "p4", "p5"}
	seedRoom(t, store, mineRing(), players...)
	svc := NewRoomService(store, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for _, p := range players {
		wg.Add(1)
		go func(player string) {
			defer wg.Done()
			out, err := svc.Reveal(context.Background(), "ROOM01", player, 1, 1)
			if err != nil {
				t.Errorf("reveal: %v", err)
				return
			}
			if out.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	snap, _ := svc.Get(context.Background(), "ROOM01")
	if applied != 1 {
		t.Fatalf("expected one applied hit, got %d", applied)
	}
	if snap.Session.Lives != 2 {
		t.Fatalf("expected 2 lives, got %d", snap.Session.Lives)
	}
}

// racingStore lets another writer commit right before the first
// conditional write, forcing one retry.
type racingStore struct {
	*repository.MemorySessionStore
	once  sync.Once
	race  func()
	swaps int
}

func (r *racingStore) CompareAndSwap(ctx context.Context, id string, expected int64, next *domain.Session) (bool, error) {
	r.swaps++
	r.once.Do(r.race)
	return r.MemorySessionStore.CompareAndSwap(ctx, id, expected, next)
}

func TestConflictIsRetried(t *testing.T) {
	mem := repository.NewMemorySessionStore(0)
	seedRoom(t, mem, mineRing(), "alice", "bob")
	store := &racingStore{MemorySessionStore: mem}
	store.race = func() {
		other := NewRoomService(mem, nil)
		if _, err := other.Reveal(context.Background(), "ROOM01", "bob", 2, 2); err != nil {
			t.Errorf("racing reveal: %v", err)
		}
	}
	svc := NewRoomService(store, nil)

	out, err := svc.Reveal(context.Background(), "ROOM01", "alice", 0, 0)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !out.Applied || store.swaps != 2 {
		t.Fatalf("expected applied after one retry, applied=%v swaps=%d", out.Applied, store.swaps)
	}
	b := out.Session.Board
	if b.At(0, 0).RevealedBy != "alice" || b.At(2, 2).RevealedBy != "bob" {
		t.Fatalf("lost update: %+v %+v", b.At(0, 0), b.At(2, 2))
	}
}

func TestRetryStopsWithContext(t *testing.T) {
	mem := repository.NewMemorySessionStore(0)
	seedRoom(t, mem, mineRing(), "alice")
	ctx, cancel := context.WithCancel(context.Background())
	store := &racingStore{MemorySessionStore: mem, race: cancel}
	svc := NewRoomService(store, nil)

	// the swap in flight still commits; nothing starts after the cancel
	if _, err := svc.Reveal(ctx, "ROOM01", "alice", 0, 0); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := svc.Reveal(ctx, "ROOM01", "alice", 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestToggleFlagUsesCellWrite(t *testing.T) {
	store := repository.NewMemorySessionStore(0)
	seedRoom(t, store, mineRing(), "alice", "bob")
	svc := NewRoomService(store, nil)
	ctx := context.Background()

	out, err := svc.ToggleFlag(ctx, "ROOM01", "bob", 1, 1)
	if err != nil || !out.Applied {
		t.Fatalf("flag: applied=%v err=%v", out.Applied, err)
	}
	snap, _ := svc.Get(ctx, "ROOM01")
	if c := snap.Session.Board.At(1, 1); !c.IsFlagged || c.FlaggedBy != "bob" {
		t.Fatalf("flag not stored: %+v", c)
	}

	svc.Reveal(ctx, "ROOM01", "alice", 0, 0)
	out, err = svc.ToggleFlag(ctx, "ROOM01", "alice", 0, 0)
	if err != nil || out.Applied {
		t.Fatalf("flag on revealed cell: applied=%v err=%v", out.Applied, err)
	}
	if _, err := svc.ToggleFlag(ctx, "ROOM01", "alice", 5, 5); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
}

func TestRoomLifecycle(t *testing.T) {
	store := repository.NewMemorySessionStore(0)
	svc := NewRoomService(store, nil)
	ctx := context.Background()

	ids := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	first, err := svc.CreateRoom(ctx, " alice ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Session.ID != "AAAAAA" || first.Session.Host != "alice" || first.Actor != "alice" {
		t.Fatalf("unexpected room %+v", first.Session)
	}
	second, err := svc.CreateRoom(ctx, "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.Session.ID != "BBBBBB" {
		t.Fatalf("expected id collision to be retried, got %s", second.Session.ID)
	}

	joined, err := svc.JoinRoom(ctx, "AAAAAA", "carol")
	if err != nil || !joined.Applied {
		t.Fatalf("join: applied=%v err=%v", joined.Applied, err)
	}
	if _, err := svc.JoinRoom(ctx, "NOPE00", "carol"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}

	started, err := svc.StartGame(ctx, "AAAAAA", "alice")
	if err != nil || started.Session.State != domain.StatePlaying {
		t.Fatalf("start: %v %+v", err, started.Session)
	}
	if out, err := svc.ChangeSetting(ctx, "AAAAAA", "alice", domain.SettingDifficulty, "hard"); err != nil || out.Applied {
		t.Fatalf("setting while playing: applied=%v err=%v", out.Applied, err)
	}
	if out, err := svc.ResetGame(ctx, "AAAAAA", "alice"); err != nil || !out.Applied {
		t.Fatalf("reset: applied=%v err=%v", out.Applied, err)
	}
	if _, err := svc.ChangeSetting(ctx, "AAAAAA", "alice", "colour", "red"); !errors.Is(err, domain.ErrInvalidSetting) {
		t.Fatalf("expected invalid setting, got %v", err)
	}

	svc.LeaveRoom(ctx, "AAAAAA", "alice")
	svc.LeaveRoom(ctx, "AAAAAA", "carol")
	if _, err := svc.Get(ctx, "AAAAAA"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected empty room to be deleted, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	svc := NewRoomService(repository.NewMemorySessionStore(0), nil)
	recs, err := svc.History(context.Background(), "", 10)
	if err != nil || recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty history without a results store, got %v %v", recs, err)
	}

	svc = NewRoomService(repository.NewMemorySessionStore(0), newFakeResults())
	if _, err := svc.History(context.Background(), "", 10); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	recs, err = svc.History(context.Background(), "ROOM01", 10)
	if err != nil || recs == nil {
		t.Fatalf("expected empty room history, got %v %v", recs, err)
	}
}

// joinOnDelete commits a join right before the conditional delete.
type joinOnDelete struct {
	*repository.MemorySessionStore
	join func()
}

func (j *joinOnDelete) DeleteIfVersion(ctx context.Context, id string, expected int64) (bool, error) {
	j.join()
	return j.MemorySessionStore.DeleteIfVersion(ctx, id, expected)
}

func TestLeaveKeepsRoomJoinedMeanwhile(t *testing.T) {
	mem := repository.NewMemorySessionStore(0)
	svc := NewRoomService(mem, nil)
	ctx := context.Background()

	created, err := svc.CreateRoom(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Session.ID

	store := &joinOnDelete{MemorySessionStore: mem}
	store.join = func() {
		if _, err := svc.JoinRoom(ctx, id, "bob"); err != nil {
			t.Errorf("join: %v", err)
		}
	}
	leaving := NewRoomService(store, nil)
	if out, err := leaving.LeaveRoom(ctx, id, "alice"); err != nil || !out.Applied {
		t.Fatalf("leave: applied=%v err=%v", out.Applied, err)
	}

	snap, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("room with a committed join was deleted: %v", err)
	}
	if _, ok := snap.Session.Players["bob"]; !ok || len(snap.Session.Players) != 1 {
		t.Fatalf("expected bob to be the only member, got %v", snap.Session.Players)
	}
}

// revealOnSwapCell commits a reveal elsewhere between the flag's load and
// its cell write.
type revealOnSwapCell struct {
	*repository.MemorySessionStore
	once   sync.Once
	reveal func()
}

func (r *revealOnSwapCell) SwapCell(ctx context.Context, id string, row, col int, expected, next domain.Cell) (bool, error) {
	r.once.Do(r.reveal)
	return r.MemorySessionStore.SwapCell(ctx, id, row, col, expected, next)
}

func TestToggleFlagReturnsStoredRoom(t *testing.T) {
	mem := repository.NewMemorySessionStore(0)
	seedRoom(t, mem, mineRing(), "alice", "bob")
	ctx := context.Background()
	store := &revealOnSwapCell{MemorySessionStore: mem}
	store.reveal = func() {
		if _, err := NewRoomService(mem, nil).Reveal(ctx, "ROOM01", "alice", 0, 0); err != nil {
			t.Errorf("reveal: %v", err)
		}
	}
	svc := NewRoomService(store, nil)

	out, err := svc.ToggleFlag(ctx, "ROOM01", "bob", 1, 1)
	if err != nil || !out.Applied {
		t.Fatalf("flag: applied=%v err=%v", out.Applied, err)
	}
	snap, _ := svc.Get(ctx, "ROOM01")
	if out.Version != snap.Version {
		t.Fatalf("expected stored version %d, got %d", snap.Version, out.Version)
	}
	if !out.Session.Board.At(0, 0).IsRevealed || !out.Session.Board.At(1, 1).IsFlagged {
		t.Fatalf("outcome does not match the stored board: (0,0)=%+v (1,1)=%+v",
			out.Session.Board.At(0, 0), out.Session.Board.At(1, 1))
	}
}

func TestJoinWithTakenName(t *testing.T) {
	svc := NewRoomService(repository.NewMemorySessionStore(0), nil)
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "alice")

	if _, err := svc.JoinRoom(ctx, created.Session.ID, " alice"); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}
	snap, _ := svc.Get(ctx, created.Session.ID)
	if len(snap.Session.Players) != 1 {
		t.Fatalf("expected one member, got %v", snap.Session.Players)
	}
}
