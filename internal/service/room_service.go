package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/game"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/repository"

	"github.com/google/uuid"
)

const (
	roomIDAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	createAttempts   = 8
	historyTimeout   = 5 * time.Second
	defaultHistLimit = 50
)

// GameResults persists finished games. Nil disables history.
type GameResults interface {
	Create(ctx context.Context, rec *domain.GameRecord) error
	GetByRoom(ctx context.Context, roomID string, limit int) ([]*domain.GameRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*domain.GameRecord, error)
}

// Outcome of one player action. Applied is false when the action had no
// effect; Session is then the state it was evaluated against. Session and
// Version always come from the store, never from an uncommitted candidate.
type Outcome struct {
	Session *domain.Session `json:"room"`
	Version int64           `json:"version"`
	Events  []domain.Event  `json:"events"`
	Applied bool            `json:"applied"`
	Actor   string          `json:"-"`
}

// RoomService runs every player action as read, apply, conditional write,
// retrying on conflict until it commits or ctx ends.
type RoomService struct {
	store   repository.SessionStore
	results GameResults
	rng     game.Rand
	now     func() time.Time
	newID   func() (string, error)
}

func NewRoomService(store repository.SessionStore, results GameResults) *RoomService {
	return &RoomService{
		store:   store,
		results: results,
		now:     time.Now,
		newID:   newRoomID,
	}
}

func newRoomID() (string, error) {
	buf := make([]byte, domain.RoomIDLength)
	size := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// CreateRoom opens a new waiting room with host as its first member.
func (s *RoomService) CreateRoom(ctx context.Context, host string) (Outcome, error) {
	name, err := game.NormalizeName(host)
	if err != nil {
		return Outcome{}, err
	}

	for i := 0; i < createAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return Outcome{}, fmt.Errorf("room id: %w", err)
		}
		now := s.now()
		res, err := game.Apply(domain.NewSession(id, now), domain.Action{
			Kind:  domain.ActionJoin,
			Actor: name,
			At:    now,
		}, s.rng)
		if err != nil {
			return Outcome{}, err
		}

		snap, err := s.store.Create(ctx, res.Session)
		if errors.Is(err, domain.ErrRoomExists) {
			continue
		}
		if err != nil {
			return Outcome{}, err
		}
		ActionsTotal.WithLabelValues("create", "applied").Inc()
		logger.ForRoom(ctx, id).Info("room created", "host", name)
		return Outcome{Session: snap.Session, Version: snap.Version, Events: res.Events, Applied: true, Actor: name}, nil
	}
	return Outcome{}, fmt.Errorf("%w: no free room id after %d attempts", domain.ErrRoomExists, createAttempts)
}

func (s *RoomService) JoinRoom(ctx context.Context, roomID, player string) (Outcome, error) {
	name, err := game.NormalizeName(player)
	if err != nil {
		return Outcome{}, err
	}
	out, err := s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionJoin, Actor: name})
	if err != nil {
		return out, err
	}
	// a member's name would hand its ticket to someone else
	if !out.Applied {
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrNameTaken, name)
	}
	return out, nil
}

// LeaveRoom removes player. The room is deleted once nobody is left, unless
// another commit (a join) landed after the leave.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, player string) (Outcome, error) {
	out, err := s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionLeave, Actor: player})
	if err != nil || !out.Applied || len(out.Session.Players) > 0 {
		return out, err
	}
	log := logger.ForRoom(ctx, roomID)
	deleted, err := s.store.DeleteIfVersion(ctx, roomID, out.Version)
	switch {
	case err != nil:
		log.Warn("failed to delete empty room", "error", err)
	case deleted:
		log.Info("empty room deleted")
	default:
		log.Info("room changed after the last leave, keeping it", "version", out.Version)
	}
	return out, nil
}

func (s *RoomService) Reveal(ctx context.Context, roomID, player string, row, col int) (Outcome, error) {
	return s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionReveal, Actor: player, Row: row, Col: col})
}

func (s *RoomService) StartGame(ctx context.Context, roomID, player string) (Outcome, error) {
	return s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionStart, Actor: player})
}

func (s *RoomService) ResetGame(ctx context.Context, roomID, player string) (Outcome, error) {
	return s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionReset, Actor: player})
}

func (s *RoomService) ChangeSetting(ctx context.Context, roomID, player, key, value string) (Outcome, error) {
	return s.mutate(ctx, roomID, domain.Action{Kind: domain.ActionSetting, Actor: player, Key: key, Value: value})
}

// ToggleFlag commits through the single-cell write, so flags never conflict
// with actions on other cells.
func (s *RoomService) ToggleFlag(ctx context.Context, roomID, player string, row, col int) (Outcome, error) {
	a := domain.Action{Kind: domain.ActionFlag, Actor: player, Row: row, Col: col}
	ctx, a = s.prepare(ctx, a)
	log := logger.ForRoom(ctx, roomID)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, s.fail(a, err)
		}
		snap, err := s.store.Load(ctx, roomID)
		if err != nil {
			return Outcome{}, s.fail(a, err)
		}
		res, err := game.Apply(snap.Session, a, s.rng)
		if err != nil {
			ActionsTotal.WithLabelValues(string(a.Kind), "rejected").Inc()
			return Outcome{}, err
		}
		if !res.Changed {
			ActionsTotal.WithLabelValues(string(a.Kind), "noop").Inc()
			return Outcome{Session: snap.Session, Version: snap.Version, Actor: a.Actor}, nil
		}

		expected := *snap.Session.Board.At(row, col)
		next := *res.Session.Board.At(row, col)
		ok, err := s.store.SwapCell(ctx, roomID, row, col, expected, next)
		if err != nil {
			return Outcome{}, s.fail(a, err)
		}
		if ok {
			s.committed(a, attempt)
			log.Debug("flag toggled", "player", player, "row", row, "col", col, "flagged", next.IsFlagged)
			// res.Session misses commits to other cells since snap, so the
			// caller gets the stored room instead
			out := Outcome{Events: res.Events, Applied: true, Actor: a.Actor}
			if fresh, err := s.store.Load(ctx, roomID); err == nil {
				out.Session, out.Version = fresh.Session, fresh.Version
			} else {
				log.Warn("reload after flag failed", "error", err)
			}
			return out, nil
		}
		ConflictsTotal.WithLabelValues(string(a.Kind)).Inc()
		log.Debug("cell write conflict, retrying", "action", a.Kind, "attempt", attempt)
	}
}

func (s *RoomService) Get(ctx context.Context, roomID string) (repository.Snapshot, error) {
	return s.store.Load(ctx, roomID)
}

func (s *RoomService) Subscribe(ctx context.Context, roomID string) (<-chan repository.Snapshot, error) {
	return s.store.Subscribe(ctx, roomID)
}

// History lists finished games of one room, or of all rooms when roomID is
// empty. Without a results store it is always empty.
func (s *RoomService) History(ctx context.Context, roomID string, limit int) ([]*domain.GameRecord, error) {
	if s.results == nil {
		return []*domain.GameRecord{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = defaultHistLimit
	}
	var (
		recs []*domain.GameRecord
		err  error
	)
	if roomID == "" {
		recs, err = s.results.GetRecent(ctx, limit)
	} else {
		recs, err = s.results.GetByRoom(ctx, roomID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", domain.ErrStoreUnavailable, err)
	}
	if recs == nil {
		recs = []*domain.GameRecord{}
	}
	return recs, nil
}

func (s *RoomService) mutate(ctx context.Context, roomID string, a domain.Action) (Outcome, error) {
	ctx, a = s.prepare(ctx, a)
	log := logger.ForRoom(ctx, roomID)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, s.fail(a, err)
		}
		snap, err := s.store.Load(ctx, roomID)
		if err != nil {
			return Outcome{}, s.fail(a, err)
		}
		res, err := game.Apply(snap.Session, a, s.rng)
		if err != nil {
			ActionsTotal.WithLabelValues(string(a.Kind), "rejected").Inc()
			return Outcome{}, err
		}
		if !res.Changed {
			ActionsTotal.WithLabelValues(string(a.Kind), "noop").Inc()
			return Outcome{Session: snap.Session, Version: snap.Version, Actor: a.Actor}, nil
		}

		ok, err := s.store.CompareAndSwap(ctx, roomID, snap.Version, res.Session)
		if err != nil {
			return Outcome{}, s.fail(a, err)
		}
		if ok {
			s.committed(a, attempt)
			if !snap.Session.Finished() && res.Session.Finished() {
				s.recordFinished(ctx, res.Session)
			}
			log.Debug("action committed", "action", a.Kind, "player", a.Actor, "attempt", attempt, "version", snap.Version+1)
			return Outcome{Session: res.Session, Version: snap.Version + 1, Events: res.Events, Applied: true, Actor: a.Actor}, nil
		}
		ConflictsTotal.WithLabelValues(string(a.Kind)).Inc()
		log.Debug("write conflict, retrying", "action", a.Kind, "attempt", attempt)
	}
}

// prepare fixes the action time once so every retry evaluates the same
// action, and tags ctx with a correlation id.
func (s *RoomService) prepare(ctx context.Context, a domain.Action) (context.Context, domain.Action) {
	if a.At.IsZero() {
		a.At = s.now()
	}
	return logger.WithActionID(ctx, uuid.NewString()), a
}

func (s *RoomService) committed(a domain.Action, attempts int) {
	ActionsTotal.WithLabelValues(string(a.Kind), "applied").Inc()
	ActionAttempts.WithLabelValues(string(a.Kind)).Observe(float64(attempts))
}

func (s *RoomService) fail(a domain.Action, err error) error {
	ActionsTotal.WithLabelValues(string(a.Kind), "error").Inc()
	return err
}

// recordFinished stores the history entry in the background. It runs once
// per game because only one commit can move a session out of playing.
func (s *RoomService) recordFinished(ctx context.Context, sess *domain.Session) {
	GamesFinished.WithLabelValues(string(sess.State)).Inc()
	log := logger.ForRoom(ctx, sess.ID)
	log.Info("game finished", "outcome", sess.State, "lives", sess.Lives, "triggered_by", sess.LastTriggeredBy)
	if s.results == nil {
		return
	}

	rec := domain.NewGameRecord(sess)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := s.results.Create(ctx, rec); err != nil {
			log.Error("failed to save game result", "error", err)
		}
	}()
}
