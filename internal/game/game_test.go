package game

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

var testEpoch = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

// playing returns a session mid-game on b. The first player is host and
// every player holds the starting shields.
func playing(b *domain.Board, players ...string) *domain.Session {
	s := domain.NewSession("ROOM01", testEpoch)
	for i, name := range players {
		s.Players[name] = domain.Player{Name: name, Color: Palette[i], IsHost: i == 0, JoinedAt: testEpoch}
	}
	s.Host = players[0]
	s.Board = b
	s.State = domain.StatePlaying
	s.Lives = s.MaxLives
	started := testEpoch
	s.StartedAt = &started
	GrantStartingShields(s)
	return s
}

func apply(t *testing.T, s *domain.Session, a domain.Action, rng Rand) Result {
	t.Helper()
	if a.At.IsZero() {
		a.At = testEpoch.Add(time.Minute)
	}
	res, err := Apply(s, a, rng)
	if err != nil {
		t.Fatalf("apply %s by %s: %v", a.Kind, a.Actor, err)
	}
	return res
}

func reveal(actor string, row, col int) domain.Action {
	return domain.Action{Kind: domain.ActionReveal, Actor: actor, Row: row, Col: col}
}

func flag(actor string, row, col int) domain.Action {
	return domain.Action{Kind: domain.ActionFlag, Actor: actor, Row: row, Col: col}
}

func hasEvent(events []domain.Event, kind domain.EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestShieldsAbsorbMineHits(t *testing.T) {
	s := playing(boardFrom(
		"***..",
		".....",
	), "alice")

	s = apply(t, s, reveal("alice", 0, 0), nil).Session
	s = apply(t, s, reveal("alice", 0, 1), nil).Session
	if s.PlayerShields["alice"] != 0 || s.Lives != 3 {
		t.Fatalf("after two hits: shields=%d lives=%d", s.PlayerShields["alice"], s.Lives)
	}
	if !s.Board.At(0, 0).ShieldUsed || !s.Board.At(0, 0).IsRevealed {
		t.Fatalf("absorbed mine not marked")
	}

	res := apply(t, s, reveal("alice", 0, 2), nil)
	s = res.Session
	if s.Lives != 2 || s.LastTriggeredBy != "alice" {
		t.Fatalf("third hit: lives=%d lastTriggeredBy=%q", s.Lives, s.LastTriggeredBy)
	}
	if s.State != domain.StatePlaying {
		t.Fatalf("expected playing, got %s", s.State)
	}
	if !hasEvent(res.Events, domain.EventMineHit) {
		t.Fatalf("expected mine_hit event, got %+v", res.Events)
	}
}

func TestLastLifeLosesAndRevealsMines(t *testing.T) {
	s := playing(boardFrom(
		"*...*",
		"..*..",
	), "alice")
	s.PlayerShields["alice"] = 0
	s.Lives = 1

	res := apply(t, s, reveal("alice", 0, 0), nil)
	s = res.Session
	if s.State != domain.StateLost || s.Lives != 0 {
		t.Fatalf("expected lost with 0 lives, got %s/%d", s.State, s.Lives)
	}
	if n := s.Board.Count(func(c domain.Cell) bool { return c.IsMine && !c.IsRevealed }); n != 0 {
		t.Fatalf("%d mines still hidden", n)
	}
	if s.EndedAt == nil {
		t.Fatalf("expected endedAt")
	}
	if !hasEvent(res.Events, domain.EventGameLost) {
		t.Fatalf("expected game_lost, got %+v", res.Events)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if after := apply(t, s, reveal("alice", 1, 0), nil); after.Changed {
		t.Fatalf("reveal after loss changed the session")
	}
}

func TestShieldPickupIsTwoPhase(t *testing.T) {
	s := playing(boardFrom("S.*"), "alice", "bob")

	res := apply(t, s, reveal("alice", 0, 0), nil)
	s = res.Session
	if s.Board.At(0, 0).Shield != domain.ShieldRevealed {
		t.Fatalf("expected discovered shield, got %q", s.Board.At(0, 0).Shield)
	}
	if s.PlayerShields["alice"] != 2 {
		t.Fatalf("discovering granted a shield: %d", s.PlayerShields["alice"])
	}
	if !hasEvent(res.Events, domain.EventShieldFound) {
		t.Fatalf("expected shield_found, got %+v", res.Events)
	}

	res = apply(t, s, reveal("bob", 0, 0), nil)
	s = res.Session
	if s.PlayerShields["bob"] != 3 || s.PlayerShields["alice"] != 2 {
		t.Fatalf("collect: alice=%d bob=%d", s.PlayerShields["alice"], s.PlayerShields["bob"])
	}
	if c := s.Board.At(0, 0); !c.ShieldCollected() || c.CollectedBy != "bob" {
		t.Fatalf("expected collected by bob, got %+v", c)
	}

	if again := apply(t, s, reveal("alice", 0, 0), nil); again.Changed {
		t.Fatalf("second collect changed the session")
	}
}

func TestWinRequiresEverySafeCell(t *testing.T) {
	s := playing(boardFrom(".*."), "alice")

	s = apply(t, s, reveal("alice", 0, 0), nil).Session
	if s.State != domain.StatePlaying {
		t.Fatalf("won too early")
	}
	res := apply(t, s, reveal("alice", 0, 2), nil)
	if res.Session.State != domain.StateWon {
		t.Fatalf("expected won, got %s", res.Session.State)
	}
	if !hasEvent(res.Events, domain.EventGameWon) || res.Session.EndedAt == nil {
		t.Fatalf("expected game_won and endedAt, got %+v", res.Events)
	}
	if res.Session.Board.At(0, 1).IsRevealed {
		t.Fatalf("win revealed the mine")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := playing(boardFrom(
		"....*",
		".....",
	), "alice")
	before := s.Clone()

	apply(t, s, reveal("alice", 0, 0), nil)
	apply(t, s, flag("alice", 1, 4), nil)
	if !reflect.DeepEqual(s, before) {
		t.Fatalf("apply mutated its input")
	}
}

func startedRoom(t *testing.T, players ...string) *domain.Session {
	t.Helper()
	s := domain.NewSession("ROOM01", testEpoch)
	for _, p := range players {
		s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: p}, nil).Session
	}
	return apply(t, s, domain.Action{Kind: domain.ActionStart, Actor: players[0]}, seeded(1)).Session
}

func TestFirstClickIsSafe(t *testing.T) {
	s := startedRoom(t, "alice", "bob")
	if !s.FirstClickPending || s.State != domain.StatePlaying {
		t.Fatalf("expected pending first click, got %+v", s)
	}

	res := apply(t, s, reveal("alice", 4, 4), seeded(99))
	next := res.Session
	if next.FirstClickPending {
		t.Fatalf("first click still pending")
	}
	if next.Board.Count(func(c domain.Cell) bool { return c.IsMine }) != 9 {
		t.Fatalf("expected 9 mines on small easy board")
	}
	for r := 3; r <= 5; r++ {
		for c := 3; c <= 5; c++ {
			cell := next.Board.At(r, c)
			if cell.IsMine || cell.IsShield() {
				t.Fatalf("(%d,%d) occupied after first click", r, c)
			}
			if !cell.IsRevealed {
				t.Fatalf("(%d,%d) not opened by first click", r, c)
			}
		}
	}
	if next.Lives != 3 {
		t.Fatalf("first click cost a life")
	}
}

func TestFirstClickIsIdempotentUnderRetry(t *testing.T) {
	s := startedRoom(t, "alice")
	a := reveal("alice", 2, 7)

	first := apply(t, s, a, seeded(5))
	second := apply(t, s, a, seeded(5))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-evaluation with the same randomness diverged")
	}
}

func TestFirstClickKeepsFlags(t *testing.T) {
	s := startedRoom(t, "alice", "bob")
	s = apply(t, s, flag("bob", 0, 0), nil).Session

	next := apply(t, s, reveal("alice", 8, 8), seeded(3)).Session
	if c := next.Board.At(0, 0); !c.IsFlagged || c.FlaggedBy != "bob" {
		t.Fatalf("flag lost on regeneration: %+v", c)
	}
}

func TestStartGrantsShieldsAndRequiresHost(t *testing.T) {
	s := domain.NewSession("ROOM01", testEpoch)
	for _, p := range []string{"alice", "bob"} {
		s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: p}, nil).Session
	}
	s = apply(t, s, domain.Action{Kind: domain.ActionSetting, Actor: "alice", Key: domain.SettingShieldsEnabled, Value: "false"}, nil).Session

	if res := apply(t, s, domain.Action{Kind: domain.ActionStart, Actor: "bob"}, nil); res.Changed {
		t.Fatalf("non-host started the game")
	}

	s = apply(t, s, domain.Action{Kind: domain.ActionStart, Actor: "alice"}, seeded(2)).Session
	if s.PlayerShields["alice"] != 2 || s.PlayerShields["bob"] != 2 {
		t.Fatalf("expected 2 shields each, got %v", s.PlayerShields)
	}
	if n := s.Board.Count(func(c domain.Cell) bool { return c.IsShield() }); n != 0 {
		t.Fatalf("shields disabled but %d shield cells", n)
	}
	if s.StartedAt == nil || s.Lives != 3 {
		t.Fatalf("start did not initialise the round: %+v", s)
	}

	s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "carol"}, nil).Session
	if s.PlayerShields["carol"] != 0 {
		t.Fatalf("late joiner got shields")
	}
}

func TestResetReturnsToWaiting(t *testing.T) {
	s := playing(boardFrom("*.."), "alice", "bob")
	s.PlayerShields["alice"] = 0
	s.Lives = 1
	s = apply(t, s, reveal("alice", 0, 0), nil).Session

	if res := apply(t, s, domain.Action{Kind: domain.ActionReset, Actor: "bob"}, nil); res.Changed {
		t.Fatalf("non-host reset the game")
	}
	s = apply(t, s, domain.Action{Kind: domain.ActionReset, Actor: "alice"}, nil).Session
	if s.State != domain.StateWaiting || s.Board != nil || s.Lives != s.MaxLives {
		t.Fatalf("unexpected session after reset: %+v", s)
	}
	if len(s.PlayerShields) != 0 || s.LastTriggeredBy != "" || s.StartedAt != nil {
		t.Fatalf("reset kept round state: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res := apply(t, s, domain.Action{Kind: domain.ActionReset, Actor: "alice"}, nil); res.Changed {
		t.Fatalf("reset from waiting changed the session")
	}
}

func TestSettings(t *testing.T) {
	s := domain.NewSession("ROOM01", testEpoch)
	s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "alice"}, nil).Session
	s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "bob"}, nil).Session

	setting := func(actor, key, value string) domain.Action {
		return domain.Action{Kind: domain.ActionSetting, Actor: actor, Key: key, Value: value}
	}

	if res := apply(t, s, setting("bob", domain.SettingDifficulty, "hard"), nil); res.Changed {
		t.Fatalf("non-host changed a setting")
	}
	if res := apply(t, s, setting("alice", domain.SettingDifficulty, "easy"), nil); res.Changed {
		t.Fatalf("same value reported as change")
	}

	res := apply(t, s, setting("alice", domain.SettingBoardSize, "hell"), nil)
	if !res.Changed || res.Session.BoardSize != domain.SizeHell {
		t.Fatalf("board size not applied")
	}
	res = apply(t, res.Session, setting("alice", domain.SettingMaxLives, "5"), nil)
	if res.Session.MaxLives != 5 || res.Session.Lives != 5 {
		t.Fatalf("max lives not applied: %+v", res.Session)
	}

	bad := []domain.Action{
		setting("alice", "theme", "dark"),
		setting("alice", domain.SettingDifficulty, "nightmare"),
		setting("alice", domain.SettingBoardSize, "tiny"),
		setting("alice", domain.SettingShieldsEnabled, "maybe"),
		setting("alice", domain.SettingMaxLives, "0"),
		setting("alice", domain.SettingMaxLives, "10"),
	}
	for _, a := range bad {
		if _, err := Apply(s, a, nil); !errors.Is(err, domain.ErrInvalidSetting) {
			t.Fatalf("%s=%s: expected invalid setting, got %v", a.Key, a.Value, err)
		}
	}

	s = apply(t, s, domain.Action{Kind: domain.ActionStart, Actor: "alice"}, seeded(4)).Session
	if res := apply(t, s, setting("alice", domain.SettingDifficulty, "hard"), nil); res.Changed {
		t.Fatalf("setting changed while playing")
	}
}

func TestJoinAndLeave(t *testing.T) {
	s := domain.NewSession("ROOM01", testEpoch)
	for i := 0; i < len(Palette); i++ {
		s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: fmt.Sprintf(" p%d ", i)}, nil).Session
	}
	if s.Host != "p0" || !s.Players["p0"].IsHost || s.Players["p1"].IsHost {
		t.Fatalf("unexpected host assignment: %+v", s.Players)
	}
	colors := map[string]bool{}
	for _, p := range s.Players {
		if colors[p.Color] {
			t.Fatalf("duplicate color %s", p.Color)
		}
		colors[p.Color] = true
	}

	if _, err := Apply(s, domain.Action{Kind: domain.ActionJoin, Actor: "late"}, nil); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected room full, got %v", err)
	}
	if res := apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "p3"}, nil); res.Changed {
		t.Fatalf("rejoin changed the session")
	}
	for _, name := range []string{"", "   ", "a-name-that-is-far-too-long"} {
		if _, err := Apply(s, domain.Action{Kind: domain.ActionJoin, Actor: name}, nil); !errors.Is(err, domain.ErrInvalidName) {
			t.Fatalf("%q: expected invalid name, got %v", name, err)
		}
	}

	s = apply(t, s, domain.Action{Kind: domain.ActionLeave, Actor: "p0"}, nil).Session
	if _, ok := s.Players["p0"]; ok {
		t.Fatalf("player still present after leave")
	}
	if s.Host != "p0" {
		t.Fatalf("host moved to %q", s.Host)
	}
	s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "newcomer"}, nil).Session
	if got := s.Players["newcomer"].Color; got != Palette[0] {
		t.Fatalf("expected freed color %s, got %s", Palette[0], got)
	}
}

func TestLeaveDropsShields(t *testing.T) {
	s := playing(boardFrom("..*"), "alice", "bob")
	s = apply(t, s, domain.Action{Kind: domain.ActionLeave, Actor: "bob"}, nil).Session
	if _, ok := s.PlayerShields["bob"]; ok {
		t.Fatalf("shield entry kept after leave")
	}
}

func TestFlagToggle(t *testing.T) {
	s := playing(boardFrom(
		".*",
		"..",
	), "alice", "bob")

	res := apply(t, s, flag("bob", 0, 1), nil)
	if c := res.Session.Board.At(0, 1); !c.IsFlagged || c.FlaggedBy != "bob" {
		t.Fatalf("flag not placed: %+v", c)
	}
	if res.Session.MinesLeft() != 0 {
		t.Fatalf("expected 0 mines left, got %d", res.Session.MinesLeft())
	}
	res = apply(t, res.Session, flag("alice", 0, 1), nil)
	if c := res.Session.Board.At(0, 1); c.IsFlagged || c.FlaggedBy != "" {
		t.Fatalf("flag not removed: %+v", c)
	}
	if !hasEvent(res.Events, domain.EventFlagRemoved) {
		t.Fatalf("expected flag_removed, got %+v", res.Events)
	}

	s = apply(t, s, reveal("alice", 0, 0), nil).Session
	if res := apply(t, s, flag("alice", 0, 0), nil); res.Changed {
		t.Fatalf("flagged a revealed cell")
	}
	if res := apply(t, s, flag("mallory", 1, 1), nil); res.Changed {
		t.Fatalf("non-member placed a flag")
	}
	if _, err := Apply(s, flag("alice", 2, 0), nil); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
}

func TestActionsIgnoredOutsidePlay(t *testing.T) {
	s := domain.NewSession("ROOM01", testEpoch)
	s = apply(t, s, domain.Action{Kind: domain.ActionJoin, Actor: "alice"}, nil).Session
	for _, a := range []domain.Action{reveal("alice", 0, 0), flag("alice", 0, 0)} {
		if res := apply(t, s, a, nil); res.Changed {
			t.Fatalf("%s changed a waiting session", a.Kind)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(domain.StateWaiting, domain.StatePlaying) || CanTransition(domain.StateWaiting, domain.StateWon) {
		t.Fatalf("waiting transitions wrong")
	}
	if CanTransition(domain.StateWon, domain.StateLost) || !CanTransition(domain.StateLost, domain.StateWaiting) {
		t.Fatalf("terminal transitions wrong")
	}
}

func TestCheckTransition(t *testing.T) {
	board := playing(boardFrom(".*"), "alice")
	won := board.Clone()
	won.State = domain.StateWon
	lost := board.Clone()
	lost.State = domain.StateLost
	lost.Lives = 0
	waiting := domain.NewSession("ROOM01", testEpoch)

	cases := []struct {
		name          string
		before, after *domain.Session
		ok            bool
	}{
		{"playing to won", board, won, true},
		{"playing to lost", board, lost, true},
		{"won to waiting", won, waiting, true},
		{"won to lost", won, lost, false},
		{"waiting to won", waiting, won, false},
		{"lost with lives", board, func() *domain.Session { s := lost.Clone(); s.Lives = 2; return s }(), false},
	}
	for _, tc := range cases {
		err := checkTransition(tc.before, tc.after)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrIllegalTransition) {
			t.Fatalf("%s: expected illegal transition, got %v", tc.name, err)
		}
	}
}

func TestApplyRejectsBrokenResult(t *testing.T) {
	// a waiting room must not carry a board
	s := domain.NewSession("ROOM01", testEpoch)
	s.Board = boardFrom("..")

	res, err := Apply(s, domain.Action{Kind: domain.ActionJoin, Actor: "alice", At: testEpoch}, nil)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if res.Session != s || len(s.Players) != 0 {
		t.Fatalf("rejected result must return the untouched input")
	}
}

func TestCollectingLastShieldSettlesTheGame(t *testing.T) {
	s := playing(boardFrom("S.*"), "alice", "bob")
	shield := s.Board.At(0, 0)
	shield.IsRevealed = true
	shield.Shield = domain.ShieldRevealed
	s.Board.At(0, 1).IsRevealed = true

	res := apply(t, s, reveal("bob", 0, 0), nil)
	if !hasEvent(res.Events, domain.EventShieldCollected) || !hasEvent(res.Events, domain.EventGameWon) {
		t.Fatalf("expected collect and win in one transition, got %+v", res.Events)
	}
	if res.Session.State != domain.StateWon {
		t.Fatalf("expected won, got %s", res.Session.State)
	}
}
