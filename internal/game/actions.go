package game

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

// Palette holds the player colors in assignment order.
var Palette = []string{
	"#3B82F6", "#EF4444", "#10B981", "#F59E0B",
	"#8B5CF6", "#EC4899", "#14B8A6", "#F97316",
}

// NormalizeName trims a player name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxPlayerNameLength {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return name, nil
}

func (r *Result) applyReveal(a domain.Action, rng Rand) error {
	s := r.Session
	if s.State != domain.StatePlaying || s.Board == nil {
		return nil
	}
	if _, ok := s.Players[a.Actor]; !ok {
		return nil
	}
	if !s.Board.InBounds(a.Row, a.Col) {
		return fmt.Errorf("%w: (%d,%d)", domain.ErrOutOfBounds, a.Row, a.Col)
	}

	cell := s.Board.At(a.Row, a.Col)
	switch {
	case cell.IsFlagged:
		return nil
	case cell.Collectable():
		r.emit(CollectShield(s, a.Row, a.Col, a.Actor)...)
		r.emit(Evaluate(s, a.At)...)
		return nil
	case cell.IsRevealed:
		return nil
	}

	if s.FirstClickPending {
		if err := regenerateAround(s, a.Row, a.Col, rng); err != nil {
			return err
		}
		s.FirstClickPending = false
		r.Changed = true
		cell = s.Board.At(a.Row, a.Col)
	}

	if cell.IsMine {
		r.emit(TriggerMine(s, a.Row, a.Col, a.Actor)...)
	} else {
		opened := Reveal(s.Board, a.Row, a.Col, a.Actor)
		if len(opened) > 0 {
			r.emit(domain.Event{
				Kind:  domain.EventCellsRevealed,
				Actor: a.Actor,
				Row:   a.Row,
				Col:   a.Col,
				Cells: len(opened),
			})
		}
		for _, c := range opened {
			if s.Board.At(c.Row, c.Col).IsShield() {
				r.emit(domain.Event{Kind: domain.EventShieldFound, Actor: a.Actor, Row: c.Row, Col: c.Col})
			}
		}
	}
	r.emit(Evaluate(s, a.At)...)
	return nil
}

// regenerateAround replaces the board with one that keeps the 3x3 block
// around the first click free of mines and shields. Flags placed before the
// first click survive.
func regenerateAround(s *domain.Session, row, col int, rng Rand) error {
	p, err := ParamsFor(s)
	if err != nil {
		return err
	}
	if p.Rows != s.Board.Rows || p.Cols != s.Board.Cols {
		return fmt.Errorf("%w: board %dx%d does not match size %q",
			domain.ErrConfiguration, s.Board.Rows, s.Board.Cols, s.BoardSize)
	}
	fresh, err := Generate(p.WithSafeZone(row, col), rng)
	if err != nil {
		return err
	}
	for r := range s.Board.Cells {
		for c, old := range s.Board.Cells[r] {
			if old.IsFlagged {
				fresh.Cells[r][c].IsFlagged = true
				fresh.Cells[r][c].FlaggedBy = old.FlaggedBy
			}
		}
	}
	s.Board = fresh
	return nil
}

// FlagCell toggles the flag on one cell. It is the whole effect of a flag
// action, so the store can commit it as a single-cell write.
func FlagCell(cell domain.Cell, actor string) (domain.Cell, domain.EventKind, bool) {
	if cell.IsRevealed {
		return cell, "", false
	}
	cell.IsFlagged = !cell.IsFlagged
	if cell.IsFlagged {
		cell.FlaggedBy = actor
		return cell, domain.EventFlagPlaced, true
	}
	cell.FlaggedBy = ""
	return cell, domain.EventFlagRemoved, true
}

func (r *Result) applyFlag(a domain.Action) error {
	s := r.Session
	if s.State != domain.StatePlaying || s.Board == nil {
		return nil
	}
	if _, ok := s.Players[a.Actor]; !ok {
		return nil
	}
	if !s.Board.InBounds(a.Row, a.Col) {
		return fmt.Errorf("%w: (%d,%d)", domain.ErrOutOfBounds, a.Row, a.Col)
	}
	cell := s.Board.At(a.Row, a.Col)
	next, kind, ok := FlagCell(*cell, a.Actor)
	if !ok {
		return nil
	}
	*cell = next
	r.emit(domain.Event{Kind: kind, Actor: a.Actor, Row: a.Row, Col: a.Col})
	return nil
}

func (r *Result) applyStart(a domain.Action, rng Rand) error {
	s := r.Session
	if s.State != domain.StateWaiting || a.Actor != s.Host || s.Host == "" {
		return nil
	}
	p, err := ParamsFor(s)
	if err != nil {
		return err
	}
	if err := p.ValidateForAnyFirstClick(); err != nil {
		return err
	}
	board, err := Generate(p, rng)
	if err != nil {
		return err
	}

	s.Board = board
	s.State = domain.StatePlaying
	s.FirstClickPending = true
	s.Lives = s.MaxLives
	s.LastTriggeredBy = ""
	GrantStartingShields(s)
	started := a.At
	s.StartedAt = &started
	s.EndedAt = nil
	r.emit(domain.Event{Kind: domain.EventGameStarted, Actor: a.Actor, Lives: s.Lives})
	return nil
}

func (r *Result) applyReset(a domain.Action) error {
	s := r.Session
	if s.State == domain.StateWaiting || a.Actor != s.Host {
		return nil
	}
	resetToWaiting(s)
	r.emit(domain.Event{Kind: domain.EventGameReset, Actor: a.Actor})
	return nil
}

func resetToWaiting(s *domain.Session) {
	s.Board = nil
	s.State = domain.StateWaiting
	s.FirstClickPending = false
	s.Lives = s.MaxLives
	s.PlayerShields = map[string]int{}
	s.LastTriggeredBy = ""
	s.StartedAt = nil
	s.EndedAt = nil
}

func (r *Result) applySetting(a domain.Action) error {
	s := r.Session
	if a.Actor != s.Host || s.State == domain.StatePlaying {
		return nil
	}

	switch a.Key {
	case domain.SettingDifficulty:
		d := domain.Difficulty(a.Value)
		if _, ok := d.Density(); !ok {
			return fmt.Errorf("%w: difficulty %q", domain.ErrInvalidSetting, a.Value)
		}
		if d == s.Difficulty {
			return nil
		}
		s.Difficulty = d
	case domain.SettingBoardSize:
		size := domain.BoardSize(a.Value)
		if _, ok := size.Dimensions(); !ok {
			return fmt.Errorf("%w: board size %q", domain.ErrInvalidSetting, a.Value)
		}
		if size == s.BoardSize {
			return nil
		}
		s.BoardSize = size
	case domain.SettingShieldsEnabled:
		on, err := strconv.ParseBool(a.Value)
		if err != nil {
			return fmt.Errorf("%w: shieldsEnabled %q", domain.ErrInvalidSetting, a.Value)
		}
		if on == s.ShieldsEnabled {
			return nil
		}
		s.ShieldsEnabled = on
	case domain.SettingMaxLives:
		n, err := strconv.Atoi(a.Value)
		if err != nil || n < 1 || n > domain.MaxLivesLimit {
			return fmt.Errorf("%w: maxLives %q", domain.ErrInvalidSetting, a.Value)
		}
		if n == s.MaxLives {
			return nil
		}
		s.MaxLives = n
		if s.State == domain.StateWaiting {
			s.Lives = n
		}
	default:
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidSetting, a.Key)
	}

	r.emit(domain.Event{Kind: domain.EventSettingChanged, Actor: a.Actor, Key: a.Key, Value: a.Value})
	return nil
}

func (r *Result) applyJoin(a domain.Action) error {
	s := r.Session
	name, err := NormalizeName(a.Actor)
	if err != nil {
		return err
	}
	if _, ok := s.Players[name]; ok {
		return nil
	}
	color, ok := nextColor(s)
	if !ok {
		return fmt.Errorf("%w: %d players", domain.ErrRoomFull, len(s.Players))
	}
	if s.Host == "" {
		s.Host = name
	}
	s.Players[name] = domain.Player{
		Name:     name,
		Color:    color,
		IsHost:   name == s.Host,
		JoinedAt: a.At,
	}
	r.emit(domain.Event{Kind: domain.EventPlayerJoined, Actor: name})
	return nil
}

func nextColor(s *domain.Session) (string, bool) {
	used := make(map[string]bool, len(s.Players))
	for _, p := range s.Players {
		used[p.Color] = true
	}
	for _, c := range Palette {
		if !used[c] {
			return c, true
		}
	}
	return "", false
}

func (r *Result) applyLeave(a domain.Action) error {
	s := r.Session
	if _, ok := s.Players[a.Actor]; !ok {
		return nil
	}
	delete(s.Players, a.Actor)
	delete(s.PlayerShields, a.Actor)
	r.emit(domain.Event{Kind: domain.EventPlayerLeft, Actor: a.Actor})
	return nil
}
