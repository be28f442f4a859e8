package game

import (
	"fmt"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

// Result of one transition. Changed is false for actions that had no
// effect; Session is then the untouched input.
type Result struct {
	Session *domain.Session
	Events  []domain.Event
	Changed bool
}

func (r *Result) emit(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	r.Events = append(r.Events, events...)
	r.Changed = true
}

// Apply computes the session that follows s after action a. It never
// mutates s, so it can be re-run against a fresher snapshot after a write
// conflict. Given the same inputs and an rng in the same state it returns
// the same result.
func Apply(s *domain.Session, a domain.Action, rng Rand) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("%w: nil session", domain.ErrRoomNotFound)
	}
	if rng == nil {
		rng = globalRand{}
	}

	r := Result{Session: s.Clone()}
	var err error
	switch a.Kind {
	case domain.ActionReveal:
		err = r.applyReveal(a, rng)
	case domain.ActionFlag:
		err = r.applyFlag(a)
	case domain.ActionStart:
		err = r.applyStart(a, rng)
	case domain.ActionReset:
		err = r.applyReset(a)
	case domain.ActionSetting:
		err = r.applySetting(a)
	case domain.ActionJoin:
		err = r.applyJoin(a)
	case domain.ActionLeave:
		err = r.applyLeave(a)
	default:
		err = fmt.Errorf("unknown action: %s", a.Kind)
	}
	if err != nil {
		return Result{Session: s}, err
	}
	if !r.Changed {
		return Result{Session: s}, nil
	}
	if err := checkTransition(s, r.Session); err != nil {
		return Result{Session: s}, err
	}
	return r, nil
}
