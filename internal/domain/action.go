package domain

import "time"

// ActionKind - what a player asked for
type ActionKind string

const (
	ActionReveal  ActionKind = "reveal"
	ActionFlag    ActionKind = "flag"
	ActionStart   ActionKind = "start"
	ActionReset   ActionKind = "reset"
	ActionSetting ActionKind = "setting"
	ActionJoin    ActionKind = "join"
	ActionLeave   ActionKind = "leave"
)

// Setting keys accepted by ActionSetting.
const (
	SettingDifficulty     = "difficulty"
	SettingBoardSize      = "boardSize"
	SettingShieldsEnabled = "shieldsEnabled"
	SettingMaxLives       = "maxLives"
)

// Action is one logical player request. At is fixed by the caller before
// the first attempt so that re-evaluation yields identical results.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Actor string     `json:"actor"`
	Row   int        `json:"row,omitempty"`
	Col   int        `json:"col,omitempty"`
	Key   string     `json:"key,omitempty"`
	Value string     `json:"value,omitempty"`
	At    time.Time  `json:"at"`
}

// EventKind - observable consequence of a committed action
type EventKind string

const (
	EventCellsRevealed   EventKind = "cells_revealed"
	EventMineHit         EventKind = "mine_hit"
	EventShieldUsed      EventKind = "shield_used"
	EventShieldFound     EventKind = "shield_found"
	EventShieldCollected EventKind = "shield_collected"
	EventFlagPlaced      EventKind = "flag_placed"
	EventFlagRemoved     EventKind = "flag_removed"
	EventGameStarted     EventKind = "game_started"
	EventGameWon         EventKind = "game_won"
	EventGameLost        EventKind = "game_lost"
	EventGameReset       EventKind = "game_reset"
	EventSettingChanged  EventKind = "setting_changed"
	EventPlayerJoined    EventKind = "player_joined"
	EventPlayerLeft      EventKind = "player_left"
)

// Event is emitted by a transition. Clients derive sound and visuals from
// the events of the committed attempt only.
type Event struct {
	Kind    EventKind `json:"kind"`
	Actor   string    `json:"actor,omitempty"`
	Row     int       `json:"row"`
	Col     int       `json:"col"`
	Cells   int       `json:"cells,omitempty"`
	Lives   int       `json:"lives,omitempty"`
	Shields int       `json:"shields,omitempty"`
	Key     string    `json:"key,omitempty"`
	Value   string    `json:"value,omitempty"`
}
