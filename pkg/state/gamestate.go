package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// GameState is the saved progress of one player.
type GameState struct {
	ID            uuid.UUID           `json:"id"` // Unique ID per session
	PlayerName    string              `json:"player_name,omitempty"`
	Loop          int                 `json:"loop"`
	Flags         []string            `json:"flags,omitempty"`           // in the order they were learned
	FoundThisLoop []string            `json:"found_this_loop,omitempty"` // newly learned during the current loop
	Consumed      map[string][]string `json:"consumed,omitempty"`        // collection -> chosen choice keys ("entry:choice")
	LoopsFailed   int                 `json:"loops_failed,omitempty"`    // boundary events that did not advance
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewGameState starts a fresh game in loop 1.
func NewGameState(playerName string) *GameState {
	now := time.Now()
	return &GameState{
		ID:         uuid.New(),
		PlayerName: playerName,
		Loop:       1,
		Consumed:   make(map[string][]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsConsumed reports whether a choice has been chosen.
func (gs *GameState) IsConsumed(collection, key string) bool {
	return slices.Contains(gs.Consumed[collection], key)
}

// MarkConsumed records a chosen choice. Recording it twice is a no-op.
func (gs *GameState) MarkConsumed(collection, key string) {
	if gs.IsConsumed(collection, key) {
		return
	}
	if gs.Consumed == nil {
		gs.Consumed = make(map[string][]string)
	}
	gs.Consumed[collection] = append(gs.Consumed[collection], key)
}

// Validate checks the fields a restored session depends on.
func (gs *GameState) Validate() error {
	if gs == nil {
		return fmt.Errorf("gamestate is nil")
	}
	if gs.ID == uuid.Nil {
		return fmt.Errorf("gamestate has no id")
	}
	if gs.Loop < 1 {
		return fmt.Errorf("gamestate %s: loop %d is below 1", gs.ID, gs.Loop)
	}
	return nil
}
