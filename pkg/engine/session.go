package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/pkg/corpus"
	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/loop"
	"github.com/jwebster45206/loop-engine/pkg/memory"
	"github.com/jwebster45206/loop-engine/pkg/state"
)

// Session is one player's game. All methods are safe for concurrent use:
// a single mutex guards memory, the loop counter and choice consumption
// together, so selecting a choice is atomic with the flags it grants.
type Session struct {
	mu sync.Mutex

	engine      *Engine
	id          uuid.UUID
	playerName  string
	corpus      *corpus.Corpus // private clone; consumption lives here
	memory      *memory.Store
	counter     *loop.Counter
	loopsFailed int
	createdAt   time.Time
	logger      *slog.Logger
}

// AdvanceResult reports the outcome of a loop boundary.
type AdvanceResult struct {
	Advanced bool     `json:"advanced"`
	From     int      `json:"from"`
	To       int      `json:"to"`
	Missing  []string `json:"missing,omitempty"` // loop-relevant flags not found, when not advanced
}

// ChoiceView is the presentable part of the choice queue.
type ChoiceView struct {
	Shown   []dialogue.ChoiceRef
	Waiting int
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Loop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.Current()
}

func (s *Session) PlayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerName
}

// SetPlayerName renames the player. An empty name restores the default.
func (s *Session) SetPlayerName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		name = s.engine.opts.PlayerName
	}
	s.playerName = name
}

// collection resolves a name against the session corpus. A missing
// collection is reported and yields an empty result for the caller.
func (s *Session) collection(name string) (*corpus.Collection, error) {
	col, err := s.corpus.Collection(name)
	if err != nil {
		s.logger.Warn("Query for unknown collection", "collection", name)
		return nil, err
	}
	return col, nil
}

// AvailableEntries returns the entries of a collection unlocked for the
// current loop and memory, in source order.
func (s *Session) AvailableEntries(collection string) ([]*dialogue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return []*dialogue.Entry{}, err
	}
	return dialogue.FilterAvailable(col.Entries, s.counter.Current(), s.memory), nil
}

// BestEntry returns the most advanced narration of a collection, or nil when
// there is none and the caller should go straight to choices.
func (s *Session) BestEntry(collection string) (*dialogue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return dialogue.SelectBestEntry(col.Entries, s.counter.Current(), s.memory), nil
}

// PresentEntry shows the best entry of a collection and grants its added flags.
// newFlags lists the flags that were not already set.
func (s *Session) PresentEntry(collection string) (entry *dialogue.Entry, newFlags []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return nil, nil, err
	}
	entry = dialogue.SelectBestEntry(col.Entries, s.counter.Current(), s.memory)
	if entry == nil {
		return nil, nil, nil
	}
	for _, f := range entry.AddedFlags {
		if s.memory.AddFlag(f) {
			newFlags = append(newFlags, f)
		}
	}
	s.logger.Debug("Entry presented", "collection", collection, "entry_id", entry.ID, "new_flags", newFlags)
	return entry, newFlags, nil
}

// AvailableChoices returns the whole waiting queue of a collection.
func (s *Session) AvailableChoices(collection string) ([]dialogue.ChoiceRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return dialogue.CollectAvailable(col.Entries, s.counter.Current(), s.memory), nil
}

// OfferedChoices returns the choices currently on screen and how many wait behind them.
func (s *Session) OfferedChoices(collection string) (ChoiceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return ChoiceView{}, err
	}
	return s.offered(col), nil
}

func (s *Session) offered(col *corpus.Collection) ChoiceView {
	refs := dialogue.CollectAvailable(col.Entries, s.counter.Current(), s.memory)
	shown, waiting := dialogue.Window(refs, s.engine.opts.PresentationCap)
	return ChoiceView{Shown: shown, Waiting: len(waiting)}
}

// SelectChoice picks the choice in the given on-screen slot (0-based).
// The queue is recomputed under the lock, so the slot always refers to what
// OfferedChoices would return right now.
func (s *Session) SelectChoice(collection string, slot int) (dialogue.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return dialogue.Outcome{}, err
	}
	view := s.offered(col)
	if slot < 0 || slot >= len(view.Shown) {
		s.logger.Warn("Choice slot out of range", "collection", collection, "slot", slot, "offered", len(view.Shown))
		return dialogue.Outcome{}, fmt.Errorf("%w: slot %d of %d", dialogue.ErrInvalidChoiceSelection, slot, len(view.Shown))
	}

	out, err := dialogue.SelectChoice(view.Shown[slot], s.memory)
	if err != nil {
		s.logger.Warn("Choice selection rejected", "collection", collection, "slot", slot, "error", err)
		return dialogue.Outcome{}, err
	}
	s.logger.Debug("Choice selected",
		"collection", collection,
		"entry_id", out.Ref.Entry.ID,
		"choice", out.Ref.ChoiceIndex,
		"new_flags", out.NewFlags)
	return out, nil
}

func (s *Session) HasFlag(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.HasFlag(id)
}

// AddFlag sets a flag and reports whether it was new.
func (s *Session) AddFlag(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.AddFlag(id)
}

// RemoveFlag is administrative; normal play never forgets a flag.
func (s *Session) RemoveFlag(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.RemoveFlag(id)
}

func (s *Session) Flags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Flags()
}

func (s *Session) FoundThisLoop() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.FoundThisLoop()
}

// RequestLoopAdvance handles a loop boundary. The loop advances only when
// every loop-relevant flag of the current loop was found during it; otherwise
// nothing changes and the player repeats the loop.
func (s *Session) RequestLoopAdvance() AdvanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.counter.Current()
	valid, missing := s.engine.validator.Validate(from, s.memory.HasFoundThisLoop)
	if !valid {
		s.loopsFailed++
		s.logger.Info("Loop not advanced", "loop", from, "missing", missing)
		return AdvanceResult{From: from, To: from, Missing: missing}
	}

	to := s.counter.Next()
	s.memory.ResetFoundThisLoop()
	s.logger.Info("Loop advanced", "from", from, "to", to)
	return AdvanceResult{Advanced: true, From: from, To: to}
}

// ResetLoop returns to loop 1 and forgets what was found this loop.
// Permanent flags are kept.
func (s *Session) ResetLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLoop()
}

func (s *Session) resetLoop() {
	s.counter.Reset()
	s.memory.ResetFoundThisLoop()
	s.logger.Info("Loop reset")
}

// NewGame resets the loop, clears memory and makes every choice available again.
func (s *Session) NewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLoop()
	s.memory.Clear()
	s.corpus = s.engine.corpus.Clone()
	s.loopsFailed = 0
	s.logger.Info("New game started")
}

// LoopRelevantFlagsFor returns the flags that gate advancing from loop n.
func (s *Session) LoopRelevantFlagsFor(n int) []string {
	return s.engine.LoopRelevantFlagsFor(n)
}

// State captures the session for storage.
func (s *Session) State() *state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := &state.GameState{
		ID:            s.id,
		PlayerName:    s.playerName,
		Loop:          s.counter.Current(),
		Flags:         s.memory.Flags(),
		FoundThisLoop: s.memory.FoundThisLoop(),
		Consumed:      make(map[string][]string),
		LoopsFailed:   s.loopsFailed,
		CreatedAt:     s.createdAt,
		UpdatedAt:     time.Now(),
	}
	for _, col := range s.corpus.Collections() {
		for ei, e := range col.Entries {
			for ci, c := range e.Choices {
				if c != nil && c.Consumed {
					gs.MarkConsumed(col.Name, dialogue.ChoiceKey(ei, ci))
				}
			}
		}
	}
	return gs
}

// applyConsumed marks saved choices as chosen. Keys that no longer match the
// corpus are logged and skipped.
func (s *Session) applyConsumed(consumed map[string][]string) {
	for name, keys := range consumed {
		col, err := s.corpus.Collection(name)
		if err != nil {
			s.logger.Warn("Saved choices refer to unknown collection", "collection", name)
			continue
		}
		for _, key := range keys {
			ei, ci, err := parseChoiceKey(key)
			if err != nil || ei < 0 || ei >= len(col.Entries) || ci < 0 || ci >= len(col.Entries[ei].Choices) {
				s.logger.Warn("Saved choice no longer exists", "collection", name, "key", key)
				continue
			}
			if c := col.Entries[ei].Choices[ci]; c != nil {
				c.Consumed = true
			}
		}
	}
}
