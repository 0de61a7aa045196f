package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
)

// DisplayName turns an id like "old_conductor" into "Old Conductor".
func DisplayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// NPCName returns the registered name of an NPC, or a name derived from its id.
func (s *Session) NPCName(id string) string {
	if npc, ok := s.engine.corpus.NPC(id); ok && npc.Name != "" {
		return npc.Name
	}
	return DisplayName(id)
}

// DialoguesForNPC returns the available entries of the NPC's collection.
func (s *Session) DialoguesForNPC(id string) ([]*dialogue.Entry, error) {
	npc, ok := s.engine.corpus.NPC(id)
	if !ok {
		s.logger.Warn("Dialogue requested for unknown NPC", "npc", id)
		return []*dialogue.Entry{}, fmt.Errorf("%w: no collection for npc %s", dialogue.ErrMissingCollection, id)
	}
	return s.AvailableEntries(npc.Collection)
}

// DialoguesForItem returns the available entries for an item. An item's
// entries share its id inside the item's collection.
func (s *Session) DialoguesForItem(id string) ([]*dialogue.Entry, error) {
	item, ok := s.engine.corpus.Item(id)
	if !ok {
		s.logger.Warn("Dialogue requested for unknown item", "item", id)
		return []*dialogue.Entry{}, fmt.Errorf("%w: no collection for item %s", dialogue.ErrMissingCollection, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(item.Collection)
	if err != nil {
		return []*dialogue.Entry{}, err
	}
	out := []*dialogue.Entry{}
	for _, e := range dialogue.FilterAvailable(col.Entries, s.counter.Current(), s.memory) {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// ItemVariant returns the most evolved state of an item group within a
// collection, e.g. "mirror_fixed" over "mirror_broken" once it unlocks.
func (s *Session) ItemVariant(collection, base string) (*dialogue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return dialogue.SelectBestVariant(col.Entries, base, s.counter.Current(), s.memory), nil
}

// ExamineItem shows the most evolved state of an item group and grants its
// added flags, the way PresentEntry does for a collection.
func (s *Session) ExamineItem(collection, base string) (*dialogue.Entry, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(collection)
	if err != nil {
		return nil, nil, err
	}
	e := dialogue.SelectBestVariant(col.Entries, base, s.counter.Current(), s.memory)
	if e == nil {
		return nil, nil, nil
	}
	var newFlags []string
	for _, f := range e.AddedFlags {
		if s.memory.AddFlag(f) {
			newFlags = append(newFlags, f)
		}
	}
	s.logger.Debug("Item examined", "collection", collection, "entry_id", e.ID, "new_flags", newFlags)
	return e, newFlags, nil
}

// LoopDialogue returns the entry to show at the start of the current loop,
// or nil when the loop has none configured or it is not available.
func (s *Session) LoopDialogue() (*dialogue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counter.Current()
	itemID, ok := s.engine.opts.LoopDialogues.For(current)
	if !ok {
		return nil, nil
	}

	names := s.corpus.Names()
	if item, registered := s.engine.corpus.Item(itemID); registered {
		names = []string{item.Collection}
	}
	for _, name := range names {
		col, err := s.collection(name)
		if err != nil {
			return nil, err
		}
		for _, e := range col.Entries {
			if e.ID == itemID && dialogue.IsEntryAvailable(e, current, s.memory) {
				return e, nil
			}
		}
	}
	s.logger.Debug("Loop dialogue not available", "loop", current, "item", itemID)
	return nil, nil
}
