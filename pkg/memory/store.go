// Package memory holds the player's acquired memory flags.
//
// Flags are permanent facts: they only disappear through the administrative
// RemoveFlag and Clear calls used by reset flows. Alongside the permanent set
// the store tracks which flags were newly found during the current loop, which
// loop validation consults at the loop boundary.
package memory

import (
	"log/slog"
	"slices"
)

// Store is not safe for concurrent use; the engine session guards it.
type Store struct {
	flags     map[string]struct{}
	order     []string
	found     map[string]struct{}
	foundList []string
	logger    *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		flags:  make(map[string]struct{}),
		found:  make(map[string]struct{}),
		logger: logger,
	}
}

// AddFlag sets a flag and reports whether it was newly added.
// A newly added flag is also recorded as found this loop; re-adding an
// existing flag changes nothing.
func (s *Store) AddFlag(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.flags[id]; ok {
		s.logger.Debug("Memory flag already set", "flag", id)
		return false
	}
	s.flags[id] = struct{}{}
	s.order = append(s.order, id)
	if _, ok := s.found[id]; !ok {
		s.found[id] = struct{}{}
		s.foundList = append(s.foundList, id)
	}
	s.logger.Debug("Memory flag set", "flag", id)
	return true
}

// HasFlag reports whether the flag is set.
func (s *Store) HasFlag(id string) bool {
	_, ok := s.flags[id]
	return ok
}

// RemoveFlag unsets a flag. Per-loop tracking is left alone.
func (s *Store) RemoveFlag(id string) bool {
	if _, ok := s.flags[id]; !ok {
		return false
	}
	delete(s.flags, id)
	s.order = slices.DeleteFunc(s.order, func(f string) bool { return f == id })
	s.logger.Debug("Memory flag removed", "flag", id)
	return true
}

// Clear unsets every flag. Per-loop tracking is left alone; see ResetFoundThisLoop.
func (s *Store) Clear() {
	clear(s.flags)
	s.order = nil
	s.logger.Debug("All memory flags cleared")
}

// Flags returns the set flags in the order they were first added.
func (s *Store) Flags() []string {
	return slices.Clone(s.order)
}

// Len returns the number of set flags.
func (s *Store) Len() int {
	return len(s.flags)
}

// HasFoundThisLoop reports whether the flag was newly added during the current loop.
func (s *Store) HasFoundThisLoop(id string) bool {
	_, ok := s.found[id]
	return ok
}

// FoundThisLoop returns the flags newly added during the current loop, in order.
func (s *Store) FoundThisLoop() []string {
	return slices.Clone(s.foundList)
}

// ResetFoundThisLoop empties the per-loop tracking. Called when a loop advances or resets.
func (s *Store) ResetFoundThisLoop() {
	clear(s.found)
	s.foundList = nil
}

// Restore replaces the store contents with a saved snapshot.
func (s *Store) Restore(flags, foundThisLoop []string) {
	s.Clear()
	s.ResetFoundThisLoop()
	for _, f := range flags {
		if f == "" {
			continue
		}
		if _, ok := s.flags[f]; ok {
			continue
		}
		s.flags[f] = struct{}{}
		s.order = append(s.order, f)
	}
	for _, f := range foundThisLoop {
		if _, ok := s.found[f]; ok || f == "" {
			continue
		}
		s.found[f] = struct{}{}
		s.foundList = append(s.foundList, f)
	}
}
