package dialogue

import "strings"

// FlagSet is the minimal view of memory needed to evaluate gates.
type FlagSet interface {
	HasFlag(id string) bool
}

// IsEntryAvailable reports whether loop has reached the entry's threshold and
// every required flag is set.
func IsEntryAvailable(e *Entry, loop int, flags FlagSet) bool {
	if e == nil || loop < e.MinLoop {
		return false
	}
	return hasAll(e.RequiredFlags, flags)
}

// IsChoiceAvailable reports whether every flag the choice requires is set.
// Choices have no loop gate of their own; they inherit their entry's.
func IsChoiceAvailable(c *Choice, flags FlagSet) bool {
	if c == nil {
		return false
	}
	return hasAll(c.RequiredFlags, flags)
}

// FilterAvailable returns the available entries in source order.
func FilterAvailable(entries []*Entry, loop int, flags FlagSet) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if IsEntryAvailable(e, loop, flags) {
			out = append(out, e)
		}
	}
	return out
}

// SelectBestEntry picks the most advanced narration the player qualifies for.
// Only available entries with text are considered. The winner has the highest
// MinLoop; ties go to the entry with more required flags, then to the earliest
// in source order. Returns nil when nothing qualifies, meaning the caller
// should move straight on to choices.
func SelectBestEntry(candidates []*Entry, loop int, flags FlagSet) *Entry {
	var best *Entry
	for _, e := range candidates {
		if e == nil || !e.HasText() || !IsEntryAvailable(e, loop, flags) {
			continue
		}
		if best == nil || outranks(e, best) {
			best = e
		}
	}
	return best
}

// BaseID returns the item group an entry id belongs to: the text before the
// first underscore, or the whole id when it has none.
func BaseID(id string) string {
	if i := strings.Index(id, "_"); i > 0 {
		return id[:i]
	}
	return id
}

// SelectBestVariant picks the evolved state of an item. Among available
// entries whose BaseID equals base it returns the one with the highest
// MinLoop, ties to the earliest in source order. Text is not required.
func SelectBestVariant(entries []*Entry, base string, loop int, flags FlagSet) *Entry {
	var best *Entry
	for _, e := range entries {
		if e == nil || BaseID(e.ID) != base || !IsEntryAvailable(e, loop, flags) {
			continue
		}
		if best == nil || e.MinLoop > best.MinLoop {
			best = e
		}
	}
	return best
}

// outranks reports whether a strictly beats b. Equal entries never outrank,
// which keeps the earliest candidate on a full tie.
func outranks(a, b *Entry) bool {
	if a.MinLoop != b.MinLoop {
		return a.MinLoop > b.MinLoop
	}
	return len(a.RequiredFlags) > len(b.RequiredFlags)
}

func hasAll(required []string, flags FlagSet) bool {
	if len(required) == 0 {
		return true
	}
	if flags == nil {
		return false
	}
	for _, f := range required {
		if !flags.HasFlag(f) {
			return false
		}
	}
	return true
}
