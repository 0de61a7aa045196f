package dialogue

import "fmt"

// DefaultPresentationCap is how many choices the UI offers at once.
const DefaultPresentationCap = 3

// ChoiceRef points at one offered choice. Refs are only valid for the
// entries slice they were collected from.
type ChoiceRef struct {
	Entry       *Entry
	EntryIndex  int // position of Entry in its collection
	ChoiceIndex int // position of Choice within Entry.Choices
	Choice      *Choice
}

// Key identifies the choice within its collection by position.
func (r ChoiceRef) Key() string {
	return ChoiceKey(r.EntryIndex, r.ChoiceIndex)
}

// ChoiceKey formats the positional key of a choice.
func ChoiceKey(entryIndex, choiceIndex int) string {
	return fmt.Sprintf("%d:%d", entryIndex, choiceIndex)
}

// FlagStore is memory that choices can both read and write.
type FlagStore interface {
	FlagSet
	AddFlag(id string) bool
}

// Outcome describes what selecting a choice did.
type Outcome struct {
	Ref       ChoiceRef
	NewFlags  []string // flags that were not set before the selection
	Response  string   // the answer text, shown before the queue is re-offered
	HasAnswer bool
}

// CollectAvailable builds the waiting queue: every unconsumed, available
// choice of every available entry, ordered by entry position then choice
// position. The queue is a view and is recomputed on every call.
func CollectAvailable(entries []*Entry, loop int, flags FlagSet) []ChoiceRef {
	var refs []ChoiceRef
	for ei, e := range entries {
		if !IsEntryAvailable(e, loop, flags) {
			continue
		}
		for ci, c := range e.Choices {
			if c == nil || c.Consumed || !IsChoiceAvailable(c, flags) {
				continue
			}
			refs = append(refs, ChoiceRef{Entry: e, EntryIndex: ei, ChoiceIndex: ci, Choice: c})
		}
	}
	return refs
}

// Window splits the queue into the choices shown now and those waiting for a
// free slot. A cap of zero or less means DefaultPresentationCap.
func Window(refs []ChoiceRef, limit int) (shown, waiting []ChoiceRef) {
	if limit <= 0 {
		limit = DefaultPresentationCap
	}
	if len(refs) <= limit {
		return refs, nil
	}
	return refs[:limit], refs[limit:]
}

// SelectChoice consumes the referenced choice and grants its flags.
// Selecting a consumed or empty reference, or selecting without a flag
// store, is a no-op that returns ErrInvalidChoiceSelection, so effects are
// never applied twice.
func SelectChoice(ref ChoiceRef, flags FlagStore) (Outcome, error) {
	if ref.Choice == nil {
		return Outcome{}, fmt.Errorf("%w: unknown choice %s", ErrInvalidChoiceSelection, ref.Key())
	}
	if ref.Choice.Consumed {
		return Outcome{}, fmt.Errorf("%w: choice %s already chosen", ErrInvalidChoiceSelection, ref.Key())
	}
	if flags == nil {
		return Outcome{}, fmt.Errorf("%w: no memory to grant flags of choice %s", ErrInvalidChoiceSelection, ref.Key())
	}

	ref.Choice.Consumed = true
	out := Outcome{Ref: ref, Response: ref.Choice.ResponseText, HasAnswer: ref.Choice.ResponseText != ""}
	for _, f := range ref.Choice.AddedFlags {
		if flags.AddFlag(f) {
			out.NewFlags = append(out.NewFlags, f)
		}
	}
	return out, nil
}
