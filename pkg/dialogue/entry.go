package dialogue

// Entry is one narrative beat loaded from a dialogue collection.
// An entry with empty Text carries no standalone narration, only choices.
type Entry struct {
	ID            string    `json:"id"`                       // memory id, unique within its collection
	MinLoop       int       `json:"min_loop"`                 // unlocked once the loop counter reaches this value
	RequiredFlags []string  `json:"required_flags,omitempty"` // all must be set for the entry to be available
	Text          string    `json:"text,omitempty"`
	AddedFlags    []string  `json:"added_flags,omitempty"` // granted when the entry is shown
	Choices       []*Choice `json:"choices,omitempty"`     // at most MaxChoices
}

// Choice is one branch option owned by exactly one Entry.
// Consumed is the only field that changes after parsing, and it only ever goes from false to true.
type Choice struct {
	RequiredFlags []string `json:"required_flags,omitempty"`
	PromptText    string   `json:"prompt_text"`
	ResponseText  string   `json:"response_text,omitempty"`
	AddedFlags    []string `json:"added_flags,omitempty"`
	Consumed      bool     `json:"consumed"`
}

// HasText reports whether the entry has narration of its own.
func (e *Entry) HasText() bool {
	return e.Text != ""
}

// Clone returns a deep copy of the entry, including its choices.
// Sessions clone the corpus so that consuming a choice never leaks between players.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{
		ID:            e.ID,
		MinLoop:       e.MinLoop,
		RequiredFlags: cloneStrings(e.RequiredFlags),
		Text:          e.Text,
		AddedFlags:    cloneStrings(e.AddedFlags),
	}
	if len(e.Choices) > 0 {
		out.Choices = make([]*Choice, len(e.Choices))
		for i, c := range e.Choices {
			out.Choices[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the choice.
func (c *Choice) Clone() *Choice {
	if c == nil {
		return nil
	}
	return &Choice{
		RequiredFlags: cloneStrings(c.RequiredFlags),
		PromptText:    c.PromptText,
		ResponseText:  c.ResponseText,
		AddedFlags:    cloneStrings(c.AddedFlags),
		Consumed:      c.Consumed,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
