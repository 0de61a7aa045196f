// Package analysis classifies the memory flags of a loaded corpus.
//
// It runs once after loading and answers one question for loop validation:
// which flags must the player find in a given loop before the loop counts as
// complete. Flags that only feed the notebook collection, flags with the
// ephemeral prefix, and flags whose every onward chain ends in such content
// are left out.
package analysis

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jwebster45206/loop-engine/pkg/corpus"
	"github.com/jwebster45206/loop-engine/pkg/dialogue"
)

// DefaultEphemeralPrefix marks flags that never gate progression.
const DefaultEphemeralPrefix = corpus.DefaultEphemeralPrefix

// Options tune the classification.
type Options struct {
	// Notebook overrides the corpus notebook collection.
	Notebook string
	// EphemeralPrefix is matched case-insensitively. Empty means DefaultEphemeralPrefix.
	EphemeralPrefix string
}

// Occurrence is one place a flag is granted or required.
type Occurrence struct {
	Collection string `json:"collection"`
	EntryID    string `json:"entry_id"`
	MinLoop    int    `json:"min_loop"`
	Choice     int    `json:"choice"` // -1 when the entry itself carries the flag
}

// Classification is the read-only result of Analyze. Every slice is sorted.
type Classification struct {
	Notebook      string
	AllAdded      []string
	AllRequired   []string
	Fulfillers    map[string][]string
	NotebookOnly  []string
	Direct        []string
	LoopRelevant  []string
	PerLoop       map[int][]string
	Unsatisfiable []string
	DeadEnds      []string
	Ephemeral     []string
	Grants        map[string][]Occurrence
	Uses          map[string][]Occurrence

	relevant map[string]struct{}
}

type analyzer struct {
	opts   Options
	fold   cases.Caser
	prefix string
	logger *slog.Logger

	grants map[string][]Occurrence
	uses   map[string][]Occurrence
	// next[t] are the flags that become reachable once t is set: the added
	// flags of every choice requiring t, plus those of the choice's entry.
	next map[string]map[string]struct{}

	direct map[string]struct{}
	memo   map[string]bool
}

// Analyze classifies every flag in the corpus.
func Analyze(c *corpus.Corpus, opts Options, logger *slog.Logger) *Classification {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Notebook == "" {
		opts.Notebook = c.Notebook()
	}
	if opts.EphemeralPrefix == "" {
		opts.EphemeralPrefix = DefaultEphemeralPrefix
	}

	a := &analyzer{
		opts:   opts,
		fold:   cases.Fold(),
		logger: logger,
		grants: make(map[string][]Occurrence),
		uses:   make(map[string][]Occurrence),
		next:   make(map[string]map[string]struct{}),
		direct: make(map[string]struct{}),
		memo:   make(map[string]bool),
	}
	a.prefix = a.fold.String(opts.EphemeralPrefix)

	for _, col := range c.Collections() {
		a.scan(col)
	}
	return a.classify()
}

func (a *analyzer) scan(col *corpus.Collection) {
	for _, e := range col.Entries {
		if e == nil {
			continue
		}
		occ := Occurrence{Collection: col.Name, EntryID: e.ID, MinLoop: e.MinLoop, Choice: -1}
		for _, f := range e.AddedFlags {
			a.grants[f] = append(a.grants[f], occ)
		}
		for _, f := range e.RequiredFlags {
			a.uses[f] = append(a.uses[f], occ)
		}

		for ci, ch := range e.Choices {
			if ch == nil {
				continue
			}
			chOcc := occ
			chOcc.Choice = ci
			for _, f := range ch.AddedFlags {
				a.grants[f] = append(a.grants[f], chOcc)
			}
			for _, t := range ch.RequiredFlags {
				a.uses[t] = append(a.uses[t], chOcc)
				a.link(t, ch.AddedFlags)
				a.link(t, e.AddedFlags)
			}
		}
	}
}

func (a *analyzer) link(from string, to []string) {
	for _, f := range to {
		if f == from {
			continue
		}
		if a.next[from] == nil {
			a.next[from] = make(map[string]struct{})
		}
		a.next[from][f] = struct{}{}
	}
}

func (a *analyzer) isEphemeral(flag string) bool {
	return strings.HasPrefix(a.fold.String(flag), a.prefix)
}

// notebookOnly reports whether every use of a required flag sits in the notebook.
func (a *analyzer) notebookOnly(flag string) bool {
	uses := a.uses[flag]
	if len(uses) == 0 {
		return false
	}
	for _, u := range uses {
		if u.Collection != a.opts.Notebook {
			return false
		}
	}
	return true
}

func (a *analyzer) classify() *Classification {
	out := &Classification{
		Notebook:    a.opts.Notebook,
		AllAdded:    slices.Sorted(maps.Keys(a.grants)),
		AllRequired: slices.Sorted(maps.Keys(a.uses)),
		Fulfillers:  make(map[string][]string),
		PerLoop:     make(map[int][]string),
		Grants:      a.grants,
		Uses:        a.uses,
		relevant:    make(map[string]struct{}),
	}

	for _, req := range out.AllRequired {
		if _, ok := a.grants[req]; ok {
			out.Fulfillers[req] = []string{req}
		} else {
			out.Unsatisfiable = append(out.Unsatisfiable, req)
			a.logger.Warn("Required flag is never granted",
				"flag", req,
				"uses", len(a.uses[req]),
				"error", dialogue.ErrUnsatisfiableRequirement)
		}
		if a.notebookOnly(req) {
			out.NotebookOnly = append(out.NotebookOnly, req)
		}
	}

	for _, f := range out.AllAdded {
		if a.isEphemeral(f) {
			out.Ephemeral = append(out.Ephemeral, f)
			continue
		}
		if _, required := a.uses[f]; required && !a.notebookOnly(f) {
			a.direct[f] = struct{}{}
			out.Direct = append(out.Direct, f)
		}
	}

	for _, f := range out.AllAdded {
		if a.isEphemeral(f) {
			continue
		}
		if !a.alive(f, make(map[string]bool)) {
			out.DeadEnds = append(out.DeadEnds, f)
			continue
		}
		out.LoopRelevant = append(out.LoopRelevant, f)
		out.relevant[f] = struct{}{}

		loop := lowestMinLoop(a.grants[f])
		out.PerLoop[loop] = append(out.PerLoop[loop], f)
	}

	a.logger.Debug("Flag analysis complete",
		"notebook", out.Notebook,
		"added", len(out.AllAdded),
		"required", len(out.AllRequired),
		"loop_relevant", len(out.LoopRelevant),
		"dead_ends", len(out.DeadEnds),
		"ephemeral", len(out.Ephemeral),
		"unsatisfiable", len(out.Unsatisfiable))

	return out
}

// alive reports whether a flag leads to progression: it is directly relevant,
// or some non-ephemeral flag it unlocks is alive. Reaching a flag already on
// the current path is a cycle and counts as alive. Results are memoized, so
// a dead end found from one origin stays dead for every other origin.
func (a *analyzer) alive(flag string, path map[string]bool) bool {
	if _, ok := a.direct[flag]; ok {
		return true
	}
	if v, ok := a.memo[flag]; ok {
		return v
	}
	if path[flag] {
		return true
	}

	path[flag] = true
	defer delete(path, flag)

	result := false
	for _, n := range slices.Sorted(maps.Keys(a.next[flag])) {
		if a.isEphemeral(n) {
			continue
		}
		if a.alive(n, path) {
			result = true
			break
		}
	}
	a.memo[flag] = result
	return result
}

func lowestMinLoop(occs []Occurrence) int {
	low := 0
	for i, o := range occs {
		if i == 0 || o.MinLoop < low {
			low = o.MinLoop
		}
	}
	if low < 1 {
		low = 1
	}
	return low
}

// IsLoopRelevant reports whether finding flag counts towards loop completion.
func (c *Classification) IsLoopRelevant(flag string) bool {
	_, ok := c.relevant[flag]
	return ok
}

// RequiredFor returns the loop-relevant flags granted at the given loop.
func (c *Classification) RequiredFor(loop int) []string {
	return slices.Clone(c.PerLoop[loop])
}

// Loops returns every loop with at least one required flag, ascending.
func (c *Classification) Loops() []int {
	return slices.Sorted(maps.Keys(c.PerLoop))
}

// Diagnostics returns one error per unsatisfiable requirement.
func (c *Classification) Diagnostics() []error {
	errs := make([]error, 0, len(c.Unsatisfiable))
	for _, f := range c.Unsatisfiable {
		errs = append(errs, fmt.Errorf("%w: %s is required by %d rows but never granted",
			dialogue.ErrUnsatisfiableRequirement, f, len(c.Uses[f])))
	}
	return errs
}
