// Package engine is the entry point for presentation layers.
//
// An Engine holds the loaded corpus and its flag classification, both
// read-only once built. Each player gets a Session carrying their memory,
// loop counter and chosen choices; a session can be saved to and restored
// from a state.GameState.
package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/loop-engine/pkg/analysis"
	"github.com/jwebster45206/loop-engine/pkg/corpus"
	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/loop"
	"github.com/jwebster45206/loop-engine/pkg/memory"
	"github.com/jwebster45206/loop-engine/pkg/state"
)

// Options carry the game rules that are not part of the corpus itself.
type Options struct {
	PlayerName       string
	Notebook         string
	EphemeralPrefix  string
	AlwaysValidLoops []int // nil means corpus.DefaultAlwaysValidLoops
	PresentationCap  int
	LoopDialogues    corpus.LoopDialogues
}

// OptionsFromManifest copies the rules out of a loaded manifest.
func OptionsFromManifest(m *corpus.Manifest) Options {
	return Options{
		PlayerName:       m.PlayerName,
		Notebook:         m.Notebook,
		EphemeralPrefix:  m.EphemeralPrefix,
		AlwaysValidLoops: m.AlwaysValidLoops,
		PresentationCap:  m.PresentationCap,
		LoopDialogues:    m.LoopDialogues,
	}
}

// Engine is safe for concurrent use; it never mutates the corpus it was built from.
type Engine struct {
	corpus         *corpus.Corpus
	classification *analysis.Classification
	validator      *loop.Validator
	opts           Options
	logger         *slog.Logger
}

// New analyzes the corpus and builds an engine around it.
func New(c *corpus.Corpus, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PlayerName == "" {
		opts.PlayerName = corpus.DefaultPlayerName
	}
	if opts.PresentationCap <= 0 {
		opts.PresentationCap = dialogue.DefaultPresentationCap
	}
	if opts.AlwaysValidLoops == nil {
		opts.AlwaysValidLoops = slices.Clone(corpus.DefaultAlwaysValidLoops)
	}
	if opts.Notebook != "" {
		c.SetNotebook(opts.Notebook)
	}

	cls := analysis.Analyze(c, analysis.Options{
		Notebook:        opts.Notebook,
		EphemeralPrefix: opts.EphemeralPrefix,
	}, logger)

	return &Engine{
		corpus:         c,
		classification: cls,
		validator:      loop.NewValidator(cls, opts.AlwaysValidLoops, logger),
		opts:           opts,
		logger:         logger,
	}
}

// Load reads a manifest and its collections from disk and builds an engine.
// The load report lists rows that were skipped or repaired.
func Load(manifestPath string, logger *slog.Logger) (*Engine, *corpus.LoadReport, error) {
	m, err := corpus.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	c, report, err := corpus.Load(m, logger)
	if err != nil {
		return nil, report, err
	}
	return New(c, OptionsFromManifest(m), logger), report, nil
}

// Corpus returns the shared corpus. Callers must not consume its choices.
func (e *Engine) Corpus() *corpus.Corpus {
	return e.corpus
}

func (e *Engine) Classification() *analysis.Classification {
	return e.classification
}

func (e *Engine) Options() Options {
	return e.opts
}

// LoopRelevantFlagsFor returns the flags a player must find in loop for it to count.
func (e *Engine) LoopRelevantFlagsFor(n int) []string {
	return e.classification.RequiredFor(n)
}

// IsAlwaysValid reports whether loop n advances regardless of what was found.
func (e *Engine) IsAlwaysValid(n int) bool {
	return e.validator.AlwaysValid(n)
}

// NewSession starts a fresh game. An empty name uses the configured default.
func (e *Engine) NewSession(playerName string) *Session {
	if playerName == "" {
		playerName = e.opts.PlayerName
	}
	return e.newSession(state.NewGameState(playerName))
}

// Restore rebuilds a session from a saved game state.
func (e *Engine) Restore(gs *state.GameState) (*Session, error) {
	if err := gs.Validate(); err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return e.newSession(gs), nil
}

func (e *Engine) newSession(gs *state.GameState) *Session {
	logger := e.logger.With("game_state_id", gs.ID.String())

	s := &Session{
		engine:      e,
		id:          gs.ID,
		playerName:  gs.PlayerName,
		corpus:      e.corpus.Clone(),
		memory:      memory.NewStore(logger),
		counter:     loop.NewCounter(),
		loopsFailed: gs.LoopsFailed,
		createdAt:   gs.CreatedAt,
		logger:      logger,
	}
	if s.playerName == "" {
		s.playerName = e.opts.PlayerName
	}
	s.counter.Set(gs.Loop)
	s.memory.Restore(gs.Flags, gs.FoundThisLoop)
	s.applyConsumed(gs.Consumed)
	return s
}

// parseChoiceKey reverses dialogue.ChoiceKey.
func parseChoiceKey(key string) (entry, choice int, err error) {
	a, b, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("choice key %q has no separator", key)
	}
	if entry, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("choice key %q: %w", key, err)
	}
	if choice, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("choice key %q: %w", key, err)
	}
	return entry, choice, nil
}
