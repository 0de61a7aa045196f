package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the manifest leaves a value unset.
const (
	DefaultEphemeralPrefix = "newdraw"
	DefaultPresentationCap = 3
	DefaultPlayerName      = "Traveler"
)

// DefaultAlwaysValidLoops are the opening loops that advance without any flag check.
var DefaultAlwaysValidLoops = []int{1, 2}

// Source names one collection file, relative to the manifest.
type Source struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// LoopDialogue names the item dialogue to trigger once a loop begins.
// With AndAfter set it also covers every later loop without its own entry.
type LoopDialogue struct {
	Loop     int    `yaml:"loop"`
	Item     string `yaml:"item"`
	AndAfter bool   `yaml:"and_after"`
}

// Manifest describes a game's content: the collections in load order and
// the rules that go with them.
type Manifest struct {
	PlayerName       string         `yaml:"player_name"`
	Delimiter        string         `yaml:"delimiter"`
	Collections      []Source       `yaml:"collections"`
	Notebook         string         `yaml:"notebook"`
	EphemeralPrefix  string         `yaml:"ephemeral_prefix"`
	AlwaysValidLoops []int          `yaml:"always_valid_loops"`
	PresentationCap  int            `yaml:"presentation_cap"`
	NPCs             []NPC          `yaml:"npcs"`
	Items            []Item         `yaml:"items"`
	LoopDialogues    LoopDialogues  `yaml:"loop_dialogues"`

	dir string
}

// LoadManifest reads and validates the manifest at path.
// Collection files are resolved relative to the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}
	defer f.Close()

	m, err := LoadManifestFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// LoadManifestFromReader decodes a manifest from r, applies defaults and validates it.
func LoadManifestFromReader(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Dir is the directory collection files are resolved against.
func (m *Manifest) Dir() string {
	if m.dir == "" {
		return "."
	}
	return m.dir
}

// DelimiterRune returns the configured field delimiter.
func (m *Manifest) DelimiterRune() rune {
	if m.Delimiter == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(m.Delimiter)
	return r
}

// LoopDialogues is the ordered rule list for loop-start dialogues.
type LoopDialogues []LoopDialogue

// For returns the item dialogue for a loop. An exact match wins; otherwise
// the latest AndAfter rule below loop applies.
func (rules LoopDialogues) For(loop int) (string, bool) {
	var (
		best     string
		bestLoop = -1
	)
	for _, ld := range rules {
		if ld.Loop == loop {
			return ld.Item, true
		}
		if ld.AndAfter && ld.Loop < loop && ld.Loop > bestLoop {
			best, bestLoop = ld.Item, ld.Loop
		}
	}
	return best, bestLoop >= 0
}

// LoopDialogueFor returns the item dialogue configured for loop.
func (m *Manifest) LoopDialogueFor(loop int) (string, bool) {
	return m.LoopDialogues.For(loop)
}

// Validate returns every problem found, joined.
func (m *Manifest) Validate() error {
	var errs []error

	if len(m.Collections) == 0 {
		errs = append(errs, errors.New("collections: at least one collection is required"))
	}

	names := make(map[string]bool, len(m.Collections))
	for i, src := range m.Collections {
		if src.Name == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: name is required", i))
		}
		if src.File == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: file is required", i))
		}
		if names[src.Name] {
			errs = append(errs, fmt.Errorf("collections[%d]: duplicate name %q", i, src.Name))
		}
		names[src.Name] = true
	}

	if m.Notebook != "" && !names[m.Notebook] {
		errs = append(errs, fmt.Errorf("notebook %q is not a listed collection", m.Notebook))
	}
	if utf8.RuneCountInString(m.Delimiter) > 1 {
		errs = append(errs, fmt.Errorf("delimiter %q must be a single character", m.Delimiter))
	}
	if m.PresentationCap < 0 {
		errs = append(errs, fmt.Errorf("presentation_cap %d must not be negative", m.PresentationCap))
	}

	for i, npc := range m.NPCs {
		if npc.ID == "" {
			errs = append(errs, fmt.Errorf("npcs[%d]: id is required", i))
		}
		if !names[npc.Collection] {
			errs = append(errs, fmt.Errorf("npcs[%d]: unknown collection %q", i, npc.Collection))
		}
	}
	for i, item := range m.Items {
		if item.ID == "" {
			errs = append(errs, fmt.Errorf("items[%d]: id is required", i))
		}
		if !names[item.Collection] {
			errs = append(errs, fmt.Errorf("items[%d]: unknown collection %q", i, item.Collection))
		}
	}
	for i, ld := range m.LoopDialogues {
		if ld.Loop < 1 {
			errs = append(errs, fmt.Errorf("loop_dialogues[%d]: loop must be at least 1", i))
		}
		if ld.Item == "" {
			errs = append(errs, fmt.Errorf("loop_dialogues[%d]: item is required", i))
		}
	}

	return errors.Join(errs...)
}

func (m *Manifest) applyDefaults() {
	if m.PlayerName == "" {
		m.PlayerName = DefaultPlayerName
	}
	if m.EphemeralPrefix == "" {
		m.EphemeralPrefix = DefaultEphemeralPrefix
	}
	if m.AlwaysValidLoops == nil {
		m.AlwaysValidLoops = append([]int(nil), DefaultAlwaysValidLoops...)
	}
	if m.PresentationCap == 0 {
		m.PresentationCap = DefaultPresentationCap
	}
}
