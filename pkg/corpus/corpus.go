package corpus

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
)

// NPC maps a speaking character to its dialogue collection.
type NPC struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Collection string `yaml:"collection" json:"collection"`
}

// Item maps an interactable item to the collection holding its dialogue.
// The item id is also the entry id inside that collection.
type Item struct {
	ID         string `yaml:"id" json:"id"`
	Collection string `yaml:"collection" json:"collection"`
}

// Collection is one named source of entries, in source order.
type Collection struct {
	Name    string
	Entries []*dialogue.Entry
}

// Corpus is every loaded collection in load order, plus the NPC and item registries.
type Corpus struct {
	order       []string
	collections map[string]*Collection
	npcs        map[string]NPC
	items       map[string]Item
	notebook    string
}

// New creates an empty corpus.
func New() *Corpus {
	return &Corpus{
		collections: make(map[string]*Collection),
		npcs:        make(map[string]NPC),
		items:       make(map[string]Item),
	}
}

// Add stores a collection. Re-adding a name replaces its entries but keeps its load position.
func (c *Corpus) Add(name string, entries []*dialogue.Entry) {
	if _, exists := c.collections[name]; !exists {
		c.order = append(c.order, name)
	}
	c.collections[name] = &Collection{Name: name, Entries: entries}
}

// Collection returns the named collection or ErrMissingCollection.
func (c *Corpus) Collection(name string) (*Collection, error) {
	col, ok := c.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dialogue.ErrMissingCollection, name)
	}
	return col, nil
}

// Names returns collection names in load order.
func (c *Corpus) Names() []string {
	return slices.Clone(c.order)
}

// Collections returns the collections in load order.
func (c *Corpus) Collections() []*Collection {
	out := make([]*Collection, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.collections[name])
	}
	return out
}

// SetNotebook overrides the notebook collection. An empty name restores the default.
func (c *Corpus) SetNotebook(name string) {
	c.notebook = name
}

// Notebook returns the notebook collection: the override if one was set,
// otherwise the last collection loaded.
func (c *Corpus) Notebook() string {
	if c.notebook != "" {
		return c.notebook
	}
	if len(c.order) == 0 {
		return ""
	}
	return c.order[len(c.order)-1]
}

// EntryCount returns the total number of entries across all collections.
func (c *Corpus) EntryCount() int {
	n := 0
	for _, col := range c.collections {
		n += len(col.Entries)
	}
	return n
}

// Stats returns the number of entries per collection.
func (c *Corpus) Stats() map[string]int {
	stats := make(map[string]int, len(c.collections))
	for name, col := range c.collections {
		stats[name] = len(col.Entries)
	}
	return stats
}

// RegisterNPC adds an NPC to the registry. Entries with an empty id are ignored.
func (c *Corpus) RegisterNPC(npc NPC) {
	if npc.ID == "" {
		return
	}
	c.npcs[npc.ID] = npc
}

// NPC looks up a registered NPC.
func (c *Corpus) NPC(id string) (NPC, bool) {
	npc, ok := c.npcs[id]
	return npc, ok
}

// NPCs returns every registered NPC sorted by id.
func (c *Corpus) NPCs() []NPC {
	out := make([]NPC, 0, len(c.npcs))
	for _, npc := range c.npcs {
		out = append(out, npc)
	}
	slices.SortFunc(out, func(a, b NPC) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RegisterItem adds an item to the registry. Entries with an empty id are ignored.
func (c *Corpus) RegisterItem(item Item) {
	if item.ID == "" {
		return
	}
	c.items[item.ID] = item
}

// Item looks up a registered item.
func (c *Corpus) Item(id string) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns every registered item sorted by id.
func (c *Corpus) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b Item) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Clone deep-copies every entry so choice consumption stays private to the copy.
// Registries are shared by value.
func (c *Corpus) Clone() *Corpus {
	out := New()
	out.notebook = c.notebook
	for _, name := range c.order {
		src := c.collections[name].Entries
		entries := make([]*dialogue.Entry, len(src))
		for i, e := range src {
			entries[i] = e.Clone()
		}
		out.Add(name, entries)
	}
	for id, npc := range c.npcs {
		out.npcs[id] = npc
	}
	for id, item := range c.items {
		out.items[id] = item
	}
	return out
}
