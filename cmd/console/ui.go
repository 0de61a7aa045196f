package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/engine"
)

type phase int

const (
	phasePick    phase = iota // choosing whom to talk to
	phaseChoices              // choices on screen
	phaseAnswer               // a response is shown, any key continues
)

type targetKind int

const (
	targetNPC targetKind = iota
	targetItem
	targetNotebook
)

type target struct {
	label      string
	kind       targetKind
	id         string
	collection string
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Advance key.Binding
	Reset   key.Binding
	NewGame key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Enter:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave")),
	Advance: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "end loop")),
	Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset loop")),
	NewGame: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new game")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	engine  *engine.Engine
	session *engine.Session

	targets  []target
	selected int
	phase    phase
	current  *target
	choices  engine.ChoiceView

	lines        []string
	chatViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	loopStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	footerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func NewConsoleUI(eng *engine.Engine, session *engine.Session) ConsoleUI {
	m := ConsoleUI{
		engine:       eng,
		session:      session,
		targets:      buildTargets(eng),
		chatViewport: viewport.New(60, 20),
		metaViewport: viewport.New(30, 20),
	}
	m.chatViewport.MouseWheelEnabled = true
	m.say(titleStyle.Render("LOOP ENGINE"))
	m.say(fmt.Sprintf("Welcome, %s. Choose someone to talk to.", session.PlayerName()))
	return m
}

// buildTargets lists NPCs, then one entry per item group, then the notebook.
func buildTargets(eng *engine.Engine) []target {
	c := eng.Corpus()
	var out []target
	for _, npc := range c.NPCs() {
		name := npc.Name
		if name == "" {
			name = engine.DisplayName(npc.ID)
		}
		out = append(out, target{label: name, kind: targetNPC, id: npc.ID, collection: npc.Collection})
	}
	var bases []string
	for _, item := range c.Items() {
		base := dialogue.BaseID(item.ID)
		if slices.Contains(bases, base) {
			continue
		}
		bases = append(bases, base)
		out = append(out, target{label: "Examine " + engine.DisplayName(base), kind: targetItem, id: base, collection: item.Collection})
	}
	if nb := c.Notebook(); nb != "" {
		out = append(out, target{label: "Read notebook", kind: targetNotebook, collection: nb})
	}
	return out
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatWidth := int(float64(m.width)*0.7) - 2
		metaWidth := m.width - chatWidth - 4
		footer := 7
		m.chatViewport.Width = chatWidth
		m.chatViewport.Height = max(m.height-footer-2, 5)
		m.metaViewport.Width = metaWidth
		m.metaViewport.Height = max(m.height-footer-2, 5)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, keys.Quit) && m.phase == phasePick:
		return m, tea.Quit
	case key.Matches(msg, keys.Advance):
		m.endLoop()
	case key.Matches(msg, keys.Reset):
		from := m.session.Loop()
		m.session.ResetLoop()
		m.phase = phasePick
		m.say(loopStyle.Render(fmt.Sprintf("The clock spins back from loop %d to loop %d.", from, m.session.Loop())))
	case key.Matches(msg, keys.NewGame):
		m.session.NewGame()
		m.phase = phasePick
		m.lines = nil
		m.say(titleStyle.Render("LOOP ENGINE"))
		m.say("A new game begins. You remember nothing.")
	default:
		switch m.phase {
		case phasePick:
			m.updatePick(msg)
		case phaseChoices:
			m.updateChoices(msg)
		case phaseAnswer:
			if key.Matches(msg, keys.Enter) {
				m.offerChoices()
			}
		}
	}

	var cmd tea.Cmd
	if msg.String() == "pgup" || msg.String() == "pgdown" {
		m.chatViewport, cmd = m.chatViewport.Update(msg)
	}
	m.refresh()
	return m, cmd
}

func (m *ConsoleUI) updatePick(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, keys.Down):
		if m.selected < len(m.targets)-1 {
			m.selected++
		}
	case key.Matches(msg, keys.Enter):
		if len(m.targets) > 0 {
			m.interact(m.targets[m.selected])
		}
	}
}

func (m *ConsoleUI) updateChoices(msg tea.KeyMsg) {
	if key.Matches(msg, keys.Back) {
		m.phase = phasePick
		return
	}
	s := msg.String()
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return
	}
	slot := int(s[0] - '1')
	if slot >= len(m.choices.Shown) {
		return
	}

	out, err := m.session.SelectChoice(m.current.collection, slot)
	if err != nil {
		m.say(promptStyle.Render(err.Error()))
		return
	}
	m.say(userStyle.Render("You: ") + out.Ref.Choice.PromptText)
	m.noteFlags(out.NewFlags)
	if out.HasAnswer {
		m.say(speakerStyle.Render(m.current.label+": ") + narratorStyle.Render(out.Response))
		m.phase = phaseAnswer
		return
	}
	m.offerChoices()
}

func (m *ConsoleUI) interact(t target) {
	m.current = &t
	switch t.kind {
	case targetNPC:
		entry, newFlags, err := m.session.PresentEntry(t.collection)
		if err != nil {
			m.say(promptStyle.Render(err.Error()))
			return
		}
		if entry != nil && entry.HasText() {
			m.say(speakerStyle.Render(t.label+": ") + narratorStyle.Render(entry.Text))
		}
		m.noteFlags(newFlags)
		m.offerChoices()

	case targetItem:
		entry, newFlags, err := m.session.ExamineItem(t.collection, t.id)
		if err != nil {
			m.say(promptStyle.Render(err.Error()))
			return
		}
		if entry == nil {
			m.say(promptStyle.Render("There is nothing to see."))
			return
		}
		m.say(narratorStyle.Render(entry.Text))
		m.noteFlags(newFlags)

	case targetNotebook:
		entries, err := m.session.AvailableEntries(t.collection)
		if err != nil {
			m.say(promptStyle.Render(err.Error()))
			return
		}
		if len(entries) == 0 {
			m.say(promptStyle.Render("The notebook is empty."))
			return
		}
		m.say(titleStyle.Render("Notebook"))
		for _, e := range entries {
			m.say("• " + e.Text)
		}
	}
}

// offerChoices recomputes the queue for the current conversation.
func (m *ConsoleUI) offerChoices() {
	view, err := m.session.OfferedChoices(m.current.collection)
	if err != nil || len(view.Shown) == 0 {
		m.say(promptStyle.Render("(nothing more to say)"))
		m.phase = phasePick
		return
	}
	m.choices = view
	m.phase = phaseChoices
}

func (m *ConsoleUI) endLoop() {
	res := m.session.RequestLoopAdvance()
	m.phase = phasePick
	if !res.Advanced {
		m.say(loopStyle.Render(fmt.Sprintf("The loop repeats. Loop %d is not finished.", res.From)))
		return
	}
	m.say(loopStyle.Render(fmt.Sprintf("Loop %d begins.", res.To)))
	if e, err := m.session.LoopDialogue(); err == nil && e != nil {
		m.say(narratorStyle.Render(e.Text))
	}
}

func (m *ConsoleUI) noteFlags(flags []string) {
	for _, f := range flags {
		if m.engine.Classification().IsLoopRelevant(f) {
			m.say(promptStyle.Render("  (you will remember this)"))
			return
		}
	}
}

func (m *ConsoleUI) say(line string) {
	m.lines = append(m.lines, line)
}

func (m *ConsoleUI) refresh() {
	width := max(m.chatViewport.Width-4, 20)
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(wordwrap.String(l, width))
		b.WriteString("\n\n")
	}
	m.chatViewport.SetContent(b.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeMetadata() string {
	var b strings.Builder
	loop := m.session.Loop()

	b.WriteString(titleStyle.Render("LOOP") + "\n\n")
	fmt.Fprintf(&b, "Player: %s\n", m.session.PlayerName())
	fmt.Fprintf(&b, "Loop:   %d\n\n", loop)

	b.WriteString("To remember:\n")
	required := m.session.LoopRelevantFlagsFor(loop)
	switch {
	case m.engine.IsAlwaysValid(loop):
		b.WriteString("nothing, this loop always ends\n")
	case len(required) == 0:
		b.WriteString("nothing\n")
	default:
		found := m.session.FoundThisLoop()
		done := 0
		for _, f := range required {
			if slices.Contains(found, f) {
				done++
			}
		}
		fmt.Fprintf(&b, "%d of %d found\n", done, len(required))
	}

	fmt.Fprintf(&b, "\nMemories: %d\n\n", len(m.session.Flags()))

	b.WriteString("Keys:\n")
	for _, k := range []key.Binding{keys.Advance, keys.Reset, keys.NewGame, keys.Back, keys.Quit} {
		fmt.Fprintf(&b, "• %s: %s\n", k.Help().Key, k.Help().Desc)
	}
	return b.String()
}

func (m ConsoleUI) renderFooter() string {
	var b strings.Builder
	switch m.phase {
	case phasePick:
		for i, t := range m.targets {
			if i == m.selected {
				b.WriteString(selectedItemStyle.Render("> "+t.label) + "\n")
			} else {
				b.WriteString(itemStyle.Render("  "+t.label) + "\n")
			}
		}
	case phaseChoices:
		for i, ref := range m.choices.Shown {
			fmt.Fprintf(&b, "%d. %s\n", i+1, ref.Choice.PromptText)
		}
		if m.choices.Waiting > 0 {
			b.WriteString(promptStyle.Render(fmt.Sprintf("(%d more waiting)", m.choices.Waiting)) + "\n")
		}
	case phaseAnswer:
		b.WriteString(promptStyle.Render("Press enter to continue") + "\n")
	}
	return footerStyle.Width(max(m.width-4, 20)).Render(strings.TrimRight(b.String(), "\n"))
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Loading..."
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		chatPanelStyle.Render(m.chatViewport.View()),
		metaPanelStyle.Render(m.metaViewport.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, top, m.renderFooter())
}
