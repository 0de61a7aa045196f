package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jwebster45206/loop-engine/pkg/engine"
)

type loopRow struct {
	Loop        int      `json:"loop"`
	AlwaysValid bool     `json:"always_valid"`
	Flags       []string `json:"flags"`
}

type report struct {
	Manifest      string         `json:"manifest"`
	Collections   map[string]int `json:"collections"`
	Notebook      string         `json:"notebook"`
	Rejected      []string       `json:"rejected,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Unsatisfiable []string       `json:"unsatisfiable,omitempty"`
	DeadEnds      []string       `json:"dead_ends,omitempty"`
	Ephemeral     []string       `json:"ephemeral,omitempty"`
	Loops         []loopRow      `json:"loops"`
	Problems      int            `json:"problems"`
}

func buildReport(path string) (*report, error) {
	logger := slog.New(slog.DiscardHandler)
	eng, load, err := engine.Load(path, logger)
	if err != nil {
		return nil, err
	}
	cls := eng.Classification()

	rep := &report{
		Manifest:    path,
		Collections: eng.Corpus().Stats(),
		Notebook:    cls.Notebook,
		DeadEnds:    cls.DeadEnds,
		Ephemeral:   cls.Ephemeral,
	}
	for _, e := range load.Rejected {
		rep.Rejected = append(rep.Rejected, e.Error())
	}
	for _, e := range load.Warnings {
		rep.Warnings = append(rep.Warnings, e.Error())
	}
	for _, e := range cls.Diagnostics() {
		rep.Unsatisfiable = append(rep.Unsatisfiable, e.Error())
	}

	loops := map[int]bool{}
	for _, n := range cls.Loops() {
		loops[n] = true
	}
	for _, n := range eng.Options().AlwaysValidLoops {
		loops[n] = true
	}
	last := 0
	for n := range loops {
		last = max(last, n)
	}
	for n := 1; n <= last; n++ {
		rep.Loops = append(rep.Loops, loopRow{
			Loop:        n,
			AlwaysValid: eng.IsAlwaysValid(n),
			Flags:       eng.LoopRelevantFlagsFor(n),
		})
	}

	rep.Problems = len(rep.Rejected) + len(rep.Warnings) + len(rep.Unsatisfiable)
	return rep, nil
}

func (r *report) write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text", "":
		return r.writeText(w)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

var heading = lipgloss.NewStyle().Bold(true)

func (r *report) writeText(w io.Writer) error {
	var b strings.Builder

	total := 0
	for _, n := range r.Collections {
		total += n
	}
	fmt.Fprintf(&b, "%s: %d entries in %d collections (notebook: %s)\n",
		r.Manifest, total, len(r.Collections), r.Notebook)

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", heading.Render(title), len(lines))
		for _, l := range lines {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	section("Rejected rows", r.Rejected)
	section("Warnings", r.Warnings)
	section("Unsatisfiable requirements", r.Unsatisfiable)
	section("Dead-end flags", r.DeadEnds)
	section("Ephemeral flags", r.Ephemeral)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("LOOP", "ALWAYS VALID", "REQUIRED FLAGS")
	for _, row := range r.Loops {
		valid := "no"
		if row.AlwaysValid {
			valid = "yes"
		}
		flags := strings.Join(row.Flags, ", ")
		if flags == "" {
			flags = "-"
		}
		t.Row(strconv.Itoa(row.Loop), valid, flags)
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", heading.Render("Loop requirements"), t.String())

	if r.Problems == 0 {
		b.WriteString("\nNo problems found.\n")
	} else {
		fmt.Fprintf(&b, "\n%d problems found.\n", r.Problems)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
