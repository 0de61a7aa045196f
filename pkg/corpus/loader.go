package corpus

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
)

// LoadReport collects the recoverable problems met while loading.
type LoadReport struct {
	Rejected []error
	Warnings []error
}

// Problems returns the total number of rejected rows and warnings.
func (r *LoadReport) Problems() int {
	return len(r.Rejected) + len(r.Warnings)
}

// Load reads every collection listed in the manifest from disk.
func Load(m *Manifest, logger *slog.Logger) (*Corpus, *LoadReport, error) {
	return LoadFS(os.DirFS(m.Dir()), m, logger)
}

// LoadFS reads every collection listed in the manifest from fsys, in manifest order.
// Bad rows are reported and skipped. A missing file or a corpus with no
// entries at all is an error.
func LoadFS(fsys fs.FS, m *Manifest, logger *slog.Logger) (*Corpus, *LoadReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := dialogue.NewParser(m.DelimiterRune(), logger)

	c := New()
	report := &LoadReport{}
	for _, src := range m.Collections {
		f, err := fsys.Open(src.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open collection %s: %w", src.Name, err)
		}
		result, err := parser.ParseCSV(src.Name, f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}

		c.Add(src.Name, result.Entries)
		report.Rejected = append(report.Rejected, result.Rejected...)
		report.Warnings = append(report.Warnings, result.Warnings...)
		logger.Info("Dialogue collection loaded", "collection", src.Name, "entries", len(result.Entries))
	}

	if c.EntryCount() == 0 {
		return nil, report, fmt.Errorf("%w: %d collections, no usable rows", dialogue.ErrEmptyCorpus, len(m.Collections))
	}

	c.SetNotebook(m.Notebook)
	for _, npc := range m.NPCs {
		c.RegisterNPC(npc)
	}
	for _, item := range m.Items {
		c.RegisterItem(item)
	}

	logger.Info("Corpus loaded",
		"collections", len(c.Names()),
		"entries", c.EntryCount(),
		"notebook", c.Notebook(),
		"rejected_rows", len(report.Rejected))

	return c, report, nil
}
