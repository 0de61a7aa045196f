package dialogue

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

const (
	// DefaultDelimiter separates fields within a row.
	DefaultDelimiter = ','

	// MinFields is id, minLoop, requiredFlags, text, addedFlags.
	MinFields = 5

	// MaxChoices is the number of fixed choice groups a row may carry.
	MaxChoices = 3

	// ChoiceFields is the width of one choice group:
	// required flags, prompt, response, added flags.
	ChoiceFields = 4

	// DefaultMinLoop is used when the minLoop field is empty or not numeric.
	DefaultMinLoop = 1

	listSeparator = ","
)

// Parser turns delimiter-separated rows into entries.
// The zero value is not usable; construct with NewParser.
type Parser struct {
	delimiter rune
	logger    *slog.Logger
}

// NewParser creates a parser for the given delimiter. A zero delimiter means DefaultDelimiter.
func NewParser(delimiter rune, logger *slog.Logger) *Parser {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{delimiter: delimiter, logger: logger}
}

// ParseResult is the outcome of parsing a whole collection.
type ParseResult struct {
	Entries  []*Entry
	Rejected []error // rows that were skipped, each a *RecordError
	Warnings []error // rows that were kept with a defaulted or truncated field
}

// ParseRecord parses a single logical row.
// The returned warnings describe recoverable problems (defaulted minLoop,
// truncated choice group). A non-nil error means the row was rejected.
func (p *Parser) ParseRecord(row string) (*Entry, []error, error) {
	cells := SplitRecord(row, p.delimiter)
	if len(cells) < MinFields {
		return nil, nil, fmt.Errorf("%w: need at least %d fields, got %d", ErrMalformedRecord, MinFields, len(cells))
	}

	var warnings []error

	minLoop, err := parseMinLoop(cells[1])
	if err != nil {
		warnings = append(warnings, err)
	}

	entry := &Entry{
		ID:            cells[0],
		MinLoop:       minLoop,
		RequiredFlags: ParseFlagList(cells[2]),
		Text:          cells[3],
		AddedFlags:    ParseFlagList(cells[4]),
	}

	for n := 0; n < MaxChoices; n++ {
		base := MinFields + n*ChoiceFields
		remaining := len(cells) - base
		if remaining <= 0 {
			break
		}
		if remaining < ChoiceFields {
			// a short trailing group stops choice parsing; later groups are never considered
			if !allBlank(cells[base:]) {
				warnings = append(warnings, fmt.Errorf("%w: choice %d truncated (%d of %d fields)", ErrMalformedRecord, n+1, remaining, ChoiceFields))
			}
			break
		}
		prompt := cells[base+1]
		if prompt == "" {
			continue
		}
		entry.Choices = append(entry.Choices, &Choice{
			RequiredFlags: ParseFlagList(cells[base]),
			PromptText:    prompt,
			ResponseText:  cells[base+2],
			AddedFlags:    ParseFlagList(cells[base+3]),
		})
	}

	return entry, warnings, nil
}

// ParseCSV reads a whole collection. The first line is a header and is
// always discarded. Blank lines are skipped. Quoted fields may span lines.
// Malformed rows are reported in the result and parsing continues.
func (p *Parser) ParseCSV(collection string, r io.Reader) (*ParseResult, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}

	result := &ParseResult{}
	for i, row := range rows {
		if i == 0 {
			p.logger.Debug("Discarding header row", "collection", collection, "header", row.text)
			continue
		}
		if strings.TrimSpace(row.text) == "" {
			continue
		}

		entry, warnings, err := p.ParseRecord(row.text)
		for _, w := range warnings {
			recErr := &RecordError{Collection: collection, Line: row.line, Err: w}
			result.Warnings = append(result.Warnings, recErr)
			p.logger.Warn("Recovered from bad field", "collection", collection, "line", row.line, "error", w)
		}
		if err != nil {
			recErr := &RecordError{Collection: collection, Line: row.line, Err: err}
			result.Rejected = append(result.Rejected, recErr)
			p.logger.Warn("Skipping malformed row", "collection", collection, "line", row.line, "error", err)
			continue
		}

		result.Entries = append(result.Entries, entry)
	}

	p.logger.Debug("Parsed collection",
		"collection", collection,
		"entries", len(result.Entries),
		"rejected", len(result.Rejected),
		"warnings", len(result.Warnings))

	return result, nil
}

// SplitRecord splits a row on delim while honoring double-quoted spans.
// Inside a quoted span a doubled quote is a literal quote. Each field is
// trimmed after unquoting.
func SplitRecord(row string, delim rune) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	runes := []rune(row)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

// ParseFlagList splits a comma-separated flag list, trimming each item and
// dropping empties and repeats. Order of first appearance is kept.
func ParseFlagList(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, part := range strings.Split(field, listSeparator) {
		flag := strings.TrimSpace(part)
		if flag == "" {
			continue
		}
		if _, dup := seen[flag]; dup {
			continue
		}
		seen[flag] = struct{}{}
		out = append(out, flag)
	}
	return out
}

func parseMinLoop(field string) (int, error) {
	if field == "" {
		return DefaultMinLoop, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return DefaultMinLoop, fmt.Errorf("%w: minLoop %q is not an integer, using %d", ErrFieldCoercion, field, DefaultMinLoop)
	}
	if n < 1 {
		return DefaultMinLoop, fmt.Errorf("%w: minLoop %d is below 1, using %d", ErrFieldCoercion, n, DefaultMinLoop)
	}
	return n, nil
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

type rawRow struct {
	line int // line number where the logical row starts, 1-based
	text string
}

// readRows groups physical lines into logical rows. A line with an odd number
// of quote characters opens a quoted span that continues onto the next line.
func readRows(r io.Reader) ([]rawRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		rows    []rawRow
		pending strings.Builder
		start   int
		open    bool
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if !open {
			start = lineNo
			pending.Reset()
			pending.WriteString(line)
		} else {
			pending.WriteString("\n")
			pending.WriteString(line)
		}
		if strings.Count(line, `"`)%2 == 1 {
			open = !open
		}
		if !open {
			rows = append(rows, rawRow{line: start, text: pending.String()})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if open {
		// unterminated quote: hand the remainder over as one row and let field splitting cope
		rows = append(rows, rawRow{line: start, text: pending.String()})
	}
	return rows, nil
}
