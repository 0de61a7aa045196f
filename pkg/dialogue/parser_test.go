package dialogue

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"
)

func testParser() *Parser {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
	return NewParser(DefaultDelimiter, logger)
}

func TestSplitRecord(t *testing.T) {
	tests := []struct {
		name     string
		row      string
		expected []string
	}{
		{
			name:     "plain fields",
			row:      "a1,1,,Hello,flagX",
			expected: []string{"a1", "1", "", "Hello", "flagX"},
		},
		{
			name:     "quoted field with delimiter",
			row:      `a1,1,"x, y",Hello,flagX`,
			expected: []string{"a1", "1", "x, y", "Hello", "flagX"},
		},
		{
			name:     "escaped quotes",
			row:      `a1,1,,"She said ""hi"", then left",f`,
			expected: []string{"a1", "1", "", `She said "hi", then left`, "f"},
		},
		{
			name:     "whitespace trimmed after unquoting",
			row:      ` a1 , 2 ,"  padded  ",  t  ,f `,
			expected: []string{"a1", "2", "padded", "t", "f"},
		},
		{
			name:     "trailing delimiter yields empty field",
			row:      "a,1,,t,f,",
			expected: []string{"a", "1", "", "t", "f", ""},
		},
		{
			name:     "empty quoted field",
			row:      `a1,1,"",Hello,flagX`,
			expected: []string{"a1", "1", "", "Hello", "flagX"},
		},
		{
			name:     "quoted single quote",
			row:      `a1,1,,"""",f`,
			expected: []string{"a1", "1", "", `"`, "f"},
		},
		{
			name:     "quoted field starting with a quote",
			row:      `a1,1,,"""start",f`,
			expected: []string{"a1", "1", "", `"start`, "f"},
		},
		{
			name:     "empty row",
			row:      "",
			expected: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRecord(tt.row, DefaultDelimiter)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitRecord(%q) = %q, want %q", tt.row, got, tt.expected)
			}
		})
	}
}

func TestSplitRecord_RoundTrip(t *testing.T) {
	fields := []string{`comma, inside`, `"quoted"`, `mixed "a, b" end`, `plain`, ``, `"`, `"start`}

	var quoted []string
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}

	got := SplitRecord(strings.Join(quoted, ","), DefaultDelimiter)
	if !reflect.DeepEqual(got, fields) {
		t.Errorf("round trip mismatch: got %q, want %q", got, fields)
	}
}

func TestSplitRecord_CustomDelimiter(t *testing.T) {
	got := SplitRecord("a;1;x,y;text;f", ';')
	want := []string{"a", "1", "x,y", "text", "f"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseFlagList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"   ", nil},
		{"a", []string{"a"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{"a,,b,", []string{"a", "b"}},
		{"a,b,a", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := ParseFlagList(tt.input)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ParseFlagList(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseRecord_SimpleEntry(t *testing.T) {
	entry, warnings, err := testParser().ParseRecord("a1,1,,Hello,flagX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}

	expected := &Entry{ID: "a1", MinLoop: 1, Text: "Hello", AddedFlags: []string{"flagX"}}
	if !reflect.DeepEqual(entry, expected) {
		t.Errorf("got %+v, want %+v", entry, expected)
	}
	if len(entry.Choices) != 0 {
		t.Errorf("expected zero choices, got %d", len(entry.Choices))
	}
}

func TestParseRecord_ChoiceGroup(t *testing.T) {
	entry, _, err := testParser().ParseRecord("a2,2,,Pick,, ,Go left,You went left,flagLeft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.MinLoop != 2 {
		t.Errorf("expected minLoop 2, got %d", entry.MinLoop)
	}
	if len(entry.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(entry.Choices))
	}

	expected := &Choice{
		PromptText:   "Go left",
		ResponseText: "You went left",
		AddedFlags:   []string{"flagLeft"},
	}
	if !reflect.DeepEqual(entry.Choices[0], expected) {
		t.Errorf("got %+v, want %+v", entry.Choices[0], expected)
	}
}

func TestParseRecord_ThreeChoicesSkippingEmptyPrompt(t *testing.T) {
	row := "door,1,key,The door,seen_door," +
		"key,Open it,It creaks,door_opened," +
		",,ignored answer,ignored_flag," +
		"lamp,Look closer,,looked"
	entry, _, err := testParser().ParseRecord(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entry.Choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(entry.Choices))
	}
	if entry.Choices[0].PromptText != "Open it" || entry.Choices[1].PromptText != "Look closer" {
		t.Errorf("unexpected prompts: %q, %q", entry.Choices[0].PromptText, entry.Choices[1].PromptText)
	}
	if !reflect.DeepEqual(entry.Choices[1].RequiredFlags, []string{"lamp"}) {
		t.Errorf("unexpected required flags: %v", entry.Choices[1].RequiredFlags)
	}
	if entry.Choices[1].ResponseText != "" {
		t.Errorf("expected empty response, got %q", entry.Choices[1].ResponseText)
	}
}

func TestParseRecord_TruncatedGroupStopsChoiceParsing(t *testing.T) {
	row := "x,1,,Text,,req,Prompt one,Answer,added,r2,Prompt two"
	entry, warnings, err := testParser().ParseRecord(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entry.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(entry.Choices))
	}
	if len(warnings) != 1 || !errors.Is(warnings[0], ErrMalformedRecord) {
		t.Errorf("expected one malformed-record warning, got %v", warnings)
	}
}

func TestParseRecord_TooFewFields(t *testing.T) {
	_, _, err := testParser().ParseRecord("a,1,,text")
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestParseRecord_BadMinLoopDefaults(t *testing.T) {
	entry, warnings, err := testParser().ParseRecord("a,soon,,text,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.MinLoop != DefaultMinLoop {
		t.Errorf("expected default minLoop, got %d", entry.MinLoop)
	}
	if len(warnings) != 1 || !errors.Is(warnings[0], ErrFieldCoercion) {
		t.Errorf("expected coercion warning, got %v", warnings)
	}
}

func TestParseRecord_EmptyQuotedRequirements(t *testing.T) {
	entry, warnings, err := testParser().ParseRecord(`a1,1,"",Hello,flagX`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if len(entry.RequiredFlags) != 0 {
		t.Errorf("expected no required flags, got %q", entry.RequiredFlags)
	}
}

func TestParseRecord_MinLoopBelowOneDefaults(t *testing.T) {
	for _, field := range []string{"0", "-4"} {
		entry, warnings, err := testParser().ParseRecord("a," + field + ",,text,")
		if err != nil {
			t.Fatalf("minLoop %s: unexpected error: %v", field, err)
		}
		if entry.MinLoop != DefaultMinLoop {
			t.Errorf("minLoop %s: expected default, got %d", field, entry.MinLoop)
		}
		if len(warnings) != 1 || !errors.Is(warnings[0], ErrFieldCoercion) {
			t.Errorf("minLoop %s: expected coercion warning, got %v", field, warnings)
		}
	}
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"memoryId,minLoop,requiredMemory,text,addMemory",
		"a1,1,,Hello,flagX",
		"",
		"broken,row",
		`a2,3,"flagX, flagY","A line ""quoted""`,
		`that spans lines",flagZ`,
		"a3,nope,,Fallback,",
	}, "\n")

	result, err := testParser().ParseCSV("grandma", strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("expected 1 rejected row, got %d", len(result.Rejected))
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(result.Warnings))
	}

	var recErr *RecordError
	if !errors.As(result.Rejected[0], &recErr) {
		t.Fatalf("expected *RecordError, got %T", result.Rejected[0])
	}
	if recErr.Line != 4 || recErr.Collection != "grandma" {
		t.Errorf("unexpected record error location: %+v", recErr)
	}

	multi := result.Entries[1]
	if multi.Text != "A line \"quoted\"\nthat spans lines" {
		t.Errorf("unexpected multi-line text: %q", multi.Text)
	}
	if !reflect.DeepEqual(multi.RequiredFlags, []string{"flagX", "flagY"}) {
		t.Errorf("unexpected required flags: %v", multi.RequiredFlags)
	}
	if result.Entries[2].MinLoop != 1 {
		t.Errorf("expected defaulted minLoop, got %d", result.Entries[2].MinLoop)
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	result, err := testParser().ParseCSV("empty", strings.NewReader("id,minLoop,req,text,add\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(result.Entries))
	}
}
