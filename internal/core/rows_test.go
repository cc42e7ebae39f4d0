package core

import (
	"strings"
	"testing"
)

// ---- CleanCell ----

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"plain value", "Comp", "Comp"},
		{"surrounding whitespace", "  Comp  ", "Comp"},
		{"excel formula wrapper", `="0123"`, "0123"},
		{"bare equals prefix", "=Comp", "Comp"},
		{"surrounding double quotes", `"Comp"`, "Comp"},
		{"surrounding single quotes", "'Comp'", "Comp"},
		{"quotes then whitespace", `" Comp "`, "Comp"},
		{"internal spaces kept", "Shot 010", "Shot 010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ---- ParseTaskID ----

func TestParseTaskID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"plain integer", "7", 7, true},
		{"whitespace padded", " 42 ", 42, true},
		{"integral float", "7.0", 7, true},
		{"excel wrapped", `="123"`, 123, true},
		{"negative integer", "-3", -3, true},
		{"fractional float", "7.5", 0, false},
		{"not a number", "abc", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTaskID(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseTaskID(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ---- MakeHeaderIndex ----

func TestMakeHeaderIndex(t *testing.T) {
	header := []string{"Id", "TASK NAME", " Pipeline Step ", "Shot Status", "Unknown Col"}
	idx := MakeHeaderIndex(header)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"id lowercased", "id", 0},
		{"case folded", "task name", 1},
		{"trimmed", "pipeline step", 2},
		{"alias resolved to canonical", "shot > shot status", 3},
		{"unknown kept under own name", "unknown col", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx[tt.key]
			if !ok || got != tt.want {
				t.Errorf("idx[%q] = (%d, %v), want (%d, true)", tt.key, got, ok, tt.want)
			}
		})
	}
}

// ---- TaskRowFromRecord ----

func TestTaskRowFromRecord(t *testing.T) {
	header := []string{"Id", "Task Name", "Link", "Pipeline Step", "Status", "Assigned To", "Reviewer", "Start Date", "Due Date", "Shot > Shot Status", "Project", "Thumbnail"}
	idx := MakeHeaderIndex(header)

	record := []string{"7", "Comp 010", "Shot/010", "Comp", "fin", "Jane Doe", "John Smith", "2024-01-02", "2024-02-03", "apr", "Demo", "http://x/t.jpg"}

	row, ok := TaskRowFromRecord(record, idx)
	if !ok {
		t.Fatal("TaskRowFromRecord() ok = false, want true")
	}

	want := TaskRow{
		ID:           7,
		TaskName:     "Comp 010",
		Link:         "Shot/010",
		PipelineStep: "Comp",
		Status:       "fin",
		AssignedTo:   "Jane Doe",
		Reviewer:     "John Smith",
		StartDate:    "2024-01-02",
		DueDate:      "2024-02-03",
		ShotStatus:   "apr",
		Project:      "Demo",
		Thumbnail:    "http://x/t.jpg",
	}
	if row != want {
		t.Errorf("TaskRowFromRecord() = %+v, want %+v", row, want)
	}
}

func TestTaskRowFromRecordMissingID(t *testing.T) {
	header := []string{"Id", "Task Name"}
	idx := MakeHeaderIndex(header)

	for _, record := range [][]string{
		{"", "No id"},
		{"abc", "Bad id"},
		{"7.5", "Fractional id"},
	} {
		if _, ok := TaskRowFromRecord(record, idx); ok {
			t.Errorf("TaskRowFromRecord(%v) ok = true, want false", record)
		}
	}
}

func TestTaskRowFromRecordShortRecord(t *testing.T) {
	header := []string{"Id", "Task Name", "Link"}
	idx := MakeHeaderIndex(header)

	row, ok := TaskRowFromRecord([]string{"7"}, idx)
	if !ok {
		t.Fatal("TaskRowFromRecord() ok = false, want true")
	}
	if row.TaskName != "" || row.Link != "" {
		t.Errorf("short record fields = (%q, %q), want empty", row.TaskName, row.Link)
	}
}

// ---- ParseSource ----

const sampleExport = `Id,Task Name,Link,Pipeline Step,Status,Assigned To,Reviewer,Start Date,Due Date,Shot > Shot Status,Project,Thumbnail
7,Comp 010,Shot/010,Comp,fin,Jane Doe,,2024-01-02,2024-02-03,apr,Demo,
8,Edit pass,,Editorial,ip,,,,,,Demo,
,No id row,,,,,,,,,,
`

func TestParseSource(t *testing.T) {
	src, err := ParseSource([]byte(sampleExport))
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}

	if src.HeaderLine != 1 {
		t.Errorf("HeaderLine = %d, want 1", src.HeaderLine)
	}
	if len(src.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(src.Rows))
	}

	if !src.Rows[0].HasID || src.Rows[0].Task.ID != 7 {
		t.Errorf("Rows[0] = %+v, want id 7", src.Rows[0])
	}
	if src.Rows[0].Line != 2 {
		t.Errorf("Rows[0].Line = %d, want 2", src.Rows[0].Line)
	}
	if !src.Rows[1].HasID || src.Rows[1].Task.ID != 8 {
		t.Errorf("Rows[1] = %+v, want id 8", src.Rows[1])
	}
	if src.Rows[2].HasID {
		t.Error("Rows[2].HasID = true, want false for id-less row")
	}
}

func TestParseSourceSkipsPreamble(t *testing.T) {
	input := "ShotGrid Export,,\nGenerated on 2024-01-02,,\n" +
		"Id,Task Name,Status\n" +
		"7,Comp 010,fin\n"

	src, err := ParseSource([]byte(input))
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	if src.HeaderLine != 3 {
		t.Errorf("HeaderLine = %d, want 3", src.HeaderLine)
	}
	if len(src.Rows) != 1 || src.Rows[0].Line != 4 {
		t.Errorf("Rows = %+v, want one row at line 4", src.Rows)
	}
}

func TestParseSourceStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBF" + "Id,Task Name\n7,Comp 010\n"

	src, err := ParseSource([]byte(input))
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	if len(src.Rows) != 1 || src.Rows[0].Task.ID != 7 {
		t.Errorf("Rows = %+v, want one row with id 7", src.Rows)
	}
}

func TestParseSourceSkipsEmptyRows(t *testing.T) {
	input := "Id,Task Name\n7,Comp 010\n,\n8,Edit pass\n"

	src, err := ParseSource([]byte(input))
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	if len(src.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2 (empty rows dropped)", len(src.Rows))
	}
	if src.Rows[1].Line != 4 {
		t.Errorf("Rows[1].Line = %d, want 4", src.Rows[1].Line)
	}
}

func TestParseSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSub string
	}{
		{"empty file", "", "empty file"},
		{"no header", "a,b,c\n1,2,3\n", "header not found"},
		{"id without second known column", "Id,Foo\n7,x\n", "header not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource([]byte(tt.input))
			if err == nil {
				t.Fatal("ParseSource() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("ParseSource() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

// ---- sanitizeUTF8 ----

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"valid passthrough", []byte("Jane Doe"), "Jane Doe"},
		{"invalid byte replaced", []byte{'J', 0xFF, 'D'}, "J?D"},
		{"multibyte kept", []byte("Réné"), "Réné"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(sanitizeUTF8(tt.input))
			if got != tt.want {
				t.Errorf("sanitizeUTF8(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
