package core

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// ---- BOMSkipReader ----

func TestBOMSkipReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "strips BOM", input: "\xEF\xBB\xBFId,Task Name", want: "Id,Task Name"},
		{name: "no BOM unchanged", input: "Id,Task Name", want: "Id,Task Name"},
		{name: "BOM only", input: "\xEF\xBB\xBF", want: ""},
		{name: "shorter than BOM", input: "Id", want: "Id"},
		{name: "partial BOM kept", input: "\xEF\xBB", want: "\xEF\xBB"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewBOMSkipReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBOMSkipReaderSingleByteReads(t *testing.T) {
	r := NewBOMSkipReader(iotest.OneByteReader(strings.NewReader("\xEF\xBB\xBFabc")))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
}

// ---- SanitizedReader ----

func TestSanitizedReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "clean ascii", input: "Id,Task Name\n7,Comp 010\n", want: "Id,Task Name\n7,Comp 010\n"},
		{name: "clean multibyte", input: "7,Réné,séq\n", want: "7,Réné,séq\n"},
		{name: "invalid byte replaced", input: "a\xFFb", want: "a?b"},
		{name: "orphan continuation", input: "a\x80b", want: "a?b"},
		{name: "invalid pair", input: "\xC3(x", want: "?(x"},
		{name: "truncated sequence at end", input: "abc\xC3", want: "abc?"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewSanitizedReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// Multi-byte runes split across read boundaries must survive intact.
func TestSanitizedReaderSplitSequences(t *testing.T) {
	input := "Réné \U0001F3AC fin"
	r := NewSanitizedReader(iotest.OneByteReader(strings.NewReader(input)))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestSanitizedReaderTruncatedSplitSequence(t *testing.T) {
	// The last byte starts a 2-byte sequence that never completes.
	r := NewSanitizedReader(iotest.OneByteReader(strings.NewReader("ab\xC3")))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "ab?" {
		t.Errorf("got %q, want %q", got, "ab?")
	}
}

// ---- CountingReader ----

func TestCountingReader(t *testing.T) {
	input := "Id,Task Name\n7,Comp 010\n"
	c := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 8)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.BytesRead() != int64(n) {
		t.Errorf("BytesRead = %d, want %d", c.BytesRead(), n)
	}

	if _, err := io.Copy(io.Discard, c); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if c.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", c.BytesRead(), len(input))
	}
	if c.Percent() != 100 {
		t.Errorf("Percent = %d, want 100", c.Percent())
	}
}

func TestCountingReaderUnknownTotal(t *testing.T) {
	c := NewCountingReader(strings.NewReader("abc"), 0)
	if _, err := io.Copy(io.Discard, c); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if c.Percent() != 0 {
		t.Errorf("Percent = %d, want 0 for unknown total", c.Percent())
	}
}

// ---- WrapSource ----

func TestWrapSource(t *testing.T) {
	input := "\xEF\xBB\xBFId,Task Name\n7,R\xFFn\n"
	clean, counter := WrapSource(strings.NewReader(input), int64(len(input)))

	got, err := io.ReadAll(clean)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if want := "Id,Task Name\n7,R?n\n"; string(got) != want {
		t.Errorf("sanitized output = %q, want %q", got, want)
	}

	// The counter sits against the raw source, so the BOM counts too.
	if counter.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", counter.BytesRead(), len(input))
	}
	if counter.Percent() != 100 {
		t.Errorf("Percent = %d, want 100", counter.Percent())
	}
}
