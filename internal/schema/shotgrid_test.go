package schema

import "testing"

// ---- Canonical ----

func TestCanonical(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"exact match", "Id", "Id", true},
		{"case insensitive", "pipeline step", "Pipeline Step", true},
		{"upper case", "STATUS", "Status", true},
		{"surrounding whitespace", "  Task Name  ", "Task Name", true},
		{"linked field header", "Shot > Shot Status", "Shot > Shot Status", true},
		{"linked field alias", "Shot Status", "Shot > Shot Status", true},
		{"unknown header", "Episode", "", false},
		{"empty header", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Canonical(tt.header)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ---- TaskColumns ----

func TestTaskColumnsOnlyIDRequired(t *testing.T) {
	for _, col := range TaskColumns() {
		required := col.Name == ColID
		if col.Required != required {
			t.Errorf("column %q Required = %v, want %v", col.Name, col.Required, required)
		}
	}
}

func TestTaskColumnsReturnsCopy(t *testing.T) {
	cols := TaskColumns()
	cols[0].Name = "mutated"

	if got := TaskColumns()[0].Name; got != ColID {
		t.Errorf("TaskColumns()[0].Name = %q after caller mutation, want %q", got, ColID)
	}
}

func TestColumnNamesOrder(t *testing.T) {
	names := ColumnNames()
	if len(names) != 12 {
		t.Fatalf("ColumnNames() returned %d names, want 12", len(names))
	}
	if names[0] != ColID {
		t.Errorf("first column = %q, want %q", names[0], ColID)
	}
	if names[len(names)-1] != ColThumbnail {
		t.Errorf("last column = %q, want %q", names[len(names)-1], ColThumbnail)
	}
}
