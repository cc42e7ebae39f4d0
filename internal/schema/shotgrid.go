// Package schema declares the canonical column layout of a ShotGrid task
// export. CSV parsing and the web mapping endpoint share these definitions
// so the accepted headers are documented in exactly one place.
package schema

import "strings"

// Canonical header names as ShotGrid writes them. Only Id is required;
// every other column may be missing from an export and the affected fields
// are simply treated as not provided.
const (
	ColID           = "Id"
	ColTaskName     = "Task Name"
	ColLink         = "Link"
	ColPipelineStep = "Pipeline Step"
	ColStatus       = "Status"
	ColAssignedTo   = "Assigned To"
	ColReviewer     = "Reviewer"
	ColStartDate    = "Start Date"
	ColDueDate      = "Due Date"
	ColShotStatus   = "Shot > Shot Status"
	ColProject      = "Project"
	ColThumbnail    = "Thumbnail"
)

// Column describes one expected export column. Aliases cover alternate
// headers ShotGrid produces depending on the export path; matching is
// case-insensitive.
type Column struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Required bool     `json:"required"`
}

var taskColumns = []Column{
	{Name: ColID, Required: true},
	{Name: ColTaskName},
	{Name: ColLink},
	{Name: ColPipelineStep},
	{Name: ColStatus},
	{Name: ColAssignedTo},
	{Name: ColReviewer},
	{Name: ColStartDate},
	{Name: ColDueDate},
	// Linked-field headers lose the "Shot >" prefix in some export paths.
	{Name: ColShotStatus, Aliases: []string{"Shot Status"}},
	{Name: ColProject},
	{Name: ColThumbnail},
}

// TaskColumns returns the canonical export layout. The returned slice is a
// copy; callers may reorder or annotate it freely.
func TaskColumns() []Column {
	out := make([]Column, len(taskColumns))
	copy(out, taskColumns)
	return out
}

// ColumnNames returns the canonical header names in export order.
func ColumnNames() []string {
	names := make([]string, len(taskColumns))
	for i, col := range taskColumns {
		names[i] = col.Name
	}
	return names
}

// Canonical resolves a raw header to its canonical column name, matching
// names and aliases case-insensitively after trimming. The second return is
// false when the header is not part of the task export layout.
func Canonical(header string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return "", false
	}
	for _, col := range taskColumns {
		if strings.ToLower(col.Name) == h {
			return col.Name, true
		}
		for _, alias := range col.Aliases {
			if strings.ToLower(alias) == h {
				return col.Name, true
			}
		}
	}
	return "", false
}
