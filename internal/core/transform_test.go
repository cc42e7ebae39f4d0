package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stagepipe/omcbridge/internal/omc"
)

// ---- LookupState ----

func TestLookupState(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   omc.State
	}{
		{"in progress code", "ip", omc.StateInProcess},
		{"omit code", "omt", omc.StateComplete},
		{"ready for edit code", "r4e", omc.StateAssigned},
		{"waiting code", "wtg", omc.StateWaiting},
		{"review code", "rev", omc.StateAssigned},
		{"final code", "fin", omc.StateComplete},
		{"unknown code defaults", "xyz", omc.StateWaiting},
		{"empty status defaults", "", omc.StateWaiting},
		{"case sensitive match", "FIN", omc.StateWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LookupState(tt.status)
			if got != tt.want {
				t.Errorf("LookupState(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

// ---- LookupCategory ----

func TestLookupCategory(t *testing.T) {
	tests := []struct {
		name   string
		step   string
		want   omc.Category
		wantOK bool
	}{
		{"comp", "Comp", omc.CategoryCreateVFX, true},
		{"text to image", "Text to Image", omc.CategoryCreateVFX, true},
		{"image to video", "Image to Video", omc.CategoryCreateVFX, true},
		{"upscale", "Upscale", omc.CategoryCreateVFX, true},
		{"model", "Model", omc.CategoryCreateVFX, true},
		{"texture", "Texture", omc.CategoryCreateVFX, true},
		{"vfx", "VFX", omc.CategoryCreateVFX, true},
		{"animation", "Animation", omc.CategoryCreateVFX, true},
		{"lighting", "Lighting", omc.CategoryCreateVFX, true},
		{"rendering", "Rendering", omc.CategoryCreateVFX, true},
		{"editorial", "Editorial", omc.CategoryEdit, true},
		{"edit", "Edit", omc.CategoryEdit, true},
		{"unmapped step", "Sound Mix", "", false},
		{"empty step", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupCategory(tt.step)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("LookupCategory(%q) = (%q, %v), want (%q, %v)", tt.step, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ---- TransformRow ----

func TestTransformRowComposite(t *testing.T) {
	row := TaskRow{
		ID:           7,
		Status:       "fin",
		PipelineStep: "Comp",
		AssignedTo:   "Jane Doe",
	}

	entity := TransformRow(row, RawCopyVerbatim)

	if entity.SchemaVersion != omc.SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", entity.SchemaVersion, omc.SchemaVersion)
	}
	if entity.EntityType != omc.EntityTypeTask {
		t.Errorf("EntityType = %q, want %q", entity.EntityType, omc.EntityTypeTask)
	}

	if len(entity.Identifier) != 1 {
		t.Fatalf("len(Identifier) = %d, want 1", len(entity.Identifier))
	}
	id := entity.Identifier[0]
	if id.IdentifierScope != "shotgrid" || id.IdentifierValue != "task/7" {
		t.Errorf("Identifier = %+v, want scope shotgrid value task/7", id)
	}

	if entity.TaskFC.FunctionalType != omc.CategoryCreateVFX {
		t.Errorf("FunctionalType = %q, want %q", entity.TaskFC.FunctionalType, omc.CategoryCreateVFX)
	}
	if got := entity.TaskFC.CustomData.State; got != omc.StateComplete {
		t.Errorf("State = %q, want %q", got, omc.StateComplete)
	}

	assignments := entity.TaskFC.CustomData.Assignments
	if assignments == nil {
		t.Fatal("Assignments = nil, want block with assignedTo")
	}
	if assignments.AssignedTo != "Jane Doe" || assignments.Reviewer != "" {
		t.Errorf("Assignments = %+v, want {AssignedTo: Jane Doe}", assignments)
	}

	if len(entity.Context) != 1 {
		t.Fatalf("len(Context) = %d, want 1", len(entity.Context))
	}
	ref := entity.Context[0].Identifier[0]
	if ref.IdentifierValue != "workunit/jane-doe-artist" {
		t.Errorf("Context ref = %q, want %q", ref.IdentifierValue, "workunit/jane-doe-artist")
	}
}

func TestTransformRowNameFallback(t *testing.T) {
	tests := []struct {
		name     string
		taskName string
		want     string
	}{
		{"provided name kept", "Comp Shot 010", "Comp Shot 010"},
		{"missing name synthesized", "", "Task 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := TransformRow(TaskRow{ID: 42, TaskName: tt.taskName}, RawCopyVerbatim)
			if got := entity.TaskFC.CustomData.Name; got != tt.want {
				t.Errorf("Name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransformRowStateDetails(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 7, Status: "fin"}, RawCopyVerbatim)

	details := entity.TaskFC.CustomData.StateDetails
	if details.OriginalShotGridStatus != "fin" {
		t.Errorf("OriginalShotGridStatus = %q, want %q", details.OriginalShotGridStatus, "fin")
	}
	if details.ShotGridID != 7 {
		t.Errorf("ShotGridID = %d, want 7", details.ShotGridID)
	}
	if details.Note != "Converted from ShotGrid task 7" {
		t.Errorf("Note = %q, want %q", details.Note, "Converted from ShotGrid task 7")
	}
}

func TestTransformRowStatusOmittedFromDetails(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 3}, RawCopyVerbatim)

	raw, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "originalShotGridStatus") {
		t.Error("entity without a status still serializes originalShotGridStatus")
	}
}

func TestTransformRowSubBlockOmission(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 9}, RawCopyVerbatim)

	data := entity.TaskFC.CustomData
	if data.Scheduling != nil {
		t.Errorf("Scheduling = %+v, want nil", data.Scheduling)
	}
	if data.Assignments != nil {
		t.Errorf("Assignments = %+v, want nil", data.Assignments)
	}
	if data.Assets != nil {
		t.Errorf("Assets = %+v, want nil", data.Assets)
	}
	if entity.Context != nil {
		t.Errorf("Context = %+v, want nil", entity.Context)
	}
	if entity.TaskFC.FunctionalType != "" {
		t.Errorf("FunctionalType = %q, want empty", entity.TaskFC.FunctionalType)
	}
	if got := data.State; got != omc.StateWaiting {
		t.Errorf("State = %q, want default %q", got, omc.StateWaiting)
	}
}

func TestTransformRowScheduling(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		due       string
		wantBlock bool
		wantStart string
		wantEnd   string
	}{
		{"both dates", "2024-01-02", "2024-02-03", true, "2024-01-02", "2024-02-03"},
		{"start only", "2024-01-02", "", true, "2024-01-02", ""},
		{"due only", "", "2024-02-03", true, "", "2024-02-03"},
		{"no dates", "", "", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := TransformRow(TaskRow{ID: 1, StartDate: tt.start, DueDate: tt.due}, RawCopyVerbatim)
			block := entity.TaskFC.CustomData.Scheduling

			if !tt.wantBlock {
				if block != nil {
					t.Errorf("Scheduling = %+v, want nil", block)
				}
				return
			}
			if block == nil {
				t.Fatal("Scheduling = nil, want block")
			}
			if block.ScheduledStart != tt.wantStart || block.ScheduledEnd != tt.wantEnd {
				t.Errorf("Scheduling = {%q, %q}, want {%q, %q}",
					block.ScheduledStart, block.ScheduledEnd, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestTransformRowContextOrder(t *testing.T) {
	row := TaskRow{
		ID:         5,
		Link:       "Shot/010",
		AssignedTo: "Jane Doe",
		Reviewer:   "John Smith",
		StartDate:  "2024-01-02",
	}

	entity := TransformRow(row, RawCopyVerbatim)

	want := []string{
		"scheduling/5",
		"workunit/jane-doe-artist",
		"workunit/john-smith-reviewer",
		"asset/shot-010",
	}

	if len(entity.Context) != len(want) {
		t.Fatalf("len(Context) = %d, want %d", len(entity.Context), len(want))
	}
	for i, ref := range entity.Context {
		if len(ref.Identifier) != 1 {
			t.Fatalf("Context[%d] has %d identifiers, want 1", i, len(ref.Identifier))
		}
		if got := ref.Identifier[0].IdentifierValue; got != want[i] {
			t.Errorf("Context[%d] = %q, want %q", i, got, want[i])
		}
		if scope := ref.Identifier[0].IdentifierScope; scope != "shotgrid" {
			t.Errorf("Context[%d] scope = %q, want shotgrid", i, scope)
		}
	}
}

func TestTransformRowLinkSlugConsistency(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 10, Link: "Shot/010"}, RawCopyVerbatim)

	assets := entity.TaskFC.CustomData.Assets
	if assets == nil {
		t.Fatal("Assets = nil, want block")
	}
	if assets.InputAsset != "shot-010" {
		t.Errorf("InputAsset = %q, want %q", assets.InputAsset, "shot-010")
	}

	if len(entity.Context) != 1 {
		t.Fatalf("len(Context) = %d, want 1", len(entity.Context))
	}
	if got := entity.Context[0].Identifier[0].IdentifierValue; got != "asset/shot-010" {
		t.Errorf("Context ref = %q, want %q", got, "asset/shot-010")
	}
}

func TestTransformRowDeterministic(t *testing.T) {
	row := TaskRow{
		ID:           77,
		TaskName:     "Comp 077",
		Link:         "Shot/077",
		PipelineStep: "Comp",
		Status:       "ip",
		AssignedTo:   "Jane Doe",
		StartDate:    "2024-03-04",
	}

	for _, policy := range []RawCopyPolicy{RawCopyVerbatim, RawCopyEncoded} {
		first, err := json.Marshal(TransformRow(row, policy))
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		second, err := json.Marshal(TransformRow(row, policy))
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("policy %q: repeated transform not byte-identical", policy)
		}
	}
}

// ---- original row copy policies ----

func TestTransformRowVerbatimCopy(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 7, Status: "fin", Project: "Demo"}, RawCopyVerbatim)

	orig, ok := entity.TaskFC.CustomData.OriginalData.(*omc.OriginalTaskData)
	if !ok {
		t.Fatalf("OriginalData type = %T, want *omc.OriginalTaskData", entity.TaskFC.CustomData.OriginalData)
	}

	if orig.ID != 7 {
		t.Errorf("ID = %d, want 7", orig.ID)
	}
	if orig.Status == nil || *orig.Status != "fin" {
		t.Errorf("Status = %v, want fin", orig.Status)
	}
	if orig.Project == nil || *orig.Project != "Demo" {
		t.Errorf("Project = %v, want Demo", orig.Project)
	}
	if orig.TaskName != nil {
		t.Errorf("TaskName = %v, want nil for absent field", orig.TaskName)
	}

	// Absent fields must serialize as explicit null, not disappear.
	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"TaskName":null`) {
		t.Errorf("verbatim copy = %s, want explicit null TaskName", raw)
	}
}

func TestTransformRowEncodedCopy(t *testing.T) {
	entity := TransformRow(TaskRow{ID: 7, Status: "fin", Project: "Demo"}, RawCopyEncoded)

	encoded, ok := entity.TaskFC.CustomData.OriginalData.(string)
	if !ok {
		t.Fatalf("OriginalData type = %T, want string", entity.TaskFC.CustomData.OriginalData)
	}

	want := `{"Id":7,"Status":"fin","Project":"Demo"}`
	if encoded != want {
		t.Errorf("encoded copy = %q, want %q", encoded, want)
	}
}

// ---- Slugify ----

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"person name", "Jane Doe", "jane-doe"},
		{"already lowercase", "jane", "jane"},
		{"multiple spaces become multiple hyphens", "a b c", "a-b-c"},
		{"slash untouched", "Shot/010", "shot/010"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.input)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugifyLink(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"shot path", "Shot/010", "shot-010"},
		{"nested path", "Seq 01/Shot 010", "seq-01-shot-010"},
		{"no slash", "Shot 010", "shot-010"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlugifyLink(tt.input)
			if got != tt.want {
				t.Errorf("SlugifyLink(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ---- ParseRawCopyPolicy ----

func TestParseRawCopyPolicy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RawCopyPolicy
		wantErr bool
	}{
		{"verbatim", "verbatim", RawCopyVerbatim, false},
		{"encoded", "encoded", RawCopyEncoded, false},
		{"unknown", "filtered", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRawCopyPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRawCopyPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRawCopyPolicy(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
