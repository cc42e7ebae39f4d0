package core

// transform.go is the row transformer: a pure function from one normalized
// source row to one OMC Task entity. All mapping, defaulting, and sub-block
// construction happens here; nothing in this file touches I/O or shared
// state, so rows can be transformed in any order with identical results.

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stagepipe/omcbridge/internal/omc"
)

// TransformRow converts one task row into its OMC entity. The caller has
// already established that row.ID is valid; everything else is optional and
// resolves by defaulting or omission, never by failing.
func TransformRow(row TaskRow, policy RawCopyPolicy) omc.Entity {
	id := strconv.FormatInt(row.ID, 10)

	data := omc.CustomData{
		Name:  row.TaskName,
		State: LookupState(row.Status),
		StateDetails: omc.StateDetails{
			OriginalShotGridStatus: row.Status,
			ShotGridID:             row.ID,
			Note:                   fmt.Sprintf("Converted from ShotGrid task %d", row.ID),
		},
		PipelineStep: row.PipelineStep,
		ThumbnailURL: row.Thumbnail,
		ShotStatus:   row.ShotStatus,
		Scheduling:   buildScheduling(row),
		Assignments:  buildAssignments(row),
		Assets:       buildAssets(row),
		OriginalData: buildOriginalData(row, policy),
	}
	if data.Name == "" {
		data.Name = "Task " + id
	}

	entity := omc.Entity{
		SchemaVersion: omc.SchemaVersion,
		EntityType:    omc.EntityTypeTask,
		Identifier: []omc.Identifier{{
			IdentifierScope: omc.IdentifierScope,
			IdentifierValue: "task/" + id,
		}},
		TaskFC:  omc.TaskFC{CustomData: data},
		Context: buildContext(row),
	}
	if category, ok := LookupCategory(row.PipelineStep); ok {
		entity.TaskFC.FunctionalType = category
	}

	return entity
}

// anyPresent reports whether at least one of the values was provided.
// Every optional sub-block uses this same present-or-absent gate.
func anyPresent(values ...string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}

// buildScheduling returns the scheduling block, or nil when the row has no
// dates. Date strings pass through exactly as exported.
func buildScheduling(row TaskRow) *omc.Scheduling {
	if !anyPresent(row.StartDate, row.DueDate) {
		return nil
	}
	return &omc.Scheduling{ScheduledStart: row.StartDate, ScheduledEnd: row.DueDate}
}

// buildAssignments returns the assignment block, or nil when the row names
// nobody.
func buildAssignments(row TaskRow) *omc.Assignment {
	if !anyPresent(row.AssignedTo, row.Reviewer) {
		return nil
	}
	return &omc.Assignment{AssignedTo: row.AssignedTo, Reviewer: row.Reviewer}
}

// buildAssets returns the asset block, or nil when the row has no link.
// InputAsset carries the normalized slug, matching the asset context
// pointer built from the same link.
func buildAssets(row TaskRow) *omc.Assets {
	if !anyPresent(row.Link) {
		return nil
	}
	return &omc.Assets{InputAsset: SlugifyLink(row.Link)}
}

// buildContext assembles the cross-reference list in fixed group order:
// scheduling, artist, reviewer, asset. Returns nil when no group has data
// so the Context field disappears instead of appearing as [].
func buildContext(row TaskRow) []omc.ContextRef {
	var refs []omc.ContextRef
	add := func(value string) {
		refs = append(refs, omc.ContextRef{Identifier: []omc.Identifier{{
			IdentifierScope: omc.IdentifierScope,
			IdentifierValue: value,
		}}})
	}

	if anyPresent(row.StartDate, row.DueDate) {
		add("scheduling/" + strconv.FormatInt(row.ID, 10))
	}
	if row.AssignedTo != "" {
		add("workunit/" + Slugify(row.AssignedTo) + "-artist")
	}
	if row.Reviewer != "" {
		add("workunit/" + Slugify(row.Reviewer) + "-reviewer")
	}
	if row.Link != "" {
		add("asset/" + SlugifyLink(row.Link))
	}

	return refs
}

// encodedTaskData mirrors omc.OriginalTaskData but omits absent fields,
// which is what the encoded copy policy wants inside its JSON string.
type encodedTaskData struct {
	ID           int64  `json:"Id"`
	TaskName     string `json:"TaskName,omitempty"`
	Link         string `json:"Link,omitempty"`
	PipelineStep string `json:"PipelineStep,omitempty"`
	Status       string `json:"Status,omitempty"`
	AssignedTo   string `json:"AssignedTo,omitempty"`
	Reviewer     string `json:"Reviewer,omitempty"`
	StartDate    string `json:"StartDate,omitempty"`
	DueDate      string `json:"DueDate,omitempty"`
	ShotStatus   string `json:"ShotStatus,omitempty"`
	Project      string `json:"Project,omitempty"`
	Thumbnail    string `json:"Thumbnail,omitempty"`
}

// buildOriginalData embeds the source-row copy per the configured policy:
// a nested object with explicit nulls (verbatim) or one compact JSON string
// with absent fields dropped (encoded).
func buildOriginalData(row TaskRow, policy RawCopyPolicy) any {
	if policy == RawCopyEncoded {
		encoded, err := json.Marshal(encodedTaskData{
			ID:           row.ID,
			TaskName:     row.TaskName,
			Link:         row.Link,
			PipelineStep: row.PipelineStep,
			Status:       row.Status,
			AssignedTo:   row.AssignedTo,
			Reviewer:     row.Reviewer,
			StartDate:    row.StartDate,
			DueDate:      row.DueDate,
			ShotStatus:   row.ShotStatus,
			Project:      row.Project,
			Thumbnail:    row.Thumbnail,
		})
		if err == nil {
			return string(encoded)
		}
		// Marshal of a flat string struct cannot fail; fall through to the
		// nested copy rather than dropping the record.
	}

	return &omc.OriginalTaskData{
		ID:           row.ID,
		TaskName:     optional(row.TaskName),
		Link:         optional(row.Link),
		PipelineStep: optional(row.PipelineStep),
		Status:       optional(row.Status),
		AssignedTo:   optional(row.AssignedTo),
		Reviewer:     optional(row.Reviewer),
		StartDate:    optional(row.StartDate),
		DueDate:      optional(row.DueDate),
		ShotStatus:   optional(row.ShotStatus),
		Project:      optional(row.Project),
		Thumbnail:    optional(row.Thumbnail),
	}
}

// optional returns a pointer to s, or nil when the field was not provided.
// Nil pointers serialize as explicit null in the verbatim copy.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
