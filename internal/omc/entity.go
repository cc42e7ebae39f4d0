// Package omc defines the subset of the MovieLabs Ontology for Media
// Creation (OMC) JSON schema that conversion produces: Task entities with
// identifier blocks, functional classification, custom data, and context
// references. The types here are shape only; all mapping and construction
// logic lives in internal/core.
package omc

// Constants stamped onto every produced entity. These never vary per row.
const (
	// SchemaVersion is the OMC JSON schema revision the output conforms to.
	SchemaVersion = "https://movielabs.com/omc/json/schema/v2.6"

	// EntityTypeTask tags each produced record as an OMC Task.
	EntityTypeTask = "Task"

	// IdentifierScope namespaces every identifier produced from ShotGrid
	// data, both on entities and on context references.
	IdentifierScope = "shotgrid"
)

// State is the OMC lifecycle state of a task. Values form a closed set;
// conversion never emits anything outside it.
type State string

const (
	StateWaiting   State = "waiting"
	StateAssigned  State = "assigned"
	StateInProcess State = "in process"
	StateComplete  State = "complete"
)

// Category is the OMC functional classification of a task. Unlike State
// there is no fallback value: a task either maps to a category or carries
// none.
type Category string

const (
	CategoryCreateVFX Category = "Create Visual Effects"
	CategoryEdit      Category = "Edit"
)

// Identifier is a scoped identifier. IdentifierValue is unique within
// IdentifierScope, not globally.
type Identifier struct {
	IdentifierScope string `json:"identifierScope"`
	IdentifierValue string `json:"identifierValue"`
}

// ContextRef is a lightweight pointer to a related concept (a schedule, a
// person's work unit, an asset). Related records are referenced by
// identifier, never embedded.
type ContextRef struct {
	Identifier []Identifier `json:"identifier"`
}

// StateDetails preserves how the lifecycle state was derived.
// OriginalShotGridStatus is omitted when the source row carried no status.
type StateDetails struct {
	OriginalShotGridStatus string `json:"originalShotGridStatus,omitempty"`
	ShotGridID             int64  `json:"shotGridId"`
	Note                   string `json:"note"`
}

// Scheduling carries the task's planned window. Present only when the
// source row had at least one date; date strings pass through unparsed.
type Scheduling struct {
	ScheduledStart string `json:"scheduledStart,omitempty"`
	ScheduledEnd   string `json:"scheduledEnd,omitempty"`
}

// Assignment names the people attached to the task. Present only when the
// source row had at least one of the two names.
type Assignment struct {
	AssignedTo string `json:"assignedTo,omitempty"`
	Reviewer   string `json:"reviewer,omitempty"`
}

// Assets links the task to its input material. Present only when the source
// row had a link; InputAsset carries the normalized asset slug.
type Assets struct {
	InputAsset string `json:"inputAsset,omitempty"`
}

// OriginalTaskData is the verbatim copy of a normalized source row embedded
// under customData. Pointer fields are nil for columns the row did not
// provide, which serializes as explicit null.
type OriginalTaskData struct {
	ID           int64   `json:"Id"`
	TaskName     *string `json:"TaskName"`
	Link         *string `json:"Link"`
	PipelineStep *string `json:"PipelineStep"`
	Status       *string `json:"Status"`
	AssignedTo   *string `json:"AssignedTo"`
	Reviewer     *string `json:"Reviewer"`
	StartDate    *string `json:"StartDate"`
	DueDate      *string `json:"DueDate"`
	ShotStatus   *string `json:"ShotStatus"`
	Project      *string `json:"Project"`
	Thumbnail    *string `json:"Thumbnail"`
}

// CustomData is the free-form payload under the functional classification.
// Optional sub-blocks are pointers so an absent block disappears from the
// JSON instead of appearing as an empty object.
//
// OriginalData holds the original-row copy in whichever representation the
// copy policy selected: *OriginalTaskData (nested object) or string
// (compact JSON encoding).
type CustomData struct {
	Name         string       `json:"name"`
	State        State        `json:"state"`
	StateDetails StateDetails `json:"stateDetails"`
	PipelineStep string       `json:"pipelineStep,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
	ShotStatus   string       `json:"shotStatus,omitempty"`
	Scheduling   *Scheduling  `json:"scheduling,omitempty"`
	Assignments  *Assignment  `json:"assignments,omitempty"`
	Assets       *Assets      `json:"assets,omitempty"`
	OriginalData any          `json:"originalShotGridData,omitempty"`
}

// TaskFC is the functional classification block. FunctionalType is omitted
// entirely when the pipeline step had no mapping.
type TaskFC struct {
	FunctionalType Category   `json:"functionalType,omitempty"`
	CustomData     CustomData `json:"customData"`
}

// Entity is one produced OMC Task record wrapping a single source row.
// Context is omitted when no cross-references could be built.
//
// Field order here fixes the serialized field order; keep it stable so
// repeated conversions of the same input are byte-identical.
type Entity struct {
	SchemaVersion string       `json:"schemaVersion"`
	EntityType    string       `json:"entityType"`
	Identifier    []Identifier `json:"identifier"`
	TaskFC        TaskFC       `json:"taskFC"`
	Context       []ContextRef `json:"Context,omitempty"`
}
