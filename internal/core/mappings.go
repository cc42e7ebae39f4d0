package core

// mappings.go holds the two static lookup tables at the heart of the
// conversion. Both are closed enumerations fixed at build time, with
// different miss policies: status codes fall back to a default state,
// pipeline steps have no fallback at all.

import "github.com/stagepipe/omcbridge/internal/omc"

// DefaultState is assigned when a status code is absent or unmapped.
const DefaultState = omc.StateWaiting

// stateMapping translates ShotGrid status codes to OMC lifecycle states.
// Keys are the short codes ShotGrid uses internally; matching is exact.
var stateMapping = map[string]omc.State{
	"ip":  omc.StateInProcess,
	"omt": omc.StateComplete,
	"r4e": omc.StateAssigned,
	"wtg": omc.StateWaiting,
	"rev": omc.StateAssigned,
	"fin": omc.StateComplete,
}

// categoryMapping translates ShotGrid pipeline steps to OMC functional
// categories. Deliberately no default: an unmapped step leaves the entity
// without a functional classification.
var categoryMapping = map[string]omc.Category{
	"Text to Image":  omc.CategoryCreateVFX,
	"Image to Video": omc.CategoryCreateVFX,
	"Comp":           omc.CategoryCreateVFX,
	"Upscale":        omc.CategoryCreateVFX,
	"Model":          omc.CategoryCreateVFX,
	"Texture":        omc.CategoryCreateVFX,
	"VFX":            omc.CategoryCreateVFX,
	"Animation":      omc.CategoryCreateVFX,
	"Lighting":       omc.CategoryCreateVFX,
	"Rendering":      omc.CategoryCreateVFX,
	"Editorial":      omc.CategoryEdit,
	"Edit":           omc.CategoryEdit,
}

// LookupState resolves a status code to a lifecycle state. This is a total
// function: unmapped codes resolve to DefaultState.
func LookupState(status string) omc.State {
	if state, ok := stateMapping[status]; ok {
		return state
	}
	return DefaultState
}

// LookupCategory resolves a pipeline step to a functional category. The
// second return is false for unmapped steps; callers omit the field rather
// than defaulting it.
func LookupCategory(step string) (omc.Category, bool) {
	category, ok := categoryMapping[step]
	return category, ok
}

// StateMappings returns a copy of the status table for display.
func StateMappings() map[string]omc.State {
	out := make(map[string]omc.State, len(stateMapping))
	for k, v := range stateMapping {
		out[k] = v
	}
	return out
}

// CategoryMappings returns a copy of the pipeline step table for display.
func CategoryMappings() map[string]omc.Category {
	out := make(map[string]omc.Category, len(categoryMapping))
	for k, v := range categoryMapping {
		out[k] = v
	}
	return out
}
