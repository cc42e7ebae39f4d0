package omc

import "encoding/json"

// Document is the top-level output of a conversion run: the produced
// entities in source row order. It serializes as a JSON array; an empty
// document serializes as [].
type Document []Entity

// Encode serializes the document with two-space indentation and the stable
// field order declared on Entity. Encoding the same document twice yields
// byte-identical output.
func (d Document) Encode() ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	return json.MarshalIndent(d, "", "  ")
}
