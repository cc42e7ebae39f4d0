package core

// preview.go implements read-only analysis of an export before conversion.
// The preview reuses the same parsing and transformation the real run uses,
// so its projections always agree with what conversion would produce.

import (
	"strings"
	"time"

	"github.com/stagepipe/omcbridge/internal/omc"
	"github.com/stagepipe/omcbridge/internal/schema"
)

// PreviewSummary contains the headline counts for a source preview.
type PreviewSummary struct {
	TotalRows   int `json:"totalRows"`
	Convertible int `json:"convertible"`
	Skipped     int `json:"skipped"`
}

// SkippedRowSample identifies a row the converter would drop for lacking an
// id. TaskName is the raw cell, shown so users can locate the row.
type SkippedRowSample struct {
	Line     int    `json:"line"`
	TaskName string `json:"taskName,omitempty"`
}

// ValueCount reports how many rows carry a given source value.
type ValueCount struct {
	Value string `json:"value"`
	Rows  int    `json:"rows"`
}

// PreviewResponse is the complete result of a source preview.
type PreviewResponse struct {
	Summary PreviewSummary `json:"summary"`

	// Columns lists the export columns recognized in the header, in schema
	// order.
	Columns []string `json:"columns"`

	// SkippedSamples holds up to maxSkippedSamples rows without a usable id.
	SkippedSamples []SkippedRowSample `json:"skippedSamples,omitempty"`

	// UnknownStatuses lists non-empty status codes outside the mapping table;
	// these rows will fall back to the default state.
	UnknownStatuses []ValueCount `json:"unknownStatuses,omitempty"`

	// UnmappedSteps lists non-empty pipeline steps outside the mapping table;
	// these entities will carry no functional classification.
	UnmappedSteps []ValueCount `json:"unmappedSteps,omitempty"`

	// Projected holds the tallies the conversion would report.
	Projected ConversionStats `json:"projected"`

	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Sample limits
const (
	maxSkippedSamples = 20
	maxValueSamples   = 10
)

// AnalyzeSource performs a read-only analysis of an export. It parses the
// file exactly as a conversion would, then reports what the run will skip,
// default, and tally, without producing a document.
func AnalyzeSource(data []byte) (*PreviewResponse, error) {
	start := time.Now()

	src, err := ParseSource(data)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		Summary: PreviewSummary{TotalRows: len(src.Rows)},
	}

	for _, col := range schema.TaskColumns() {
		if _, ok := src.Index[strings.ToLower(col.Name)]; ok {
			resp.Columns = append(resp.Columns, col.Name)
		}
	}

	// Occurrence counts keyed by value, with first-seen order preserved so
	// the response is deterministic.
	unknownStatuses := newValueCounter()
	unmappedSteps := newValueCounter()

	var entities []omc.Entity
	for _, row := range src.Rows {
		if !row.HasID {
			resp.Summary.Skipped++
			if len(resp.SkippedSamples) < maxSkippedSamples {
				resp.SkippedSamples = append(resp.SkippedSamples, SkippedRowSample{
					Line:     row.Line,
					TaskName: getCell(row.Record, src.Index, schema.ColTaskName),
				})
			}
			continue
		}

		resp.Summary.Convertible++

		if status := row.Task.Status; status != "" {
			if _, known := stateMapping[status]; !known {
				unknownStatuses.add(status)
			}
		}
		if step := row.Task.PipelineStep; step != "" {
			if _, ok := LookupCategory(step); !ok {
				unmappedSteps.add(step)
			}
		}

		// The policy only affects the embedded raw copy, which the tallies
		// never look at.
		entities = append(entities, TransformRow(row.Task, RawCopyVerbatim))
	}

	resp.UnknownStatuses = unknownStatuses.top(maxValueSamples)
	resp.UnmappedSteps = unmappedSteps.top(maxValueSamples)
	resp.Projected = TallyStats(entities)
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// valueCounter tallies occurrences while remembering first-seen order.
type valueCounter struct {
	counts map[string]int
	order  []string
}

func newValueCounter() *valueCounter {
	return &valueCounter{counts: make(map[string]int)}
}

func (c *valueCounter) add(value string) {
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value]++
}

func (c *valueCounter) top(limit int) []ValueCount {
	if len(c.order) == 0 {
		return nil
	}
	n := len(c.order)
	if n > limit {
		n = limit
	}
	out := make([]ValueCount, 0, n)
	for _, value := range c.order[:n] {
		out = append(out, ValueCount{Value: value, Rows: c.counts[value]})
	}
	return out
}
