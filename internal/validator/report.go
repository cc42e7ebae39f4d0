package validator

import "strings"

// Outcome is the classified result of one verification exchange.
type Outcome string

const (
	// OutcomeSuccess means every rule reported an acceptance status.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means at least one rule reported a failure status.
	OutcomeFailure Outcome = "failure"

	// OutcomeIndeterminate means the checker returned neither a tally nor
	// any issues, so nothing can be concluded about the document.
	OutcomeIndeterminate Outcome = "indeterminate"

	// OutcomeSuccessWithNotes means no rule failed but some reported a
	// status outside the acceptance set, e.g. warnings.
	OutcomeSuccessWithNotes Outcome = "success_with_notes"
)

// Report is the checker's response in the shape this tool understands: a
// per-rule status tally plus an optional list of per-rule issues. Anything
// else in the response is ignored here but preserved in the raw bytes the
// client hands back.
type Report struct {
	Tally  map[string]int `json:"tally,omitempty"`
	Issues []Issue        `json:"issues,omitempty"`
}

// Issue is a single per-rule finding.
type Issue struct {
	Rule    string `json:"rule"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Classify reduces a report to one outcome. Tally entries with a zero count
// are ignored; every listed issue counts once.
func Classify(r Report) Outcome {
	if len(r.Tally) == 0 && len(r.Issues) == 0 {
		return OutcomeIndeterminate
	}

	allAccepted := true

	for status, count := range r.Tally {
		if count <= 0 {
			continue
		}
		if isFailure(status) {
			return OutcomeFailure
		}
		if !isAcceptance(status) {
			allAccepted = false
		}
	}

	for _, issue := range r.Issues {
		if isFailure(issue.Status) {
			return OutcomeFailure
		}
		if !isAcceptance(issue.Status) {
			allAccepted = false
		}
	}

	if allAccepted {
		return OutcomeSuccess
	}
	return OutcomeSuccessWithNotes
}

// isFailure reports whether a rule status counts as a hard failure.
func isFailure(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "fail", "error":
		return true
	}
	return false
}

// isAcceptance reports whether a rule status counts as a clean pass.
// Statuses that are neither failures nor acceptances (warnings, notes,
// skipped rules) downgrade success to success_with_notes.
func isAcceptance(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "passed", "pass", "ok", "success":
		return true
	}
	return false
}
