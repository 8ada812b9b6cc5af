package types

import (
	"fmt"
	"time"
)

// Project is the root of the containment tree: Project -> Feature -> Task.
type Project struct {
	ID          ID
	Name        string
	Summary     string
	Description string
	Status      Status
	Tags        TagSet
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Version     int
}

// Validate checks field-level invariants that hold regardless of the active
// workflow (workflow-dependent status legality is checked separately by
// internal/workflow).
func (p *Project) Validate() error {
	if trimmed := trimmedLen(p.Name); trimmed == 0 {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less")
	}
	return validateSummaryLength(p.Summary, p.Status)
}

func trimmedLen(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			n++
		}
	}
	return n
}

// validateSummaryLength enforces the 300-500 char summary bound mentioned in
// spec.md §3 on any non-empty summary, whatever the status. It is used by the
// Validate methods of Project, Feature and Task; the workflow engine's
// completion gate calls Task.ValidateCompletionSummary, a separate check with
// the same bound.
func validateSummaryLength(summary string, status Status) error {
	// Structural validation only checks the bound when a summary is present;
	// the workflow engine is responsible for *requiring* one at completion.
	if summary == "" {
		return nil
	}
	n := len([]rune(summary))
	if n < 300 || n > 500 {
		return fmt.Errorf("summary must be between 300 and 500 characters, got %d", n)
	}
	return nil
}
