package types

import (
	"fmt"
	"time"
)

// Task is the leaf entity. It may inherit its project from its feature, or
// be orphaned (neither FeatureID nor ProjectID set).
type Task struct {
	ID          ID
	Title       string
	Summary     string
	Description string
	Status      Status
	Priority    Priority
	Complexity  int // 1-10
	Tags        TagSet
	FeatureID   *ID
	ProjectID   *ID
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Version     int
}

func (t *Task) HasFeature() bool {
	return t.FeatureID != nil && !t.FeatureID.IsZero()
}

func (t *Task) HasProject() bool {
	return t.ProjectID != nil && !t.ProjectID.IsZero()
}

// EffectiveProjectID returns the task's own ProjectID if set, or nil. Project
// inheritance through a Feature (when FeatureID is set and ProjectID is not)
// is not resolved here: Task alone cannot resolve it, and the store does not
// fill ProjectID from the Feature.
func (t *Task) EffectiveProjectID() *ID {
	return t.ProjectID
}

func (t *Task) Validate() error {
	if trimmedLen(t.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less")
	}
	if _, ok := ParsePriority(string(t.Priority)); !ok {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.Complexity < 1 || t.Complexity > 10 {
		return fmt.Errorf("complexity must be between 1 and 10, got %d", t.Complexity)
	}
	return validateSummaryLength(t.Summary, t.Status)
}

// ValidateCompletionSummary enforces the "summary gate": transitioning a
// Task into a completion status requires a summary of length [300,500].
// Called by the workflow engine's prerequisite evaluation (spec.md §4.2
// rule 7), not by Validate, because only the workflow engine knows which
// status is "a completion status" for the active flow.
func (t *Task) ValidateCompletionSummary() error {
	n := len([]rune(t.Summary))
	if n < 300 || n > 500 {
		return fmt.Errorf("summary must be between 300 and 500 characters, got %d", n)
	}
	return nil
}
