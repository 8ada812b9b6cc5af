package types

import (
	"fmt"
	"time"
)

// Feature sits between Project and Task. Its Project is its exclusive owner
// when ProjectID is set; ProjectID may be nil (Nil) to mean "unassigned".
type Feature struct {
	ID          ID
	Name        string
	Summary     string
	Description string
	Status      Status
	Priority    Priority
	Tags        TagSet
	ProjectID   *ID
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Version     int
}

// HasProject reports whether the feature is assigned to a project.
func (f *Feature) HasProject() bool {
	return f.ProjectID != nil && !f.ProjectID.IsZero()
}

func (f *Feature) Validate() error {
	if trimmedLen(f.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	if len(f.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less")
	}
	if _, ok := ParsePriority(string(f.Priority)); !ok {
		return fmt.Errorf("invalid priority %q", f.Priority)
	}
	return validateSummaryLength(f.Summary, f.Status)
}
