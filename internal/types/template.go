package types

import (
	"fmt"
	"time"
)

// Template is a prefabricated, reusable set of Section prototypes applicable
// to entities of a declared TargetEntityType. Built-in templates are
// restored on startup and are immutable through normal write paths.
type Template struct {
	ID               ID
	Name             string
	Description      string
	TargetEntityType EntityType
	IsEnabled        bool
	IsBuiltin        bool
	Sections         []SectionPrototype
	CreatedAt        time.Time
	ModifiedAt       time.Time
}

func (t *Template) Validate() error {
	if trimmedLen(t.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	target, ok := ParseEntityType(string(t.TargetEntityType))
	if !ok || target == EntityTemplate {
		return fmt.Errorf("invalid target entity type %q", t.TargetEntityType)
	}
	for i := range t.Sections {
		if err := t.Sections[i].Validate(); err != nil {
			return fmt.Errorf("section prototype %d: %w", i, err)
		}
	}
	return nil
}
