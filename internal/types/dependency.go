package types

import (
	"fmt"
	"time"
)

// Dependency is a directed edge between two Tasks.
type Dependency struct {
	ID        ID
	FromID    ID
	ToID      ID
	Type      DependencyType
	CreatedAt time.Time
}

func (d *Dependency) Validate() error {
	if d.FromID == d.ToID {
		return fmt.Errorf("dependency cannot reference the same task on both ends")
	}
	if _, ok := ParseDependencyType(string(d.Type)); !ok {
		return fmt.Errorf("invalid dependency type %q", d.Type)
	}
	return nil
}
