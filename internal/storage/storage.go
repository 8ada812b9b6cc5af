// Package storage declares the transactional entity store contract.
// Concrete backends (internal/storage/sqlite) implement it; the rest of the
// core (workflow, templates, deps, export, mcp) only depends on this
// interface, per spec.md §4.1 and the "Persistence as such ... do not
// specify its on-disk format" non-goal in spec.md §1.
package storage

import (
	"context"

	"github.com/taskmcp/taskmcp/internal/types"
)

// Storage is the root handle to the entity store. Every per-kind sub-store
// is reachable from it, mirroring the teacher's composition of
// issue/epic/comment/label access onto one storage.Storage handle.
type Storage interface {
	Projects() ProjectStore
	Features() FeatureStore
	Tasks() TaskStore
	Sections() SectionStore
	Templates() TemplateStore
	Dependencies() DependencyStore
	Tags() TagStore

	// RunInTransaction runs fn within a single database transaction. All
	// sub-store calls made through the Transaction passed to fn are part of
	// that transaction; a returned error rolls it back.
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error

	Close() error
}

// Transaction exposes the same per-kind sub-stores as Storage, scoped to one
// in-flight transaction (spec.md §4.3's "apply on create runs inside the
// same transaction that creates the entity").
type Transaction interface {
	Projects() ProjectStore
	Features() FeatureStore
	Tasks() TaskStore
	Sections() SectionStore
	Templates() TemplateStore
	Dependencies() DependencyStore
	Tags() TagStore
}

// ProjectStore is the per-entity-kind CRUD + query surface for Projects.
type ProjectStore interface {
	Create(ctx context.Context, p *types.Project) types.Result[*types.Project]
	Update(ctx context.Context, p *types.Project) types.Result[*types.Project]
	Delete(ctx context.Context, id types.ID) types.Result[bool]
	GetByID(ctx context.Context, id types.ID) types.Result[*types.Project]
	FindAll(ctx context.Context, limit int) types.Result[[]*types.Project]
	Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Project]
}

// FeatureStore is the per-entity-kind CRUD + query surface for Features.
type FeatureStore interface {
	Create(ctx context.Context, f *types.Feature) types.Result[*types.Feature]
	Update(ctx context.Context, f *types.Feature) types.Result[*types.Feature]
	Delete(ctx context.Context, id types.ID) types.Result[bool]
	GetByID(ctx context.Context, id types.ID) types.Result[*types.Feature]
	FindAll(ctx context.Context, limit int) types.Result[[]*types.Feature]
	Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Feature]
	// ByProject lists every feature owned by projectID, used by cascade
	// delete and by the export pipeline's status-table rendering.
	ByProject(ctx context.Context, projectID types.ID) types.Result[[]*types.Feature]
}

// TaskStore is the per-entity-kind CRUD + query surface for Tasks.
type TaskStore interface {
	Create(ctx context.Context, t *types.Task) types.Result[*types.Task]
	Update(ctx context.Context, t *types.Task) types.Result[*types.Task]
	Delete(ctx context.Context, id types.ID) types.Result[bool]
	GetByID(ctx context.Context, id types.ID) types.Result[*types.Task]
	FindAll(ctx context.Context, limit int) types.Result[[]*types.Task]
	Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Task]
	ByFeature(ctx context.Context, featureID types.ID) types.Result[[]*types.Task]
	ByProject(ctx context.Context, projectID types.ID) types.Result[[]*types.Task]
}

// SectionStore manages ordered content blocks owned by any live entity.
type SectionStore interface {
	Add(ctx context.Context, s *types.Section) types.Result[*types.Section]
	Update(ctx context.Context, s *types.Section) types.Result[*types.Section]
	UpdateText(ctx context.Context, id types.ID, content string) types.Result[*types.Section]
	UpdateMetadata(ctx context.Context, id types.ID, title, usageDescription string, tags types.TagSet) types.Result[*types.Section]
	Delete(ctx context.Context, id types.ID) types.Result[bool]
	GetByID(ctx context.Context, id types.ID) types.Result[*types.Section]
	// List returns every Section owned by (entityType, entityID), ascending
	// by Ordinal.
	List(ctx context.Context, entityType types.EntityType, entityID types.ID) types.Result[[]*types.Section]
	// Reorder assigns contiguous ordinals 0..n-1 following orderedIDs.
	Reorder(ctx context.Context, entityType types.EntityType, entityID types.ID, orderedIDs []types.ID) types.Result[[]*types.Section]
	// DeleteByOwner removes every Section owned by (entityType, entityID);
	// used by cascade delete.
	DeleteByOwner(ctx context.Context, entityType types.EntityType, entityID types.ID) types.Result[int]
}

// TemplateStore manages reusable Template definitions.
type TemplateStore interface {
	Create(ctx context.Context, t *types.Template) types.Result[*types.Template]
	Update(ctx context.Context, t *types.Template) types.Result[*types.Template]
	Delete(ctx context.Context, id types.ID) types.Result[bool]
	GetByID(ctx context.Context, id types.ID) types.Result[*types.Template]
	FindAll(ctx context.Context, limit int) types.Result[[]*types.Template]
	FindEnabled(ctx context.Context, target types.EntityType) types.Result[[]*types.Template]
}

// DependencyStore manages directed BLOCKS/RELATES_TO/IS_BLOCKED_BY edges.
type DependencyStore interface {
	Add(ctx context.Context, d *types.Dependency) types.Result[*types.Dependency]
	Remove(ctx context.Context, id types.ID) types.Result[bool]
	RemoveByEdge(ctx context.Context, from, to types.ID, depType types.DependencyType) types.Result[bool]
	Incoming(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency]
	Outgoing(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency]
	Related(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency]
	// BlocksEdgesIn returns every BLOCKS edge whose endpoints are both in
	// scope, used by batch computation.
	BlocksEdgesIn(ctx context.Context, scope []types.ID) types.Result[[]*types.Dependency]
	// ReachableViaBlocks reports whether target is reachable from start by
	// following BLOCKS edges forward (used for on-the-fly cycle checks).
	ReachableViaBlocks(ctx context.Context, start, target types.ID) types.Result[[]types.ID]
	// DeleteByTask removes every edge touching taskID; used by cascade delete.
	DeleteByTask(ctx context.Context, taskID types.ID) types.Result[int]
}

// TagCount is one row of the list-all-tags report.
type TagCount struct {
	Tag   string
	Count int
}

// TagUsageEntry names one entity currently holding a tag.
type TagUsageEntry struct {
	EntityType types.EntityType
	EntityID   types.ID
	Name       string // the entity's display name/title
}

// TagStore derives tag operations from entity Tags fields.
type TagStore interface {
	ListAll(ctx context.Context, sortByCount bool) types.Result[[]TagCount]
	Usage(ctx context.Context, tag string) types.Result[[]TagUsageEntry]
	// Rename atomically relabels tag across every entity that holds it,
	// returning the number of entities updated.
	Rename(ctx context.Context, from, to string) types.Result[int]
}
