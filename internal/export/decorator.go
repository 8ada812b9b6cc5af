package export

import (
	"context"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// decoratedStore wraps a storage.Storage, enqueuing export jobs after every
// successful mutating call, per spec.md §4.5. Non-mutating methods and
// TemplateStore/TagStore (which have no vault representation) pass through
// unchanged.
type decoratedStore struct {
	inner storage.Storage
	queue *Queue
}

func (d *decoratedStore) Projects() storage.ProjectStore {
	return &decoratedProjects{d.inner.Projects(), d.queue}
}
func (d *decoratedStore) Features() storage.FeatureStore {
	return &decoratedFeatures{d.inner.Features(), d.queue}
}
func (d *decoratedStore) Tasks() storage.TaskStore {
	return &decoratedTasks{d.inner.Tasks(), d.queue}
}
func (d *decoratedStore) Sections() storage.SectionStore {
	return &decoratedSections{d.inner.Sections(), d.queue}
}
func (d *decoratedStore) Templates() storage.TemplateStore   { return d.inner.Templates() }
func (d *decoratedStore) Dependencies() storage.DependencyStore { return d.inner.Dependencies() }
func (d *decoratedStore) Tags() storage.TagStore             { return d.inner.Tags() }
func (d *decoratedStore) Close() error                        { return d.inner.Close() }

// RunInTransaction passes straight through to the inner store: writes made
// inside a Transaction (e.g. template apply on create) are not enqueued by
// this decorator, so the callers that open one enqueue their export jobs
// themselves once it commits.
func (d *decoratedStore) RunInTransaction(ctx context.Context, fn func(storage.Transaction) error) error {
	return d.inner.RunInTransaction(ctx, fn)
}

type decoratedProjects struct {
	storage.ProjectStore
	queue *Queue
}

func (d *decoratedProjects) Create(ctx context.Context, p *types.Project) types.Result[*types.Project] {
	res := d.ProjectStore.Create(ctx, p)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityProject, EntityID: res.Value().ID})
	}
	return res
}

func (d *decoratedProjects) Update(ctx context.Context, p *types.Project) types.Result[*types.Project] {
	res := d.ProjectStore.Update(ctx, p)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityProject, EntityID: res.Value().ID})
	}
	return res
}

func (d *decoratedProjects) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	res := d.ProjectStore.Delete(ctx, id)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobDeleteEntity, EntityType: types.EntityProject, EntityID: id})
	}
	return res
}

type decoratedFeatures struct {
	storage.FeatureStore
	queue *Queue
}

func (d *decoratedFeatures) Create(ctx context.Context, f *types.Feature) types.Result[*types.Feature] {
	res := d.FeatureStore.Create(ctx, f)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: res.Value().ID})
	}
	return res
}

func (d *decoratedFeatures) Update(ctx context.Context, f *types.Feature) types.Result[*types.Feature] {
	res := d.FeatureStore.Update(ctx, f)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: res.Value().ID})
	}
	return res
}

func (d *decoratedFeatures) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	res := d.FeatureStore.Delete(ctx, id)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobDeleteEntity, EntityType: types.EntityFeature, EntityID: id})
	}
	return res
}

type decoratedTasks struct {
	storage.TaskStore
	queue *Queue
}

func (d *decoratedTasks) Create(ctx context.Context, t *types.Task) types.Result[*types.Task] {
	res := d.TaskStore.Create(ctx, t)
	if res.Ok() {
		d.enqueueTaskAndParents(res.Value())
	}
	return res
}

func (d *decoratedTasks) Update(ctx context.Context, t *types.Task) types.Result[*types.Task] {
	res := d.TaskStore.Update(ctx, t)
	if res.Ok() {
		d.enqueueTaskAndParents(res.Value())
	}
	return res
}

func (d *decoratedTasks) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	res := d.TaskStore.Delete(ctx, id)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobDeleteEntity, EntityType: types.EntityTask, EntityID: id})
	}
	return res
}

// enqueueTaskAndParents re-exports the Task plus, per spec.md §4.5 "for
// Task status changes, also enqueue ExportEntity on the parent Feature and
// Project so their embedded status tables update", its owning Feature and
// Project (re-exporting on every write, not only status changes, keeps the
// decorator simple and is idempotent by construction — see §4.5).
func (d *decoratedTasks) enqueueTaskAndParents(t *types.Task) {
	d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityTask, EntityID: t.ID})
	if t.FeatureID != nil {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: *t.FeatureID})
	}
	if t.ProjectID != nil {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityProject, EntityID: *t.ProjectID})
	}
}

type decoratedSections struct {
	storage.SectionStore
	queue *Queue
}

func (d *decoratedSections) Add(ctx context.Context, s *types.Section) types.Result[*types.Section] {
	res := d.SectionStore.Add(ctx, s)
	if res.Ok() {
		d.enqueueOwner(res.Value())
	}
	return res
}

func (d *decoratedSections) Update(ctx context.Context, s *types.Section) types.Result[*types.Section] {
	res := d.SectionStore.Update(ctx, s)
	if res.Ok() {
		d.enqueueOwner(res.Value())
	}
	return res
}

func (d *decoratedSections) UpdateText(ctx context.Context, id types.ID, content string) types.Result[*types.Section] {
	res := d.SectionStore.UpdateText(ctx, id, content)
	if res.Ok() {
		d.enqueueOwner(res.Value())
	}
	return res
}

func (d *decoratedSections) UpdateMetadata(ctx context.Context, id types.ID, title, usageDescription string, tags types.TagSet) types.Result[*types.Section] {
	res := d.SectionStore.UpdateMetadata(ctx, id, title, usageDescription, tags)
	if res.Ok() {
		d.enqueueOwner(res.Value())
	}
	return res
}

func (d *decoratedSections) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	owner := d.SectionStore.GetByID(ctx, id)
	res := d.SectionStore.Delete(ctx, id)
	if res.Ok() && owner.Ok() {
		d.enqueueOwner(owner.Value())
	}
	return res
}

func (d *decoratedSections) Reorder(ctx context.Context, entityType types.EntityType, entityID types.ID, orderedIDs []types.ID) types.Result[[]*types.Section] {
	res := d.SectionStore.Reorder(ctx, entityType, entityID, orderedIDs)
	if res.Ok() {
		d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: entityType, EntityID: entityID})
	}
	return res
}

func (d *decoratedSections) enqueueOwner(s *types.Section) {
	d.queue.Enqueue(Job{Kind: JobExportEntity, EntityType: s.EntityType, EntityID: s.EntityID})
}
